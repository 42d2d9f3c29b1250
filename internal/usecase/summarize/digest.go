package summarize

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"ai-news-digest/internal/domain/entity"
	"ai-news-digest/internal/provider"
	"ai-news-digest/internal/retryqueue"
)

// maxDigestTitles caps how many article titles feed the digest prompt.
const maxDigestTitles = 30

// GenerateDigest produces the daily roll-up for a set of summarized
// articles, using the analyze task's provider preference order. When no
// provider is available (or the call fails) a basic digest without AI
// commentary is returned instead of an error; the digest is presentation,
// not pipeline-critical.
func (s *Service) GenerateDigest(ctx context.Context, date string, articles []entity.SummarizedArticle) entity.DailyDigest {
	digest := entity.DailyDigest{
		Date:              date,
		TotalArticles:     len(articles),
		CategoryBreakdown: make(map[string]int),
		GeneratedAt:       s.now(),
	}
	for _, a := range articles {
		digest.CategoryBreakdown[a.Source.Category]++
	}
	if len(articles) == 0 {
		return digest
	}

	name, err := s.selector.SelectForTask(provider.TaskAnalyze, s.now())
	if err != nil {
		s.logger.Warn("no provider available for digest, using basic digest")
		return digest
	}
	impl, ok := s.providers[name]
	if !ok {
		return digest
	}

	summary, err := impl.Summarize(ctx, digestPrompt(articles))
	if err != nil {
		cls := retryqueue.Classify(err)
		s.registry.RecordError(name, cls.Reason)
		s.logger.Warn("digest generation failed, using basic digest",
			slog.String("provider", name),
			slog.String("reason", cls.Reason))
		return digest
	}

	s.registry.RecordSuccess(name)
	digest.Summary = summary
	digest.Provider = name
	return digest
}

// digestPrompt builds the trend-analysis input from article titles.
func digestPrompt(articles []entity.SummarizedArticle) string {
	var b strings.Builder
	b.WriteString("本日のAI関連ニュースの傾向を3行でまとめてください：\n")
	for i, a := range articles {
		if i >= maxDigestTitles {
			break
		}
		fmt.Fprintf(&b, "- %s (%s)\n", a.Title, a.Source.Category)
	}
	return b.String()
}
