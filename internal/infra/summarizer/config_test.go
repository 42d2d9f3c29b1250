package summarizer

import (
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		CharacterLimit:    900,
		Language:          "japanese",
		Model:             "test-model",
		MaxTokens:         1024,
		Timeout:           60 * time.Second,
		RequestsPerMinute: 20,
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid config should pass: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"character limit too low", func(c *Config) { c.CharacterLimit = 50 }},
		{"character limit too high", func(c *Config) { c.CharacterLimit = 6000 }},
		{"empty language", func(c *Config) { c.Language = "" }},
		{"empty model", func(c *Config) { c.Model = "" }},
		{"zero max tokens", func(c *Config) { c.MaxTokens = 0 }},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }},
		{"zero rate", func(c *Config) { c.RequestsPerMinute = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(&c)
			if err := c.Validate(); err == nil {
				t.Error("want validation error")
			}
		})
	}
}

func TestValidateCharacterLimit(t *testing.T) {
	for _, limit := range []int{100, 900, 5000} {
		if err := ValidateCharacterLimit(limit); err != nil {
			t.Errorf("ValidateCharacterLimit(%d) = %v, want nil", limit, err)
		}
	}
	for _, limit := range []int{0, 99, 5001} {
		if err := ValidateCharacterLimit(limit); err == nil {
			t.Errorf("ValidateCharacterLimit(%d) = nil, want error", limit)
		}
	}
}

func TestLoadSharedConfigDefaults(t *testing.T) {
	cfg := loadSharedConfig()
	if cfg.CharacterLimit != 900 {
		t.Errorf("CharacterLimit = %d, want 900", cfg.CharacterLimit)
	}
	if cfg.Language != "japanese" {
		t.Errorf("Language = %q, want japanese", cfg.Language)
	}
	if cfg.Timeout != 60*time.Second {
		t.Errorf("Timeout = %v, want 60s", cfg.Timeout)
	}
}

func TestLoadSharedConfigInvalidCharLimitFallsBack(t *testing.T) {
	t.Setenv("SUMMARIZER_CHAR_LIMIT", "10")
	cfg := loadSharedConfig()
	if cfg.CharacterLimit != 900 {
		t.Errorf("CharacterLimit = %d, want default 900", cfg.CharacterLimit)
	}
}

func TestBuildPromptIncludesConstraints(t *testing.T) {
	cfg := validConfig()
	prompt := buildPrompt(cfg, "some article text")

	if !strings.Contains(prompt, "japanese") {
		t.Error("prompt should name the target language")
	}
	if !strings.Contains(prompt, "900") {
		t.Error("prompt should carry the character limit")
	}
	if !strings.Contains(prompt, "some article text") {
		t.Error("prompt should include the input text")
	}
}

func TestTruncateInput(t *testing.T) {
	short := "short text"
	if got := truncateInput(short); got != short {
		t.Errorf("short input should pass through unchanged")
	}

	long := strings.Repeat("a", 20000)
	got := truncateInput(long)
	if len(got) >= len(long) {
		t.Error("long input should be truncated")
	}
	if !strings.HasPrefix(got, strings.Repeat("a", 10000)) {
		t.Error("truncation should keep the leading content")
	}
}
