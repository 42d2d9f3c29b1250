package retryqueue

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"ai-news-digest/internal/domain/entity"
)

// storageVersion identifies the on-disk document format.
const storageVersion = "1.0"

// document is the envelope persisted to disk around the queue itself.
type document struct {
	Version string    `json:"version"`
	SavedAt time.Time `json:"saved_at"`
	Queue   *Queue    `json:"queue"`
}

// Storage provides durable persistence of the retry queue in a single JSON
// file. Saves are atomic: the document is written to a temporary file in the
// same directory, synced, then renamed over the durable copy, so a crash
// mid-write never corrupts prior state.
//
// Storage has no mutation rights of its own; it only serializes and
// deserializes what the queue Manager hands it.
type Storage struct {
	path   string
	logger *slog.Logger
}

// NewStorage creates a Storage for the given file path.
func NewStorage(path string, logger *slog.Logger) *Storage {
	if logger == nil {
		logger = slog.Default()
	}
	return &Storage{path: path, logger: logger}
}

// Path returns the durable file location.
func (s *Storage) Path() string {
	return s.path
}

// Load reads the persisted queue. A missing file yields an empty queue, not
// an error. A corrupt file is moved aside as a backup and an empty queue is
// returned, so one bad write never wedges the pipeline permanently.
func (s *Storage) Load() (*Queue, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Info("retry queue file does not exist, starting empty",
				slog.String("path", s.path))
			return NewQueue(), nil
		}
		return nil, &entity.PersistenceError{Op: "load", Path: s.path, Err: err}
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		s.logger.Error("retry queue file is corrupt, backing up and starting empty",
			slog.String("path", s.path),
			slog.String("error", err.Error()))
		s.backupCorrupt()
		return NewQueue(), nil
	}

	if doc.Version != storageVersion {
		s.logger.Warn("unexpected retry queue file version",
			slog.String("path", s.path),
			slog.String("version", doc.Version))
	}
	if doc.Queue == nil {
		return NewQueue(), nil
	}

	s.logger.Debug("retry queue loaded",
		slog.String("path", s.path),
		slog.Int("items", len(doc.Queue.Items)))
	return doc.Queue, nil
}

// Save atomically persists the queue.
func (s *Storage) Save(q *Queue) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &entity.PersistenceError{Op: "save", Path: s.path, Err: err}
	}

	tmp, err := os.CreateTemp(dir, ".retry_queue-*.json")
	if err != nil {
		return &entity.PersistenceError{Op: "save", Path: s.path, Err: err}
	}
	tmpName := tmp.Name()
	defer func() {
		// Best effort removal if the rename never happened.
		_ = os.Remove(tmpName)
	}()

	doc := document{
		Version: storageVersion,
		SavedAt: time.Now(),
		Queue:   q,
	}

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		_ = tmp.Close()
		return &entity.PersistenceError{Op: "save", Path: s.path, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return &entity.PersistenceError{Op: "save", Path: s.path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &entity.PersistenceError{Op: "save", Path: s.path, Err: err}
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return &entity.PersistenceError{Op: "save", Path: s.path, Err: err}
	}

	s.logger.Debug("retry queue saved",
		slog.String("path", s.path),
		slog.Int("items", len(q.Items)))
	return nil
}

// Cleanup loads the queue, removes exhausted and over-age items, and saves
// the result when anything changed. Returns the number of removed items.
func (s *Storage) Cleanup(maxAge time.Duration) (int, error) {
	q, err := s.Load()
	if err != nil {
		return 0, err
	}

	removed := q.CleanupOld(time.Now(), maxAge)
	if removed == 0 {
		return 0, nil
	}

	if err := s.Save(q); err != nil {
		return 0, err
	}
	s.logger.Info("retry queue cleanup removed old entries",
		slog.Int("removed", removed),
		slog.Int("remaining", len(q.Items)))
	return removed, nil
}

// backupCorrupt moves a corrupt queue file aside with a timestamped name so
// the data stays available for inspection.
func (s *Storage) backupCorrupt() {
	backup := fmt.Sprintf("%s.corrupt-%s", s.path, time.Now().Format("20060102_150405"))
	if err := os.Rename(s.path, backup); err != nil {
		s.logger.Error("failed to back up corrupt retry queue file",
			slog.String("path", s.path),
			slog.String("error", err.Error()))
	}
}
