package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// FileSink is an append-only JSONL store. Each write is synced before it is
// acknowledged, so an acked event survives a process crash.
type FileSink struct {
	mu   sync.Mutex
	file *os.File
	path string
}

// NewFileSink opens (creating if needed) the append-only event log.
func NewFileSink(dir string, logger *zap.Logger) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("NewFileSink: %w", err)
	}
	path := filepath.Join(dir, "audit_events.jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("NewFileSink: %w", err)
	}
	logger.Info("file audit sink opened", zap.String("path", path))
	return &FileSink{file: f, path: path}, nil
}

func (s *FileSink) Name() string { return "file" }

func (s *FileSink) Write(_ context.Context, ev *Event) error {
	line, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("Write: marshal: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.file.Write(line); err != nil {
		return fmt.Errorf("Write: %w", err)
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("Write: sync: %w", err)
	}
	return nil
}

func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}
