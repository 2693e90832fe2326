package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/dip-aaa/web-project-sub002/internal/logger"
)

// FilesystemSender writes each message as a JSON file in an outbox directory. Used in
// development instead of a real relay.
type FilesystemSender struct {
	directory string
	log       *zap.Logger
}

// NewFilesystemSender creates directory if needed.
func NewFilesystemSender(directory string, log *zap.Logger) (*FilesystemSender, error) {
	if err := os.MkdirAll(directory, 0o750); err != nil {
		return nil, fmt.Errorf("mail: create outbox: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &FilesystemSender{directory: directory, log: log}, nil
}

func (f *FilesystemSender) Send(_ context.Context, m Message) error {
	now := time.Now().UTC()
	entry := map[string]any{
		"to":        m.To,
		"subject":   m.Subject,
		"text":      m.Text,
		"html":      m.HTML,
		"timestamp": now.Format(time.RFC3339),
	}
	content, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("mail: marshal message: %w", err)
	}
	path := filepath.Join(f.directory, fmt.Sprintf("%d.json", now.UnixNano()))
	if err := os.WriteFile(path, content, 0o600); err != nil {
		return fmt.Errorf("mail: write message: %w", err)
	}
	f.log.Info("mail written to outbox",
		zap.String("path", path),
		zap.String("to", logger.MaskEmail(m.To)),
		zap.String("subject", m.Subject),
	)
	return nil
}
