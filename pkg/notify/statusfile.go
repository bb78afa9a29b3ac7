package notify

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// StatusFileSink rewrites a Markdown file with the latest report.
type StatusFileSink struct {
	Path     string
	Location *time.Location
	Now      func() time.Time
}

func (s StatusFileSink) Deliver(_ context.Context, m Message) error {
	loc := s.Location
	if loc == nil {
		loc = time.UTC
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}

	content := fmt.Sprintf("# GreatHost renewal status\n\n%s\n\n> Last updated: %s\n",
		HTMLToMarkdown(FormatHTML(m, loc)), now().In(loc).Format(timeLayout))

	if dir := filepath.Dir(s.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("status file: %w", err)
		}
	}
	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return fmt.Errorf("status file: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		return fmt.Errorf("status file: %w", err)
	}
	return nil
}
