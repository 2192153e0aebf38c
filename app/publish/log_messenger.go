package publish

import (
	"context"
	"fmt"
	"io"
	"log/slog"
)

var _ Messenger = (*LogMessenger)(nil)

// LogMessenger writes posts to the log instead of a channel. Media streams are drained
// so the download path is still exercised.
type LogMessenger struct{}

func NewLogMessenger() *LogMessenger {
	return &LogMessenger{}
}

func (m *LogMessenger) SendText(ctx context.Context, text string) error {
	slog.Info("Dry run: text message", "text", text)
	return nil
}

func (m *LogMessenger) SendPhoto(ctx context.Context, r io.Reader, name, caption string) error {
	return m.sendFile(r, "photo", name, caption)
}

func (m *LogMessenger) SendVideo(ctx context.Context, r io.Reader, name, caption string) error {
	return m.sendFile(r, "video", name, caption)
}

func (m *LogMessenger) sendFile(r io.Reader, kind, name, caption string) error {
	size, err := io.Copy(io.Discard, r)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", kind, err)
	}

	slog.Info("Dry run: media message", "kind", kind, "name", name, "bytes", size, "caption", caption)
	return nil
}
