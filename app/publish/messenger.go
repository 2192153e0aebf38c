package publish

import (
	"context"
	"io"
)

// Messenger delivers messages to the one destination channel. All text is Telegram HTML.
type Messenger interface {
	SendText(ctx context.Context, text string) error
	SendPhoto(ctx context.Context, r io.Reader, name, caption string) error
	SendVideo(ctx context.Context, r io.Reader, name, caption string) error
}
