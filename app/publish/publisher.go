package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/lysyi3m/rss-relay/app/feed"
	"github.com/lysyi3m/rss-relay/app/post"
)

type Delivery string

const (
	DeliveryText     Delivery = "text"
	DeliveryPhoto    Delivery = "photo"
	DeliveryVideo    Delivery = "video"
	DeliveryFallback Delivery = "fallback"
)

type Publisher struct {
	messenger    Messenger
	media        MediaSource
	photoTimeout time.Duration
	videoTimeout time.Duration
}

func NewPublisher(messenger Messenger, media MediaSource, photoTimeout, videoTimeout time.Duration) *Publisher {
	return &Publisher{
		messenger:    messenger,
		media:        media,
		photoTimeout: photoTimeout,
		videoTimeout: videoTimeout,
	}
}

// Run delivers the post. The caption is sent with any markup cut by truncation
// repaired. When the primary delivery fails the caption is sent once as a text
// message; an error is returned only when that fallback fails too.
func (p *Publisher) Run(ctx context.Context, pst post.Post) (Delivery, error) {
	caption := feed.CloseMarkup(pst.Caption)

	delivery, err := p.deliver(ctx, pst, caption)
	if err == nil {
		return delivery, nil
	}

	slog.Warn("Primary delivery failed, sending text fallback",
		"source", pst.SourceName,
		"link", pst.Link,
		"delivery", delivery,
		"error", err)

	if fallbackErr := p.messenger.SendText(ctx, caption); fallbackErr != nil {
		return "", fmt.Errorf("failed to publish post: %w", errors.Join(err, fallbackErr))
	}

	return DeliveryFallback, nil
}

func (p *Publisher) deliver(ctx context.Context, pst post.Post, caption string) (Delivery, error) {
	if pst.Media == nil {
		return DeliveryText, p.messenger.SendText(ctx, caption)
	}

	switch pst.Media.Kind {
	case feed.MediaVideo:
		return DeliveryVideo, p.sendMedia(ctx, pst.Media, caption, p.videoTimeout, "video.mp4", p.messenger.SendVideo)
	case feed.MediaPhoto:
		return DeliveryPhoto, p.sendMedia(ctx, pst.Media, caption, p.photoTimeout, "photo.jpg", p.messenger.SendPhoto)
	default:
		return DeliveryText, p.messenger.SendText(ctx, caption)
	}
}

type sendFunc func(ctx context.Context, r io.Reader, name, caption string) error

func (p *Publisher) sendMedia(ctx context.Context, media *feed.Media, caption string, timeout time.Duration, fallbackName string, send sendFunc) error {
	body, err := p.media.Open(ctx, media.URL, timeout)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", media.Kind, err)
	}
	defer body.Close()

	if err := send(ctx, body, fileName(media.URL, fallbackName), caption); err != nil {
		return fmt.Errorf("failed to send %s: %w", media.Kind, err)
	}

	return nil
}
