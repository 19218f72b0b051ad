package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/blogsmith/refresher/app/database"
	"github.com/blogsmith/refresher/app/metrics"
)

const MessageVersion = "1.0"

type NATSConfig struct {
	URL     string
	Subject string
}

// conn is the part of *nats.Conn the publisher uses.
type conn interface {
	Publish(subject string, data []byte) error
	Close()
}

// NATSPublisher announces published updates on a NATS subject.
type NATSPublisher struct {
	conn    conn
	subject string
	version string
}

func NewNATSPublisher(config NATSConfig, version string) (*NATSPublisher, error) {
	nc, err := nats.Connect(config.URL, nats.Name(metrics.ServiceName))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSPublisher{conn: nc, subject: config.Subject, version: version}, nil
}

func (p *NATSPublisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}

// ArticlePublished sends one message per published update.
func (p *NATSPublisher) ArticlePublished(ctx context.Context, article database.Article) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(newMessage(article, p.version))
	if err != nil {
		return fmt.Errorf("failed to encode publish message: %w", err)
	}

	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", p.subject, err)
	}

	slog.Debug("Published update notification", "subject", p.subject, "slug", article.Slug, "id", article.ID)
	return nil
}

type ArticleEvent struct {
	ID                int64      `json:"id"`
	Slug              string     `json:"slug"`
	Title             string     `json:"title"`
	URL               string     `json:"url,omitempty"`
	OriginalArticleID *int64     `json:"original_article_id,omitempty"`
	PublishedAt       *time.Time `json:"published_at,omitempty"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Message is the envelope sent to NATS.
type Message struct {
	Article   ArticleEvent `json:"article"`
	Timestamp time.Time    `json:"timestamp"`
	Source    string       `json:"source"`
	Version   string       `json:"version"`
}

func newMessage(a database.Article, version string) Message {
	return Message{
		Article: ArticleEvent{
			ID:                a.ID,
			Slug:              a.Slug,
			Title:             a.Title,
			URL:               a.URL,
			OriginalArticleID: a.OriginalArticleID,
			PublishedAt:       a.PublishedAt,
			UpdatedAt:         a.UpdatedAt,
		},
		Timestamp: time.Now().UTC(),
		Source:    metrics.ServiceName,
		Version:   version,
	}
}
