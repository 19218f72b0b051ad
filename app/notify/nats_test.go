package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/blogsmith/refresher/app/database"
)

type fakeConn struct {
	subject string
	data    []byte
	err     error
	closed  bool
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	f.subject = subject
	f.data = data
	return f.err
}

func (f *fakeConn) Close() { f.closed = true }

func TestArticlePublished(t *testing.T) {
	conn := &fakeConn{}
	p := &NATSPublisher{conn: conn, subject: "articles.updated", version: "1.2.3"}

	originalID := int64(7)
	article := database.Article{ID: 8, Slug: "foo-updated", Title: "Foo (Updated)", OriginalArticleID: &originalID}

	if err := p.ArticlePublished(context.Background(), article); err != nil {
		t.Fatalf("ArticlePublished failed: %v", err)
	}

	if conn.subject != "articles.updated" {
		t.Errorf("Expected subject articles.updated, got %q", conn.subject)
	}

	var msg Message
	if err := json.Unmarshal(conn.data, &msg); err != nil {
		t.Fatalf("Invalid message payload: %v", err)
	}
	if msg.Article.Slug != "foo-updated" || msg.Article.OriginalArticleID == nil || *msg.Article.OriginalArticleID != 7 {
		t.Errorf("Unexpected article in message: %+v", msg.Article)
	}
	if msg.Source != "refresher" || msg.Version != "1.2.3" || msg.Timestamp.IsZero() {
		t.Errorf("Unexpected envelope: %+v", msg)
	}

	p.Close()
	if !conn.closed {
		t.Error("Expected connection closed")
	}
}

func TestArticlePublished_Errors(t *testing.T) {
	conn := &fakeConn{err: errors.New("nats: connection closed")}
	p := &NATSPublisher{conn: conn, subject: "s"}

	if err := p.ArticlePublished(context.Background(), database.Article{Slug: "x"}); err == nil {
		t.Error("Expected publish error")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	conn.data = nil
	if err := p.ArticlePublished(ctx, database.Article{Slug: "x"}); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if conn.data != nil {
		t.Error("Expected nothing published on a cancelled context")
	}
}
