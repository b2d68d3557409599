package repository

import (
	"context"

	"wisenews_scraper/internal/domain"
)

// Portal is one logged-in WiseNews browser session.
type Portal interface {
	Login(ctx context.Context) error
	Open(ctx context.Context) error
	Search(ctx context.Context, q domain.SearchQuery) error
	Refine(ctx context.Context, q domain.SearchQuery) error
	Collect(ctx context.Context, sections []string) ([]domain.Article, error)
	Email(ctx context.Context, form domain.EmailForm) error
	Close(ctx context.Context) error
}

// PortalFactory starts a fresh browser for a run.
type PortalFactory interface {
	Start(ctx context.Context) (Portal, error)
}

// SaveResult counts what a Save actually wrote.
type SaveResult struct {
	Inserted   int `json:"inserted"`
	Duplicates int `json:"duplicates"`
}

type ArticleStore interface {
	Save(ctx context.Context, collection string, articles []domain.Article) (SaveResult, error)
	List(ctx context.Context, collection string, limit int) ([]domain.Article, error)
}

// Notifier delivers a digest outside the portal.
type Notifier interface {
	Notify(ctx context.Context, digest domain.Digest) error
}

// SeenLedger remembers which documents were already delivered per keyword.
type SeenLedger interface {
	Seen(keyword, documentID string) (bool, error)
	Mark(keyword string, documentIDs ...string) error
}

// Publisher forwards article events to an external sink.
type Publisher interface {
	ID() string
	Publish(ctx context.Context, evt domain.ArticleEvent) error
}
