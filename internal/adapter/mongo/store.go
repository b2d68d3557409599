package mongo

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"wisenews_scraper/internal/domain"
	"wisenews_scraper/internal/logger"
	"wisenews_scraper/internal/repository"
)

const duplicateKeyCode = 11000

// ArticleStore keeps one collection per keyword, keyed by document_id.
type ArticleStore struct {
	db  *mongo.Database
	log logger.Logger

	mu      sync.Mutex
	indexed map[string]bool
}

func NewArticleStore(db *mongo.Database, log logger.Logger) *ArticleStore {
	return &ArticleStore{
		db:      db,
		log:     logger.Ensure(log),
		indexed: make(map[string]bool),
	}
}

// EnsureIndex creates the unique document_id index once per collection.
func (s *ArticleStore) EnsureIndex(ctx context.Context, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexed[collection] {
		return nil
	}

	_, err := s.db.Collection(collection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "document_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create document_id index on %s: %w", collection, err)
	}
	s.indexed[collection] = true
	return nil
}

// Save inserts articles unordered. Documents already stored are counted as
// duplicates and skipped.
func (s *ArticleStore) Save(ctx context.Context, collection string, articles []domain.Article) (repository.SaveResult, error) {
	if len(articles) == 0 {
		return repository.SaveResult{}, nil
	}
	if err := s.EnsureIndex(ctx, collection); err != nil {
		return repository.SaveResult{}, err
	}

	docs := make([]interface{}, len(articles))
	for i, article := range articles {
		docs[i] = article
	}

	opts := options.InsertMany().SetOrdered(false)
	_, err := s.db.Collection(collection).InsertMany(ctx, docs, opts)
	if err == nil {
		return repository.SaveResult{Inserted: len(articles)}, nil
	}

	var bwe mongo.BulkWriteException
	if !errors.As(err, &bwe) || bwe.WriteConcernError != nil {
		return repository.SaveResult{}, fmt.Errorf("insert into %s: %w", collection, err)
	}

	res := repository.SaveResult{Inserted: len(articles) - len(bwe.WriteErrors)}
	for _, we := range bwe.WriteErrors {
		if we.Code != duplicateKeyCode {
			return res, fmt.Errorf("insert into %s: %w", collection, err)
		}
		res.Duplicates++
	}

	s.log.DebugObj("skipped articles already stored", "mongo_save", map[string]any{
		"collection": collection,
		"duplicates": res.Duplicates,
	})
	return res, nil
}

// Upsert replaces the stored copy of article, inserting it when missing.
func (s *ArticleStore) Upsert(ctx context.Context, collection string, article domain.Article) error {
	if err := s.EnsureIndex(ctx, collection); err != nil {
		return err
	}
	opts := options.Replace().SetUpsert(true)
	filter := bson.D{{Key: "document_id", Value: article.DocumentID}}
	if _, err := s.db.Collection(collection).ReplaceOne(ctx, filter, article, opts); err != nil {
		return fmt.Errorf("upsert %s into %s: %w", article.DocumentID, collection, err)
	}
	return nil
}

func (s *ArticleStore) Count(ctx context.Context, collection string) (int64, error) {
	n, err := s.db.Collection(collection).CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	return n, nil
}

// List returns up to limit articles, newest publication date first.
func (s *ArticleStore) List(ctx context.Context, collection string, limit int) ([]domain.Article, error) {
	opts := options.Find().SetSort(bson.D{{Key: "meta_data.pub_date", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cur, err := s.db.Collection(collection).Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find in %s: %w", collection, err)
	}
	defer cur.Close(ctx)

	articles := []domain.Article{}
	if err := cur.All(ctx, &articles); err != nil {
		return nil, fmt.Errorf("decode %s: %w", collection, err)
	}
	return articles, nil
}
