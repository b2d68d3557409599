package mongo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"wisenews_scraper/internal/domain"
	"wisenews_scraper/internal/logger"
)

func sampleArticles() []domain.Article {
	return []domain.Article{
		{DocumentID: "20200720MB0001", Heading: "one", MetaData: domain.MetaData{Source: "明報"}},
		{DocumentID: "20200720MB0002", Heading: "two", MetaData: domain.MetaData{Source: "明報"}},
		{DocumentID: "20200720MB0003", Heading: "three", MetaData: domain.MetaData{Source: "明報"}},
	}
}

func TestArticleStoreSave(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("inserts all", func(mt *mtest.T) {
		store := NewArticleStore(mt.DB, logger.NopLogger{})
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 3}),
		)

		res, err := store.Save(context.Background(), "suicide_news", sampleArticles())
		require.NoError(mt, err)
		assert.Equal(mt, 3, res.Inserted)
		assert.Zero(mt, res.Duplicates)
	})

	mt.Run("counts duplicates", func(mt *mtest.T) {
		store := NewArticleStore(mt.DB, logger.NopLogger{})
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(),
			mtest.CreateWriteErrorsResponse(
				mtest.WriteError{Index: 0, Code: 11000, Message: "E11000 duplicate key error"},
				mtest.WriteError{Index: 2, Code: 11000, Message: "E11000 duplicate key error"},
			),
		)

		res, err := store.Save(context.Background(), "suicide_news", sampleArticles())
		require.NoError(mt, err)
		assert.Equal(mt, 1, res.Inserted)
		assert.Equal(mt, 2, res.Duplicates)
	})

	mt.Run("other write errors fail", func(mt *mtest.T) {
		store := NewArticleStore(mt.DB, logger.NopLogger{})
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(),
			mtest.CreateWriteErrorsResponse(
				mtest.WriteError{Index: 1, Code: 121, Message: "Document failed validation"},
			),
		)

		_, err := store.Save(context.Background(), "suicide_news", sampleArticles())
		require.Error(mt, err)
	})

	mt.Run("index is created once", func(mt *mtest.T) {
		store := NewArticleStore(mt.DB, logger.NopLogger{})
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 3}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 3}),
		)

		_, err := store.Save(context.Background(), "csrp_news", sampleArticles())
		require.NoError(mt, err)
		_, err = store.Save(context.Background(), "csrp_news", sampleArticles())
		require.NoError(mt, err)

		var commands []string
		for _, ev := range mt.GetAllStartedEvents() {
			commands = append(commands, ev.CommandName)
		}
		assert.Equal(mt, []string{"createIndexes", "insert", "insert"}, commands)
	})

	mt.Run("empty input is a no-op", func(mt *mtest.T) {
		store := NewArticleStore(mt.DB, logger.NopLogger{})
		res, err := store.Save(context.Background(), "suicide_news", nil)
		require.NoError(mt, err)
		assert.Zero(mt, res.Inserted)
		assert.Empty(mt, mt.GetAllStartedEvents())
	})
}

func TestArticleStoreList(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("decodes articles", func(mt *mtest.T) {
		store := NewArticleStore(mt.DB, logger.NopLogger{})
		pub := time.Date(2020, 7, 20, 0, 0, 0, 0, domain.HongKong)
		ns := mt.DB.Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			bson.D{
				{Key: "document_id", Value: "20200720MB0001"},
				{Key: "heading", Value: "少女墮樓亡"},
				{Key: "meta_data", Value: bson.D{
					{Key: "source", Value: "明報"},
					{Key: "pub_date", Value: pub},
					{Key: "section", Value: "港聞"},
				}},
			},
			bson.D{{Key: "document_id", Value: "20200719OD0042"}},
		))

		articles, err := store.List(context.Background(), mt.Coll.Name(), 20)
		require.NoError(mt, err)
		require.Len(mt, articles, 2)
		assert.Equal(mt, "少女墮樓亡", articles[0].Heading)
		assert.Equal(mt, "港聞", articles[0].MetaData.Section)
		assert.True(mt, pub.Equal(articles[0].MetaData.PubDate))
		assert.Equal(mt, "20200719OD0042", articles[1].DocumentID)
	})

	mt.Run("empty collection", func(mt *mtest.T) {
		store := NewArticleStore(mt.DB, logger.NopLogger{})
		ns := mt.DB.Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		articles, err := store.List(context.Background(), mt.Coll.Name(), 20)
		require.NoError(mt, err)
		assert.NotNil(mt, articles)
		assert.Empty(mt, articles)
	})
}

func TestArticleStoreCountAndUpsert(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("count", func(mt *mtest.T) {
		store := NewArticleStore(mt.DB, logger.NopLogger{})
		ns := mt.DB.Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{{Key: "n", Value: int32(7)}}))

		n, err := store.Count(context.Background(), mt.Coll.Name())
		require.NoError(mt, err)
		assert.Equal(mt, int64(7), n)
	})

	mt.Run("upsert", func(mt *mtest.T) {
		store := NewArticleStore(mt.DB, logger.NopLogger{})
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}),
		)

		err := store.Upsert(context.Background(), mt.Coll.Name(), sampleArticles()[0])
		require.NoError(mt, err)
	})
}
