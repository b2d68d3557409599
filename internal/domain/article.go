package domain

import "time"

// HongKong is the fixed UTC+8 zone WiseNews publication dates are expressed in.
var HongKong = time.FixedZone("HKT", 8*60*60)

// Article is a single WiseNews record as stored and delivered.
type Article struct {
	DocumentID string    `bson:"document_id" json:"document_id"`
	Heading    string    `bson:"heading" json:"heading"`
	Content    string    `bson:"content" json:"content"`
	MetaData   MetaData  `bson:"meta_data" json:"meta_data"`
	Keyword    string    `bson:"keyword,omitempty" json:"keyword,omitempty"`
	ScrapedAt  time.Time `bson:"scraped_at" json:"scraped_at"`
}

// MetaData holds the publication details WiseNews prints under each heading.
type MetaData struct {
	Source  string    `bson:"source" json:"source"`
	PubDate time.Time `bson:"pub_date" json:"pub_date"`
	Section string    `bson:"section" json:"section"`
	Page    string    `bson:"page,omitempty" json:"page,omitempty"`
}

// Digest is the set of articles delivered for one keyword.
type Digest struct {
	Title    string
	Keyword  string
	Articles []Article
}

// ArticleEvent is published once for every newly collected article.
type ArticleEvent struct {
	ID         string    `json:"id"`
	RunID      string    `json:"run_id"`
	Keyword    string    `json:"keyword"`
	Collection string    `json:"collection"`
	DocumentID string    `json:"document_id"`
	Heading    string    `json:"heading"`
	Source     string    `json:"source"`
	Section    string    `json:"section"`
	Page       string    `json:"page,omitempty"`
	PubDate    time.Time `json:"pub_date"`
	ScrapedAt  time.Time `json:"scraped_at"`
}

// NewArticleEvent describes a collected article for the given run.
func NewArticleEvent(id, runID string, k Keyword, a Article) ArticleEvent {
	return ArticleEvent{
		ID:         id,
		RunID:      runID,
		Keyword:    k.Name,
		Collection: k.Collection,
		DocumentID: a.DocumentID,
		Heading:    a.Heading,
		Source:     a.MetaData.Source,
		Section:    a.MetaData.Section,
		Page:       a.MetaData.Page,
		PubDate:    a.MetaData.PubDate,
		ScrapedAt:  a.ScrapedAt,
	}
}
