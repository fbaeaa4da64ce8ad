package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// StoredProposal is the persisted form of an emitted record.
type StoredProposal struct {
	ContentID   string    `bson:"_id"`
	ProcessCode string    `bson:"process_code"`
	House       string    `bson:"house"`
	Title       string    `bson:"title"`
	Type        string    `bson:"type"`
	Number      int       `bson:"number"`
	Year        int       `bson:"year"`
	Authors     []string  `bson:"authors"`
	Subject     string    `bson:"subject"`
	URL         string    `bson:"url"`
	Path        string    `bson:"path"`
	ScrapedAt   time.Time `bson:"scraped_at"`

	// Download outcome, recorded by the pipeline.
	DownloadStatus string    `bson:"download_status,omitempty"` // ok, failed, skipped
	DownloadError  string    `bson:"download_error,omitempty"`
	FilePath       string    `bson:"file_path,omitempty"`
	DownloadedAt   time.Time `bson:"downloaded_at,omitempty"`

	// ScrapeCount grows by one per crawl that saw the proposal.
	ScrapeCount int `bson:"scrape_count"`
}

// Store persists proposals in MongoDB, keyed on content ID so repeated
// crawls update in place.
type Store struct {
	client    *mongo.Client
	proposals *mongo.Collection
}

// NewStore connects to MongoDB and prepares the proposals collection.
func NewStore(ctx context.Context, uri, database, collection string) (*Store, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}

	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	s := &Store{
		client:    client,
		proposals: client.Database(database).Collection(collection),
	}

	if err := s.createIndexes(ctx); err != nil {
		return nil, fmt.Errorf("create indexes: %w", err)
	}

	return s, nil
}

func (s *Store) createIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := s.proposals.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "process_code", Value: 1}}},
		{Keys: bson.D{{Key: "scraped_at", Value: 1}}},
		{Keys: bson.D{{Key: "year", Value: 1}, {Key: "type", Value: 1}}},
	})
	return err
}

// Save upserts a proposal by content ID. Every field except the scrape
// counter is replaced; the counter grows by one per save.
func (s *Store) Save(ctx context.Context, doc *StoredProposal) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	data, err := bson.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal proposal: %w", err)
	}
	var updateDoc bson.M
	if err := bson.Unmarshal(data, &updateDoc); err != nil {
		return fmt.Errorf("unmarshal proposal: %w", err)
	}
	delete(updateDoc, "_id")
	delete(updateDoc, "scrape_count")

	update := bson.M{
		"$set": updateDoc,
		"$inc": bson.M{"scrape_count": 1},
	}

	opts := options.Update().SetUpsert(true)
	if _, err := s.proposals.UpdateOne(ctx, bson.M{"_id": doc.ContentID}, update, opts); err != nil {
		return fmt.Errorf("upsert proposal %s: %w", doc.ContentID, err)
	}
	return nil
}

// Get fetches a proposal by content ID. Returns nil without error when the
// proposal is unknown.
func (s *Store) Get(ctx context.Context, contentID string) (*StoredProposal, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var doc StoredProposal
	err := s.proposals.FindOne(ctx, bson.M{"_id": contentID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find proposal %s: %w", contentID, err)
	}
	return &doc, nil
}

// CountBySource counts stored proposals for one house.
func (s *Store) CountBySource(ctx context.Context, house string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	n, err := s.proposals.CountDocuments(ctx, bson.M{"house": house})
	if err != nil {
		return 0, fmt.Errorf("count proposals: %w", err)
	}
	return n, nil
}

// Close disconnects from MongoDB.
func (s *Store) Close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
