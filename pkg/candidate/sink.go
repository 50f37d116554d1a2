package candidate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Sink persists the candidate records of a finished run.
type Sink interface {
	Save(ctx context.Context, runID string, records []Record) error
	Close(ctx context.Context) error
}

// Save writes every record of tb to sink under runID.
func (tb *Table) Save(ctx context.Context, sink Sink, runID string) error {
	return sink.Save(ctx, runID, tb.records)
}

// JSONSink writes one JSON object per record to a writer.
type JSONSink struct {
	enc *json.Encoder
}

// NewJSONSink returns a sink writing JSON lines to w.
func NewJSONSink(w io.Writer) *JSONSink {
	return &JSONSink{enc: json.NewEncoder(w)}
}

type jsonRecord struct {
	RunID string `json:"run_id"`
	Record
}

// Save implements Sink.
func (s *JSONSink) Save(_ context.Context, runID string, records []Record) error {
	for _, r := range records {
		if err := s.enc.Encode(jsonRecord{RunID: runID, Record: r}); err != nil {
			return err
		}
	}
	return nil
}

// Close implements Sink.
func (s *JSONSink) Close(context.Context) error { return nil }

// DefaultCollection is the MongoDB collection candidate records go to.
const DefaultCollection = "candidates"

// MongoSink upserts candidate records into a MongoDB collection, one
// document per run and topology.
type MongoSink struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoSink connects to uri and writes to database.collection. An empty
// collection selects DefaultCollection.
func NewMongoSink(ctx context.Context, uri, database, collection string) (*MongoSink, error) {
	if collection == "" {
		collection = DefaultCollection
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}
	coll := client.Database(database).Collection(collection)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "run_id", Value: 1}, {Key: "topology", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("create candidate index: %w", err)
	}
	return &MongoSink{client: client, coll: coll}, nil
}

// Save implements Sink.
func (s *MongoSink) Save(ctx context.Context, runID string, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	now := time.Now().UTC()
	models := make([]mongo.WriteModel, 0, len(records))
	for _, r := range records {
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.D{{Key: "run_id", Value: runID}, {Key: "topology", Value: r.Topology}}).
			SetUpdate(bson.D{{Key: "$set", Value: bson.D{
				{Key: "id", Value: r.ID},
				{Key: "logl", Value: r.LogL},
				{Key: "newick", Value: r.Newick},
				{Key: "visits", Value: r.Visits},
				{Key: "site_logl", Value: r.SiteLogL},
				{Key: "updated_at", Value: now},
			}}}).
			SetUpsert(true))
	}
	if _, err := s.coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false)); err != nil {
		return fmt.Errorf("save %d candidates: %w", len(records), err)
	}
	return nil
}

// Close implements Sink.
func (s *MongoSink) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
