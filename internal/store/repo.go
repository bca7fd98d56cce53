package store

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const collectionName = "messages"

type Repo struct {
	coll *mongo.Collection
}

// Connect opens and verifies the client. Store reads and writes run
// concurrently over the client's pool; no further coordination is needed
// since every write is a single self-contained insert.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

func New(client *mongo.Client, dbName string) *Repo {
	return &Repo{coll: client.Database(dbName).Collection(collectionName)}
}

func (r *Repo) InsertMessage(ctx context.Context, m *TelemetryMessage) error {
	if m.ID.IsZero() {
		m.ID = primitive.NewObjectID()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err := r.coll.InsertOne(ctx, m)
	return err
}

// DistinctDevEUIs lists every distinct non-empty device identifier, sorted.
func (r *Repo) DistinctDevEUIs(ctx context.Context) ([]string, error) {
	raw, err := r.coll.Distinct(ctx, devEUIField, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("distinct devEUIs: %w", err)
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out, nil
}

// FindMessages runs the filtered, sorted, paginated listing and returns full
// message records. Total counts every match regardless of pagination, so a
// page past the end comes back empty with the metadata intact.
func (r *Repo) FindMessages(ctx context.Context, q MessageQuery) (MessagePage, error) {
	filter := q.Filter()
	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return MessagePage{}, fmt.Errorf("count messages: %w", err)
	}

	opts := options.Find().SetSort(q.Sort()).SetSkip(q.Skip()).SetLimit(int64(q.pageSize()))
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return MessagePage{}, fmt.Errorf("find messages: %w", err)
	}
	items := make([]TelemetryMessage, 0, q.pageSize())
	if err := cur.All(ctx, &items); err != nil {
		return MessagePage{}, fmt.Errorf("decode messages: %w", err)
	}

	return MessagePage{
		Items:      items,
		Total:      total,
		Page:       q.page(),
		PageSize:   q.pageSize(),
		TotalPages: TotalPages(total, q.pageSize()),
	}, nil
}

// FindReadings is FindMessages narrowed to the telemetry-only projection.
func (r *Repo) FindReadings(ctx context.Context, q MessageQuery) (ReadingPage, error) {
	page, err := r.FindMessages(ctx, q)
	if err != nil {
		return ReadingPage{}, err
	}
	items := make([]Reading, 0, len(page.Items))
	for _, m := range page.Items {
		items = append(items, ReadingFrom(m.Content))
	}
	return ReadingPage{
		Items:      items,
		Total:      page.Total,
		Page:       page.Page,
		PageSize:   page.PageSize,
		TotalPages: page.TotalPages,
	}, nil
}

// LatestPerDevice selects, for every device identifier, its most recent
// document by content.values.publishedAt and projects it into a summary.
// Ties on identical timestamps break deterministically toward the document
// with the larger _id, i.e. the later insert. Documents that cannot be
// projected are logged and skipped, never fatal to the whole view.
func (r *Repo) LatestPerDevice(ctx context.Context) ([]DeviceSummary, error) {
	cur, err := r.coll.Aggregate(ctx, latestPerDevicePipeline())
	if err != nil {
		return nil, fmt.Errorf("latest per device: %w", err)
	}
	var docs []TelemetryMessage
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode latest per device: %w", err)
	}

	return CollectSummaries(docs), nil
}

// latestPerDevicePipeline keeps, per device identifier, the first document
// after sorting newest-first. The secondary _id sort makes the same-timestamp
// tie-break deterministic instead of store-order-dependent.
func latestPerDevicePipeline() mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: devEUIField, Value: bson.D{{Key: "$exists", Value: true}}}}}},
		{{Key: "$sort", Value: bson.D{{Key: DateFieldValues, Value: -1}, {Key: "_id", Value: -1}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$" + devEUIField},
			{Key: "doc", Value: bson.D{{Key: "$first", Value: "$$ROOT"}}},
		}}},
		{{Key: "$replaceRoot", Value: bson.D{{Key: "newRoot", Value: "$doc"}}}},
	}
}

// CollectSummaries applies the summary projection to each document,
// logging and skipping the ones that cannot contribute.
func CollectSummaries(docs []TelemetryMessage) []DeviceSummary {
	summaries := make([]DeviceSummary, 0, len(docs))
	for _, d := range docs {
		s, err := DeviceSummaryFrom(d.Content)
		if err != nil {
			slog.Warn("device summary skipped", "id", d.ID.Hex(), "error", err)
			continue
		}
		summaries = append(summaries, s)
	}
	return summaries
}
