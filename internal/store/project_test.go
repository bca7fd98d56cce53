package store

import (
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func fullContent(devEUI string, published time.Time) bson.M {
	return bson.M{
		"values": bson.M{
			"devEUI":       devEUI,
			"publishedAt":  published,
			"batteryLevel": int32(80),
			"longitude":    127.02,
			"latitude":     37.49,
		},
		"uplinkEvent": bson.M{
			"deviceInfo": bson.M{
				"deviceName": "ts-101",
				"tags": bson.M{
					"company": "acme",
					"type":    "temperature",
				},
			},
		},
	}
}

func TestDeviceSummaryFromFullDocument(t *testing.T) {
	published := time.Date(2025, 4, 28, 2, 44, 39, 0, time.UTC)
	s, err := DeviceSummaryFrom(fullContent("abc", published))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if s.DevEUI != "abc" || s.DeviceName != "ts-101" || s.Company != "acme" || s.SensorType != "temperature" {
		t.Fatalf("unexpected summary: %+v", s)
	}
	if s.Battery != 80 || s.Longitude != 127.02 || s.Latitude != 37.49 {
		t.Fatalf("unexpected numerics: %+v", s)
	}
	if s.PublishedAt == nil || !s.PublishedAt.Equal(published) {
		t.Fatalf("unexpected publishedAt: %v", s.PublishedAt)
	}
}

func TestDeviceSummaryDefaults(t *testing.T) {
	s, err := DeviceSummaryFrom(bson.M{"values": bson.M{"devEUI": "abc"}})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if s.DeviceName != "" || s.Company != "" || s.SensorType != "" {
		t.Fatalf("expected empty string defaults, got %+v", s)
	}
	if s.Battery != 0 || s.Longitude != 0.0 || s.Latitude != 0.0 {
		t.Fatalf("expected zero numeric defaults, got %+v", s)
	}
	if s.PublishedAt != nil {
		t.Fatalf("expected nil publishedAt, got %v", s.PublishedAt)
	}
}

func TestDeviceSummaryMissingDevEUI(t *testing.T) {
	for _, content := range []bson.M{
		{},
		{"values": bson.M{}},
		{"values": bson.M{"devEUI": ""}},
	} {
		if _, err := DeviceSummaryFrom(content); !errors.Is(err, ErrNoDevEUI) {
			t.Fatalf("expected ErrNoDevEUI for %v, got %v", content, err)
		}
	}
}

func TestDeviceSummaryAcceptsPlainMaps(t *testing.T) {
	// Freshly ingested content is map[string]any, not bson.M.
	content := bson.M{
		"values": map[string]any{
			"devEUI":       "abc",
			"batteryLevel": float64(55),
		},
	}
	s, err := DeviceSummaryFrom(content)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if s.Battery != 55 {
		t.Fatalf("expected battery 55, got %d", s.Battery)
	}
}

func TestReadingFromBSONDateTime(t *testing.T) {
	published := time.Date(2025, 4, 28, 2, 44, 39, 0, time.UTC)
	content := bson.M{"values": bson.M{
		"batteryLevel": int64(42),
		"publishedAt":  primitive.NewDateTimeFromTime(published),
	}}
	r := ReadingFrom(content)
	if r.Battery != 42 {
		t.Fatalf("expected battery 42, got %d", r.Battery)
	}
	if r.PublishedAt == nil || !r.PublishedAt.Equal(published) {
		t.Fatalf("unexpected publishedAt: %v", r.PublishedAt)
	}
}

func TestCollectSummariesSkipsBadDocuments(t *testing.T) {
	published := time.Date(2025, 4, 28, 2, 44, 39, 0, time.UTC)
	docs := []TelemetryMessage{
		{ID: primitive.NewObjectID(), Content: fullContent("D1", published)},
		{ID: primitive.NewObjectID(), Content: bson.M{"values": bson.M{"devEUI": ""}}},
		{ID: primitive.NewObjectID(), Content: fullContent("D2", published)},
	}
	out := CollectSummaries(docs)
	if len(out) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(out))
	}
	if out[0].DevEUI != "D1" || out[1].DevEUI != "D2" {
		t.Fatalf("unexpected order: %+v", out)
	}
}
