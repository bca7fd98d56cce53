package store

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrNoDevEUI marks a document that cannot contribute a device summary
// because its device identifier is missing or empty. Callers skip such
// documents; this is a filter condition, not a failure.
var ErrNoDevEUI = errors.New("document has no devEUI")

// DeviceSummaryFrom projects a stored content document into the flat
// latest-state record. Every field degrades to its documented default when
// absent: strings to "", battery to 0, coordinates to 0.0. publishedAt stays
// nil rather than defaulted.
func DeviceSummaryFrom(content bson.M) (DeviceSummary, error) {
	values := subDoc(content, "values")
	devEUI := stringField(values, "devEUI")
	if devEUI == "" {
		return DeviceSummary{}, ErrNoDevEUI
	}

	deviceInfo := subDoc(subDoc(content, "uplinkEvent"), "deviceInfo")
	tags := subDoc(deviceInfo, "tags")

	return DeviceSummary{
		DevEUI:      devEUI,
		DeviceName:  stringField(deviceInfo, "deviceName"),
		Company:     stringField(tags, "company"),
		SensorType:  stringField(tags, "type"),
		Battery:     intField(values, "batteryLevel"),
		Longitude:   floatField(values, "longitude"),
		Latitude:    floatField(values, "latitude"),
		PublishedAt: timeField(values, "publishedAt"),
	}, nil
}

// ReadingFrom projects a stored content document into the narrowed telemetry
// record. All fields have defaults, so this cannot fail.
func ReadingFrom(content bson.M) Reading {
	values := subDoc(content, "values")
	return Reading{
		Battery:     intField(values, "batteryLevel"),
		Longitude:   floatField(values, "longitude"),
		Latitude:    floatField(values, "latitude"),
		PublishedAt: timeField(values, "publishedAt"),
	}
}

// subDoc returns the nested document under key, or an empty one. Documents
// round-tripped through the driver come back as bson.M while freshly decoded
// JSON is map[string]any; both shapes are accepted.
func subDoc(m map[string]any, key string) map[string]any {
	switch d := m[key].(type) {
	case bson.M:
		return d
	case map[string]any:
		return d
	default:
		return map[string]any{}
	}
}

func stringField(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

func intField(m map[string]any, key string) int {
	switch n := m[key].(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func floatField(m map[string]any, key string) float64 {
	switch n := m[key].(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0.0
	}
}

// timeField handles both the driver's BSON datetime decoding and native
// time.Time values. Absent or unrecognized values yield nil.
func timeField(m map[string]any, key string) *time.Time {
	switch t := m[key].(type) {
	case time.Time:
		u := t.UTC()
		return &u
	case primitive.DateTime:
		u := t.Time().UTC()
		return &u
	default:
		return nil
	}
}
