package store

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TelemetryMessage is one ingested broker message, stored verbatim after
// date normalization. Content is schema-less; nothing here is validated.
type TelemetryMessage struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Content    bson.M             `bson:"content" json:"content"`
	RoutingKey string             `bson:"routing_key" json:"routing_key"`
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
}

// DeviceSummary is the derived latest-state view of a single device. It is
// recomputed per request and never stored.
type DeviceSummary struct {
	DevEUI      string     `json:"dev_eui"`
	DeviceName  string     `json:"device_name"`
	Company     string     `json:"company"`
	SensorType  string     `json:"sensor_type"`
	Battery     int        `json:"battery"`
	Longitude   float64    `json:"longitude"`
	Latitude    float64    `json:"latitude"`
	PublishedAt *time.Time `json:"publishedAt"`
}

// Reading is the narrowed per-message projection served by the device
// detail endpoint.
type Reading struct {
	Battery     int        `json:"battery"`
	Longitude   float64    `json:"longitude"`
	Latitude    float64    `json:"latitude"`
	PublishedAt *time.Time `json:"publishedAt"`
}

type MessagePage struct {
	Items      []TelemetryMessage `json:"items"`
	Total      int64              `json:"total"`
	Page       int                `json:"page"`
	PageSize   int                `json:"page_size"`
	TotalPages int                `json:"total_pages"`
}

type ReadingPage struct {
	Items      []Reading `json:"items"`
	Total      int64     `json:"total"`
	Page       int       `json:"page"`
	PageSize   int       `json:"page_size"`
	TotalPages int       `json:"total_pages"`
}
