package ingest

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"telemetry-service/internal/normalize"
	"telemetry-service/internal/store"

	"go.mongodb.org/mongo-driver/bson"
)

// defaultDeviceID labels log entries for messages whose payload carries no
// device identifier.
const defaultDeviceID = "default"

type Inserter interface {
	InsertMessage(ctx context.Context, m *store.TelemetryMessage) error
}

// Consumer turns one broker delivery into one stored document. Every failure
// is contained to the message that caused it: the handler logs and returns,
// leaving redelivery to the broker.
type Consumer struct {
	Store Inserter
}

// Handle decodes the message body, normalizes embedded date strings and
// persists the result with the broker's routing key and the current UTC
// instant. The device identifier extracted from the payload is used only as
// logging context.
func (c *Consumer) Handle(ctx context.Context, body []byte, routingKey string) {
	var content map[string]any
	if err := json.Unmarshal(body, &content); err != nil {
		slog.Error("ingest decode failed", "routing_key", routingKey, "error", err)
		return
	}

	deviceID := payloadDeviceID(content)
	normalize.Content(content)

	msg := &store.TelemetryMessage{
		Content:    bson.M(content),
		RoutingKey: routingKey,
		CreatedAt:  time.Now().UTC(),
	}
	if err := c.Store.InsertMessage(ctx, msg); err != nil {
		slog.Error("ingest insert failed", "routing_key", routingKey, "device_id", deviceID, "error", err)
		return
	}
	slog.Debug("telemetry stored", "routing_key", routingKey, "device_id", deviceID, "created_at", msg.CreatedAt)
}

func payloadDeviceID(content map[string]any) string {
	values, ok := content["values"].(map[string]any)
	if !ok {
		return defaultDeviceID
	}
	if id, ok := values["devEUI"].(string); ok && id != "" {
		return id
	}
	return defaultDeviceID
}
