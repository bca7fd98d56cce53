package config

import (
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     string
	LogLevel string

	Mongo  MongoConfig
	Rabbit RabbitConfig
	MQTT   MQTTConfig
	CORS   CORSConfig
}

type MongoConfig struct {
	URL      string
	Database string
}

type RabbitConfig struct {
	URL        string
	Exchange   string
	Queue      string
	BindingKey string
}

// MQTTConfig enables the secondary MQTT source when BrokerURL is set.
type MQTTConfig struct {
	BrokerURL string
	ClientID  string
	Topic     string
}

type CORSConfig struct {
	Origins          []string
	Methods          []string
	Headers          []string
	AllowCredentials bool
}

func Load() *Config {
	// A local .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := &Config{
		Port:     getEnv("PORT", "8000"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Mongo: MongoConfig{
			URL:      strings.TrimSpace(os.Getenv("MONGODB_URL")),
			Database: strings.TrimSpace(os.Getenv("MONGODB_DATABASE")),
		},
		Rabbit: RabbitConfig{
			URL:        strings.TrimSpace(os.Getenv("RABBITMQ_URL")),
			Exchange:   strings.TrimSpace(os.Getenv("RABBITMQ_EXCHANGE")),
			Queue:      strings.TrimSpace(os.Getenv("RABBITMQ_QUEUE")),
			BindingKey: getEnv("RABBITMQ_ROUTING_KEY", "#"),
		},
		MQTT: MQTTConfig{
			BrokerURL: strings.TrimSpace(os.Getenv("MQTT_BROKER_URL")),
			ClientID:  getEnv("MQTT_CLIENT_ID", "telemetry-service"),
			Topic:     getEnv("MQTT_TOPIC", "telemetry/#"),
		},
		CORS: CORSConfig{
			Origins:          splitOrStar(getEnv("CORS_ORIGINS", "*")),
			Methods:          splitOrStar(getEnv("CORS_ALLOW_METHODS", "*")),
			Headers:          splitOrStar(getEnv("CORS_ALLOW_HEADERS", "*")),
			AllowCredentials: parseBool(getEnv("CORS_ALLOW_CREDENTIALS", "true")),
		},
	}

	slog.Info("config loaded", "port", cfg.Port, "mongo_db", cfg.Mongo.Database,
		"exchange", cfg.Rabbit.Exchange, "queue", cfg.Rabbit.Queue, "binding_key", cfg.Rabbit.BindingKey)
	return cfg
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func parseBool(val string) bool {
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func splitOrStar(val string) []string {
	if strings.TrimSpace(val) == "*" {
		return []string{"*"}
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
