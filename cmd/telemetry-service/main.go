package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"telemetry-service/internal/broker"
	"telemetry-service/internal/config"
	"telemetry-service/internal/httpapi"
	"telemetry-service/internal/ingest"
	"telemetry-service/internal/store"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	requireEnv(cfg.Mongo.URL, "MONGODB_URL")
	requireEnv(cfg.Mongo.Database, "MONGODB_DATABASE")
	requireEnv(cfg.Rabbit.URL, "RABBITMQ_URL")
	requireEnv(cfg.Rabbit.Exchange, "RABBITMQ_EXCHANGE")
	requireEnv(cfg.Rabbit.Queue, "RABBITMQ_QUEUE")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	connectCtx, connectCancel := context.WithTimeout(ctx, 15*time.Second)
	client, err := store.Connect(connectCtx, cfg.Mongo.URL)
	connectCancel()
	if err != nil {
		slog.Error("mongo connect failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		disconnectCtx, disconnectCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer disconnectCancel()
		_ = client.Disconnect(disconnectCtx)
	}()
	repo := store.New(client, cfg.Mongo.Database)

	mq, err := broker.Connect(cfg.Rabbit.URL)
	if err != nil {
		slog.Error("broker connect failed", "error", err)
		os.Exit(1)
	}
	defer mq.Close()
	if err := mq.DeclareTopology(cfg.Rabbit.Exchange, cfg.Rabbit.Queue, cfg.Rabbit.BindingKey); err != nil {
		slog.Error("broker topology failed", "error", err)
		os.Exit(1)
	}

	consumer := &ingest.Consumer{Store: repo}
	if err := mq.Consume(ctx, consumer.Handle); err != nil {
		slog.Error("broker consume failed", "error", err)
		os.Exit(1)
	}

	if cfg.MQTT.BrokerURL != "" {
		mqttClient, err := broker.ConnectMQTT(cfg.MQTT.BrokerURL, cfg.MQTT.ClientID)
		if err != nil {
			slog.Error("mqtt connect failed", "error", err)
			os.Exit(1)
		}
		defer mqttClient.Close()
		if err := mqttClient.Subscribe(cfg.MQTT.Topic, func(topic string, payload []byte) {
			consumer.Handle(ctx, payload, topic)
		}); err != nil {
			slog.Error("mqtt subscribe failed", "topic", cfg.MQTT.Topic, "error", err)
			os.Exit(1)
		}
		slog.Info("mqtt source subscribed", "topic", cfg.MQTT.Topic)
	}

	srv := httpapi.New(repo)
	httpSrv := &http.Server{Addr: ":" + cfg.Port, Handler: srv.Handler(cfg.CORS), ReadHeaderTimeout: 5 * time.Second}

	go func() {
		slog.Info("telemetry-service listening", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
			cancel()
		}
	}()

	stop := make(chan os.Signal, 2)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	slog.Info("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = httpSrv.Shutdown(shutdownCtx)
	cancel()
}

func requireEnv(val, key string) {
	if strings.TrimSpace(val) == "" {
		slog.Error("missing required env", "key", key)
		os.Exit(1)
	}
}

func setupLogging(level string) {
	lvl := slog.LevelInfo
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	h := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(h))
}
