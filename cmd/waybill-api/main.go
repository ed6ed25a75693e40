package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"waybox/config"
	waybillsapi "waybox/internal/api/waybills_api"
	"waybox/internal/broker/kafka"
	"waybox/internal/cache/rediscache"
	"waybox/internal/integrations/carrier"
	"waybox/internal/integrations/carrier/fake"
	"waybox/internal/integrations/carrier/novaposhta"
	"waybox/internal/printing"
	"waybox/internal/refdata"
	"waybox/internal/services/waybills"
	"waybox/internal/storage/pgref"
	"waybox/internal/storage/pgwaybill"
)

func main() {
	cfg, err := config.LoadConfig(os.Getenv("configPath"))
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}

	httpAddr := cfg.WayBox.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	consumerGroup := cfg.WayBox.KafkaConsumerGroup
	if consumerGroup == "" {
		consumerGroup = "waybill-api"
	}
	topic := cfg.Kafka.TrackingUpdatedTopicName
	if topic == "" {
		topic = "waybill.tracking.updated"
	}
	refTTL := time.Duration(cfg.WayBox.RefCacheTTLSeconds) * time.Second
	if refTTL <= 0 {
		refTTL = 10 * time.Minute
	}

	connString := pgConnString(cfg)
	st, err := pgwaybill.New(connString)
	if err != nil {
		panic(err)
	}
	defer st.Close()

	refSt, err := pgref.New(connString)
	if err != nil {
		panic(err)
	}
	defer refSt.Close()

	redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
	rc := rediscache.New(redisAddr)
	resolver := refdata.NewCached(refdata.NewPG(refSt), rc, refTTL, nil)

	gw := newGateway(cfg)
	svc := waybills.New(st, resolver, gw, nil)
	printer := printing.New(cfg.WayBox.Carrier.PrintBaseURL, cfg.WayBox.Carrier.APIKey)
	api := waybillsapi.New(svc, printer)

	brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
	consumer := kafka.NewConsumer(brokers, topic, consumerGroup)
	defer func() { _ = consumer.Close() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := runWaybillAPI(ctx, apiOpts{
		httpAddr:      httpAddr,
		topic:         topic,
		consumerGroup: consumerGroup,
	}, svc, api.Routes(), consumer); err != nil && err != context.Canceled {
		panic(err)
	}
}

func pgConnString(cfg *config.Config) string {
	sslMode := cfg.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
}

func newGateway(cfg *config.Config) carrier.Gateway {
	c := cfg.WayBox.Carrier
	if c.Mode == "novaposhta" && c.BaseURL != "" {
		return novaposhta.New(c.BaseURL, c.APIKey)
	}
	return fake.New()
}
