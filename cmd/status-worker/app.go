package main

import (
	"context"
	"fmt"
	"time"

	"waybox/config"
	"waybox/internal/broker/kafka"
	"waybox/internal/cache/rediscache"
	"waybox/internal/integrations/carrier"
	"waybox/internal/integrations/carrier/fake"
	"waybox/internal/integrations/carrier/novaposhta"
	"waybox/internal/services/poller"
	"waybox/internal/storage/pgwaybill"
)

type workerFactories struct {
	newStorage     func(cfg *config.Config) (repo poller.Repository, closeFn func(), err error)
	newProducer    func(cfg *config.Config) poller.Producer
	newRateLimiter func(cfg *config.Config) poller.RateLimiter
	newTracker     func(cfg *config.Config) carrier.Tracker
}

func defaultWorkerFactories() workerFactories {
	return workerFactories{
		newStorage: func(cfg *config.Config) (poller.Repository, func(), error) {
			sslMode := cfg.Database.SSLMode
			if sslMode == "" {
				sslMode = "disable"
			}
			connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
				cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
			st, err := pgwaybill.New(connString)
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		},
		newProducer: func(cfg *config.Config) poller.Producer {
			brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
			return kafka.NewProducer(brokers)
		},
		newRateLimiter: func(cfg *config.Config) poller.RateLimiter {
			redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
			return rediscache.NewRateLimiter(redisAddr)
		},
		newTracker: func(cfg *config.Config) carrier.Tracker {
			c := cfg.WayBox.Carrier
			if c.Mode == "novaposhta" && c.BaseURL != "" {
				return novaposhta.New(c.BaseURL, c.APIKey)
			}
			return fake.New()
		},
	}
}

func newPoller(cfg *config.Config, f workerFactories) (*poller.Poller, func(), error) {
	topic := cfg.Kafka.TrackingUpdatedTopicName
	if topic == "" {
		topic = "waybill.tracking.updated"
	}

	pollInterval := time.Duration(cfg.WayBox.WorkerPollIntervalSeconds) * time.Second
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	batchSize := cfg.WayBox.WorkerBatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	concurrency := cfg.WayBox.WorkerConcurrency
	if concurrency <= 0 {
		concurrency = 10
	}
	lease := time.Duration(cfg.WayBox.WorkerLeaseSeconds) * time.Second
	if lease <= 0 {
		lease = 120 * time.Second
	}
	rlPerMin := int64(cfg.WayBox.WorkerRateLimitPerMinute)
	if rlPerMin <= 0 {
		rlPerMin = 120
	}

	repo, closeFn, err := f.newStorage(cfg)
	if err != nil {
		return nil, nil, err
	}

	p := poller.New(repo, f.newTracker(cfg), f.newProducer(cfg), f.newRateLimiter(cfg), topic).
		WithSettings(pollInterval, batchSize, concurrency, lease, rlPerMin).
		WithPlanner(plannerConfig(cfg))

	return p, closeFn, nil
}

func plannerConfig(cfg *config.Config) poller.PlannerConfig {
	sec := func(n int) time.Duration { return time.Duration(n) * time.Second }
	return poller.PlannerConfig{
		ActiveMinDelay: sec(cfg.WayBox.WorkerNextCheckActiveMinSeconds),
		ActiveMaxDelay: sec(cfg.WayBox.WorkerNextCheckActiveMaxSeconds),
		UnknownDelay:   sec(cfg.WayBox.WorkerNextCheckUnknownSeconds),
		Backoff1:       sec(cfg.WayBox.WorkerBackoff1Seconds),
		Backoff2:       sec(cfg.WayBox.WorkerBackoff2Seconds),
		Backoff3:       sec(cfg.WayBox.WorkerBackoff3Seconds),
		Backoff4:       sec(cfg.WayBox.WorkerBackoff4Seconds),
	}
}

func RunStatusWorker(ctx context.Context, cfg *config.Config, f workerFactories) error {
	p, closeFn, err := newPoller(cfg, f)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}
	return p.Run(ctx)
}
