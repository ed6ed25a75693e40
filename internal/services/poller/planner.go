package poller

import (
	"math/rand"
	"time"

	"waybox/internal/status"
)

type Rand interface {
	Intn(n int) int
}

type PlannerConfig struct {
	FinalDelay time.Duration // получено/отказ: опрашивать почти не нужно

	ActiveMinDelay time.Duration
	ActiveMaxDelay time.Duration

	UnknownDelay time.Duration

	Backoff1 time.Duration
	Backoff2 time.Duration
	Backoff3 time.Duration
	Backoff4 time.Duration
}

func DefaultPlannerConfig() PlannerConfig {
	return PlannerConfig{
		FinalDelay: 365 * 24 * time.Hour,

		ActiveMinDelay: 30 * time.Minute,
		ActiveMaxDelay: 120 * time.Minute,

		UnknownDelay: 90 * time.Minute,

		Backoff1: 5 * time.Minute,
		Backoff2: 15 * time.Minute,
		Backoff3: 30 * time.Minute,
		Backoff4: 60 * time.Minute,
	}
}

// Planner назначает время следующего опроса по коду трекинга
// и лестницу пауз при сбоях опроса.
type Planner struct {
	cfg PlannerConfig
	r   Rand
}

func NewPlanner(cfg PlannerConfig, r Rand) *Planner {
	def := DefaultPlannerConfig()
	if cfg.FinalDelay <= 0 {
		cfg.FinalDelay = def.FinalDelay
	}
	if cfg.ActiveMinDelay <= 0 {
		cfg.ActiveMinDelay = def.ActiveMinDelay
	}
	if cfg.ActiveMaxDelay <= 0 {
		cfg.ActiveMaxDelay = def.ActiveMaxDelay
	}
	if cfg.ActiveMaxDelay < cfg.ActiveMinDelay {
		cfg.ActiveMaxDelay = cfg.ActiveMinDelay
	}
	if cfg.UnknownDelay <= 0 {
		cfg.UnknownDelay = def.UnknownDelay
	}
	if cfg.Backoff1 <= 0 {
		cfg.Backoff1 = def.Backoff1
	}
	if cfg.Backoff2 <= 0 {
		cfg.Backoff2 = def.Backoff2
	}
	if cfg.Backoff3 <= 0 {
		cfg.Backoff3 = def.Backoff3
	}
	if cfg.Backoff4 <= 0 {
		cfg.Backoff4 = def.Backoff4
	}
	if r == nil {
		r = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Planner{cfg: cfg, r: r}
}

// NextCheckDelay: терминальный код — длинная пауза, активный — случайное
// окно (размазываем нагрузку на API перевозчика), неизвестный — UnknownDelay.
func (p *Planner) NextCheckDelay(trackingCode int) time.Duration {
	sc, known, _ := status.Classify(trackingCode, nil)
	if !known {
		return p.cfg.UnknownDelay
	}
	if sc.Final() {
		return p.cfg.FinalDelay
	}

	min := p.cfg.ActiveMinDelay
	max := p.cfg.ActiveMaxDelay
	if max == min {
		return min
	}
	secMin := int(min.Seconds())
	secMax := int(max.Seconds())
	return time.Duration(secMin+p.r.Intn(secMax-secMin+1)) * time.Second
}

func (p *Planner) BackoffDelay(nextFailCount int32) time.Duration {
	switch {
	case nextFailCount <= 1:
		return p.cfg.Backoff1
	case nextFailCount == 2:
		return p.cfg.Backoff2
	case nextFailCount == 3:
		return p.cfg.Backoff3
	default:
		return p.cfg.Backoff4
	}
}
