package pacer

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for pacing.
var (
	pacerWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "splegis_pacer_waits_total",
		Help: "Total number of requests that had to wait for a pacing slot",
	})

	pacerWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "splegis_pacer_wait_seconds",
		Help:    "Time spent waiting for a pacing slot",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	})

	pacerFailStreak = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "splegis_pacer_fail_streak",
		Help: "Current consecutive portal failure streak",
	})
)

// Config holds pacing configuration.
type Config struct {
	// MinInterval is the base interval between portal requests.
	MinInterval time.Duration

	// MaxInterval caps the failure backoff.
	MaxInterval time.Duration
}

// DefaultConfig returns a polite default: one request every two seconds,
// backing off up to a minute while the portal is failing.
func DefaultConfig() Config {
	return Config{
		MinInterval: 2 * time.Second,
		MaxInterval: 60 * time.Second,
	}
}

// Pacer gates portal requests on the shared Redis pacing state.
type Pacer struct {
	redis  *redis.Client
	cfg    Config
	logger zerolog.Logger
}

// New creates a pacer backed by the given Redis client.
func New(redisClient *redis.Client, cfg Config, logger zerolog.Logger) *Pacer {
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = DefaultConfig().MinInterval
	}
	if cfg.MaxInterval < cfg.MinInterval {
		cfg.MaxInterval = cfg.MinInterval
	}

	return &Pacer{
		redis:  redisClient,
		cfg:    cfg,
		logger: logger,
	}
}

// GetState retrieves the current pacing state from Redis.
// Returns a zero state if no request has been recorded yet.
func (p *Pacer) GetState(ctx context.Context) (*State, error) {
	lastNanos, err := p.redis.Get(ctx, RedisKeyLastRequest).Int64()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get last request: %w", err)
	}

	streak, err := p.redis.Get(ctx, RedisKeyFailStreak).Int()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get fail streak: %w", err)
	}

	state := &State{FailStreak: streak}
	if lastNanos > 0 {
		state.LastRequest = time.Unix(0, lastNanos)
	}
	return state, nil
}

// Wait blocks until a request slot is free, then claims it by recording the
// request timestamp. Respects context cancellation while waiting.
func (p *Pacer) Wait(ctx context.Context) error {
	state, err := p.GetState(ctx)
	if err != nil {
		return fmt.Errorf("get pacing state: %w", err)
	}

	wait := state.WaitFor(time.Now(), p.cfg.MinInterval, p.cfg.MaxInterval)
	if wait > 0 {
		pacerWaitsTotal.Inc()
		pacerWaitSeconds.Observe(wait.Seconds())

		logEvent := p.logger.Debug()
		if state.IsBackingOff() {
			logEvent = p.logger.Warn().Int("fail_streak", state.FailStreak)
		}
		logEvent.Dur("wait", wait).Msg("Waiting for pacing slot")

		select {
		case <-ctx.Done():
			return fmt.Errorf("pacing wait cancelled: %w", ctx.Err())
		case <-time.After(wait):
		}
	}

	if err := p.redis.Set(ctx, RedisKeyLastRequest, time.Now().UnixNano(), 0).Err(); err != nil {
		return fmt.Errorf("record request timestamp: %w", err)
	}
	return nil
}

// ReportSuccess clears the failure streak after a successful request.
func (p *Pacer) ReportSuccess(ctx context.Context) error {
	if err := p.redis.Del(ctx, RedisKeyFailStreak).Err(); err != nil {
		return fmt.Errorf("clear fail streak: %w", err)
	}
	pacerFailStreak.Set(0)
	return nil
}

// ReportFailure bumps the failure streak, widening subsequent intervals.
func (p *Pacer) ReportFailure(ctx context.Context) error {
	streak, err := p.redis.Incr(ctx, RedisKeyFailStreak).Result()
	if err != nil {
		return fmt.Errorf("bump fail streak: %w", err)
	}

	pacerFailStreak.Set(float64(streak))
	p.logger.Warn().
		Int64("fail_streak", streak).
		Msg("Portal failure recorded, widening request interval")
	return nil
}
