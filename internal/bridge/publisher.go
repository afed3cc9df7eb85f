package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/irsl/shmcontroller/kernel/utils"
	"github.com/sony/gobreaker"
	"github.com/yasserelgammal/rate-limiter/limiter"
	"github.com/yasserelgammal/rate-limiter/store"
)

var (
	// ErrThrottled is returned when a publish exceeds the configured rate.
	ErrThrottled = errors.New("bridge: publish rate exceeded")
	// ErrJointCount is returned when positions and joint names differ in length.
	ErrJointCount = errors.New("bridge: position count does not match joint names")
	errClosed     = errors.New("bridge: publisher closed")
)

// Config configures a Publisher.
type Config struct {
	URL           string
	Topic         string
	JointNames    []string
	TimeFromStart time.Duration

	// Rate is the maximum publishes per second; Burst the bucket size.
	Rate  float64
	Burst int

	DialTimeout  time.Duration
	WriteTimeout time.Duration

	// The breaker opens after FailureThreshold consecutive failures and
	// lets a probe through after OpenTimeout.
	FailureThreshold uint32
	OpenTimeout      time.Duration

	Logger *utils.Logger
}

func (c *Config) setDefaults() {
	if c.Rate <= 0 {
		c.Rate = 1
	}
	if c.Burst < 1 {
		c.Burst = 1
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = time.Second
	}
	if c.FailureThreshold == 0 {
		c.FailureThreshold = 3
	}
	if c.OpenTimeout == 0 {
		c.OpenTimeout = 5 * time.Second
	}
	if c.Logger == nil {
		c.Logger = utils.DefaultLogger("bridge")
	}
}

// Publisher sends JointTrajectory messages to a rosbridge server. The
// connection is dialed lazily and re-dialed after a write error; repeated
// failures open a circuit breaker so a missing server does not stall the
// caller's loop.
type Publisher struct {
	cfg    Config
	logger *utils.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool

	breaker      *gobreaker.CircuitBreaker
	limiter      *limiter.TokenBucket
	limiterStore store.Store
}

// NewPublisher validates cfg and prepares a publisher. No connection is made
// until Connect or the first Publish.
func NewPublisher(cfg Config) (*Publisher, error) {
	if cfg.URL == "" || cfg.Topic == "" {
		return nil, errors.New("bridge: url and topic are required")
	}
	if len(cfg.JointNames) == 0 {
		return nil, errors.New("bridge: joint names are required")
	}
	cfg.setDefaults()

	p := &Publisher{
		cfg:    cfg,
		logger: cfg.Logger,
	}

	p.limiterStore = store.NewMemoryStore(time.Minute)
	rate, per := bucketRate(cfg.Rate)
	tb, err := limiter.NewTokenBucket(
		limiter.Config{
			Rate:     rate,
			Duration: per,
			Burst:    int64(cfg.Burst),
		},
		p.limiterStore,
	)
	if err != nil {
		return nil, fmt.Errorf("bridge: rate limiter: %w", err)
	}
	p.limiter = tb

	p.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "rosbridge:" + cfg.Topic,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			BreakerState.Set(float64(to))
			p.logger.Warn("Breaker state changed",
				utils.String("breaker", name),
				utils.String("from", from.String()),
				utils.String("to", to.String()),
			)
		},
	})
	return p, nil
}

// bucketRate expresses hz as whole tokens per window. The window grows by
// tens until the token count is whole, so fractional rates are kept.
func bucketRate(hz float64) (int64, time.Duration) {
	for window := time.Second; window <= 1000*time.Second; window *= 10 {
		tokens := hz * window.Seconds()
		if r := math.Round(tokens); r >= 1 && math.Abs(tokens-r) < 1e-9 {
			return int64(r), window
		}
	}
	if hz >= 1 {
		return int64(math.Round(hz * 1000)), 1000 * time.Second
	}
	return 1, time.Duration(math.Round(float64(time.Second) / hz))
}

// Connect dials the server and advertises the topic.
func (p *Publisher) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connectLocked(ctx)
}

func (p *Publisher) connectLocked(ctx context.Context) error {
	if p.closed {
		return errClosed
	}
	if p.conn != nil {
		return nil
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: p.cfg.DialTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, p.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("failed to dial rosbridge: %w", err)
	}
	p.conn = conn

	if err := p.sendLocked(advertiseOp{
		Op:    "advertise",
		ID:    opID("advertise"),
		Topic: p.cfg.Topic,
		Type:  TrajectoryType,
	}); err != nil {
		p.dropLocked()
		return fmt.Errorf("advertise %s: %w", p.cfg.Topic, err)
	}

	p.logger.Info("Connected to rosbridge",
		utils.String("url", p.cfg.URL),
		utils.String("topic", p.cfg.Topic),
	)
	return nil
}

func (p *Publisher) sendLocked(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := p.conn.SetWriteDeadline(time.Now().Add(p.cfg.WriteTimeout)); err != nil {
		return err
	}
	return p.conn.WriteMessage(websocket.TextMessage, data)
}

func (p *Publisher) dropLocked() {
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

// Publish sends positions as a single-point trajectory. It returns
// ErrThrottled when the rate limit is exceeded and gobreaker.ErrOpenState
// (wrapped) while the breaker is open.
func (p *Publisher) Publish(ctx context.Context, positions []float64) error {
	if len(positions) != len(p.cfg.JointNames) {
		return fmt.Errorf("%w: %d positions, %d names", ErrJointCount, len(positions), len(p.cfg.JointNames))
	}
	if !p.limiter.Allow(p.cfg.Topic) {
		Throttled.Inc()
		return ErrThrottled
	}

	msg := publishOp{
		Op:    "publish",
		ID:    opID("publish"),
		Topic: p.cfg.Topic,
		Msg:   NewTrajectory(p.cfg.JointNames, positions, p.cfg.TimeFromStart),
	}

	_, err := p.breaker.Execute(func() (interface{}, error) {
		p.mu.Lock()
		defer p.mu.Unlock()

		if err := p.connectLocked(ctx); err != nil {
			return nil, err
		}
		if err := p.sendLocked(msg); err != nil {
			p.dropLocked()
			return nil, fmt.Errorf("publish %s: %w", p.cfg.Topic, err)
		}
		return nil, nil
	})
	if err != nil {
		Failures.Inc()
		return fmt.Errorf("bridge: %w", err)
	}
	Published.Inc()
	return nil
}

// BreakerState reports the breaker state.
func (p *Publisher) BreakerState() gobreaker.State {
	return p.breaker.State()
}

// Close unadvertises the topic and closes the connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	if p.conn == nil {
		return nil
	}
	_ = p.sendLocked(unadvertiseOp{Op: "unadvertise", ID: opID("unadvertise"), Topic: p.cfg.Topic})
	_ = p.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(p.cfg.WriteTimeout))
	err := p.conn.Close()
	p.conn = nil
	return err
}
