package shm

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/irsl/shmcontroller/kernel/utils"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// DefaultReadRetries bounds the seqlock read loop.
	DefaultReadRetries = 5
	// DefaultWriteWait bounds how long a write waits for another writer.
	DefaultWriteWait = 100 * time.Millisecond
)

// State is the lifecycle of a Segment handle in this process.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateActive
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateActive:
		return "active"
	default:
		return "unknown"
	}
}

type options struct {
	backend     Backend
	readRetries int
	writeWait   time.Duration
	role        Role
	logger      *utils.Logger
}

// Option configures Open.
type Option func(*options)

// WithBackend selects the shared memory namespace. The default is
// DefaultBackend().
func WithBackend(b Backend) Option {
	return func(o *options) { o.backend = b }
}

// WithReadRetries sets how many times a read is attempted before it fails
// with ErrTornRead. Values below 1 are raised to 1.
func WithReadRetries(n int) Option {
	return func(o *options) {
		if n < 1 {
			n = 1
		}
		o.readRetries = n
	}
}

// WithWriteWait sets how long a write waits while another writer holds the
// frame counter before failing with ErrWriterBusy.
func WithWriteWait(d time.Duration) Option {
	return func(o *options) {
		if d <= 0 {
			d = DefaultWriteWait
		}
		o.writeWait = d
	}
}

// WithRole enables writer checks for blocks owned by the other side.
func WithRole(r Role) Option {
	return func(o *options) { o.role = r }
}

// WithLogger overrides the segment logger.
func WithLogger(l *utils.Logger) Option {
	return func(o *options) { o.logger = l }
}

func buildOptions(opts []Option) options {
	o := options{
		readRetries: DefaultReadRetries,
		writeWait:   DefaultWriteWait,
		role:        RoleAny,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.backend == nil {
		o.backend = DefaultBackend()
	}
	if o.logger == nil {
		o.logger = utils.NewLogger(utils.LoggerConfig{
			Level:     utils.WARN,
			Component: "shm",
		})
	}
	return o
}

// Segment is this process's handle on a shared segment. A handle is owned by
// one goroutine at a time; the shared memory itself may be used by any number
// of processes.
type Segment struct {
	settings Settings
	layout   Layout
	mem      MemoryProvider
	backend  Backend
	state    State
	created  bool

	readRetries int
	writeWait   time.Duration
	role        Role
	logger      *utils.Logger

	writes map[JointType]prometheus.Counter
	reads  map[JointType]prometheus.Counter
	frame  prometheus.Gauge
}

// Open creates or attaches the segment described by settings. With
// create=false a missing segment fails immediately with ErrSegmentNotFound.
// An existing segment is attached whatever create says; its header is not
// trusted until CheckHeader returns true.
func Open(settings Settings, create bool, opts ...Option) (*Segment, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	layout := CalculateLayout(settings)

	s := &Segment{
		settings:    settings,
		layout:      layout,
		backend:     o.backend,
		readRetries: o.readRetries,
		writeWait:   o.writeWait,
		role:        o.role,
		logger:      o.logger,
	}

	var err error
	if create {
		s.mem, err = o.backend.Create(settings.Key, layout.TotalSize)
		switch {
		case err == nil:
			s.created = true
			if err := s.initialize(); err != nil {
				_ = s.mem.Close()
				_ = o.backend.Remove(settings.Key)
				return nil, err
			}
		case errors.Is(err, errSegmentExists):
			s.mem, err = o.backend.Attach(settings.Key)
		}
	} else {
		s.mem, err = o.backend.Attach(settings.Key)
	}
	if err != nil {
		return nil, err
	}

	s.state = StateOpen
	s.bindMetrics()
	s.logger.Info("Segment opened",
		utils.Uint64("key", uint64(settings.Key)),
		utils.String("backend", o.backend.Name()),
		utils.Bool("created", s.created),
		utils.Int("size", int(s.mem.Size())),
	)
	return s, nil
}

// initialize zeroes the fresh mapping and publishes the header.
func (s *Segment) initialize() error {
	if z, ok := s.mem.(interface{ zero() }); ok {
		z.zero()
	} else {
		if err := s.mem.WriteAt(0, make([]byte, s.mem.Size())); err != nil {
			return fmt.Errorf("zero segment: %w", err)
		}
	}
	if err := ValidateLayout(s.layout, s.mem.Size()); err != nil {
		return fmt.Errorf("layout validation failed: %w", err)
	}
	return writeHeader(s.mem, HeaderFor(s.settings))
}

func (s *Segment) bindMetrics() {
	s.writes = make(map[JointType]prometheus.Counter, len(s.layout.Order))
	s.reads = make(map[JointType]prometheus.Counter, len(s.layout.Order))
	for _, jt := range s.layout.Order {
		name := jt.String()
		s.writes[jt] = SegmentWrites.WithLabelValues(name)
		s.reads[jt] = SegmentReads.WithLabelValues(name)
	}
	s.frame = SegmentFrame.WithLabelValues(strconv.FormatUint(uint64(s.settings.Key), 10))
}

// CheckHeader compares the persisted header and mapped size with the
// segment's Settings. It returns false rather than an error so real-time
// callers can branch on it; a true result makes the segment Active.
func (s *Segment) CheckHeader() bool {
	if s.state == StateClosed {
		return false
	}
	h, err := readHeader(s.mem)
	if err != nil {
		s.logger.Warn("Header unreadable", utils.Err(err))
		HeaderMismatches.Inc()
		return false
	}
	if !MatchHeader(h, s.settings) {
		s.logger.Warn("Header mismatch",
			utils.String("expected", HeaderFor(s.settings).String()),
			utils.String("found", h.String()),
		)
		HeaderMismatches.Inc()
		return false
	}
	if err := ValidateLayout(s.layout, s.mem.Size()); err != nil {
		s.logger.Warn("Segment does not fit layout", utils.Err(err))
		HeaderMismatches.Inc()
		return false
	}
	s.state = StateActive
	return true
}

// MustActivate is CheckHeader for start-up code that prefers an error.
func (s *Segment) MustActivate() error {
	if s.CheckHeader() {
		return nil
	}
	h, _ := s.Header()
	return fmt.Errorf("%w: expected {%s}, found {%s}", ErrHeaderMismatch, HeaderFor(s.settings), h)
}

// IsOpen reports whether this process holds a live mapping.
func (s *Segment) IsOpen() bool {
	return s.state != StateClosed
}

// State returns the handle state.
func (s *Segment) State() State {
	return s.state
}

// Created reports whether this handle created the OS object.
func (s *Segment) Created() bool {
	return s.created
}

// Settings returns the Settings the segment was opened with.
func (s *Segment) Settings() Settings {
	return s.settings
}

// Layout returns the layout derived from Settings.
func (s *Segment) Layout() Layout {
	return s.layout
}

// Size returns the mapped size in bytes, or 0 once closed.
func (s *Segment) Size() uint32 {
	if s.state == StateClosed {
		return 0
	}
	return s.mem.Size()
}

// Header reads the persisted header without judging it.
func (s *Segment) Header() (Header, error) {
	if s.state == StateClosed {
		return Header{}, ErrNotActive
	}
	return readHeader(s.mem)
}

// Close releases this process's mapping. Other attached processes and the
// OS object are unaffected. Closing twice is a no-op.
func (s *Segment) Close() error {
	if s.state == StateClosed {
		return nil
	}
	s.state = StateClosed
	if err := s.mem.Close(); err != nil {
		return fmt.Errorf("close segment %d: %w", s.settings.Key, err)
	}
	s.logger.Info("Segment closed", utils.Uint64("key", uint64(s.settings.Key)))
	return nil
}

// Remove destroys the OS object and closes this handle. Processes still
// attached keep their mapping until they close it.
func (s *Segment) Remove() error {
	rmErr := s.backend.Remove(s.settings.Key)
	closeErr := s.Close()
	if rmErr != nil {
		return rmErr
	}
	return closeErr
}

// Exists reports whether a segment is present at key.
func Exists(key uint32, opts ...Option) bool {
	return buildOptions(opts).backend.Exists(key)
}

// Remove destroys the segment at key without attaching to it.
func Remove(key uint32, opts ...Option) error {
	return buildOptions(opts).backend.Remove(key)
}

// Inspect attaches to key, reads its header, and detaches. It is meant for
// operators who do not know the segment's Settings.
func Inspect(key uint32, opts ...Option) (Header, uint64, error) {
	o := buildOptions(opts)
	mem, err := o.backend.Attach(key)
	if err != nil {
		return Header{}, 0, err
	}
	defer mem.Close()

	h, err := readHeader(mem)
	if err != nil {
		return Header{}, 0, err
	}
	seq, err := mem.AtomicLoad64(OFFSET_FRAME_COUNTER)
	if err != nil {
		return Header{}, 0, err
	}
	return h, frameOf(seq), nil
}
