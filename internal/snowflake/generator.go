package snowflake

import (
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"
)

// Static errors for id generation.
var (
	// ErrClockMovedBackwards is returned when the clock reads earlier than the
	// timestamp of the last emitted id. The generator state is left untouched
	// so generation resumes once the clock catches up.
	ErrClockMovedBackwards = errors.New("snowflake: clock moved backwards")
	// ErrClockBeforeEpoch is returned when the clock reads earlier than Epoch.
	ErrClockBeforeEpoch = errors.New("snowflake: clock is before epoch")
	// ErrTimestampOverflow is returned once the timestamp no longer fits its bits.
	ErrTimestampOverflow = errors.New("snowflake: timestamp exceeds layout")
)

// Generator emits strictly increasing ids for one worker id.
// It is safe for concurrent use; callers on the same Generator are
// serialized, distinct Generators never block each other.
type Generator struct {
	cfg      Config
	workerID int64
	epochMS  int64
	now      func() int64
	logger   *slog.Logger

	mu         sync.Mutex
	lastMillis int64
	sequence   int64
}

// Option configures a Generator.
type Option func(*Generator)

// WithConfig sets the bit layout. The default is DefaultConfig.
func WithConfig(cfg Config) Option {
	return func(g *Generator) {
		g.cfg = cfg
	}
}

// WithClock replaces the wall clock. now must return unix milliseconds.
func WithClock(now func() int64) Option {
	return func(g *Generator) {
		g.now = now
	}
}

// WithEpoch overrides the reference instant.
func WithEpoch(epoch time.Time) Option {
	return func(g *Generator) {
		g.epochMS = epoch.UnixMilli()
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		g.logger = logger
	}
}

// New creates a Generator for workerID. A worker id outside the layout's
// range is replaced by a random valid one and a warning is logged; handing
// out worker ids is the allocator's job, the generator only degrades.
// An invalid layout falls back to DefaultConfig.
func New(workerID int64, opts ...Option) *Generator {
	g := &Generator{
		cfg:        DefaultConfig,
		epochMS:    Epoch.UnixMilli(),
		now:        func() int64 { return time.Now().UnixMilli() },
		lastMillis: -1,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	if err := g.cfg.Validate(); err != nil {
		g.logger.Warn("invalid id layout, using default",
			slog.Uint64("worker_id_bits", uint64(g.cfg.WorkerIDBits)),
			slog.Uint64("sequence_bits", uint64(g.cfg.SequenceBits)),
		)
		g.cfg = DefaultConfig
	}

	maxWorkerID := g.cfg.MaxWorkerID()
	if g.cfg.Truncate32 {
		workerID &= maxWorkerID
	}
	if workerID < 0 || workerID > maxWorkerID {
		r := randomWorkerID(maxWorkerID)
		g.logger.Warn("worker id out of range, using a random one",
			slog.Int64("worker_id", workerID),
			slog.Int64("max_worker_id", maxWorkerID),
			slog.Int64("random_worker_id", r),
		)
		workerID = r
	}
	g.workerID = workerID

	g.logger.Debug("id generator starting",
		slog.Uint64("timestamp_shift", uint64(g.cfg.timestampShift())),
		slog.Uint64("worker_id_bits", uint64(g.cfg.WorkerIDBits)),
		slog.Uint64("sequence_bits", uint64(g.cfg.SequenceBits)),
		slog.Int64("worker_id", g.workerID),
	)
	return g
}

// NextID returns the next id.
func (g *Generator) NextID() (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	timestamp := g.millis()
	if timestamp < 0 {
		return 0, fmt.Errorf("%w: %d ms", ErrClockBeforeEpoch, -timestamp)
	}
	if timestamp < g.lastMillis {
		g.logger.Error("clock is moving backwards, rejecting requests",
			slog.Int64("last_millis", g.lastMillis),
			slog.Int64("now_millis", timestamp),
		)
		return 0, fmt.Errorf("%w: refusing to generate id for %d milliseconds",
			ErrClockMovedBackwards, g.lastMillis-timestamp)
	}
	if !g.cfg.Truncate32 && timestamp>>g.cfg.TimestampBits() != 0 {
		return 0, fmt.Errorf("%w: %d ms since epoch", ErrTimestampOverflow, timestamp)
	}

	sequence := int64(0)
	if timestamp == g.lastMillis {
		sequence = (g.sequence + 1) & g.cfg.sequenceMask()
		if sequence == 0 {
			timestamp = g.tilNextMillis(g.lastMillis)
		}
	}

	g.sequence = sequence
	g.lastMillis = timestamp

	id := timestamp<<g.cfg.timestampShift() |
		g.workerID<<g.cfg.workerIDShift() |
		sequence
	if g.cfg.Truncate32 {
		id = int64(truncate32(id))
	}
	return id, nil
}

// NextInt returns the next id as a non-negative int32. With the narrow
// layout this is the same value NextID returns.
func (g *Generator) NextInt() (int32, error) {
	id, err := g.NextID()
	if err != nil {
		return 0, err
	}
	return truncate32(id), nil
}

// WorkerID returns the worker id embedded in every id.
func (g *Generator) WorkerID() int64 {
	return g.workerID
}

// Config returns the bit layout.
func (g *Generator) Config() Config {
	return g.cfg
}

// Epoch returns the reference instant of this generator.
func (g *Generator) Epoch() time.Time {
	return time.UnixMilli(g.epochMS).UTC()
}

// LastMillis returns the timestamp, in ms since the epoch, of the last id.
// It is -1 before the first id.
func (g *Generator) LastMillis() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastMillis
}

// Sequence returns the sequence of the last id.
func (g *Generator) Sequence() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sequence
}

func (g *Generator) millis() int64 {
	return g.now() - g.epochMS
}

// tilNextMillis spins on the clock until it passes last. It runs with g.mu
// held so no other caller can reuse the exhausted millisecond.
func (g *Generator) tilNextMillis(last int64) int64 {
	ms := g.millis()
	for ms <= last {
		ms = g.millis()
	}
	return ms
}

// truncate32 keeps the low 32 bits and clears the sign bit.
func truncate32(id int64) int32 {
	return int32(uint32(id) & 0x7fffffff)
}

func randomWorkerID(maxWorkerID int64) int64 {
	n, err := rand.Int(rand.Reader, big.NewInt(maxWorkerID+1))
	if err != nil {
		return time.Now().UnixNano() & maxWorkerID
	}
	return n.Int64()
}
