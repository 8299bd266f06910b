// Package snowflake generates bit-packed, time ordered 64-bit ids.
//
// An id is composed, from the most significant end, of a zero sign bit, the
// milliseconds elapsed since Epoch, the worker id and an intra-millisecond
// sequence counter:
//
//	0 | timestamp (63-w-s bits) | worker id (w bits) | sequence (s bits)
//
// The narrow configuration uses the same algorithm with 5 worker and 5
// sequence bits, and truncates the result to a non-negative 32-bit value.
package snowflake

import (
	"errors"
	"time"
)

// Epoch is the reference instant for every timestamp: 2013-12-24 12:01:38.127 UTC.
var Epoch = time.UnixMilli(1387886498127).UTC()

// Config describes the bit layout of a Generator.
type Config struct {
	WorkerIDBits uint
	SequenceBits uint
	// Truncate32 truncates each id to 32 bits and clears the sign bit.
	Truncate32 bool
}

var (
	// DefaultConfig gives 42 timestamp bits (~139 years), 1024 workers and
	// 2048 ids per worker per millisecond.
	DefaultConfig = Config{WorkerIDBits: 10, SequenceBits: 11}

	// NarrowConfig yields non-negative int32 ids for 32 workers.
	NarrowConfig = Config{WorkerIDBits: 5, SequenceBits: 5, Truncate32: true}
)

// ErrInvalidConfig is returned by Validate for unusable layouts.
var ErrInvalidConfig = errors.New("snowflake: invalid bit layout")

// TimestampBits returns the bits left for the timestamp after the sign bit,
// the worker id and the sequence.
func (c Config) TimestampBits() uint {
	return 63 - c.WorkerIDBits - c.SequenceBits
}

// MaxWorkerID returns the largest worker id the layout can encode.
func (c Config) MaxWorkerID() int64 {
	return -1 ^ (-1 << c.WorkerIDBits)
}

// Validate checks that every field gets at least one bit.
func (c Config) Validate() error {
	if c.WorkerIDBits == 0 || c.SequenceBits == 0 || c.WorkerIDBits+c.SequenceBits >= 63 {
		return ErrInvalidConfig
	}
	return nil
}

func (c Config) sequenceMask() int64 {
	return -1 ^ (-1 << c.SequenceBits)
}

func (c Config) workerIDShift() uint {
	return c.SequenceBits
}

func (c Config) timestampShift() uint {
	return c.SequenceBits + c.WorkerIDBits
}
