package idgen

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Layout (63 bits, so the serial is always a non-negative int64):
// 41 bits timestamp (ms since custom epoch)
// 10 bits node ID (0..1023)
// 12 bits sequence (0..4095)
const (
	timestampBits = 41
	nodeBits      = 10
	sequenceBits  = 12

	maxNodeID   = (1 << nodeBits) - 1
	maxSequence = (1 << sequenceBits) - 1
	maxTs       = (1 << timestampBits) - 1
)

// SnowflakeOptions configures a SnowflakeGenerator.
type SnowflakeOptions struct {
	NodeID  int64
	EpochMs int64
}

// SnowflakeGenerator implements a Snowflake-like serial generator.
type SnowflakeGenerator struct {
	mu       sync.Mutex
	epoch    int64 // custom epoch in ms
	nodeID   int64
	lastTs   int64
	sequence int64
	now      func() time.Time
}

// NewSnowflakeGenerator creates a SnowflakeGenerator with given nodeID and epoch (ms).
// If epochMs==0 the default epoch 2020-01-01T00:00:00Z is used.
func NewSnowflakeGenerator(nodeID int64, epochMs int64) (*SnowflakeGenerator, error) {
	if nodeID < 0 || nodeID > maxNodeID {
		return nil, fmt.Errorf("node id must be between 0 and %d, got %d", maxNodeID, nodeID)
	}
	if epochMs == 0 {
		epochMs = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	}
	return &SnowflakeGenerator{
		epoch:  epochMs,
		nodeID: nodeID,
		lastTs: -1,
		now:    time.Now,
	}, nil
}

// Next returns the next snowflake serial.
func (s *SnowflakeGenerator) Next(ctx context.Context, _ string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := s.now().UnixMilli() - s.epoch
	if ts < 0 {
		return 0, errors.New("current time is before epoch")
	}
	if ts > maxTs {
		return 0, errors.New("timestamp exceeds 41 bits")
	}
	if ts < s.lastTs {
		return 0, fmt.Errorf("clock moved backwards: current=%d, last=%d", ts, s.lastTs)
	}

	if ts == s.lastTs {
		s.sequence = (s.sequence + 1) & maxSequence
		if s.sequence == 0 {
			// sequence exhausted within this millisecond
			for ts <= s.lastTs {
				if err := ctx.Err(); err != nil {
					return 0, err
				}
				time.Sleep(100 * time.Microsecond)
				ts = s.now().UnixMilli() - s.epoch
			}
		}
	} else {
		s.sequence = 0
	}
	s.lastTs = ts

	return (ts << (nodeBits + sequenceBits)) | (s.nodeID << sequenceBits) | s.sequence, nil
}

// SnowflakeParts is a serial split back into its fields.
type SnowflakeParts struct {
	TimestampMs int64 // absolute unix ms
	NodeID      int64
	Sequence    int64
}

// Parse splits a serial produced by this generator's layout.
func (s *SnowflakeGenerator) Parse(serial int64) (SnowflakeParts, error) {
	if serial < 0 {
		return SnowflakeParts{}, errors.New("serial must be non-negative")
	}
	return SnowflakeParts{
		TimestampMs: (serial >> (nodeBits + sequenceBits)) + s.epoch,
		NodeID:      (serial >> sequenceBits) & maxNodeID,
		Sequence:    serial & maxSequence,
	}, nil
}
