package idgen

import (
	"context"
	"fmt"
)

// Generator hands out the serial a new link is stored under.
// target is the URL being shortened; generators that hand out
// sequential or time-based serials ignore it.
type Generator interface {
	Next(ctx context.Context, target string) (int64, error)
}

// Generator kinds accepted by New.
const (
	KindCounter   = "counter"
	KindSnowflake = "snowflake"
	KindHash      = "hash"
)

// Options carries the settings each generator kind needs.
type Options struct {
	Counter   CounterOptions
	Snowflake SnowflakeOptions
	HashBytes int
}

// New builds the generator named by kind.
func New(kind string, opts Options) (Generator, error) {
	switch kind {
	case KindCounter:
		if opts.Counter.Client == nil {
			return nil, fmt.Errorf("idgen: counter generator needs a redis client")
		}
		return NewCounterGenerator(opts.Counter.Client, opts.Counter.Key), nil
	case KindSnowflake:
		g, err := NewSnowflakeGenerator(opts.Snowflake.NodeID, opts.Snowflake.EpochMs)
		if err != nil {
			return nil, err
		}
		return g, nil
	case KindHash:
		g, err := NewHashGenerator(opts.HashBytes)
		if err != nil {
			return nil, err
		}
		return g, nil
	default:
		return nil, fmt.Errorf("idgen: unknown generator kind %q", kind)
	}
}
