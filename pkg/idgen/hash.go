package idgen

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
)

// HashGenerator derives the serial from the target URL itself.
// It hashes the URL (SHA256) and reads the first nBytes bytes of the
// digest as a big-endian integer. The same target always gets the same
// serial, so shortening a URL twice yields the same tag.
// 5 bytes -> 40 bits -> tags of at most 10 characters.
type HashGenerator struct {
	nBytes int // 1..7, so the serial stays within int64
}

// NewHashGenerator returns a HashGenerator which uses nBytes of the hash.
func NewHashGenerator(nBytes int) (*HashGenerator, error) {
	if nBytes < 1 || nBytes > 7 {
		return nil, errors.New("nBytes must be between 1 and 7")
	}
	return &HashGenerator{nBytes: nBytes}, nil
}

// Next returns the serial for target.
// Collisions are possible due to truncation; the caller checks the store.
func (g *HashGenerator) Next(_ context.Context, target string) (int64, error) {
	return g.Serial(target), nil
}

// Serial is Next without the context, for callers that only need the value.
func (g *HashGenerator) Serial(target string) int64 {
	hash := sha256.Sum256([]byte(target))

	buf := make([]byte, 8)                  // zeroed
	copy(buf[8-g.nBytes:], hash[:g.nBytes]) // right aligned for big-endian
	return int64(binary.BigEndian.Uint64(buf))
}
