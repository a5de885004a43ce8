package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Siddarth2230/serial-tags/pkg/tagcode"
)

func TestRun_Default(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run([]string{"--count", "40", "--verify", "10000"}, &out))

	text := out.String()
	assert.Contains(t, text, "0\t2\t0\n")
	assert.Contains(t, text, "34\tb2\t34\n")
	assert.NotContains(t, text, "\n40\t")
	assert.Contains(t, text, "round trip OK")
	assert.Contains(t, text, "9223372036854775807\t6eh5g28yq5mi7br\t9223372036854775807\n")
	assert.Contains(t, text, "30a\t1368\t3oa\t1368\n")
	assert.Contains(t, text, "20a\tinvalid\t2oa\tinvalid\n")
}

func TestRun_Convert(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run([]string{"--encode", "0,2147483646", "--decode", "3LA"}, &out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Equal(t, []string{"0\t2", "2147483646\tba9n82dq", "3LA\t1266"}, lines)
}

func TestRun_ConvertErrors(t *testing.T) {
	var out bytes.Buffer
	err := run([]string{"--decode", "ab2"}, &out)
	assert.ErrorIs(t, err, tagcode.ErrInvalidTag)

	out.Reset()
	err = run([]string{"--encode=-5"}, &out)
	assert.ErrorIs(t, err, tagcode.ErrOutOfRange)
	assert.Contains(t, out.String(), "-5\terror:")
}

func TestRun_BadFlag(t *testing.T) {
	var out bytes.Buffer
	assert.Error(t, run([]string{"--nope"}, &out))
}
