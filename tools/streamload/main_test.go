package main

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsume(t *testing.T) {
	stream := strings.Join([]string{
		"id: 1",
		"event: decision",
		`data: {"date":"2024-01-01"}`,
		"",
		": ping",
		"",
		"id: 2",
		"event: decision",
		`data: {"date":"2024-01-02"}`,
		"",
	}, "\n")

	var c counters
	err := consume(strings.NewReader(stream), &c)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, int64(2), c.decisions.Load())
	assert.Equal(t, int64(1), c.heartbeats.Load())
}
