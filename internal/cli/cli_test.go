package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTime(t *testing.T) {
	got, err := parseTime("2024-05-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), got)

	got, err = parseTime("2024-05-01T12:30:00+07:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 1, 5, 30, 0, 0, time.UTC), got.UTC())

	_, err = parseTime("yesterday")
	assert.Error(t, err)
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, cmd := range rootCmd.Commands() {
		names[cmd.Name()] = true
	}
	for _, want := range []string{"convert", "keypad", "run", "serve", "show", "export", "backfill", "migrate", "simulate-alert", "version"} {
		assert.True(t, names[want], want)
	}
}
