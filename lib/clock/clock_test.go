package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNow(t *testing.T) {
	now := Now()
	parsed, err := time.Parse("2006-01-02T15:04:05Z", now)
	assert.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC(), parsed, 2*time.Second)
}

func TestUptime(t *testing.T) {
	start := time.Now().Add(-(72*time.Hour + 5*time.Minute + 3*time.Second))
	assert.Equal(t, "72h05m03s", Uptime(start))

	assert.Equal(t, "0h00m00s", Uptime(time.Now()))
}
