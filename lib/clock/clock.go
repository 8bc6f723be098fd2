package clock

import (
	"fmt"
	"time"
)

func Now() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05Z")
}

// Uptime formats the time elapsed since start with seconds precision,
// e.g. "72h05m03s".
func Uptime(start time.Time) string {
	d := time.Since(start).Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
}
