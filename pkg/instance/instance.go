package instance

import (
	"os"
	"strings"
)

const envInstanceID = "ARENA_INSTANCE_ID"

// ID names this process in logs. ARENA_INSTANCE_ID wins, then the platform
// dyno name, then the hostname.
func ID(fallback string) string {
	for _, key := range []string{envInstanceID, "DYNO"} {
		if id := strings.TrimSpace(os.Getenv(key)); id != "" {
			return id
		}
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return fallback
}
