package artifact

import "time"

// timeNow is a package-level indirection so tests can freeze time.
var timeNow = time.Now

// nowRFC3339 returns the current UTC time in RFC3339 format, the timestamp
// format used throughout the persisted graph.
func nowRFC3339() string {
	return timeNow().UTC().Format(time.RFC3339)
}
