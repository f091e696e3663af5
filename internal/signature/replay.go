package signature

// DefaultTimestampValidTime is the default replay window in seconds.
const DefaultTimestampValidTime int64 = 300

// IsFresh reports whether timestamp is within window seconds of now.
//
// Only age is bounded. A timestamp ahead of now always passes.
func IsFresh(timestamp, now, window int64) bool {
	return now-timestamp <= window
}
