package rate

import "errors"

var (
	// ErrRateLimited reports an exhausted attempt window.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps any Redis transport failure.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
