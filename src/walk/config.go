package walk

import "time"

const (
	// DefaultHopTimeout bounds one cross-community round trip, including the
	// part of the walk the receiver runs before answering. Receivers keep
	// their own part of the walk inside the time their sender waits.
	DefaultHopTimeout = 5 * time.Second
	// DefaultMaxWalkHops caps the hop budget a client may ask for.
	DefaultMaxWalkHops = 1000
)

// Config holds the coordinator's tunables.
type Config struct {
	HopTimeout time.Duration
	// HopRetries is the number of extra attempts after a transport timeout.
	// Every attempt carries a fresh nonce.
	HopRetries  int
	MaxWalkHops int
	// Now is the clock hops are stamped and checked with.
	Now func() time.Time
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		HopTimeout:  DefaultHopTimeout,
		MaxWalkHops: DefaultMaxWalkHops,
		Now:         time.Now,
	}
}

func (c *Config) hopTimeout() time.Duration {
	if c.HopTimeout <= 0 {
		return DefaultHopTimeout
	}
	return c.HopTimeout
}

func (c *Config) now() int64 {
	if c.Now == nil {
		return time.Now().Unix()
	}
	return c.Now().Unix()
}
