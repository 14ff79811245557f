// Package replay keeps track of the nonces a community has accepted so that a
// signed hop cannot be played twice.
//
// A Guard first checks that the hop's timestamp is within Tolerance of the
// receiver's clock, then records its nonce. A nonce only needs remembering
// while a message carrying it could still pass the freshness check, so
// entries expire Tolerance + Skew after their timestamp.
package replay

import (
	"time"

	"github.com/mosaicnetworks/crosswalk/src/hop"
)

const (
	// DefaultTolerance is the accepted distance between a hop's timestamp and
	// the receiver's clock.
	DefaultTolerance = 30 * time.Second
	// DefaultSkew is added to the tolerance before nonces are forgotten.
	DefaultSkew = 5 * time.Second
)

// Verdict is the outcome of an admission.
type Verdict int

const (
	// Accepted means the nonce was fresh and has been recorded.
	Accepted Verdict = iota
	// StaleOrFutureTimestamp means the timestamp is outside the window.
	StaleOrFutureTimestamp
	// ReplayDetected means the nonce was recorded before.
	ReplayDetected
)

func (v Verdict) String() string {
	switch v {
	case Accepted:
		return "Accepted"
	case StaleOrFutureTimestamp:
		return "StaleOrFutureTimestamp"
	case ReplayDetected:
		return "ReplayDetected"
	default:
		return "Unknown"
	}
}

// Kind returns the hop.Kind of a rejection, or the empty Kind for Accepted.
func (v Verdict) Kind() hop.Kind {
	switch v {
	case StaleOrFutureTimestamp:
		return hop.StaleOrFutureTimestamp
	case ReplayDetected:
		return hop.ReplayDetected
	default:
		return ""
	}
}

// Guard is the nonce store of one receiving community. Admit must be atomic
// per nonce: of several concurrent admissions of the same nonce, at most one
// is Accepted.
type Guard interface {
	// Admit checks timestamp against now (both in epoch seconds) and records
	// nonce. The error is reserved for storage failures.
	Admit(nonce string, timestamp, now int64) (Verdict, error)
	Close() error
}

// Config holds the window parameters shared by Guard implementations.
type Config struct {
	Tolerance time.Duration
	Skew      time.Duration
	// MaxSize bounds the number of remembered nonces. 0 means unbounded.
	MaxSize int
}

// DefaultConfig returns the default window.
func DefaultConfig() Config {
	return Config{
		Tolerance: DefaultTolerance,
		Skew:      DefaultSkew,
	}
}

func (c Config) toleranceSeconds() int64 {
	return int64(c.Tolerance / time.Second)
}

// retention is how long after its timestamp a nonce is remembered, in seconds.
func (c Config) retention() int64 {
	return int64((c.Tolerance + c.Skew) / time.Second)
}

// Fresh reports whether |now - timestamp| <= tolerance.
func Fresh(timestamp, now int64, tolerance time.Duration) bool {
	d := now - timestamp
	if d < 0 {
		d = -d
	}
	return d <= int64(tolerance/time.Second)
}
