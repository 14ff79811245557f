package replay

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mosaicnetworks/crosswalk/src/common"
	"github.com/sirupsen/logrus"
)

type guardFactory func(t *testing.T, conf Config) Guard

func inmemFactory(t *testing.T, conf Config) Guard {
	return NewInmemGuard(conf)
}

func badgerFactory(t *testing.T, conf Config) Guard {
	g, err := NewBadgerGuard(conf, t.TempDir(), common.NewTestEntry(t, logrus.ErrorLevel))
	if err != nil {
		t.Fatal(err)
	}
	return g
}

var factories = map[string]guardFactory{
	"inmem":  inmemFactory,
	"badger": badgerFactory,
}

func admit(t *testing.T, g Guard, nonce string, ts, now int64) Verdict {
	t.Helper()
	v, err := g.Admit(nonce, ts, now)
	if err != nil {
		t.Fatalf("admit %s: %v", nonce, err)
	}
	return v
}

func TestReplay(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			g := factory(t, DefaultConfig())
			defer g.Close()

			now := time.Now().Unix()

			if v := admit(t, g, "0123456789abcdef", now, now); v != Accepted {
				t.Fatalf("first admission should be Accepted, not %s", v)
			}
			if v := admit(t, g, "0123456789abcdef", now, now); v != ReplayDetected {
				t.Fatalf("second admission should be ReplayDetected, not %s", v)
			}
			if v := admit(t, g, "fedcba9876543210", now, now); v != Accepted {
				t.Fatalf("other nonce should be Accepted, not %s", v)
			}
		})
	}
}

func TestTimestampBoundary(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			g := factory(t, DefaultConfig())
			defer g.Close()

			now := time.Now().Unix()
			tol := int64(DefaultTolerance / time.Second)

			cases := []struct {
				nonce    string
				ts       int64
				expected Verdict
			}{
				{"a000000000000001", now - tol, Accepted},
				{"a000000000000002", now + tol, Accepted},
				{"a000000000000003", now - tol - 1, StaleOrFutureTimestamp},
				{"a000000000000004", now + tol + 1, StaleOrFutureTimestamp},
			}

			for _, c := range cases {
				if v := admit(t, g, c.nonce, c.ts, now); v != c.expected {
					t.Fatalf("timestamp now%+d should be %s, not %s", c.ts-now, c.expected, v)
				}
			}

			// A stale message is refused before its nonce is looked at, and
			// its nonce is not recorded.
			if v := admit(t, g, "a000000000000003", now, now); v != Accepted {
				t.Fatalf("nonce of a stale message should not be recorded, got %s", v)
			}
		})
	}
}

func TestConcurrentAdmission(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			g := factory(t, DefaultConfig())
			defer g.Close()

			const n = 50
			now := time.Now().Unix()

			var wg sync.WaitGroup
			verdicts := make(chan Verdict, n)
			start := make(chan struct{})

			for i := 0; i < n; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					<-start
					v, err := g.Admit("c0ffee0000000000", now, now)
					if err != nil {
						t.Error(err)
					}
					verdicts <- v
				}()
			}
			close(start)
			wg.Wait()
			close(verdicts)

			accepted, replays := 0, 0
			for v := range verdicts {
				switch v {
				case Accepted:
					accepted++
				case ReplayDetected:
					replays++
				}
			}

			if accepted != 1 || replays != n-1 {
				t.Fatalf("expected 1 Accepted and %d ReplayDetected, got %d and %d", n-1, accepted, replays)
			}
		})
	}
}

func TestInmemEviction(t *testing.T) {
	conf := DefaultConfig()
	g := NewInmemGuard(conf)

	now := int64(1700000000)
	retention := int64((conf.Tolerance + conf.Skew) / time.Second)

	for i := 0; i < 10; i++ {
		admit(t, g, fmt.Sprintf("%016x", i), now, now)
	}
	if g.Len() != 10 {
		t.Fatalf("guard should hold 10 nonces, not %d", g.Len())
	}

	// Still inside the retention window: nothing is pruned
	admit(t, g, "b000000000000000", now+retention, now+retention)
	if g.Len() != 11 {
		t.Fatalf("guard should hold 11 nonces, not %d", g.Len())
	}

	// One second later the first batch has expired
	admit(t, g, "b000000000000001", now+retention+1, now+retention+1)
	if g.Len() != 2 {
		t.Fatalf("guard should hold 2 nonces after pruning, not %d", g.Len())
	}
}

func TestInmemMaxSize(t *testing.T) {
	conf := DefaultConfig()
	conf.MaxSize = 5
	g := NewInmemGuard(conf)

	now := int64(1700000000)

	// Out of order timestamps: the earliest expiring entries go first
	for i := 0; i < 8; i++ {
		ts := now - int64(i%3)
		admit(t, g, fmt.Sprintf("%016x", i), ts, now)
	}

	if g.Len() != 5 {
		t.Fatalf("guard should hold 5 nonces, not %d", g.Len())
	}

	// Nonces stamped now are the latest expiring and must still be known
	for _, i := range []int{0, 3, 6} {
		if v := admit(t, g, fmt.Sprintf("%016x", i), now, now); v != ReplayDetected {
			t.Fatalf("nonce %d should still be remembered, got %s", i, v)
		}
	}
}

func TestBadgerGuardReopen(t *testing.T) {
	dir := t.TempDir()
	logger := common.NewTestEntry(t, logrus.ErrorLevel)
	now := time.Now().Unix()

	g, err := NewBadgerGuard(DefaultConfig(), dir, logger)
	if err != nil {
		t.Fatal(err)
	}
	if v := admit(t, g, "d00d000000000000", now, now); v != Accepted {
		t.Fatalf("first admission should be Accepted, not %s", v)
	}
	if err := g.Close(); err != nil {
		t.Fatal(err)
	}

	g, err = NewBadgerGuard(DefaultConfig(), dir, logger)
	if err != nil {
		t.Fatal(err)
	}
	defer g.Close()

	if v := admit(t, g, "d00d000000000000", now, now); v != ReplayDetected {
		t.Fatalf("admission after restart should be ReplayDetected, not %s", v)
	}
}

func TestVerdictKind(t *testing.T) {
	if Accepted.Kind() != "" {
		t.Fatalf("Accepted has no rejection kind")
	}
	if StaleOrFutureTimestamp.Kind() != "StaleOrFutureTimestamp" {
		t.Fatalf("unexpected kind %s", StaleOrFutureTimestamp.Kind())
	}
	if ReplayDetected.Kind() != "ReplayDetected" {
		t.Fatalf("unexpected kind %s", ReplayDetected.Kind())
	}
}

func TestAdmitAfterClose(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			g := factory(t, DefaultConfig())
			if err := g.Close(); err != nil {
				t.Fatal(err)
			}

			now := time.Now().Unix()
			v, err := g.Admit("0123456789abcdef", now, now)
			if !common.IsStore(err, common.Closed) {
				t.Fatalf("admission after Close should fail with a Closed store error, got %v", err)
			}
			if v != ReplayDetected {
				t.Fatalf("a failed admission should not be Accepted, got %s", v)
			}
		})
	}
}
