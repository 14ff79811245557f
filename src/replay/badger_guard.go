package replay

import (
	"encoding/binary"
	"errors"
	"sync"
	"time"

	"github.com/dgraph-io/badger"
	"github.com/mosaicnetworks/crosswalk/src/common"
	"github.com/sirupsen/logrus"
)

const noncePrefix = "nonce_"

// BadgerGuard is a Guard backed by a Badger database. Every nonce is written
// with a TTL covering its retention window, so Badger expires it on its own,
// and the set survives restarts.
type BadgerGuard struct {
	conf Config
	db   *badger.DB
	path string

	// serialises the read-then-write of Admit
	mu     sync.Mutex
	closed bool
}

// NewBadgerGuard opens the database in path, creating it if necessary.
func NewBadgerGuard(conf Config, path string, logger *logrus.Entry) (*BadgerGuard, error) {
	opts := badger.DefaultOptions(path).
		WithSyncWrites(false).
		WithTruncate(true)

	if logger != nil {
		opts = opts.WithLogger(logger.WithField("ns", "badger"))
	} else {
		opts = opts.WithLogger(nil)
	}

	handle, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &BadgerGuard{
		conf: conf,
		db:   handle,
		path: path,
	}, nil
}

// Admit implements Guard.
func (g *BadgerGuard) Admit(nonce string, timestamp, now int64) (Verdict, error) {
	if !Fresh(timestamp, now, g.conf.Tolerance) {
		return StaleOrFutureTimestamp, nil
	}

	key := []byte(noncePrefix + nonce)
	ttl := time.Duration(timestamp+g.conf.retention()-now) * time.Second
	if ttl < time.Second {
		ttl = time.Second
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return ReplayDetected, common.NewStoreErr("nonce", common.Closed, nonce, nil)
	}

	verdict := Accepted
	err := g.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		switch {
		case err == nil:
			verdict = ReplayDetected
			return nil
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}
		e := badger.NewEntry(key, encodeTimestamp(timestamp)).WithTTL(ttl)
		return txn.SetEntry(e)
	})
	if err != nil {
		return ReplayDetected, common.NewStoreErr("nonce", common.Unavailable, nonce, err)
	}

	return verdict, nil
}

// Path returns the database directory.
func (g *BadgerGuard) Path() string {
	return g.path
}

// Close implements Guard.
func (g *BadgerGuard) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil
	}
	g.closed = true
	return g.db.Close()
}

func encodeTimestamp(ts int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(ts))
	return b
}
