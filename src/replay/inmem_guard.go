package replay

import (
	"container/list"
	"sync"

	"github.com/mosaicnetworks/crosswalk/src/common"
)

type nonceEntry struct {
	nonce   string
	expires int64
}

// InmemGuard is a Guard that keeps nonces in memory, ordered by expiry.
// Expired entries are pruned on every admission. When MaxSize is set the
// entries closest to expiry are dropped first; MaxSize should then be sized
// above the peak number of hops a community receives per retention window,
// or a replay of a dropped nonce would go unnoticed.
type InmemGuard struct {
	conf Config

	mu     sync.Mutex
	items  map[string]*list.Element
	order  *list.List
	closed bool
}

// NewInmemGuard creates an empty InmemGuard.
func NewInmemGuard(conf Config) *InmemGuard {
	return &InmemGuard{
		conf:  conf,
		items: make(map[string]*list.Element),
		order: list.New(),
	}
}

// Admit implements Guard.
func (g *InmemGuard) Admit(nonce string, timestamp, now int64) (Verdict, error) {
	if !Fresh(timestamp, now, g.conf.Tolerance) {
		return StaleOrFutureTimestamp, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return ReplayDetected, common.NewStoreErr("nonce", common.Closed, nonce, nil)
	}

	g.pruneExpiredLocked(now)

	if _, ok := g.items[nonce]; ok {
		return ReplayDetected, nil
	}

	ent := &nonceEntry{
		nonce:   nonce,
		expires: timestamp + g.conf.retention(),
	}

	// Timestamps arrive roughly in order, so the insertion point is almost
	// always the back.
	mark := g.order.Back()
	for mark != nil && mark.Value.(*nonceEntry).expires > ent.expires {
		mark = mark.Prev()
	}
	if mark == nil {
		g.items[nonce] = g.order.PushFront(ent)
	} else {
		g.items[nonce] = g.order.InsertAfter(ent, mark)
	}

	if g.conf.MaxSize > 0 {
		for g.order.Len() > g.conf.MaxSize {
			g.removeLocked(g.order.Front())
		}
	}

	return Accepted, nil
}

// Len returns the number of remembered nonces.
func (g *InmemGuard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.order.Len()
}

// Close implements Guard.
func (g *InmemGuard) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.items = make(map[string]*list.Element)
	g.order.Init()
	g.closed = true
	return nil
}

func (g *InmemGuard) pruneExpiredLocked(now int64) {
	for el := g.order.Front(); el != nil; el = g.order.Front() {
		if el.Value.(*nonceEntry).expires >= now {
			return
		}
		g.removeLocked(el)
	}
}

func (g *InmemGuard) removeLocked(el *list.Element) {
	ent := g.order.Remove(el).(*nonceEntry)
	delete(g.items, ent.nonce)
}
