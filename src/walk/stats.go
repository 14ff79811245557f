package walk

import (
	"sync"

	"github.com/mosaicnetworks/crosswalk/src/hop"
)

// Stats counts what a coordinator did. Outbound counters concern hops this
// community proposed; inbound counters concern hops it received.
type Stats struct {
	WalksStarted      uint64              `json:"walks_started"`
	LocalSteps        uint64              `json:"local_steps"`
	HopsProposed      uint64              `json:"hops_proposed"`
	HopsAccepted      uint64              `json:"hops_accepted"`
	HopsRetried       uint64              `json:"hops_retried"`
	HopsRejected      map[hop.Kind]uint64 `json:"hops_rejected"`
	HopsReceived      uint64              `json:"hops_received"`
	HopsAdmitted      uint64              `json:"hops_admitted"`
	HopsRefused       map[hop.Kind]uint64 `json:"hops_refused"`
	NoticesReceived   uint64              `json:"notices_received"`
	SignaturesChecked uint64              `json:"signatures_checked"`
}

type stats struct {
	sync.Mutex
	s Stats
}

func newStats() *stats {
	return &stats{
		s: Stats{
			HopsRejected: make(map[hop.Kind]uint64),
			HopsRefused:  make(map[hop.Kind]uint64),
		},
	}
}

func (st *stats) inc(f func(s *Stats)) {
	st.Lock()
	f(&st.s)
	st.Unlock()
}

func (st *stats) snapshot() Stats {
	st.Lock()
	defer st.Unlock()

	res := st.s
	res.HopsRejected = make(map[hop.Kind]uint64, len(st.s.HopsRejected))
	for k, v := range st.s.HopsRejected {
		res.HopsRejected[k] = v
	}
	res.HopsRefused = make(map[hop.Kind]uint64, len(st.s.HopsRefused))
	for k, v := range st.s.HopsRefused {
		res.HopsRefused[k] = v
	}
	return res
}
