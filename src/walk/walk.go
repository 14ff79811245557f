package walk

import (
	"github.com/mosaicnetworks/crosswalk/src/hop"
)

// WalkIDAttribute is the attribute that carries a walk's identifier across
// communities.
const WalkIDAttribute = "walk_id"

// StartRequest asks a community to start a walk on one of its nodes.
type StartRequest struct {
	StartNode  string            `json:"start_node"`
	MaxHops    int               `json:"max_hops"`
	Token      string            `json:"token"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Walk is the mutable state of a walk while a community drives it.
type Walk struct {
	ID               string
	CurrentNode      string
	CurrentCommunity string
	RemainingHops    int
	Token            string
	Attributes       map[string]string
	Path             []string
	State            State
}

// HopOutcome records the last cross-community hop a community proposed for a
// walk.
type HopOutcome struct {
	From      string     `json:"from"`
	To        string     `json:"to"`
	Community string     `json:"community"`
	Nonce     string     `json:"nonce"`
	Status    hop.Status `json:"status"`
	Reason    hop.Kind   `json:"reason,omitempty"`
	Attempts  int        `json:"attempts"`
}

// Result is how a walk ended. Path includes the nodes visited in other
// communities, as reported in their acknowledgements.
type Result struct {
	WalkID        string      `json:"walk_id"`
	Path          []string    `json:"path"`
	RemainingHops int         `json:"remaining_hops"`
	State         State       `json:"state"`
	Termination   hop.Kind    `json:"termination,omitempty"`
	LastHop       *HopOutcome `json:"last_hop,omitempty"`
}

func (w *Walk) result(termination hop.Kind, last *HopOutcome) *Result {
	path := make([]string, len(w.Path))
	copy(path, w.Path)
	return &Result{
		WalkID:        w.ID,
		Path:          path,
		RemainingHops: w.RemainingHops,
		State:         w.State,
		Termination:   termination,
		LastHop:       last,
	}
}

func copyAttributes(attrs map[string]string) map[string]string {
	res := make(map[string]string, len(attrs))
	for k, v := range attrs {
		res[k] = v
	}
	return res
}
