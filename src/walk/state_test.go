package walk

import (
	"encoding/json"
	"testing"

	"github.com/mosaicnetworks/crosswalk/src/hop"
)

func TestStateFor(t *testing.T) {
	cases := map[hop.Kind]State{
		hop.UnknownOrigin:          RejectedAuth,
		hop.BadSignature:           RejectedAuth,
		hop.StaleOrFutureTimestamp: RejectedTimestamp,
		hop.ReplayDetected:         RejectedReplay,
		hop.InvalidToken:           RejectedTokenInvalid,
		hop.HopBudgetExhausted:     RejectedHopBudget,
		hop.TransportTimeout:       RejectedTransport,
		hop.MalformedMessage:       RejectedMalformed,
		hop.NoCandidateNeighbor:    Terminated,
	}
	for kind, want := range cases {
		if got := StateFor(kind); got != want {
			t.Fatalf("StateFor(%s) should be %s, not %s", kind, want, got)
		}
	}
}

func TestStateText(t *testing.T) {
	for s := Local; s <= Terminated; s++ {
		p, err := ParseState(s.String())
		if err != nil {
			t.Fatal(err)
		}
		if p != s {
			t.Fatalf("parsed %s as %s", s, p)
		}
	}

	if _, err := ParseState("Wandering"); err == nil {
		t.Fatalf("unknown state should not parse")
	}

	data, err := json.Marshal(struct{ S State }{RejectedReplay})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"S":"RejectedReplay"}` {
		t.Fatalf("unexpected encoding %s", data)
	}
}

func TestStateFinal(t *testing.T) {
	if Local.IsFinal() || ProposingHop.IsFinal() || AwaitingVerification.IsFinal() || Accepted.IsFinal() {
		t.Fatalf("in-progress states should not be final")
	}
	if !Terminated.IsFinal() || !RejectedTransport.IsFinal() {
		t.Fatalf("terminal states should be final")
	}
	if Terminated.IsRejected() {
		t.Fatalf("Terminated is not a rejection")
	}
}

func TestSelectors(t *testing.T) {
	candidates := []string{"a", "b", "c", "d"}

	if got := (FirstSelector{}).Select(candidates); got != "a" {
		t.Fatalf("FirstSelector should pick a, not %s", got)
	}

	s1, s2 := NewRandomSelector(7), NewRandomSelector(7)
	for i := 0; i < 20; i++ {
		x, y := s1.Select(candidates), s2.Select(candidates)
		if x != y {
			t.Fatalf("same seed should give the same choices")
		}
	}
}

func TestStaticTokenPolicy(t *testing.T) {
	p := NewStaticTokenPolicy()
	if !p.Allow(DefaultToken) || p.Allow("bad_token") {
		t.Fatalf("default policy should accept only %s", DefaultToken)
	}

	p = NewStaticTokenPolicy("t1", "t2")
	if !p.Allow("t2") || p.Allow(DefaultToken) {
		t.Fatalf("explicit tokens should replace the default")
	}
}
