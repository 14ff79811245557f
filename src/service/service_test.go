package service

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mosaicnetworks/crosswalk/src/common"
	"github.com/mosaicnetworks/crosswalk/src/crypto/keys"
	"github.com/mosaicnetworks/crosswalk/src/graph"
	"github.com/mosaicnetworks/crosswalk/src/hop"
	"github.com/mosaicnetworks/crosswalk/src/net"
	"github.com/mosaicnetworks/crosswalk/src/peers"
	"github.com/mosaicnetworks/crosswalk/src/replay"
	"github.com/mosaicnetworks/crosswalk/src/walk"
)

// 1 -> 2 -> 3, all in CommunityA
func newTestService(t *testing.T) *Service {
	key, err := keys.GenerateECDSAKey()
	if err != nil {
		t.Fatal(err)
	}

	addr, trans := net.NewInmemTransport("", time.Second)

	peerSet, err := peers.NewPeerSet([]*peers.Peer{
		peers.NewPeer("CommunityA", keys.PublicKeyHex(&key.PublicKey), addr),
	})
	if err != nil {
		t.Fatal(err)
	}

	g := graph.NewInmemGraph()
	for _, n := range []string{"1", "2", "3"} {
		if err := g.SetOwner(n, "CommunityA"); err != nil {
			t.Fatal(err)
		}
	}
	g.AddEdge("1", "2")
	g.AddEdge("2", "3")

	logger := common.NewTestEntry(t, common.TestLogLevel)

	coord := walk.NewCoordinator(
		walk.DefaultConfig(),
		walk.NewCommunity("CommunityA", key),
		peerSet,
		g,
		replay.NewInmemGuard(replay.DefaultConfig()),
		trans,
		nil,
		walk.FirstSelector{},
		logger,
	)
	coord.RunAsync()
	t.Cleanup(coord.Shutdown)

	return NewService("", coord, time.Second, logger)
}

func postWalk(t *testing.T, s *Service, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/walk", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestPostWalk(t *testing.T) {
	s := newTestService(t)

	rec := postWalk(t, s, `{"start_node":"1","max_hops":5,"token":"valid_token"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status should be 200, not %d: %s", rec.Code, rec.Body.String())
	}

	var res WalkResponse
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}

	if len(res.Path) != 3 || res.Path[2] != "3" {
		t.Fatalf("path should be [1 2 3], not %v", res.Path)
	}
	if res.RemainingHops != 3 {
		t.Fatalf("remaining hops should be 3, not %d", res.RemainingHops)
	}
	if res.State != walk.Terminated || res.Termination != hop.NoCandidateNeighbor {
		t.Fatalf("unexpected end %s/%s", res.State, res.Termination)
	}
}

func TestPostWalkErrors(t *testing.T) {
	s := newTestService(t)

	cases := []struct {
		body string
		code int
	}{
		{`{"start_node":"1","max_hops":0}`, http.StatusBadRequest},
		{`{"start_node":"42","max_hops":3}`, http.StatusBadRequest},
		{`not json`, http.StatusBadRequest},
	}
	for _, c := range cases {
		rec := postWalk(t, s, c.body)
		if rec.Code != c.code {
			t.Fatalf("%s: status should be %d, not %d", c.body, c.code, rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/walk", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET /walk should not be allowed, got %d", rec.Code)
	}
}

func TestGetStatsAndPeers(t *testing.T) {
	s := newTestService(t)
	postWalk(t, s, `{"start_node":"1","max_hops":5,"token":"valid_token"}`)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))

	var stats walk.Stats
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatal(err)
	}
	if stats.WalksStarted != 1 || stats.LocalSteps != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/peers", nil))

	var ps []*peers.Peer
	if err := json.NewDecoder(rec.Body).Decode(&ps); err != nil {
		t.Fatal(err)
	}
	if len(ps) != 1 || ps[0].Community != "CommunityA" {
		t.Fatalf("unexpected peers %+v", ps)
	}
}

func TestServeAfterClose(t *testing.T) {
	s := newTestService(t)

	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Serve(); err != http.ErrServerClosed {
		t.Fatalf("Serve after Close should return ErrServerClosed, got %v", err)
	}
}
