package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/mosaicnetworks/crosswalk/src/graph"
	"github.com/mosaicnetworks/crosswalk/src/hop"
	"github.com/mosaicnetworks/crosswalk/src/walk"
	"github.com/sirupsen/logrus"
)

// WalkRequest is the body of POST /walk.
type WalkRequest struct {
	StartNode  string            `json:"start_node"`
	MaxHops    int               `json:"max_hops"`
	Token      string            `json:"token"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// WalkResponse is the answer to POST /walk.
type WalkResponse struct {
	WalkID        string           `json:"walk_id"`
	Path          []string         `json:"path"`
	RemainingHops int              `json:"remaining_hops"`
	State         walk.State       `json:"state"`
	Termination   hop.Kind         `json:"termination,omitempty"`
	LastHop       *walk.HopOutcome `json:"last_hop,omitempty"`
}

// Service serves the client API of a community: starting walks and looking
// at the counters and the directory.
type Service struct {
	bindAddress string
	coordinator *walk.Coordinator
	walkTimeout time.Duration
	mux         *http.ServeMux
	logger      *logrus.Entry

	mu     sync.Mutex
	server *http.Server
	closed bool
}

// NewService creates a Service. walkTimeout bounds a walk started through the
// API; zero means no bound other than the client going away.
func NewService(bindAddress string, c *walk.Coordinator, walkTimeout time.Duration, logger *logrus.Entry) *Service {
	service := Service{
		bindAddress: bindAddress,
		coordinator: c,
		walkTimeout: walkTimeout,
		mux:         http.NewServeMux(),
		logger:      logger,
	}

	service.registerHandlers()

	return &service
}

func (s *Service) registerHandlers() {
	s.logger.Debug("Registering API handlers")
	s.mux.HandleFunc("/walk", s.makeHandler(http.MethodPost, s.PostWalk))
	s.mux.HandleFunc("/stats", s.makeHandler(http.MethodGet, s.GetStats))
	s.mux.HandleFunc("/peers", s.makeHandler(http.MethodGet, s.GetPeers))
}

func (s *Service) makeHandler(method string, fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// enable CORS
		w.Header().Set("Access-Control-Allow-Origin", "*")

		if r.Method != method {
			w.Header().Set("Allow", method)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		fn(w, r)
	}
}

// Handler returns the API handlers.
func (s *Service) Handler() http.Handler {
	return s.mux
}

// Serve listens on the bind address. This is a blocking call that returns
// http.ErrServerClosed after Close.
func (s *Service) Serve() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return http.ErrServerClosed
	}
	s.server = &http.Server{
		Addr:    s.bindAddress,
		Handler: s.mux,
	}
	server := s.server
	s.mu.Unlock()

	s.logger.WithField("bind_address", s.bindAddress).Debug("Serving API")

	err := server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error(err)
	}
	return err
}

// Close stops the server started by Serve, or prevents it from starting.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	if s.server == nil {
		return nil
	}
	return s.server.Close()
}

// PostWalk starts a walk and answers once it has ended.
func (s *Service) PostWalk(w http.ResponseWriter, r *http.Request) {
	var req WalkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.logger.WithError(err).Debug("Decoding walk request")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if s.walkTimeout > 0 {
		var cancel func()
		ctx, cancel = context.WithTimeout(ctx, s.walkTimeout)
		defer cancel()
	}

	res, err := s.coordinator.Start(ctx, walk.StartRequest{
		StartNode:  req.StartNode,
		MaxHops:    req.MaxHops,
		Token:      req.Token,
		Attributes: req.Attributes,
	})
	if res == nil {
		s.logger.WithError(err).WithField("start_node", req.StartNode).Debug("Starting walk")
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(WalkResponse{
		WalkID:        res.WalkID,
		Path:          res.Path,
		RemainingHops: res.RemainingHops,
		State:         res.State,
		Termination:   res.Termination,
		LastHop:       res.LastHop,
	})
}

// GetStats returns the coordinator's counters.
func (s *Service) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := s.coordinator.Stats()

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(stats)
}

// GetPeers returns the community directory.
func (s *Service) GetPeers(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(s.coordinator.Peers().Peers)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, walk.ErrBadHopBudget), errors.Is(err, walk.ErrNotLocal), errors.Is(err, graph.ErrUnknownNode):
		return http.StatusBadRequest
	case errors.Is(err, walk.ErrShutdown):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
