package crosswalk

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mosaicnetworks/crosswalk/src/config"
	"github.com/mosaicnetworks/crosswalk/src/crypto/keys"
	"github.com/mosaicnetworks/crosswalk/src/graph"
	"github.com/mosaicnetworks/crosswalk/src/net"
	"github.com/mosaicnetworks/crosswalk/src/peers"
	"github.com/mosaicnetworks/crosswalk/src/replay"
	"github.com/mosaicnetworks/crosswalk/src/service"
	"github.com/mosaicnetworks/crosswalk/src/walk"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Crosswalk is a community process: the coordinator with everything it needs
// around it.
type Crosswalk struct {
	Config      *config.Config
	Peers       *peers.PeerSet
	Graph       graph.Graph
	Guard       replay.Guard
	Transport   net.Transport
	Coordinator *walk.Coordinator
	Service     *service.Service

	logger *logrus.Entry
}

// NewCrosswalk creates an engine. Peers and Graph may be set before Init to
// skip loading them from the data directory.
func NewCrosswalk(c *config.Config) *Crosswalk {
	engine := &Crosswalk{
		Config: c,
		logger: c.Logger(),
	}

	return engine
}

// Init loads the key, the directory and the graph, opens the nonce store and
// the transport, and creates the coordinator and the service.
func (c *Crosswalk) Init() error {
	if err := c.initKey(); err != nil {
		return err
	}

	if err := c.initPeers(); err != nil {
		return err
	}

	if err := c.initCommunity(); err != nil {
		return err
	}

	if err := c.initGraph(); err != nil {
		return err
	}

	if err := c.initGuard(); err != nil {
		return err
	}

	if err := c.initTransport(); err != nil {
		return err
	}

	c.initCoordinator()

	c.initService()

	return nil
}

// Run serves the API, if any, and consumes hops until Shutdown. If the API
// server fails, the whole engine is shut down and its error returned.
func (c *Crosswalk) Run() error {
	var g errgroup.Group

	if c.Service != nil {
		g.Go(func() error {
			err := c.Service.Serve()
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			c.Shutdown()
			return err
		})
	}

	g.Go(func() error {
		c.Coordinator.Run()
		return nil
	})

	return g.Wait()
}

// RunAsync runs the engine in a background goroutine.
func (c *Crosswalk) RunAsync() {
	go func() {
		if err := c.Run(); err != nil {
			c.logger.WithError(err).Error("Engine stopped")
		}
	}()
}

// Shutdown stops the service and the coordinator. The coordinator closes the
// transport and the nonce store.
func (c *Crosswalk) Shutdown() {
	if c.Service != nil {
		c.Service.Close()
	}
	if c.Coordinator != nil {
		c.Coordinator.Shutdown()
	}
}

func (c *Crosswalk) initKey() error {
	if c.Config.Key != nil {
		return nil
	}

	keyfile := keys.NewSimpleKeyfile(c.Config.Keyfile())

	key, err := keyfile.ReadKey()
	if err != nil {
		return fmt.Errorf("reading private key from %s: %w", keyfile.Path(), err)
	}

	c.Config.Key = key

	return nil
}

func (c *Crosswalk) initPeers() error {
	if c.Peers != nil {
		return nil
	}

	peerStore := peers.NewJSONPeerSet(c.Config.DataDir)

	peerSet, err := peerStore.PeerSet()
	if err != nil {
		return err
	}

	c.Peers = peerSet

	return nil
}

// initCommunity resolves the local identity, from the config or else from
// the directory entry carrying our public key, and checks that the two agree.
func (c *Crosswalk) initCommunity() error {
	pub := keys.PublicKeyHex(&c.Config.Key.PublicKey)

	if c.Config.Community == "" {
		for _, p := range c.Peers.Peers {
			if strings.EqualFold(p.PubKeyHex, pub) {
				c.Config.Community = p.Community
				break
			}
		}
		if c.Config.Community == "" {
			return fmt.Errorf("cannot find own public key in peers.json")
		}
	}

	self, ok := c.Peers.ByCommunity[c.Config.Community]
	if !ok {
		return fmt.Errorf("%w: %s is not in peers.json", peers.ErrUnknownCommunity, c.Config.Community)
	}
	if !strings.EqualFold(self.PubKeyHex, pub) {
		return fmt.Errorf("public key of %s in peers.json does not match the private key", c.Config.Community)
	}

	c.logger = c.logger.WithField("community", c.Config.Community)

	c.logger.WithFields(logrus.Fields{
		"communities": c.Peers.Identities(),
	}).Debug("Directory")

	return nil
}

func (c *Crosswalk) initGraph() error {
	if c.Graph != nil {
		return nil
	}

	g, err := graph.LoadFiles(c.Config.GraphFile, c.Config.CommunitiesFile, c.Config.Directed)
	if err != nil {
		return err
	}

	owned := g.NodesOf(c.Config.Community)
	if owned == 0 {
		c.logger.Warn("This community owns no node of the graph")
	}

	c.logger.WithFields(logrus.Fields{
		"graph": c.Config.GraphFile,
		"owned": owned,
	}).Debug("Loaded graph")

	c.Graph = g

	return nil
}

func (c *Crosswalk) initGuard() error {
	conf := replay.Config{
		Tolerance: c.Config.Tolerance,
		Skew:      c.Config.Skew,
		MaxSize:   c.Config.NonceCacheSize,
	}

	switch c.Config.Store {
	case config.StoreInmem, "":
		c.Guard = replay.NewInmemGuard(conf)
		c.logger.Debug("Created in-memory nonce store")
	case config.StoreBadger:
		c.logger.WithField("path", c.Config.DatabaseDir).Debug("Opening badger nonce store")
		guard, err := replay.NewBadgerGuard(conf, c.Config.DatabaseDir, c.logger)
		if err != nil {
			return err
		}
		c.Guard = guard
	default:
		return fmt.Errorf("unknown store %q", c.Config.Store)
	}

	return nil
}

func (c *Crosswalk) initTransport() error {
	var (
		trans net.Transport
		err   error
	)

	switch c.Config.Transport {
	case config.TCP, "":
		trans, err = net.NewTCPTransport(
			c.Config.BindAddr,
			c.Config.AdvertiseAddr,
			c.Config.MaxPool,
			c.Config.HopTimeout,
			c.logger,
		)
	case config.QUIC:
		trans, err = net.NewQUICTransport(
			c.Config.BindAddr,
			c.Config.AdvertiseAddr,
			c.Config.MaxPool,
			c.Config.HopTimeout,
			c.logger,
		)
	default:
		err = fmt.Errorf("unknown transport %q", c.Config.Transport)
	}
	if err != nil {
		c.closeGuard()
		return err
	}

	if self := c.Peers.ByCommunity[c.Config.Community]; self.NetAddr != trans.AdvertiseAddr() {
		c.logger.WithFields(logrus.Fields{
			"advertise": trans.AdvertiseAddr(),
			"peers":     self.NetAddr,
		}).Warn("Advertised address differs from peers.json")
	}

	c.Transport = trans

	return nil
}

func (c *Crosswalk) closeGuard() {
	if err := c.Guard.Close(); err != nil {
		c.logger.WithError(err).Error("Closing nonce store")
	}
}

func (c *Crosswalk) initCoordinator() {
	conf := walk.DefaultConfig()
	conf.HopTimeout = c.Config.HopTimeout
	conf.HopRetries = c.Config.HopRetries
	conf.MaxWalkHops = c.Config.MaxWalkHops

	seed := c.Config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	c.Coordinator = walk.NewCoordinator(
		conf,
		walk.NewCommunity(c.Config.Community, c.Config.Key),
		c.Peers,
		c.Graph,
		c.Guard,
		c.Transport,
		walk.NewStaticTokenPolicy(c.Config.Tokens...),
		walk.NewRandomSelector(seed),
		c.logger,
	)
}

func (c *Crosswalk) initService() {
	if !c.Config.NoService {
		c.Service = service.NewService(c.Config.ServiceAddr, c.Coordinator, 0, c.logger)
	}
}

// Keygen writes a new private key to privFile and its public key, in hex, to
// pubFile. An existing private key is never overwritten.
func Keygen(privFile, pubFile string) (*ecdsa.PrivateKey, error) {
	if _, err := os.Stat(privFile); err == nil {
		return nil, fmt.Errorf("a key already lives under: %s", filepath.Dir(privFile))
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	key, err := keys.GenerateECDSAKey()
	if err != nil {
		return nil, fmt.Errorf("generating key: %w", err)
	}

	if err := keys.NewSimpleKeyfile(privFile).WriteKey(key); err != nil {
		return nil, fmt.Errorf("writing private key: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(pubFile), 0700); err != nil {
		return nil, fmt.Errorf("writing public key: %w", err)
	}

	if err := os.WriteFile(pubFile, []byte(keys.PublicKeyHex(&key.PublicKey)), 0600); err != nil {
		return nil, fmt.Errorf("writing public key: %w", err)
	}

	return key, nil
}
