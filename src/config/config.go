package config

import (
	"crypto/ecdsa"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/mosaicnetworks/crosswalk/src/common"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// Default filenames.
const (
	// DefaultKeyfile is the default name of the file containing the
	// community's private key
	DefaultKeyfile = "priv_key"

	// DefaultPubKeyfile is the default name of the file containing the
	// community's public key, as written by keygen
	DefaultPubKeyfile = "key.pub"

	// DefaultBadgerFile is the default name of the folder containing the Badger
	// nonce database
	DefaultBadgerFile = "badger_db"

	// DefaultGraphFile is the default name of the edge-list file
	DefaultGraphFile = "graph.txt"

	// DefaultCommunitiesFile is the default name of the node-to-community
	// assignment file
	DefaultCommunitiesFile = "communities.txt"
)

// Transports
const (
	TCP  = "tcp"
	QUIC = "quic"
)

// Nonce stores
const (
	StoreInmem  = "inmem"
	StoreBadger = "badger"
)

// Default configuration values.
const (
	DefaultLogLevel       = "debug"
	DefaultBindAddr       = "127.0.0.1:1337"
	DefaultServiceAddr    = "127.0.0.1:8000"
	DefaultTransport      = TCP
	DefaultHopTimeout     = 5000 * time.Millisecond
	DefaultMaxPool        = 2
	DefaultTolerance      = 30 * time.Second
	DefaultSkew           = 5 * time.Second
	DefaultHopRetries     = 0
	DefaultStore          = StoreInmem
	DefaultNonceCacheSize = 100000
	DefaultMaxWalkHops    = 1000
	DefaultSeed           = 0
	DefaultDirected       = false
)

// Config contains all the configuration properties of a community process.
type Config struct {
	// DataDir is the top-level directory containing the key, the peers file,
	// the graph files and the nonce database.
	DataDir string `mapstructure:"datadir"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// LogFile, when set, also writes each log level to <LogFile>.<level>.
	LogFile string `mapstructure:"log-file"`

	// Community is the identity of this community. It must appear in
	// peers.json with the public key matching priv_key.
	Community string `mapstructure:"community"`

	// BindAddr is the local address:port where hops from other communities
	// are received.
	BindAddr string `mapstructure:"listen"`

	// AdvertiseAddr is used to change the address that we advertise to other
	// communities.
	AdvertiseAddr string `mapstructure:"advertise"`

	// Transport selects the stream layer: tcp or quic.
	Transport string `mapstructure:"transport"`

	// NoService disables the HTTP API service.
	NoService bool `mapstructure:"no-service"`

	// ServiceAddr is the address:port of the HTTP service.
	ServiceAddr string `mapstructure:"service-listen"`

	// HopTimeout bounds one cross-community round trip.
	HopTimeout time.Duration `mapstructure:"timeout"`

	// MaxPool controls how many connections are pooled per target.
	MaxPool int `mapstructure:"max-pool"`

	// Tolerance is the freshness window applied to hop timestamps.
	Tolerance time.Duration `mapstructure:"tolerance"`

	// Skew is kept on top of Tolerance before a nonce is forgotten.
	Skew time.Duration `mapstructure:"skew"`

	// HopRetries is the number of extra attempts after a transport timeout.
	HopRetries int `mapstructure:"hop-retries"`

	// MaxWalkHops caps the hop budget of walks started here.
	MaxWalkHops int `mapstructure:"max-walk-hops"`

	// Store selects the nonce store: inmem or badger.
	Store string `mapstructure:"store"`

	// DatabaseDir is the directory containing the badger nonce database.
	DatabaseDir string `mapstructure:"db"`

	// NonceCacheSize caps the in-memory nonce store. Zero means unbounded.
	NonceCacheSize int `mapstructure:"nonce-cache-size"`

	// Tokens is the set of authorization tokens accepted on incoming hops.
	Tokens []string `mapstructure:"tokens"`

	// GraphFile is the edge list of the graph.
	GraphFile string `mapstructure:"graph"`

	// CommunitiesFile assigns every node to a community.
	CommunitiesFile string `mapstructure:"communities"`

	// Directed loads the edge list as directed edges.
	Directed bool `mapstructure:"directed"`

	// Seed seeds the neighbor selector. Zero seeds it from the clock.
	Seed int64 `mapstructure:"seed"`

	// Key is the private key of the community.
	Key *ecdsa.PrivateKey

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values.
func NewDefaultConfig() *Config {
	config := &Config{
		DataDir:         DefaultDataDir(),
		LogLevel:        DefaultLogLevel,
		BindAddr:        DefaultBindAddr,
		ServiceAddr:     DefaultServiceAddr,
		Transport:       DefaultTransport,
		HopTimeout:      DefaultHopTimeout,
		MaxPool:         DefaultMaxPool,
		Tolerance:       DefaultTolerance,
		Skew:            DefaultSkew,
		HopRetries:      DefaultHopRetries,
		MaxWalkHops:     DefaultMaxWalkHops,
		Store:           DefaultStore,
		DatabaseDir:     DefaultDatabaseDir(),
		NonceCacheSize:  DefaultNonceCacheSize,
		GraphFile:       filepath.Join(DefaultDataDir(), DefaultGraphFile),
		CommunitiesFile: filepath.Join(DefaultDataDir(), DefaultCommunitiesFile),
		Directed:        DefaultDirected,
		Seed:            DefaultSeed,
	}

	return config
}

// NewTestConfig returns a config object with default values and a special
// logger for debugging tests.
func NewTestConfig(t testing.TB, level logrus.Level) *Config {
	config := NewDefaultConfig()
	config.logger = common.NewTestLogger(t, level)
	return config
}

// SetDataDir sets the top-level directory, and updates the paths that still
// point inside the default one. Paths the user has explicitly set are left
// alone.
func (c *Config) SetDataDir(dataDir string) {
	c.DataDir = dataDir
	if c.DatabaseDir == DefaultDatabaseDir() {
		c.DatabaseDir = filepath.Join(dataDir, DefaultBadgerFile)
	}
	if c.GraphFile == filepath.Join(DefaultDataDir(), DefaultGraphFile) {
		c.GraphFile = filepath.Join(dataDir, DefaultGraphFile)
	}
	if c.CommunitiesFile == filepath.Join(DefaultDataDir(), DefaultCommunitiesFile) {
		c.CommunitiesFile = filepath.Join(dataDir, DefaultCommunitiesFile)
	}
}

// Keyfile returns the full path of the file containing the private key.
func (c *Config) Keyfile() string {
	return filepath.Join(c.DataDir, DefaultKeyfile)
}

// PubKeyfile returns the full path of the file containing the public key.
func (c *Config) PubKeyfile() string {
	return filepath.Join(c.DataDir, DefaultPubKeyfile)
}

// SetLogger replaces the logger returned by Logger.
func (c *Config) SetLogger(logger *logrus.Logger) {
	c.logger = logger
}

// Logger returns a formatted logrus Entry, with prefix set to "crosswalk".
func (c *Config) Logger() *logrus.Entry {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)
	}
	return c.logger.WithField("prefix", "crosswalk")
}

// DefaultDatabaseDir returns the default path for the badger database files.
func DefaultDatabaseDir() string {
	return filepath.Join(DefaultDataDir(), DefaultBadgerFile)
}

// DefaultDataDir return the default directory name for the top-level config
// based on the underlying OS, attempting to respect conventions.
func DefaultDataDir() string {
	home := HomeDir()
	if home != "" {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, ".Crosswalk")
		} else if runtime.GOOS == "windows" {
			return filepath.Join(home, "AppData", "Roaming", "Crosswalk")
		} else {
			return filepath.Join(home, ".crosswalk")
		}
	}
	// As we cannot guess a stable location, return empty and handle later
	return ""
}

// HomeDir returns the user's home directory.
func HomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

// LogLevel parses a string into a Logrus log level.
func LogLevel(l string) logrus.Level {
	switch l {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.DebugLevel
	}
}
