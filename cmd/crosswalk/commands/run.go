package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/mosaicnetworks/crosswalk/src/config"
	"github.com/mosaicnetworks/crosswalk/src/crosswalk"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

//NewRunCmd returns the command that starts a community process
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run community",
		PreRunE: loadConfig,
		RunE:    runCrosswalk,
	}
	AddRunFlags(cmd)
	return cmd
}

/*******************************************************************************
* RUN
*******************************************************************************/

func runCrosswalk(cmd *cobra.Command, args []string) error {
	engine := crosswalk.NewCrosswalk(_config)

	if err := engine.Init(); err != nil {
		_config.Logger().Error("Cannot initialize engine:", err)
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		_config.Logger().Info("Shutting down")
		engine.Shutdown()
	}()

	return engine.Run()
}

/*******************************************************************************
* CONFIG
*******************************************************************************/

//AddRunFlags adds flags to the Run command
func AddRunFlags(cmd *cobra.Command) {

	cmd.Flags().String("datadir", _config.DataDir, "Top-level directory for configuration and data")
	cmd.Flags().String("log", _config.LogLevel, "debug, info, warn, error, fatal, panic")
	cmd.Flags().String("log-file", _config.LogFile, "Also write logs to <log-file>.<level>")
	cmd.Flags().String("community", _config.Community, "Identity of this community (defaults to the peers.json entry matching the key)")

	// Network
	cmd.Flags().StringP("listen", "l", _config.BindAddr, "Listen IP:Port for hops")
	cmd.Flags().StringP("advertise", "a", _config.AdvertiseAddr, "Advertise IP:Port for hops")
	cmd.Flags().String("transport", _config.Transport, "tcp or quic")
	cmd.Flags().DurationP("timeout", "t", _config.HopTimeout, "Hop round-trip timeout")
	cmd.Flags().Int("max-pool", _config.MaxPool, "Connection pool size max")

	// Service
	cmd.Flags().StringP("service-listen", "s", _config.ServiceAddr, "Listen IP:Port for HTTP service")
	cmd.Flags().Bool("no-service", _config.NoService, "Disable HTTP service")

	// Replay protection
	cmd.Flags().Duration("tolerance", _config.Tolerance, "Freshness window of hop timestamps")
	cmd.Flags().Duration("skew", _config.Skew, "Extra time nonces are remembered for")
	cmd.Flags().String("store", _config.Store, "Nonce store: inmem or badger")
	cmd.Flags().String("db", _config.DatabaseDir, "Badger database directory")
	cmd.Flags().Int("nonce-cache-size", _config.NonceCacheSize, "Max number of nonces held by the inmem store (0: unbounded)")

	// Walks
	cmd.Flags().Int("hop-retries", _config.HopRetries, "Extra attempts after a hop timeout")
	cmd.Flags().Int("max-walk-hops", _config.MaxWalkHops, "Largest hop budget a walk may start with")
	cmd.Flags().StringSlice("tokens", _config.Tokens, "Tokens accepted on incoming hops (default valid_token)")
	cmd.Flags().String("graph", _config.GraphFile, "Edge-list file")
	cmd.Flags().String("communities", _config.CommunitiesFile, "Node-to-community file")
	cmd.Flags().Bool("directed", _config.Directed, "Read the edge list as directed")
	cmd.Flags().Int64("seed", _config.Seed, "Neighbor selection seed (0: from the clock)")
}

func loadConfig(cmd *cobra.Command, args []string) error {

	err := bindFlagsLoadViper(cmd)
	if err != nil {
		return err
	}

	// If --datadir was explicitely set, but not --db, --graph or
	// --communities, this moves them inside the new datadir
	_config.SetDataDir(_config.DataDir)

	_config.SetLogger(newLogger())

	logFields := logrus.Fields{
		"DataDir":         _config.DataDir,
		"Community":       _config.Community,
		"BindAddr":        _config.BindAddr,
		"AdvertiseAddr":   _config.AdvertiseAddr,
		"Transport":       _config.Transport,
		"ServiceAddr":     _config.ServiceAddr,
		"NoService":       _config.NoService,
		"HopTimeout":      _config.HopTimeout,
		"MaxPool":         _config.MaxPool,
		"Tolerance":       _config.Tolerance,
		"Skew":            _config.Skew,
		"HopRetries":      _config.HopRetries,
		"MaxWalkHops":     _config.MaxWalkHops,
		"Store":           _config.Store,
		"GraphFile":       _config.GraphFile,
		"CommunitiesFile": _config.CommunitiesFile,
		"Directed":        _config.Directed,
		"LogLevel":        _config.LogLevel,
	}

	if _config.Store == config.StoreBadger {
		logFields["DatabaseDir"] = _config.DatabaseDir
	} else {
		logFields["NonceCacheSize"] = _config.NonceCacheSize
	}

	_config.Logger().WithFields(logFields).Debug("RUN")

	return nil
}

// Bind all flags and read the config into viper
func bindFlagsLoadViper(cmd *cobra.Command) error {
	// Register flags with viper. Include flags from this command and all other
	// persistent flags from the parent
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// first unmarshal to read from CLI flags
	if err := viper.Unmarshal(_config); err != nil {
		return err
	}

	// look for config file in [datadir]/crosswalk.toml (.json, .yaml also work)
	viper.SetConfigName("crosswalk")
	viper.AddConfigPath(_config.DataDir)

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		_config.Logger().Debugf("Using config file: %s", viper.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		_config.Logger().Debugf("No config file found in: %s", _config.DataDir)
	} else {
		return err
	}

	// second unmarshal to read from config file
	return viper.Unmarshal(_config)
}

// newLogger builds the process logger. With --log-file, every level is also
// written to its own file.
func newLogger() *logrus.Logger {
	logger := logrus.New()
	logger.Level = config.LogLevel(_config.LogLevel)
	logger.Formatter = new(prefixed.TextFormatter)

	if _config.LogFile == "" {
		return logger
	}

	pathMap := lfshook.PathMap{}
	for _, level := range logrus.AllLevels {
		if level > logger.Level {
			continue
		}
		path := _config.LogFile + "." + level.String()

		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			logger.Infof("Failed to open %s, using default stderr", path)
			continue
		}
		f.Close()

		pathMap[level] = path
	}

	logger.Hooks.Add(lfshook.NewHook(
		pathMap,
		&logrus.TextFormatter{},
	))

	return logger
}
