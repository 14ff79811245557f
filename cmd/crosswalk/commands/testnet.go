package commands

import (
	"fmt"
	"path/filepath"

	"github.com/mosaicnetworks/crosswalk/src/config"
	"github.com/mosaicnetworks/crosswalk/src/crosswalk"
	"github.com/mosaicnetworks/crosswalk/src/crypto/keys"
	"github.com/mosaicnetworks/crosswalk/src/graph"
	"github.com/mosaicnetworks/crosswalk/src/peers"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type testnetConfig struct {
	Dir             string
	GraphFile       string
	CommunitiesFile string
	Directed        bool
	Transport       string
	Host            string
	BasePort        int
	ServiceBasePort int
}

var _testnet = testnetConfig{
	Dir:             "testnet",
	Directed:        config.DefaultDirected,
	Transport:       config.DefaultTransport,
	Host:            "127.0.0.1",
	BasePort:        1337,
	ServiceBasePort: 8000,
}

// NewTestnetCmd produces a TestnetCmd which prepares one data directory per
// community of a graph
func NewTestnetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "testnet",
		Short: "Create the data directories of a local network of communities",
		RunE: func(cmd *cobra.Command, args []string) error {
			dirs, err := buildTestnet(_testnet)
			if err != nil {
				return err
			}
			for _, d := range dirs {
				fmt.Printf("crosswalk run --datadir %s\n", d)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&_testnet.Dir, "dir", _testnet.Dir, "Directory under which each community gets its datadir")
	cmd.Flags().StringVar(&_testnet.GraphFile, "graph", _testnet.GraphFile, "Edge-list file")
	cmd.Flags().StringVar(&_testnet.CommunitiesFile, "communities", _testnet.CommunitiesFile, "Node-to-community file")
	cmd.Flags().BoolVar(&_testnet.Directed, "directed", _testnet.Directed, "Read the edge list as directed")
	cmd.Flags().StringVar(&_testnet.Transport, "transport", _testnet.Transport, "tcp or quic")
	cmd.Flags().StringVar(&_testnet.Host, "host", _testnet.Host, "Host every community listens on")
	cmd.Flags().IntVar(&_testnet.BasePort, "base-port", _testnet.BasePort, "Hop port of the first community; the others follow")
	cmd.Flags().IntVar(&_testnet.ServiceBasePort, "service-base-port", _testnet.ServiceBasePort, "HTTP port of the first community; the others follow")

	cmd.MarkFlagRequired("graph")
	cmd.MarkFlagRequired("communities")

	return cmd
}

// buildTestnet writes, for every community of the graph, a datadir holding a
// fresh key pair, the shared peers.json and a crosswalk.toml. It returns the
// datadirs.
func buildTestnet(tc testnetConfig) ([]string, error) {
	graphFile, err := filepath.Abs(tc.GraphFile)
	if err != nil {
		return nil, err
	}
	communitiesFile, err := filepath.Abs(tc.CommunitiesFile)
	if err != nil {
		return nil, err
	}

	g, err := graph.LoadFiles(graphFile, communitiesFile, tc.Directed)
	if err != nil {
		return nil, err
	}

	communities := g.Communities()
	if len(communities) == 0 {
		return nil, fmt.Errorf("%s assigns no node to any community", communitiesFile)
	}

	dirs := make([]string, len(communities))
	peerList := make([]*peers.Peer, len(communities))

	for i, id := range communities {
		dir := filepath.Join(tc.Dir, id)
		listen := fmt.Sprintf("%s:%d", tc.Host, tc.BasePort+i)

		key, err := crosswalk.Keygen(
			filepath.Join(dir, config.DefaultKeyfile),
			filepath.Join(dir, config.DefaultPubKeyfile),
		)
		if err != nil {
			return nil, err
		}

		v := viper.New()
		v.Set("community", id)
		v.Set("listen", listen)
		v.Set("service-listen", fmt.Sprintf("%s:%d", tc.Host, tc.ServiceBasePort+i))
		v.Set("transport", tc.Transport)
		v.Set("graph", graphFile)
		v.Set("communities", communitiesFile)
		v.Set("directed", tc.Directed)

		if err := v.WriteConfigAs(filepath.Join(dir, "crosswalk.toml")); err != nil {
			return nil, err
		}

		dirs[i] = dir
		peerList[i] = peers.NewPeer(id, keys.PublicKeyHex(&key.PublicKey), listen)
	}

	for _, dir := range dirs {
		if err := peers.NewJSONPeerSet(dir).Write(peerList); err != nil {
			return nil, err
		}
	}

	return dirs, nil
}
