// Package config defines the configuration of a community process.
//
// Whether a community is started from Go code or from the command line, its
// options travel in the Config object defined here. On top of these options,
// the process relies on a data directory, Config.DataDir, where it expects a
// few more files:
//
//  priv_key        // the community's raw private key (cf. crosswalk keygen).
//  key.pub         // the matching public key, to publish in other peers.json files.
//  peers.json      // the community directory: identity, address and public key of every community.
//  graph.txt       // the edge list, one "from to" pair per line.
//  communities.txt // the owner of every node, one "node community" pair per line.
package config
