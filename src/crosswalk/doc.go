// Package crosswalk assembles a community process from its configuration.
//
// Init reads the private key, peers.json and the graph files from the data
// directory, opens the nonce store (in memory or badger) and the transport
// (TCP or QUIC), then creates the walk coordinator and the HTTP service. Run
// serves hops from other communities until Shutdown.
package crosswalk
