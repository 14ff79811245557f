// Package peers implements the directory of communities a process trusts.
//
// A community is identified by a name, such as "CommunityA", and owns one
// secp256k1 key-pair. Its peer entry binds that name to the public key and to
// the network address where it accepts hops. The directory is loaded once, at
// start-up, from the peers.json file in the data directory, and does not change
// afterwards; there is no key discovery.
//
// The directory answers one question for the hop ingress: which public key
// verifies messages claiming to come from a given community. A community that
// is not listed is rejected before any signature is checked.
package peers
