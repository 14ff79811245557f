// Package keys implements the public key cryptography used to authenticate
// cross-community hops.
//
// Every community owns a key-pair. The private key never leaves the process of
// the community that owns it; it signs the canonical bytes of outgoing hop
// messages and of the acknowledgements the community returns. The public keys
// of other communities are pre-shared in the peer directory and are used to
// verify what those communities sign.
//
// Keys are ECDSA keys on the secp256k1 curve, the curve used by Bitcoin and
// Ethereum. Data is hashed with SHA256 before signing and signatures travel as
// 64 detached bytes: R followed by S, each left-padded to 32 bytes.
package keys
