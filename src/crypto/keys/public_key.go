package keys

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"fmt"

	"github.com/mosaicnetworks/crosswalk/src/common"
)

// ToPublicKey is a wrapper around elliptic.Unmarshal which calls Curve() to
// determine which elliptic.Curve to use. The argument pub is expected to be the
// uncompressed form of a point on the curve, as returned by FromPublicKey. It
// returns nil if pub is not a valid point.
func ToPublicKey(pub []byte) *ecdsa.PublicKey {
	if len(pub) == 0 {
		return nil
	}
	x, y := elliptic.Unmarshal(Curve(), pub)
	if x == nil {
		return nil
	}
	return &ecdsa.PublicKey{Curve: Curve(), X: x, Y: y}
}

// FromPublicKey is a wrapper around elliptic.Marshal which calls Curve() to
// determine which elliptic.Curve to use. It outputs the point in uncompressed
// form.
func FromPublicKey(pub *ecdsa.PublicKey) []byte {
	if pub == nil || pub.X == nil || pub.Y == nil {
		return nil
	}
	return elliptic.Marshal(Curve(), pub.X, pub.Y)
}

// PublicKeyHex returns the hexadecimal reprentation of the uncompressed form of
// the public key
func PublicKeyHex(pub *ecdsa.PublicKey) string {
	return common.EncodeToString(FromPublicKey(pub))
}

// PublicKeyFromHex parses a public key in the format produced by PublicKeyHex.
func PublicKeyFromHex(pubHex string) (*ecdsa.PublicKey, error) {
	raw, err := common.DecodeFromString(pubHex)
	if err != nil {
		return nil, fmt.Errorf("decoding public key: %w", err)
	}
	pub := ToPublicKey(raw)
	if pub == nil {
		return nil, fmt.Errorf("%w: not a point on secp256k1", ErrInvalidKey)
	}
	return pub, nil
}
