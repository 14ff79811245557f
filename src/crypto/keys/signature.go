package keys

import (
	"crypto/ecdsa"
	"crypto/rand"
	"math/big"

	"github.com/mosaicnetworks/crosswalk/src/crypto"
)

// SignatureSize is the length of an encoded signature.
const SignatureSize = 64

// Sign hashes data with SHA256 and signs the digest with the private key and
// the built-in pseudo-random generator rand.Reader. It only fails on bad key
// material.
func Sign(priv *ecdsa.PrivateKey, data []byte) ([]byte, error) {
	if priv == nil || priv.D == nil || priv.Curve == nil {
		return nil, ErrInvalidKey
	}
	r, s, err := ecdsa.Sign(rand.Reader, priv, crypto.SHA256(data))
	if err != nil {
		return nil, err
	}
	return EncodeSignature(r, s), nil
}

// Verify reports whether sig is a valid signature of data by the owner of the
// private key associated with pub. Any malformed input yields false.
func Verify(pub *ecdsa.PublicKey, data []byte, sig []byte) bool {
	if pub == nil || pub.X == nil || pub.Y == nil || pub.Curve == nil {
		return false
	}
	if len(sig) != SignatureSize {
		return false
	}
	if !pub.Curve.IsOnCurve(pub.X, pub.Y) {
		return false
	}
	r, s := DecodeSignature(sig)
	if r.Sign() <= 0 || s.Sign() <= 0 || r.Cmp(secp256k1N) >= 0 || s.Cmp(secp256k1N) >= 0 {
		return false
	}
	return ecdsa.Verify(pub, crypto.SHA256(data), r, s)
}

// EncodeSignature returns the fixed-size R || S encoding of a signature.
func EncodeSignature(r, s *big.Int) []byte {
	sig := make([]byte, SignatureSize)
	copy(sig[:SignatureSize/2], paddedBigBytes(r, SignatureSize/2))
	copy(sig[SignatureSize/2:], paddedBigBytes(s, SignatureSize/2))
	return sig
}

// DecodeSignature splits an encoded signature into its R and S values. The
// caller is responsible for checking the length.
func DecodeSignature(sig []byte) (r, s *big.Int) {
	r = new(big.Int).SetBytes(sig[:SignatureSize/2])
	s = new(big.Int).SetBytes(sig[SignatureSize/2:])
	return r, s
}
