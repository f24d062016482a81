// Package keyring implements the cryptographic key registry described in
// spec.md §4.B: generation, validation, and import/export of the two
// supported key algorithms (RSASSA-PKCS1-v1.5 + SHA-256, and Ed25519) in
// their SPKI, Multibase, and JWK encodings.
package keyring

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
)

// Algorithm names one of the two supported key algorithms.
type Algorithm int

const (
	// RSASSAPKCS1v15 is RSASSA-PKCS1-v1.5 with SHA-256, the legacy
	// algorithm required for HTTP Signatures.
	RSASSAPKCS1v15 Algorithm = iota
	// Ed25519 is used for Object Integrity Proofs (FEP-8b32).
	Ed25519
)

func (a Algorithm) String() string {
	switch a {
	case RSASSAPKCS1v15:
		return "RSASSA-PKCS1-v1.5"
	case Ed25519:
		return "Ed25519"
	default:
		return "unknown"
	}
}

// rsaKeySize matches the bit length used throughout the fediverse for
// actor keys.
const rsaKeySize = 2048

// KeyPair is an extractable keypair for one of the two supported
// algorithms. All keys produced or imported by this package are
// extractable — spec.md §4.B has no non-extractable key concept.
type KeyPair struct {
	Algorithm  Algorithm
	PrivateKey crypto.Signer
	PublicKey  crypto.PublicKey
}

// GenerateKeyPair generates a new extractable keypair for algorithm. The
// algorithm parameter is required, mirroring spec.md §4.B; callers that
// previously relied on an implicit RSA default should call
// GenerateKeyPair(RSASSAPKCS1v15) explicitly.
func GenerateKeyPair(algorithm Algorithm) (*KeyPair, error) {
	switch algorithm {
	case RSASSAPKCS1v15:
		priv, err := rsa.GenerateKey(rand.Reader, rsaKeySize)
		if err != nil {
			return nil, fmt.Errorf("keyring: generate RSA key: %w", err)
		}
		return &KeyPair{Algorithm: RSASSAPKCS1v15, PrivateKey: priv, PublicKey: &priv.PublicKey}, nil
	case Ed25519:
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("keyring: generate Ed25519 key: %w", err)
		}
		return &KeyPair{Algorithm: Ed25519, PrivateKey: priv, PublicKey: pub}, nil
	default:
		return nil, fmt.Errorf("keyring: unsupported algorithm %v", algorithm)
	}
}

// ErrUnsupportedAlgorithm is returned by ValidateKey for any key that is
// not one of the two supported algorithms.
var ErrUnsupportedAlgorithm = fmt.Errorf("keyring: key uses an unsupported algorithm")

// ValidateKey rejects keys that are not one of the two supported
// algorithms, or (for RSA) whose modulus is shorter than 2048 bits. The
// hash an RSA key is used with is not checked: a crypto/rsa public key
// carries no hash binding. want, if non-nil, additionally requires the
// key match that specific algorithm.
func ValidateKey(pub crypto.PublicKey, want *Algorithm) error {
	switch k := pub.(type) {
	case *rsa.PublicKey:
		if want != nil && *want != RSASSAPKCS1v15 {
			return fmt.Errorf("keyring: expected %v, got RSA key", *want)
		}
		if k.Size()*8 < 2048 {
			return fmt.Errorf("keyring: RSA key smaller than 2048 bits")
		}
		return nil
	case ed25519.PublicKey:
		if want != nil && *want != Ed25519 {
			return fmt.Errorf("keyring: expected %v, got Ed25519 key", *want)
		}
		return nil
	default:
		return ErrUnsupportedAlgorithm
	}
}
