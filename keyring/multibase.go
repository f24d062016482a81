package keyring

import (
	"crypto"
	"crypto/ed25519"
	"crypto/x509"
	"fmt"

	"github.com/multiformats/go-multibase"
)

// multicodec prefixes for the two supported key types, per the
// multicodec table used by did:key / Multikey.
var (
	ed25519PubPrefix  = []byte{0xed, 0x01}
	ed25519PrivPrefix = []byte{0x80, 0x26}
	rsaPubPrefix      = []byte{0x85, 0x24}
)

// ExportMultibaseKey encodes a public key as a multibase string
// (base58btc, prefix "z"), the form used by Multikey.publicKeyMultibase.
func ExportMultibaseKey(pub crypto.PublicKey) (string, error) {
	var raw []byte
	switch k := pub.(type) {
	case ed25519.PublicKey:
		raw = append(append([]byte{}, ed25519PubPrefix...), k...)
	default:
		return "", fmt.Errorf("keyring: multibase export only supports Ed25519 public keys, got %T", pub)
	}
	return multibase.Encode(multibase.Base58BTC, raw)
}

// ImportMultibaseKey strips the multibase prefix, decodes the payload,
// and dispatches to the matching algorithm based on the multicodec
// prefix bytes.
func ImportMultibaseKey(encoded string) (crypto.PublicKey, Algorithm, error) {
	_, raw, err := multibase.Decode(encoded)
	if err != nil {
		return nil, 0, fmt.Errorf("keyring: decode multibase key: %w", err)
	}
	switch {
	case hasPrefix(raw, ed25519PubPrefix):
		return ed25519.PublicKey(raw[len(ed25519PubPrefix):]), Ed25519, nil
	case hasPrefix(raw, rsaPubPrefix):
		pub, err := x509.ParsePKCS1PublicKey(raw[len(rsaPubPrefix):])
		if err != nil {
			return nil, 0, fmt.Errorf("keyring: parse multibase RSA key: %w", err)
		}
		return pub, RSASSAPKCS1v15, nil
	default:
		return nil, 0, fmt.Errorf("keyring: unrecognized multicodec prefix on multibase key")
	}
}

func hasPrefix(b, prefix []byte) bool {
	if len(b) < len(prefix) {
		return false
	}
	for i := range prefix {
		if b[i] != prefix[i] {
			return false
		}
	}
	return true
}
