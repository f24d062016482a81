package keyring

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
)

// OID suffixes identifying the algorithm inside a parsed SPKI structure.
// RSA encryption is 1.2.840.113549.1.1.1; Ed25519 is 1.3.101.112. Both
// land on crypto/x509's PublicKeyAlgorithm once parsed, so we branch on
// the concrete Go type rather than walking the ASN.1 OID ourselves.
const (
	oidRSA     = "1.2.840.113549.1.1.1"
	oidEd25519 = "1.3.101.112"
)

// ImportSpki parses a PEM-encoded SubjectPublicKeyInfo block and routes to
// the matching algorithm's public key type.
func ImportSpki(pemBytes []byte) (crypto.PublicKey, Algorithm, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, 0, fmt.Errorf("keyring: invalid PEM block")
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, 0, fmt.Errorf("keyring: parse SPKI: %w", err)
	}
	switch k := pub.(type) {
	case *rsa.PublicKey:
		return k, RSASSAPKCS1v15, nil
	case ed25519.PublicKey:
		return k, Ed25519, nil
	default:
		return nil, 0, fmt.Errorf("keyring: unsupported SPKI key type %T", pub)
	}
}

// ExportSpki is the inverse of ImportSpki: encodes a public key as a
// PEM-wrapped SubjectPublicKeyInfo block.
func ExportSpki(pub crypto.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("keyring: marshal SPKI: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), nil
}

// ImportPkcs1PrivateKey parses a PEM-encoded PKCS1 RSA private key, the
// format most fediverse implementations persist actor keys in on disk.
func ImportPkcs1PrivateKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("keyring: invalid PEM block")
	}
	priv, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("keyring: parse PKCS1 private key: %w", err)
	}
	return priv, nil
}

// ExportPkcs1PrivateKey is the inverse of ImportPkcs1PrivateKey.
func ExportPkcs1PrivateKey(priv *rsa.PrivateKey) []byte {
	der := x509.MarshalPKCS1PrivateKey(priv)
	return pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: der})
}
