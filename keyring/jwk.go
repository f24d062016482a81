package keyring

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"math/big"
)

// Jwk is the subset of RFC 7517 fields this package round-trips:
// `{"kty":"RSA","alg":"RS256", ...}` or `{"kty":"OKP","crv":"Ed25519", ...}`.
type Jwk struct {
	Kty string `json:"kty"`
	Alg string `json:"alg,omitempty"`
	Crv string `json:"crv,omitempty"`
	N   string `json:"n,omitempty"`
	E   string `json:"e,omitempty"`
	D   string `json:"d,omitempty"`
	X   string `json:"x,omitempty"`
}

func b64url(b []byte) string { return base64.RawURLEncoding.EncodeToString(b) }

func unb64url(s string) ([]byte, error) { return base64.RawURLEncoding.DecodeString(s) }

// ExportJwkPublic encodes a public key as a JWK.
func ExportJwkPublic(pub crypto.PublicKey) (*Jwk, error) {
	switch k := pub.(type) {
	case *rsa.PublicKey:
		return &Jwk{
			Kty: "RSA",
			Alg: "RS256",
			N:   b64url(k.N.Bytes()),
			E:   b64url(big.NewInt(int64(k.E)).Bytes()),
		}, nil
	case ed25519.PublicKey:
		return &Jwk{Kty: "OKP", Crv: "Ed25519", X: b64url(k)}, nil
	default:
		return nil, fmt.Errorf("keyring: unsupported public key type %T", pub)
	}
}

// ExportJwkPrivate encodes a private key as a JWK, including the
// algorithm-specific private component.
func ExportJwkPrivate(priv crypto.Signer) (*Jwk, error) {
	switch k := priv.(type) {
	case *rsa.PrivateKey:
		j, err := ExportJwkPublic(&k.PublicKey)
		if err != nil {
			return nil, err
		}
		j.D = b64url(k.D.Bytes())
		return j, nil
	case ed25519.PrivateKey:
		j, err := ExportJwkPublic(k.Public())
		if err != nil {
			return nil, err
		}
		j.D = b64url(k.Seed())
		return j, nil
	default:
		return nil, fmt.Errorf("keyring: unsupported private key type %T", priv)
	}
}

// ImportJwk decodes a JWK into a public (and, if a private component is
// present, private) key.
func ImportJwk(j *Jwk) (pub crypto.PublicKey, priv crypto.Signer, alg Algorithm, err error) {
	switch j.Kty {
	case "RSA":
		if j.Alg != "" && j.Alg != "RS256" {
			return nil, nil, 0, fmt.Errorf("keyring: unsupported RSA JWK alg %q, want RS256", j.Alg)
		}
		nBytes, err := unb64url(j.N)
		if err != nil {
			return nil, nil, 0, fmt.Errorf("keyring: decode JWK n: %w", err)
		}
		eBytes, err := unb64url(j.E)
		if err != nil {
			return nil, nil, 0, fmt.Errorf("keyring: decode JWK e: %w", err)
		}
		pubKey := &rsa.PublicKey{
			N: new(big.Int).SetBytes(nBytes),
			E: int(new(big.Int).SetBytes(eBytes).Int64()),
		}
		if j.D == "" {
			return pubKey, nil, RSASSAPKCS1v15, nil
		}
		dBytes, err := unb64url(j.D)
		if err != nil {
			return nil, nil, 0, fmt.Errorf("keyring: decode JWK d: %w", err)
		}
		privKey := &rsa.PrivateKey{
			PublicKey: *pubKey,
			D:         new(big.Int).SetBytes(dBytes),
		}
		return pubKey, privKey, RSASSAPKCS1v15, nil
	case "OKP":
		if j.Crv != "Ed25519" {
			return nil, nil, 0, fmt.Errorf("keyring: unsupported OKP crv %q, want Ed25519", j.Crv)
		}
		xBytes, err := unb64url(j.X)
		if err != nil {
			return nil, nil, 0, fmt.Errorf("keyring: decode JWK x: %w", err)
		}
		pubKey := ed25519.PublicKey(xBytes)
		if j.D == "" {
			return pubKey, nil, Ed25519, nil
		}
		seed, err := unb64url(j.D)
		if err != nil {
			return nil, nil, 0, fmt.Errorf("keyring: decode JWK d: %w", err)
		}
		privKey := ed25519.NewKeyFromSeed(seed)
		return privKey.Public(), privKey, Ed25519, nil
	default:
		return nil, nil, 0, fmt.Errorf("keyring: unsupported JWK kty %q", j.Kty)
	}
}
