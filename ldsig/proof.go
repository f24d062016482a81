package ldsig

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/multiformats/go-multibase"
)

// Cryptosuite identifies the canonicalization+signature combination a
// DataIntegrityProof was produced with. Only eddsa-jcs-2022 (FEP-8b32) is
// implemented; other cryptosuite values are rejected by VerifyProof.
const Cryptosuite = "eddsa-jcs-2022"

// ProofPurpose is the only purpose this package issues or accepts.
const ProofPurpose = "assertionMethod"

// Proof is the DataIntegrityProof node attached to a signed object under
// its "proof" property.
type Proof struct {
	Type               string `json:"type"`
	Cryptosuite        string `json:"cryptosuite"`
	VerificationMethod string `json:"verificationMethod"`
	ProofPurpose       string `json:"proofPurpose"`
	ProofValue         string `json:"proofValue"`
	Created            string `json:"created"`
}

// toMap renders p as the map form used in both the signing input and the
// attached document, omitting ProofValue when asked (the "proof options"
// form used as signing input never includes it).
func (p Proof) toMap(includeValue bool) map[string]interface{} {
	m := map[string]interface{}{
		"type":               "DataIntegrityProof",
		"cryptosuite":        p.Cryptosuite,
		"verificationMethod": p.VerificationMethod,
		"proofPurpose":       p.ProofPurpose,
		"created":            p.Created,
	}
	if includeValue {
		m["proofValue"] = p.ProofValue
	}
	return m
}

// KeyResolver fetches the Multikey referenced by a verificationMethod id
// and returns its raw Ed25519 public key.
type KeyResolver func(ctx context.Context, verificationMethodID string) (ed25519.PublicKey, error)

// CreateProof produces a DataIntegrityProof over doc (which must not
// already contain a "proof" property — callers needing multiple proofs
// call CreateProof once per proof and collect them via SignObject).
// Per the eddsa-jcs-2022 cryptosuite's hashing algorithm, the signing
// input is sha256(JCS proof options) concatenated with sha256(JCS
// document) — not the raw canonicalized bytes themselves.
func CreateProof(doc map[string]interface{}, priv ed25519.PrivateKey, verificationMethodID string, created time.Time) (Proof, error) {
	docBytes, err := Canonicalize(withoutProof(doc))
	if err != nil {
		return Proof{}, fmt.Errorf("ldsig: canonicalize document: %w", err)
	}

	p := Proof{
		Type:               "DataIntegrityProof",
		Cryptosuite:        Cryptosuite,
		VerificationMethod: verificationMethodID,
		ProofPurpose:       ProofPurpose,
		Created:            created.UTC().Format(time.RFC3339),
	}
	optionsBytes, err := Canonicalize(p.toMap(false))
	if err != nil {
		return Proof{}, fmt.Errorf("ldsig: canonicalize proof options: %w", err)
	}

	sig := ed25519.Sign(priv, hashData(optionsBytes, docBytes))
	encoded, err := multibase.Encode(multibase.Base58BTC, sig)
	if err != nil {
		return Proof{}, fmt.Errorf("ldsig: encode proof value: %w", err)
	}
	p.ProofValue = encoded
	return p, nil
}

// hashData implements the eddsa-jcs-2022 cryptosuite's hashing step:
// sha256(canonical proof options) || sha256(canonical document).
func hashData(optionsBytes, docBytes []byte) []byte {
	optionsHash := sha256.Sum256(optionsBytes)
	docHash := sha256.Sum256(docBytes)
	out := make([]byte, 0, len(optionsHash)+len(docHash))
	out = append(out, optionsHash[:]...)
	out = append(out, docHash[:]...)
	return out
}

// VerifyProof is the inverse of CreateProof: it recomputes the canonical
// signing bytes from doc and p (proof stripped of proofValue), resolves
// the Multikey named by p.VerificationMethod via resolve, and checks the
// signature. It returns the resolved public key on success.
func VerifyProof(ctx context.Context, doc map[string]interface{}, p Proof, resolve KeyResolver) (ed25519.PublicKey, error) {
	if p.Cryptosuite != Cryptosuite {
		return nil, fmt.Errorf("ldsig: unsupported cryptosuite %q", p.Cryptosuite)
	}
	if p.ProofPurpose != ProofPurpose {
		return nil, fmt.Errorf("ldsig: unsupported proof purpose %q", p.ProofPurpose)
	}

	docBytes, err := Canonicalize(withoutProof(doc))
	if err != nil {
		return nil, fmt.Errorf("ldsig: canonicalize document: %w", err)
	}
	optionsBytes, err := Canonicalize(p.toMap(false))
	if err != nil {
		return nil, fmt.Errorf("ldsig: canonicalize proof options: %w", err)
	}

	_, sig, err := multibase.Decode(p.ProofValue)
	if err != nil {
		return nil, fmt.Errorf("ldsig: decode proof value: %w", err)
	}

	pub, err := resolve(ctx, p.VerificationMethod)
	if err != nil {
		return nil, fmt.Errorf("ldsig: resolve verification method %s: %w", p.VerificationMethod, err)
	}

	msg := hashData(optionsBytes, docBytes)
	if !ed25519.Verify(pub, msg, sig) {
		return nil, fmt.Errorf("ldsig: signature verification failed")
	}
	return pub, nil
}

// SignObject attaches proof to doc's "proof" property, preserving any
// proof(s) already present (a document may accumulate more than one
// Integrity Proof, e.g. from different relays re-attesting the same
// object).
func SignObject(doc map[string]interface{}, proof Proof) map[string]interface{} {
	out := cloneShallow(doc)
	existing := existingProofs(out)
	existing = append(existing, proof.toMap(true))
	if len(existing) == 1 {
		out["proof"] = existing[0]
	} else {
		out["proof"] = existing
	}
	return out
}

// VerifyObject returns doc with its proof(s) intact if at least one
// attached Integrity Proof verifies against resolve; otherwise it
// returns an error. FEP-8b32's forward-compatibility stance: a relay or
// intermediary may attach its own proof without invalidating the
// originator's, so only one valid proof is required.
func VerifyObject(ctx context.Context, doc map[string]interface{}, resolve KeyResolver) (map[string]interface{}, error) {
	proofs := existingProofs(doc)
	if len(proofs) == 0 {
		return nil, fmt.Errorf("ldsig: no proof attached")
	}

	var lastErr error
	for _, pm := range proofs {
		p, err := proofFromMap(pm)
		if err != nil {
			lastErr = err
			continue
		}
		if _, err := VerifyProof(ctx, doc, p, resolve); err != nil {
			lastErr = err
			continue
		}
		return doc, nil
	}
	return nil, fmt.Errorf("ldsig: no attached proof verified: %w", lastErr)
}

func withoutProof(doc map[string]interface{}) map[string]interface{} {
	out := cloneShallow(doc)
	delete(out, "proof")
	return out
}

func cloneShallow(doc map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}

func existingProofs(doc map[string]interface{}) []map[string]interface{} {
	switch v := doc["proof"].(type) {
	case map[string]interface{}:
		return []map[string]interface{}{v}
	case []interface{}:
		var out []map[string]interface{}
		for _, item := range v {
			if m, ok := item.(map[string]interface{}); ok {
				out = append(out, m)
			}
		}
		return out
	default:
		return nil
	}
}

func proofFromMap(m map[string]interface{}) (Proof, error) {
	str := func(key string) string {
		s, _ := m[key].(string)
		return s
	}
	return Proof{
		Type:               str("type"),
		Cryptosuite:        str("cryptosuite"),
		VerificationMethod: str("verificationMethod"),
		ProofPurpose:       str("proofPurpose"),
		ProofValue:         str("proofValue"),
		Created:            str("created"),
	}, nil
}
