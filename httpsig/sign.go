// Package httpsig implements component D: signing and verifying HTTP
// requests with the Cavage HTTP Signatures draft, the transport-level
// authentication mechanism ActivityPub delivery and authorized fetch rely
// on. It wraps github.com/go-fed/httpsig the same way the teacher project
// wraps it for outbound delivery and inbound verification.
package httpsig

import (
	"bytes"
	"crypto"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-fed/httpsig"
)

// Sign signs req in place using privKey/keyID, adding Date, Host, Digest
// (for requests with a body) and Signature headers. algo selects the
// signature algorithm matching privKey's type (RSA_SHA256 for *rsa.PrivateKey,
// ED25519 for ed25519.PrivateKey).
func Sign(req *http.Request, keyID string, privKey crypto.PrivateKey, algo httpsig.Algorithm, body []byte) error {
	if req.Header.Get("Date") == "" {
		req.Header.Set("Date", time.Now().UTC().Format(http.TimeFormat))
	}
	req.Header.Set("Host", req.URL.Host)

	headers := []string{httpsig.RequestTarget, "host", "date"}
	if len(body) > 0 {
		headers = append(headers, "digest")
		req.Body = io.NopCloser(bytes.NewReader(body))
		req.ContentLength = int64(len(body))
	}

	signer, _, err := httpsig.NewSigner(
		[]httpsig.Algorithm{algo},
		httpsig.DigestSha256,
		headers,
		httpsig.Signature,
		0,
	)
	if err != nil {
		return fmt.Errorf("httpsig: create signer: %w", err)
	}
	if err := signer.SignRequest(privKey, keyID, req, body); err != nil {
		return fmt.Errorf("httpsig: sign request: %w", err)
	}
	return nil
}
