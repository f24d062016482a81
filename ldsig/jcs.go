// Package ldsig implements component E: Object Integrity Proofs
// (FEP-8b32's eddsa-jcs-2022 cryptosuite) and legacy Linked Data
// Signatures. Canonicalization goes through tidwall/gjson and
// tidwall/sjson rather than hand-rolled map traversal, the way the
// teacher reaches for small, focused libraries instead of stdlib-only
// plumbing wherever the ecosystem offers one.
package ldsig

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Canonicalize produces the JSON Canonicalization Scheme (RFC 8785)
// encoding of doc: object members sorted by the bytes of their UTF-8
// keys (the same as RFC 8785's UTF-16 code-unit order except where keys
// differ at a character above U+FFFF), no insignificant whitespace, and
// UTF-8 string content without HTML escaping, except that encoding/json
// writes U+2028 and U+2029 as backslash-u escapes rather than raw as   and  .
func Canonicalize(doc map[string]interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("ldsig: marshal document: %w", err)
	}
	return canonicalizeValue(gjson.ParseBytes(buf.Bytes()))
}

func canonicalizeValue(v gjson.Result) ([]byte, error) {
	switch {
	case v.IsObject():
		return canonicalizeObject(v)
	case v.IsArray():
		return canonicalizeArray(v)
	default:
		return []byte(canonicalizeScalar(v)), nil
	}
}

func canonicalizeObject(v gjson.Result) ([]byte, error) {
	var keys []string
	v.ForEach(func(key, _ gjson.Result) bool {
		keys = append(keys, key.String())
		return true
	})
	sort.Strings(keys)

	out := []byte("{}")
	var err error
	for _, k := range keys {
		child, cerr := canonicalizeValue(v.Get(gjsonEscape(k)))
		if cerr != nil {
			return nil, cerr
		}
		out, err = sjson.SetRawBytes(out, k, child)
		if err != nil {
			return nil, fmt.Errorf("ldsig: set canonical field %q: %w", k, err)
		}
	}
	return out, nil
}

func canonicalizeArray(v gjson.Result) ([]byte, error) {
	out := []byte("[]")
	i := 0
	var err error
	v.ForEach(func(_, item gjson.Result) bool {
		var child []byte
		child, err = canonicalizeValue(item)
		if err != nil {
			return false
		}
		out, err = sjson.SetRawBytes(out, fmt.Sprintf("%d", i), child)
		i++
		return err == nil
	})
	if err != nil {
		return nil, fmt.Errorf("ldsig: canonicalize array element: %w", err)
	}
	return out, nil
}

func canonicalizeScalar(v gjson.Result) string {
	return v.Raw
}

// gjsonEscape escapes a literal key for use as a gjson path component, so
// that keys containing ".", "*", or "?" are addressed exactly rather than
// interpreted as path wildcards.
func gjsonEscape(key string) string {
	out := make([]byte, 0, len(key))
	for i := 0; i < len(key); i++ {
		switch key[i] {
		case '.', '*', '?', '|', '#', '@':
			out = append(out, '\\')
		}
		out = append(out, key[i])
	}
	return string(out)
}
