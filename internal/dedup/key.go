// Package dedup collapses concurrent identical outbound HTTP requests into a
// single in-flight call whose result is shared by every caller.
package dedup

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"mime"
	"net/http"
	"slices"
	"strings"
	"unicode/utf8"
)

// Key identifies a logical request. It is a hex digest so credentials in
// the authorization header never sit in the registry in clear.
type Key string

// keyedHeaders are the only headers that take part in a key. Request ids,
// timestamps and tracing headers vary per attempt and must not.
var keyedHeaders = []string{"authorization", "content-type"}

// Request describes one outbound HTTP call.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// KeyFor derives the canonical key of req. JSON bodies are re-encoded with
// sorted object keys so field order does not matter. A body declared as
// JSON that does not parse yields ErrUnkeyable.
func KeyFor(req *Request) (Key, error) {
	if req == nil {
		return "", ErrUnkeyable
	}

	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}

	body, err := canonicalBody(req.Body, req.Header.Get("Content-Type"))
	if err != nil {
		return "", err
	}

	// Header names differing only in case are one header; their values are
	// merged and sorted so map iteration order cannot change the key.
	merged := make(map[string][]string, len(keyedHeaders))
	for name, values := range req.Header {
		lower := strings.ToLower(name)
		if !slices.Contains(keyedHeaders, lower) {
			continue
		}
		merged[lower] = append(merged[lower], values...)
	}
	headers := make([][2]string, 0, len(merged))
	for name, values := range merged {
		slices.Sort(values)
		headers = append(headers, [2]string{name, strings.Join(values, ",")})
	}
	slices.SortFunc(headers, func(a, b [2]string) int {
		return strings.Compare(a[0], b[0])
	})

	// Encoding the parts as a JSON array keeps field boundaries unambiguous.
	// The body stays a byte slice so it is base64 encoded losslessly.
	raw, err := json.Marshal([]any{method, req.URL, body, headers})
	if err != nil {
		return "", ErrUnkeyable
	}
	sum := sha256.Sum256(raw)
	return Key(hex.EncodeToString(sum[:])), nil
}

func canonicalBody(body []byte, contentType string) ([]byte, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, nil
	}

	// Re-encoding would replace invalid UTF-8 with U+FFFD and merge
	// distinct bodies.
	if !utf8.Valid(trimmed) {
		return body, nil
	}

	declared := isJSONContentType(contentType)
	sniffed := trimmed[0] == '{' || trimmed[0] == '['
	if !declared && !sniffed {
		return body, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil || dec.More() {
		if declared {
			return nil, ErrUnkeyable
		}
		return body, nil
	}
	out, err := json.Marshal(v)
	if err != nil {
		return nil, ErrUnkeyable
	}
	return out, nil
}

func isJSONContentType(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}
