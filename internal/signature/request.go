package signature

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"sigauth/internal/common/errors"
)

const (
	// Algorithm is the algorithm name carried in the header prefix.
	Algorithm = "HMAC-SHA256"

	// DefaultMethod is used when a request has no method.
	DefaultMethod = "GET"

	separator   = "\n"
	emptyObject = "{}"
)

// QueryParam is one key/value pair of a query string.
type QueryParam struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Query is an ordered list of query parameters. The order is signed, so it
// is never sorted.
type Query []QueryParam

// Add appends a parameter and returns the extended query.
func (q Query) Add(key, value string) Query {
	return append(q, QueryParam{Key: key, Value: value})
}

// Encode serializes the query in form encoding, keeping the order.
func (q Query) Encode() string {
	if len(q) == 0 {
		return ""
	}
	var b strings.Builder
	for i, p := range q {
		if i > 0 {
			b.WriteByte('&')
		}
		formEscape(&b, p.Key)
		b.WriteByte('=')
		formEscape(&b, p.Value)
	}
	return b.String()
}

const upperHex = "0123456789ABCDEF"

// formEscape writes s in application/x-www-form-urlencoded form as browsers
// produce it: alphanumerics and "*-._" stay, space becomes "+", every other
// byte is percent-encoded. This differs from url.QueryEscape on '*' and '~'.
func formEscape(b *strings.Builder, s string) {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9',
			c == '*', c == '-', c == '.', c == '_':
			b.WriteByte(c)
		case c == ' ':
			b.WriteByte('+')
		default:
			b.WriteByte('%')
			b.WriteByte(upperHex[c>>4])
			b.WriteByte(upperHex[c&15])
		}
	}
}

// UnmarshalJSON accepts either a list of {"key","value"} objects or a raw
// query string such as "a=1&b=2".
func (q *Query) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		parsed, err := ParseQuery(raw)
		if err != nil {
			return err
		}
		*q = parsed
		return nil
	}

	var params []QueryParam
	if err := json.Unmarshal(data, &params); err != nil {
		return fmt.Errorf("query must be a string or a list of key/value pairs: %w", err)
	}
	*q = params
	return nil
}

// ParseQuery parses a raw query string without reordering it. A leading "?"
// is ignored.
func ParseQuery(raw string) (Query, error) {
	raw = strings.TrimPrefix(raw, "?")

	var q Query
	for raw != "" {
		var part string
		part, raw, _ = strings.Cut(raw, "&")
		if part == "" {
			continue
		}
		rawKey, rawValue, _ := strings.Cut(part, "=")
		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			return nil, errors.ValidationError(fmt.Sprintf("invalid query key %q", rawKey))
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			return nil, errors.ValidationError(fmt.Sprintf("invalid query value for %q", key))
		}
		q = append(q, QueryParam{Key: key, Value: value})
	}
	return q, nil
}

// Request describes the HTTP request being signed.
//
// Body may be a string, a []byte, a json.RawMessage or any value that
// encoding/json can serialize.
type Request struct {
	URL    string      `json:"url"`
	Method string      `json:"method,omitempty"`
	Body   interface{} `json:"body,omitempty"`
	Query  Query       `json:"query,omitempty"`
}

// NormalizedMethod returns the upper-cased method, GET when empty.
func (r Request) NormalizedMethod() string {
	m := strings.ToUpper(strings.TrimSpace(r.Method))
	if m == "" {
		return DefaultMethod
	}
	return m
}

// FullURL returns the URL with the encoded query appended.
func (r Request) FullURL() string {
	qs := r.Query.Encode()
	if qs == "" {
		return r.URL
	}
	return r.URL + "?" + qs
}

// bodySegment returns the serialized body and whether it takes part in the
// canonical string.
func (r Request) bodySegment() (string, bool, error) {
	var s string
	switch b := r.Body.(type) {
	case nil:
		return "", false, nil
	case string:
		s = b
	case []byte:
		s = string(b)
	case json.RawMessage:
		s = string(b)
	default:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(b); err != nil {
			return "", false, errors.ValidationError(fmt.Sprintf("body cannot be serialized: %v", err))
		}
		s = strings.TrimSuffix(buf.String(), "\n")
		if s == "null" {
			return "", false, nil
		}
	}

	if s == "" || s == emptyObject {
		return "", false, nil
	}
	return s, true, nil
}

// SignatureRequest is everything that goes into one signature.
type SignatureRequest struct {
	AppID     string
	SecretKey string
	Request
	Timestamp         int64
	Nonce             string
	EndsWithSecretKey bool
}

// Validate checks the invariants every signature request must hold.
func (r SignatureRequest) Validate() error {
	switch {
	case r.AppID == "":
		return errors.ValidationError("appid is required")
	case r.SecretKey == "":
		return errors.ValidationError("secret key is required")
	case r.Timestamp < 0:
		return errors.ValidationError("timestamp must not be negative")
	case r.Nonce == "":
		return errors.ValidationError("nonce is required")
	}
	return nil
}

// SignatureResult is the output of signing one request.
type SignatureResult struct {
	CanonicalString string `json:"canonical_string"`
	Signature       string `json:"signature"`
	FullURL         string `json:"url"`
}

// BuildCanonical returns the canonical string for req and the full URL
// that went into it. It fails only when a structured body cannot be
// serialized.
func BuildCanonical(req SignatureRequest) (canonical string, fullURL string, err error) {
	method := req.NormalizedMethod()
	fullURL = req.FullURL()

	segments := make([]string, 0, 7)
	segments = append(segments, req.AppID, method, fullURL)

	if method != DefaultMethod {
		body, ok, err := req.bodySegment()
		if err != nil {
			return "", "", err
		}
		if ok {
			segments = append(segments, body)
		}
	}

	segments = append(segments, strconv.FormatInt(req.Timestamp, 10), req.Nonce)
	if req.EndsWithSecretKey {
		segments = append(segments, req.SecretKey)
	}

	return strings.Join(segments, separator) + separator, fullURL, nil
}

// GenerateSignature validates req, builds its canonical string and signs it.
func GenerateSignature(req SignatureRequest) (*SignatureResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	canonical, fullURL, err := BuildCanonical(req)
	if err != nil {
		return nil, err
	}

	return &SignatureResult{
		CanonicalString: canonical,
		Signature:       Sign(canonical, req.SecretKey),
		FullURL:         fullURL,
	}, nil
}
