package signature

import (
	"strconv"
	"strings"
)

// HeaderFields are the four values carried by a signature header.
type HeaderFields struct {
	AppID     string `json:"appid"`
	Timestamp int64  `json:"timestamp"`
	Nonce     string `json:"nonce"`
	Signature string `json:"signature"`
}

// HeaderFormat selects one of the four header layouts.
type HeaderFormat struct {
	// WithHashName prefixes the value with "HMAC-SHA256 ".
	WithHashName bool `json:"with_hash_name"`
	// PairValue uses appid=..&timestamp=.. pairs instead of colon fields.
	PairValue bool `json:"pair_value"`
}

// DefaultHeaderFormat is the prefixed, colon-delimited layout.
func DefaultHeaderFormat() HeaderFormat {
	return HeaderFormat{WithHashName: true}
}

var pairKeys = [...]string{"appid", "timestamp", "nonce", "signature"}

// EncodeHeader renders f in the given format.
func EncodeHeader(f HeaderFields, format HeaderFormat) string {
	ts := strconv.FormatInt(f.Timestamp, 10)

	var b strings.Builder
	if format.WithHashName {
		b.WriteString(Algorithm)
		b.WriteByte(' ')
	}

	if format.PairValue {
		b.WriteString("appid=" + f.AppID)
		b.WriteString("&timestamp=" + ts)
		b.WriteString("&nonce=" + f.Nonce)
		b.WriteString("&signature=" + f.Signature)
	} else {
		b.WriteString(f.AppID + ":" + ts + ":" + f.Nonce + ":" + f.Signature)
	}
	return b.String()
}

// DecodeHeader parses a header value produced by EncodeHeader with the same
// format. When format.WithHashName is set and strictName is true, a prefix
// other than "HMAC-SHA256" fails with ErrAlgorithmMismatch. A non-strict
// decode drops whatever prefix is present.
func DecodeHeader(value string, format HeaderFormat, strictName bool) (HeaderFields, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return HeaderFields{}, &ParseError{Kind: ErrEmptyHeader}
	}

	if format.WithHashName {
		name, rest, ok := strings.Cut(value, " ")
		if !ok {
			name, rest = "", value
		}
		if strictName && name != Algorithm {
			return HeaderFields{}, newParseError(ErrAlgorithmMismatch, "%s - %s", name, Algorithm)
		}
		value = strings.TrimSpace(rest)
	}

	if format.PairValue {
		return decodePairs(value)
	}
	return decodeColon(value)
}

func decodeColon(value string) (HeaderFields, error) {
	parts := strings.Split(value, ":")
	if len(parts) != 4 {
		return HeaderFields{}, newParseError(ErrMalformedHeader, "expected 4 colon-separated fields, got %d", len(parts))
	}
	return buildFields(parts[0], parts[1], parts[2], parts[3])
}

func decodePairs(value string) (HeaderFields, error) {
	values := make(map[string]string, len(pairKeys))
	for _, pair := range strings.Split(value, "&") {
		key, val, ok := strings.Cut(pair, "=")
		if !ok {
			return HeaderFields{}, newParseError(ErrMalformedHeader, "pair %q has no value", pair)
		}
		key = strings.TrimSpace(key)
		if _, dup := values[key]; dup {
			return HeaderFields{}, newParseError(ErrMalformedHeader, "duplicate field %q", key)
		}
		values[key] = strings.TrimSpace(val)
	}

	if len(values) != len(pairKeys) {
		return HeaderFields{}, newParseError(ErrMalformedHeader, "expected %d fields, got %d", len(pairKeys), len(values))
	}
	for _, k := range pairKeys {
		if _, ok := values[k]; !ok {
			return HeaderFields{}, newParseError(ErrMalformedHeader, "missing field %q", k)
		}
	}

	return buildFields(values["appid"], values["timestamp"], values["nonce"], values["signature"])
}

func buildFields(appid, timestamp, nonce, sig string) (HeaderFields, error) {
	if appid == "" || nonce == "" || sig == "" {
		return HeaderFields{}, newParseError(ErrMalformedHeader, "empty field")
	}
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil || ts < 0 {
		return HeaderFields{}, newParseError(ErrMalformedHeader, "timestamp %q is not a unix time", timestamp)
	}
	return HeaderFields{AppID: appid, Timestamp: ts, Nonce: nonce, Signature: sig}, nil
}
