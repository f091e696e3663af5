package signature

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sampleFields = HeaderFields{
	AppID:     "app-1",
	Timestamp: 1700000000,
	Nonce:     "Ab3dEf9h",
	Signature: "0f1e2d3c4b5a69788796a5b4c3d2e1f00f1e2d3c4b5a69788796a5b4c3d2e1f0",
}

func TestEncodeHeader_Layouts(t *testing.T) {
	sig := sampleFields.Signature

	assert.Equal(t, "HMAC-SHA256 app-1:1700000000:Ab3dEf9h:"+sig,
		EncodeHeader(sampleFields, HeaderFormat{WithHashName: true}))
	assert.Equal(t, "app-1:1700000000:Ab3dEf9h:"+sig,
		EncodeHeader(sampleFields, HeaderFormat{}))
	assert.Equal(t, "HMAC-SHA256 appid=app-1&timestamp=1700000000&nonce=Ab3dEf9h&signature="+sig,
		EncodeHeader(sampleFields, HeaderFormat{WithHashName: true, PairValue: true}))
	assert.Equal(t, "appid=app-1&timestamp=1700000000&nonce=Ab3dEf9h&signature="+sig,
		EncodeHeader(sampleFields, HeaderFormat{PairValue: true}))
}

func TestHeader_RoundTrip(t *testing.T) {
	for _, withName := range []bool{true, false} {
		for _, pair := range []bool{true, false} {
			format := HeaderFormat{WithHashName: withName, PairValue: pair}
			t.Run(fmt.Sprintf("name=%v/pair=%v", withName, pair), func(t *testing.T) {
				decoded, err := DecodeHeader(EncodeHeader(sampleFields, format), format, true)
				require.NoError(t, err)
				assert.Equal(t, sampleFields, decoded)
			})
		}
	}
}

func TestDecodeHeader_Errors(t *testing.T) {
	prefixed := HeaderFormat{WithHashName: true}
	pairs := HeaderFormat{PairValue: true}

	tests := []struct {
		name   string
		value  string
		format HeaderFormat
		strict bool
		kind   error
	}{
		{"empty", "", prefixed, true, ErrEmptyHeader},
		{"blank", "   ", pairs, true, ErrEmptyHeader},
		{"wrong algorithm", "HMAC-SHA1 a:1:n:s", prefixed, true, ErrAlgorithmMismatch},
		{"missing prefix", "a:1:n:s", prefixed, true, ErrAlgorithmMismatch},
		{"too few fields", "HMAC-SHA256 a:1:n", prefixed, true, ErrMalformedHeader},
		{"too many fields", "a:1:n:s:x", HeaderFormat{}, true, ErrMalformedHeader},
		{"bad timestamp", "a:soon:n:s", HeaderFormat{}, true, ErrMalformedHeader},
		{"negative timestamp", "a:-5:n:s", HeaderFormat{}, true, ErrMalformedHeader},
		{"empty nonce", "a:1::s", HeaderFormat{}, true, ErrMalformedHeader},
		{"pair without value", "appid=a&timestamp&nonce=n&signature=s", pairs, true, ErrMalformedHeader},
		{"missing pair", "appid=a&timestamp=1&nonce=n", pairs, true, ErrMalformedHeader},
		{"unknown pair", "appid=a&timestamp=1&nonce=n&sig=s", pairs, true, ErrMalformedHeader},
		{"extra pair", "appid=a&timestamp=1&nonce=n&signature=s&x=1", pairs, true, ErrMalformedHeader},
		{"duplicate pair", "appid=a&appid=b&nonce=n&signature=s", pairs, true, ErrMalformedHeader},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeHeader(tt.value, tt.format, tt.strict)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.kind), "got %v", err)

			var parseErr *ParseError
			assert.True(t, errors.As(err, &parseErr))
		})
	}
}

func TestDecodeHeader_LenientName(t *testing.T) {
	format := HeaderFormat{WithHashName: true}

	fields, err := DecodeHeader("HMAC-SHA1 app-1:1700000000:n:s", format, false)
	require.NoError(t, err)
	assert.Equal(t, "app-1", fields.AppID)
}

func TestDecodeHeader_TrimsPairValues(t *testing.T) {
	value := "HMAC-SHA256 appid= app-1 & timestamp=1700000000 &nonce=n1 & signature = abc"

	fields, err := DecodeHeader(value, HeaderFormat{WithHashName: true, PairValue: true}, true)
	require.NoError(t, err)
	assert.Equal(t, HeaderFields{AppID: "app-1", Timestamp: 1700000000, Nonce: "n1", Signature: "abc"}, fields)
}

func TestDecodeHeader_PairOrderIndependent(t *testing.T) {
	value := "signature=abc&nonce=n1&timestamp=42&appid=app-1"

	fields, err := DecodeHeader(value, HeaderFormat{PairValue: true}, true)
	require.NoError(t, err)
	assert.Equal(t, int64(42), fields.Timestamp)
	assert.Equal(t, "abc", fields.Signature)
}
