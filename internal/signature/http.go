package signature

import (
	"bytes"
	"io"
	"net/http"
)

// PreserveRequestBody reads the request body and replaces it so handlers
// further down the chain can read it again.
func PreserveRequestBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}

	r.Body = io.NopCloser(bytes.NewReader(body))

	return body, nil
}

// RequestFromHTTP describes an incoming request the way a client signs it:
// the path as it appeared on the wire, the query in arrival order and the
// raw body.
func RequestFromHTTP(r *http.Request, body []byte) (Request, error) {
	query, err := ParseQuery(r.URL.RawQuery)
	if err != nil {
		return Request{}, err
	}

	req := Request{
		URL:    r.URL.EscapedPath(),
		Method: r.Method,
		Query:  query,
	}
	if len(body) > 0 {
		req.Body = string(body)
	}
	return req, nil
}
