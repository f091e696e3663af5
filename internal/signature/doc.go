// Package signature implements shared-secret HMAC-SHA256 request signing.
//
// A caller identified by an appid signs a description of an HTTP request
// (method, URL, ordered query, body) together with a timestamp and a nonce.
// The result travels in a single header value that the service decodes,
// looks up the appid's secret for, and recomputes.
//
// # Canonical string
//
// The signed string is built from these segments, joined by "\n" and
// terminated by a trailing "\n":
//
//	appid
//	METHOD                  upper-cased, GET when empty
//	url[?query]             query pairs in the order given, form-encoded
//	body                    only for non-GET requests with a body other than "" or "{}"
//	timestamp               unix seconds
//	nonce
//	secretKey               only when EndsWithSecretKey is set
//
// The signature is the lowercase hex HMAC-SHA256 of that string keyed with
// the secret. Query order is part of the signature: signer and verifier must
// build the query in the same order.
//
// # Header formats
//
//	HMAC-SHA256 {appid}:{timestamp}:{nonce}:{signature}
//	HMAC-SHA256 appid={appid}&timestamp={timestamp}&nonce={nonce}&signature={signature}
//
// The "HMAC-SHA256 " prefix is optional (HeaderFormat.WithHashName).
//
// # Usage
//
// Signing on the client:
//
//	signer := signature.NewSigner(nil, nil, logger)
//	opts := signature.DefaultGenerateOptions()
//	opts.AppID, opts.SecretKey, opts.URL = "app-1", secret, "/orders"
//	signed, err := signer.Generate(opts)
//	req.Header.Set("Authorization", signed.HeaderValue)
//
// Verifying on the server:
//
//	verifier := signature.NewVerifier(store, nil, logger)
//	outcome := verifier.VerifyHeader(ctx, signature.HeaderVerifyOptions{
//	    HeaderValue:  r.Header.Get("Authorization"),
//	    Request:      described,
//	    VerifyConfig: signature.DefaultVerifyConfig(),
//	})
//	if !outcome.OK() {
//	    http.Error(w, outcome.Message, outcome.HTTPStatus())
//	}
//
// # Replay window
//
// A timestamp is accepted while now-timestamp <= TimestampValidTime.
// Timestamps in the future are not rejected.
package signature
