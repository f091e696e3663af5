package signature

import (
	"fmt"
	"strings"

	"sigauth/internal/common/errors"
	"sigauth/internal/common/logging"
	"sigauth/internal/common/utils"
)

// GenerateOptions describes a request to sign. Timestamp and nonce are
// supplied by the Signer.
type GenerateOptions struct {
	AppID     string `json:"appid"`
	SecretKey string `json:"secret_key"`
	Request
	WithHashName      bool `json:"with_hash_name"`
	PairValue         bool `json:"pair_value"`
	EndsWithSecretKey bool `json:"ends_with_secret_key"`
}

// DefaultGenerateOptions returns options with every default filled in.
func DefaultGenerateOptions() GenerateOptions {
	return GenerateOptions{
		Request:      Request{Method: DefaultMethod},
		WithHashName: true,
	}
}

// Format returns the header format the options select.
func (o GenerateOptions) Format() HeaderFormat {
	return HeaderFormat{WithHashName: o.WithHashName, PairValue: o.PairValue}
}

func (o GenerateOptions) validate() error {
	switch {
	case o.AppID == "":
		return errors.ValidationError("appid is required")
	case strings.ContainsAny(o.AppID, ":&= "):
		return errors.ValidationError("appid must not contain ':', '&', '=' or spaces")
	case o.SecretKey == "":
		return errors.ValidationError("secret key is required")
	case o.URL == "":
		return errors.ValidationError("url is required")
	}
	return nil
}

// SignedRequest is the result of Generate.
type SignedRequest struct {
	URL                string `json:"url"`
	Timestamp          int64  `json:"timestamp"`
	Nonce              string `json:"nonce"`
	RawSignatureString string `json:"raw_signature_string"`
	Signature          string `json:"signature"`
	HeaderValue        string `json:"header_value"`
}

// Signer produces signature headers. It is safe for concurrent use.
type Signer struct {
	clock  Clock
	nonces NonceSource
	logger logging.Logger
}

// NewSigner creates a Signer. Nil collaborators fall back to the system
// clock, 8-character random nonces and the global logger.
func NewSigner(clock Clock, nonces NonceSource, logger logging.Logger) *Signer {
	if clock == nil {
		clock = SystemClock
	}
	if nonces == nil {
		nonces = RandomNonceSource(utils.DefaultNonceLength)
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Signer{clock: clock, nonces: nonces, logger: logger}
}

// Generate stamps opts with the current time and a fresh nonce, signs it and
// encodes the header value.
func (s *Signer) Generate(opts GenerateOptions) (*SignedRequest, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	nonce, err := s.nonces.Nonce()
	if err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	if nonce == "" {
		return nil, errors.InternalError("nonce source returned an empty nonce", nil)
	}
	timestamp := s.clock.Now().Unix()

	result, err := GenerateSignature(SignatureRequest{
		AppID:             opts.AppID,
		SecretKey:         opts.SecretKey,
		Request:           opts.Request,
		Timestamp:         timestamp,
		Nonce:             nonce,
		EndsWithSecretKey: opts.EndsWithSecretKey,
	})
	if err != nil {
		return nil, err
	}

	header := EncodeHeader(HeaderFields{
		AppID:     opts.AppID,
		Timestamp: timestamp,
		Nonce:     nonce,
		Signature: result.Signature,
	}, opts.Format())

	s.logger.Debug("Generated request signature",
		logging.String("appid", opts.AppID),
		logging.String("method", opts.NormalizedMethod()),
		logging.String("url", result.FullURL),
		logging.Int64("timestamp", timestamp),
	)

	return &SignedRequest{
		URL:                result.FullURL,
		Timestamp:          timestamp,
		Nonce:              nonce,
		RawSignatureString: result.CanonicalString,
		Signature:          result.Signature,
		HeaderValue:        header,
	}, nil
}
