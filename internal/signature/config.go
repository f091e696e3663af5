package signature

import (
	"encoding/json"
	"fmt"

	"sigauth/internal/common/errors"
)

// VerifyConfig holds the header verification options.
type VerifyConfig struct {
	// VerifyTimestamp rejects headers older than TimestampValidTime.
	VerifyTimestamp bool `json:"verify_timestamp"`
	// TimestampValidTime is the replay window in seconds.
	TimestampValidTime int64 `json:"timestamp_valid_time"`
	// VerifyHashName rejects a prefix other than "HMAC-SHA256". It has no
	// effect unless WithHashName is set.
	VerifyHashName bool `json:"verify_hash_name"`
	// WithHashName expects the header to carry an algorithm prefix.
	WithHashName bool `json:"with_hash_name"`
	// PairValue expects appid=..&timestamp=.. pairs.
	PairValue bool `json:"pair_value"`
	// EndsWithSecretKey appends the secret to the canonical string.
	EndsWithSecretKey bool `json:"ends_with_secret_key"`
}

// DefaultVerifyConfig returns the default verification options.
func DefaultVerifyConfig() VerifyConfig {
	return VerifyConfig{
		VerifyTimestamp:    true,
		TimestampValidTime: DefaultTimestampValidTime,
		VerifyHashName:     true,
		WithHashName:       true,
	}
}

// Format returns the header format the config expects.
func (c VerifyConfig) Format() HeaderFormat {
	return HeaderFormat{WithHashName: c.WithHashName, PairValue: c.PairValue}
}

// Validate checks that the options are consistent.
func (c VerifyConfig) Validate() error {
	if c.VerifyTimestamp && c.TimestampValidTime <= 0 {
		return errors.ConfigError("timestamp_valid_time must be positive when verify_timestamp is enabled")
	}
	return nil
}

// LoadVerifyConfig merges a JSON document over DefaultVerifyConfig and
// validates the result. Absent fields keep their default.
func LoadVerifyConfig(data []byte) (VerifyConfig, error) {
	cfg := DefaultVerifyConfig()
	if len(data) > 0 {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return VerifyConfig{}, errors.ConfigError(fmt.Sprintf("invalid verify config: %v", err))
		}
	}
	if err := cfg.Validate(); err != nil {
		return VerifyConfig{}, err
	}
	return cfg, nil
}
