// Package auth protects the admin API with HS256 bearer tokens.
package auth

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"sigauth/internal/common/errors"
	"sigauth/internal/common/logging"
	"sigauth/internal/common/utils"
	"sigauth/internal/redis"
)

const (
	// Issuer is written to and required in every token.
	Issuer = "sigauth"
	// DefaultTokenTTL is used when GenerateJWT is given a zero ttl.
	DefaultTokenTTL = 24 * time.Hour
	// MinSecretLength mirrors the JWT_SECRET check in config.
	MinSecretLength = 32

	revokedPrefix = "sigauth:jwt:revoked:"
)

// Claims identify an admin caller.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// RevocationStore remembers revoked token ids until they expire.
// redis.Client satisfies it.
type RevocationStore interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string) (string, error)
}

type claimsKey struct{}

type Auth struct {
	secret  []byte
	revoked RevocationStore
	logger  logging.Logger
	now     func() time.Time
}

// New creates an Auth. revoked may be nil, in which case Revoke fails and
// tokens are only checked for signature and expiry.
func New(secret string, revoked RevocationStore, logger logging.Logger) (*Auth, error) {
	if len(secret) < MinSecretLength {
		return nil, errors.ConfigError(fmt.Sprintf("JWT secret must be at least %d characters", MinSecretLength))
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Auth{
		secret:  []byte(secret),
		revoked: revoked,
		logger:  logger,
		now:     time.Now,
	}, nil
}

// GenerateJWT issues a token for subject. It returns the token and its expiry.
func (a *Auth) GenerateJWT(subject, role string, ttl time.Duration) (string, time.Time, error) {
	if subject == "" {
		return "", time.Time{}, errors.ValidationError("token subject is required")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	id, err := utils.GenerateRandomID(32)
	if err != nil {
		return "", time.Time{}, errors.InternalError("failed to generate token id", err)
	}

	now := a.now()
	expiresAt := now.Add(ttl)
	claims := &Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Subject:   subject,
			Issuer:    Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, errors.InternalError("failed to sign token", err)
	}
	return token, expiresAt, nil
}

// ValidateJWT parses and checks a token, including the revocation list.
func (a *Auth) ValidateJWT(ctx context.Context, tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, errors.AuthError("token is required")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return nil, &errors.AppError{Type: errors.ErrTypeAuth, Message: "invalid token", Cause: err}
	}
	if !token.Valid {
		return nil, errors.AuthError("invalid token")
	}

	if a.revoked != nil && claims.ID != "" {
		value, err := a.revoked.Get(ctx, revokedPrefix+claims.ID)
		switch {
		case err == nil && value != "":
			return nil, errors.AuthError("token has been revoked")
		case err != nil && !stderrors.Is(err, redis.ErrKeyNotFound):
			a.logger.Warn("Token revocation check failed", logging.String("subject", claims.Subject), logging.Err(err))
		}
	}

	return claims, nil
}

// Revoke invalidates a token until it would have expired anyway.
func (a *Auth) Revoke(ctx context.Context, tokenString string) error {
	claims, err := a.ValidateJWT(ctx, tokenString)
	if err != nil {
		return err
	}
	if a.revoked == nil {
		return errors.ConfigError("token revocation requires Redis")
	}
	if claims.ID == "" {
		return errors.ValidationError("token has no id")
	}

	ttl := claims.ExpiresAt.Time.Sub(a.now())
	if ttl <= 0 {
		return nil
	}
	if err := a.revoked.Set(ctx, revokedPrefix+claims.ID, "1", ttl); err != nil {
		return errors.ConnectionError("failed to revoke token", err)
	}

	a.logger.Info("Token revoked", logging.String("subject", claims.Subject))
	return nil
}

// RequireAuth rejects requests without a valid bearer token and stores the
// claims in the request context.
func (a *Auth) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := ExtractToken(r)
		if token == "" {
			unauthorized(w, "Authentication required")
			return
		}

		claims, err := a.ValidateJWT(r.Context(), token)
		if err != nil {
			a.logger.WithContext(r.Context()).Warn("Admin authentication failed",
				logging.String("path", r.URL.Path),
				logging.Err(err),
			)
			unauthorized(w, "Authentication required")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ExtractToken returns the bearer token of the Authorization header.
func ExtractToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

// ClaimsFromContext returns the claims stored by RequireAuth.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*Claims)
	return claims, ok
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="sigauth"`)
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
