package tenancy

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// OperatorIdentity is the acting principal extracted from a request.
type OperatorIdentity struct {
	Principal string
	// Platform marks the cross-tenant platform-operator capability.
	Platform bool
}

// OperatorExtractor extracts the acting operator from an HTTP request.
// Identity *verification* is handled upstream (gateway / trusted proxy);
// this only recovers who is acting so publish history can record it.
type OperatorExtractor func(r *http.Request) OperatorIdentity

// HeaderOperatorExtractor reads the operator principal from the X-Operator
// header. If platformRole is non-empty, requests carrying that value in the
// X-Role header are granted the platform-operator capability.
func HeaderOperatorExtractor(platformRole string) OperatorExtractor {
	return func(r *http.Request) OperatorIdentity {
		id := OperatorIdentity{Principal: r.Header.Get(OperatorHeader)}
		if id.Principal == "" {
			id.Principal = "system"
		}
		if platformRole != "" && strings.EqualFold(r.Header.Get("X-Role"), platformRole) {
			id.Platform = true
		}
		return id
	}
}

// JWTOperatorExtractorConfig configures the JWT-based operator extractor.
type JWTOperatorExtractorConfig struct {
	// SubjectClaim is the JWT claim containing the operator principal.
	// Default: "sub"
	SubjectClaim string

	// RoleClaim is the JWT claim path containing the caller's role.
	// Supports dot-notation for nested claims (e.g., "realm_access.roles").
	// Default: "role"
	RoleClaim string

	// PlatformRoleValue is the claim value that grants the platform-operator
	// capability. Default: "platform-operator"
	PlatformRoleValue string

	// PublicKeyPath is the path to the PEM-encoded RSA public key for RS256
	// verification. If empty, tokens are parsed but NOT verified (suitable
	// for dev/testing behind a trusted proxy).
	PublicKeyPath string

	// Issuer is the expected token issuer (iss claim). If empty, issuer is not validated.
	Issuer string

	// Audience is the expected token audience (aud claim). If empty, audience is not validated.
	Audience string

	// Logger for debugging. If nil, uses slog.Default().
	Logger *slog.Logger
}

// NewJWTOperatorExtractor creates an OperatorExtractor that reads the acting
// principal from JWT Bearer tokens, falling back to the X-Operator header
// when no token is presented.
//
// Security model:
//   - If PublicKeyPath is set, tokens are cryptographically verified (RS256)
//   - If PublicKeyPath is empty, tokens are parsed without verification (trusted proxy mode)
//   - Missing or invalid tokens fall back to the header extractor, which
//     never grants the platform capability from a token
func NewJWTOperatorExtractor(cfg JWTOperatorExtractorConfig) (OperatorExtractor, error) {
	if cfg.SubjectClaim == "" {
		cfg.SubjectClaim = "sub"
	}
	if cfg.RoleClaim == "" {
		cfg.RoleClaim = "role"
	}
	if cfg.PlatformRoleValue == "" {
		cfg.PlatformRoleValue = "platform-operator"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	var publicKey *rsa.PublicKey
	if cfg.PublicKeyPath != "" {
		keyData, err := os.ReadFile(cfg.PublicKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read JWT public key from %s: %w", cfg.PublicKeyPath, err)
		}
		block, _ := pem.Decode(keyData)
		if block == nil {
			return nil, fmt.Errorf("failed to decode PEM block from %s", cfg.PublicKeyPath)
		}
		parsedKey, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse public key: %w", err)
		}
		rsaKey, ok := parsedKey.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("public key is not RSA (got %T)", parsedKey)
		}
		publicKey = rsaKey
		cfg.Logger.Info("JWT operator extractor: using RS256 verification", "keyPath", cfg.PublicKeyPath)
	} else {
		cfg.Logger.Warn("JWT operator extractor: no public key configured, tokens parsed without verification (trusted proxy mode)")
	}

	headerFallback := HeaderOperatorExtractor("")

	return func(r *http.Request) OperatorIdentity {
		token := extractBearerToken(r)
		if token == "" {
			return headerFallback(r)
		}

		claims, err := parseJWTClaims(token, publicKey, cfg)
		if err != nil {
			cfg.Logger.Debug("JWT parse failed, falling back to header identity", "error", err)
			return headerFallback(r)
		}

		id := OperatorIdentity{Principal: "system"}
		if sub, ok := claims[cfg.SubjectClaim].(string); ok && sub != "" {
			id.Principal = sub
		}
		id.Platform = claimMatches(claims, cfg.RoleClaim, cfg.PlatformRoleValue)
		return id
	}, nil
}

// extractBearerToken extracts the token from "Authorization: Bearer <token>".
func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// parseJWTClaims parses and optionally verifies a JWT token.
func parseJWTClaims(tokenString string, publicKey *rsa.PublicKey, cfg JWTOperatorExtractorConfig) (jwt.MapClaims, error) {
	parserOpts := []jwt.ParserOption{}
	if cfg.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(cfg.Audience))
	}

	var token *jwt.Token
	var err error

	if publicKey != nil {
		token, err = jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return publicKey, nil
		}, parserOpts...)
	} else {
		// Trusted proxy mode: parse without verification
		parser := jwt.NewParser(parserOpts...)
		token, _, err = parser.ParseUnverified(tokenString, jwt.MapClaims{})
	}

	if err != nil {
		return nil, fmt.Errorf("JWT parse error: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("unexpected claims type")
	}

	return claims, nil
}

// claimMatches walks a dot-notation claim path and reports whether the value
// (string or string array) matches want.
func claimMatches(claims jwt.MapClaims, claimPath string, want string) bool {
	parts := strings.Split(claimPath, ".")
	var current interface{} = map[string]interface{}(claims)

	for _, part := range parts {
		m, ok := current.(map[string]interface{})
		if !ok {
			return false
		}
		current, ok = m[part]
		if !ok {
			return false
		}
	}

	if strVal, ok := current.(string); ok {
		return strings.EqualFold(strVal, want)
	}

	// Array claim (e.g., Keycloak realm_access.roles: ["platform-operator", "user"])
	if arrVal, ok := current.([]interface{}); ok {
		for _, v := range arrVal {
			if s, ok := v.(string); ok && strings.EqualFold(s, want) {
				return true
			}
		}
	}

	return false
}
