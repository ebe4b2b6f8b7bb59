// Package auth exchanges a service-account key for a platform bearer token.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const (
	// CloudPlatformScope is the OAuth scope requested for the token.
	CloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

	// jwtBearerGrantType is the grant type for service-account assertions.
	jwtBearerGrantType = "urn:ietf:params:oauth:grant-type:jwt-bearer"

	// assertionLifetime is the validity window claimed on the signed
	// assertion; the identity service caps it at one hour.
	assertionLifetime = time.Hour
)

// AuthenticationError reports a missing, malformed, or rejected key.
type AuthenticationError struct {
	// Op is the failing step ("parse_key", "sign_assertion", "exchange_token").
	Op string

	// Err is the underlying cause.
	Err error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("auth: %s: %v", e.Op, e.Err)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// ServiceAccountKey is the JSON-shaped secret identifying the service account.
type ServiceAccountKey struct {
	Type         string `json:"type"`
	ProjectID    string `json:"project_id"`
	PrivateKeyID string `json:"private_key_id"`
	PrivateKey   string `json:"private_key"`
	ClientEmail  string `json:"client_email"`
	TokenURI     string `json:"token_uri"`
}

// Validate checks the key carries everything the token exchange needs.
func (k *ServiceAccountKey) Validate() error {
	if k.Type != "service_account" {
		return fmt.Errorf("key type %q is not service_account", k.Type)
	}
	if k.ClientEmail == "" {
		return fmt.Errorf("client_email is required")
	}
	if k.PrivateKey == "" {
		return fmt.Errorf("private_key is required")
	}
	if k.TokenURI == "" {
		return fmt.Errorf("token_uri is required")
	}
	return nil
}

// Credentials is a usable bearer token plus the key it came from. It is
// read-only after creation and shared by every downstream component.
type Credentials struct {
	// Token is the bearer token for API requests.
	Token string

	// ExpiresAt is when the token stops being accepted.
	ExpiresAt time.Time

	// Key is the parsed service-account key.
	Key *ServiceAccountKey
}

// assertionClaims is the signed JWT body sent to the token endpoint.
type assertionClaims struct {
	jwt.RegisteredClaims
	Scope string `json:"scope"`
}

// tokenResponse is the identity service's exchange response.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// Authenticate parses the service-account key JSON, signs an RS256
// assertion with its private key, and exchanges it for a bearer token.
func Authenticate(ctx context.Context, keyJSON string, logger *zap.Logger) (*Credentials, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	key, err := parseKey(keyJSON)
	if err != nil {
		return nil, &AuthenticationError{Op: "parse_key", Err: err}
	}

	assertion, err := signAssertion(key)
	if err != nil {
		return nil, &AuthenticationError{Op: "sign_assertion", Err: err}
	}

	token, expiresAt, err := exchangeToken(ctx, key.TokenURI, assertion)
	if err != nil {
		return nil, &AuthenticationError{Op: "exchange_token", Err: err}
	}

	logger.Info("authentication succeeded",
		zap.String("client_email", key.ClientEmail),
		zap.Time("expires_at", expiresAt))

	return &Credentials{Token: token, ExpiresAt: expiresAt, Key: key}, nil
}

func parseKey(keyJSON string) (*ServiceAccountKey, error) {
	if strings.TrimSpace(keyJSON) == "" {
		return nil, fmt.Errorf("service account key is empty")
	}

	var key ServiceAccountKey
	if err := json.Unmarshal([]byte(keyJSON), &key); err != nil {
		return nil, fmt.Errorf("parse key JSON: %w", err)
	}
	if err := key.Validate(); err != nil {
		return nil, err
	}
	return &key, nil
}

func signAssertion(key *ServiceAccountKey) (string, error) {
	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(key.PrivateKey))
	if err != nil {
		return "", fmt.Errorf("parse private key: %w", err)
	}

	now := time.Now()
	claims := &assertionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    key.ClientEmail,
			Audience:  jwt.ClaimStrings{key.TokenURI},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(assertionLifetime)),
		},
		Scope: CloudPlatformScope,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = key.PrivateKeyID
	return token.SignedString(privateKey)
}

func exchangeToken(ctx context.Context, tokenURI, assertion string) (string, time.Time, error) {
	form := url.Values{}
	form.Set("grant_type", jwtBearerGrantType)
	form.Set("assertion", assertion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURI,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	httpClient := &http.Client{Timeout: 30 * time.Second}
	resp, err := httpClient.Do(req)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", time.Time{}, fmt.Errorf("token endpoint rejected assertion: status %d, body: %s",
			resp.StatusCode, string(body))
	}

	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return "", time.Time{}, fmt.Errorf("decode token response: %w", err)
	}
	if token.AccessToken == "" {
		return "", time.Time{}, fmt.Errorf("token response contains no access token")
	}

	expiresAt := time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	return token.AccessToken, expiresAt, nil
}
