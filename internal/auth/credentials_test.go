package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// testKeyJSON builds a syntactically valid service-account key whose
// token_uri points at the given test server.
func testKeyJSON(t *testing.T, tokenURI string) string {
	t.Helper()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	keyBytes, err := x509.MarshalPKCS8PrivateKey(privateKey)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyBytes})

	key := ServiceAccountKey{
		Type:         "service_account",
		ProjectID:    "test-project",
		PrivateKeyID: "key-1",
		PrivateKey:   string(keyPEM),
		ClientEmail:  "etl@test-project.iam.gserviceaccount.com",
		TokenURI:     tokenURI,
	}
	data, err := json.Marshal(key)
	if err != nil {
		t.Fatalf("marshal key json: %v", err)
	}
	return string(data)
}

func TestAuthenticate_Succeeds(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.PostForm.Get("grant_type"); got != jwtBearerGrantType {
			t.Errorf("expected jwt-bearer grant type, got %q", got)
		}
		if r.PostForm.Get("assertion") == "" {
			t.Error("expected a signed assertion in the request")
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "ya29.test-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
	defer server.Close()

	credentials, err := Authenticate(context.Background(), testKeyJSON(t, server.URL), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if credentials.Token != "ya29.test-token" {
		t.Errorf("expected token 'ya29.test-token', got %q", credentials.Token)
	}
	if credentials.ExpiresAt.IsZero() {
		t.Error("expected a non-zero expiry")
	}
	if credentials.Key.ClientEmail != "etl@test-project.iam.gserviceaccount.com" {
		t.Errorf("unexpected client email %q", credentials.Key.ClientEmail)
	}
}

func TestAuthenticate_InvalidKey(t *testing.T) {
	tests := []struct {
		name    string
		keyJSON string
		op      string
	}{
		{"empty", "", "parse_key"},
		{"not json", "{not-json", "parse_key"},
		{"wrong type", `{"type":"user","client_email":"a@b","private_key":"x","token_uri":"https://t"}`, "parse_key"},
		{"missing email", `{"type":"service_account","private_key":"x","token_uri":"https://t"}`, "parse_key"},
		{"missing private key", `{"type":"service_account","client_email":"a@b","token_uri":"https://t"}`, "parse_key"},
		{"missing token uri", `{"type":"service_account","client_email":"a@b","private_key":"x"}`, "parse_key"},
		{"garbage private key", `{"type":"service_account","client_email":"a@b","private_key":"not-pem","token_uri":"https://t"}`, "sign_assertion"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Authenticate(context.Background(), tt.keyJSON, nil)
			if err == nil {
				t.Fatal("expected error, got nil")
			}

			var authErr *AuthenticationError
			if !errors.As(err, &authErr) {
				t.Fatalf("expected *AuthenticationError, got %T: %v", err, err)
			}
			if authErr.Op != tt.op {
				t.Errorf("expected op %q, got %q", tt.op, authErr.Op)
			}
		})
	}
}

func TestAuthenticate_RejectedByIdentityService(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
	}))
	defer server.Close()

	_, err := Authenticate(context.Background(), testKeyJSON(t, server.URL), nil)
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var authErr *AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected *AuthenticationError, got %T", err)
	}
	if authErr.Op != "exchange_token" {
		t.Errorf("expected op 'exchange_token', got %q", authErr.Op)
	}
	if !strings.Contains(authErr.Error(), "invalid_grant") {
		t.Errorf("expected underlying rejection in message, got %q", authErr.Error())
	}
}

func TestAuthenticate_EmptyAccessToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"token_type":"Bearer","expires_in":3600}`))
	}))
	defer server.Close()

	_, err := Authenticate(context.Background(), testKeyJSON(t, server.URL), nil)
	if err == nil {
		t.Fatal("expected error for empty access token, got nil")
	}

	var authErr *AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected *AuthenticationError, got %T", err)
	}
}
