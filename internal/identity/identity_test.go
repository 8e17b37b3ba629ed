package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := New(2*time.Second, nil)
	c.BaseURL = srv.URL
	c.Authority = srv.URL
	return c, srv
}

func TestAcquireToken(t *testing.T) {
	var gotPath string
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok-abc",
			"token_type":   "Bearer",
			"expires_in":   3599,
		})
	}))
	tok, err := c.AcquireToken(context.Background(), "cid", "tenant-1", "sec")
	if err != nil {
		t.Fatalf("AcquireToken: %v", err)
	}
	if tok != "tok-abc" {
		t.Fatalf("token=%q", tok)
	}
	if gotPath != "/tenant-1/oauth2/v2.0/token" {
		t.Fatalf("token path=%q", gotPath)
	}
}

func TestAcquireTokenFailure(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_client"}`, http.StatusUnauthorized)
	}))
	if _, err := c.AcquireToken(context.Background(), "cid", "t", "bad"); err == nil {
		t.Fatal("expected error for rejected exchange")
	}
}

func TestCreateGuestCreated(t *testing.T) {
	var got guestRequest
	var auth string
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
	}))
	out := c.CreateGuest(context.Background(), "tok", "john.doe@ext.io", "contoso.com")
	if out.Kind != OutcomeCreated {
		t.Fatalf("kind=%v detail=%q", out.Kind, out.Detail)
	}
	if auth != "Bearer tok" {
		t.Fatalf("auth=%q", auth)
	}
	if got.DisplayName != "John Doe" {
		t.Fatalf("displayName=%q", got.DisplayName)
	}
	if got.UserPrincipalName != "john.doe_ext.io#EXT#@contoso.com" {
		t.Fatalf("upn=%q", got.UserPrincipalName)
	}
	if got.MailNickname != "john.doe" || got.Mail != "john.doe@ext.io" {
		t.Fatalf("nickname=%q mail=%q", got.MailNickname, got.Mail)
	}
	if got.UserType != "Guest" || !got.AccountEnabled {
		t.Fatalf("type=%q enabled=%v", got.UserType, got.AccountEnabled)
	}
	if !got.PasswordProfile.ForceChangePasswordNextSignIn {
		t.Fatal("password change not forced")
	}
}

func TestCreateGuestQuotaExceeded(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"code":"Directory_QuotaExceeded","message":"limit reached"}}`))
	}))
	out := c.CreateGuest(context.Background(), "tok", "a@x.io", "contoso.com")
	if out.Kind != OutcomeQuotaExceeded {
		t.Fatalf("kind=%v", out.Kind)
	}
}

func TestCreateGuestFailed(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":"Request_BadRequest"}}`, http.StatusBadRequest)
	}))
	out := c.CreateGuest(context.Background(), "tok", "a@x.io", "contoso.com")
	if out.Kind != OutcomeFailed {
		t.Fatalf("kind=%v", out.Kind)
	}
	if out.Detail == "" {
		t.Fatal("expected detail for failed outcome")
	}
}

func TestCreateGuestTransportError(t *testing.T) {
	c, srv := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()
	out := c.CreateGuest(context.Background(), "tok", "a@x.io", "contoso.com")
	if out.Kind != OutcomeFailed {
		t.Fatalf("kind=%v", out.Kind)
	}
}
