// Package identity talks to the external identity provider: it exchanges an
// operator's application credentials for a bearer token and issues guest
// account creation calls, classifying each result into a three-way outcome.
package identity

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	defaultGraphBaseURL = "https://graph.microsoft.com/v1.0"
	defaultScope        = "https://graph.microsoft.com/.default"

	// The provider reports directory quota exhaustion inside a generic error
	// payload; this marker substring is the only reliable signal.
	quotaMarker = "Directory_QuotaExceeded"

	// Guests receive a fixed temporary password and must change it on first
	// sign-in.
	tempPassword = "Welcome@123"

	defaultTimeout = 25 * time.Second
)

// Client issues calls against the identity provider. BaseURL and Authority
// default to the public Microsoft endpoints and are overridable for tests.
type Client struct {
	BaseURL   string // Graph API base, no trailing slash
	Authority string // token authority base; empty means login.microsoftonline.com
	HTTP      *http.Client
	Logger    *zap.Logger
}

// New builds a Client with the given per-call network timeout. A zero
// timeout selects the default.
func New(timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		BaseURL: defaultGraphBaseURL,
		HTTP:    &http.Client{Timeout: timeout},
		Logger:  logger,
	}
}

// Provider is the surface the operator runner needs; satisfied by Client
// and by test fakes.
type Provider interface {
	AcquireToken(ctx context.Context, clientID, tenantID, clientSecret string) (string, error)
	CreateGuest(ctx context.Context, token, email, operatorDomain string) Outcome
}

var _ Provider = (*Client)(nil)
