package identity

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/oauth2/microsoft"
)

// ErrNoToken indicates the credential exchange completed without producing
// an access token. Callers treat every exchange failure uniformly; the error
// detail exists for logging only.
var ErrNoToken = errors.New("credential exchange returned no token")

// AcquireToken performs a client-credentials exchange against the authority
// for the given tenant, requesting the provider's default scope. One call
// per operator per run; tokens are never cached across runs.
func (c *Client) AcquireToken(ctx context.Context, clientID, tenantID, clientSecret string) (string, error) {
	conf := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     c.tokenURL(tenantID),
		Scopes:       []string{defaultScope},
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.HTTP)
	tok, err := conf.Token(ctx)
	if err != nil {
		c.Logger.Error("token exchange failed", zap.String("tenant", tenantID), zap.Error(err))
		return "", fmt.Errorf("acquire token: %w", err)
	}
	if tok.AccessToken == "" {
		c.Logger.Error("token exchange returned no access token", zap.String("tenant", tenantID))
		return "", ErrNoToken
	}
	return tok.AccessToken, nil
}

func (c *Client) tokenURL(tenantID string) string {
	if c.Authority == "" {
		return microsoft.AzureADEndpoint(tenantID).TokenURL
	}
	return c.Authority + "/" + tenantID + "/oauth2/v2.0/token"
}
