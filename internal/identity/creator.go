package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/yourorg/guest-provisioner/internal/record"
)

// OutcomeKind is the tri-state result of one account-creation attempt.
type OutcomeKind int

const (
	OutcomeCreated OutcomeKind = iota
	OutcomeQuotaExceeded
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeCreated:
		return "created"
	case OutcomeQuotaExceeded:
		return "quota_exceeded"
	default:
		return "failed"
	}
}

// Outcome is the result of one creation attempt. Detail is retained for
// logging only; it never reaches the ledger.
type Outcome struct {
	Kind   OutcomeKind
	Detail string
}

type passwordProfile struct {
	ForceChangePasswordNextSignIn bool   `json:"forceChangePasswordNextSignIn"`
	Password                      string `json:"password"`
}

type guestRequest struct {
	AccountEnabled    bool            `json:"accountEnabled"`
	DisplayName       string          `json:"displayName"`
	MailNickname      string          `json:"mailNickname"`
	UserPrincipalName string          `json:"userPrincipalName"`
	UserType          string          `json:"userType"`
	Mail              string          `json:"mail"`
	PasswordProfile   passwordProfile `json:"passwordProfile"`
}

// maxErrorBody bounds how much of an error response we keep for logging.
const maxErrorBody = 16 << 10

// CreateGuest submits one guest-account creation request for the candidate
// email under the operator's domain. No retries; a failed call is simply not
// retried here or anywhere upstream.
func (c *Client) CreateGuest(ctx context.Context, token, email, operatorDomain string) Outcome {
	payload := guestRequest{
		AccountEnabled:    true,
		DisplayName:       record.DisplayName(email),
		MailNickname:      record.MailNickname(email),
		UserPrincipalName: record.PrincipalName(email, operatorDomain),
		UserType:          "Guest",
		Mail:              email,
		PasswordProfile: passwordProfile{
			ForceChangePasswordNextSignIn: true,
			Password:                      tempPassword,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Outcome{Kind: OutcomeFailed, Detail: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/users", bytes.NewReader(body))
	if err != nil {
		return Outcome{Kind: OutcomeFailed, Detail: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		c.Logger.Error("creation call failed", zap.String("email", email), zap.Error(err))
		return Outcome{Kind: OutcomeFailed, Detail: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusCreated {
		c.Logger.Info("created guest", zap.String("email", email))
		return Outcome{Kind: OutcomeCreated}
	}

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if strings.Contains(string(respBody), quotaMarker) {
		c.Logger.Warn("quota exceeded", zap.String("email", email))
		return Outcome{Kind: OutcomeQuotaExceeded}
	}

	detail := fmt.Sprintf("status %d: %s", resp.StatusCode, respBody)
	c.Logger.Error("creation rejected", zap.String("email", email), zap.Int("status", resp.StatusCode))
	return Outcome{Kind: OutcomeFailed, Detail: detail}
}
