// Package api is the HTTP client for the LayerForge backend. Responses
// carry rejection reasons as data; only transport and server faults become
// errors.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/layerforge/layerforge/internal/common"
)

var (
	ErrUnauthorized = errors.New("not authenticated")
	ErrServerFault  = errors.New("server fault")
)

// Client talks to the server, attaching the identity bearer token when one
// has been set.
type Client struct {
	baseURL       string
	identityToken string
	http          *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// SetIdentityToken stores the identity-provider token used on subsequent
// authenticated calls.
func (c *Client) SetIdentityToken(token string) {
	c.identityToken = token
}

// EstablishResult mirrors the establish response body.
type EstablishResult struct {
	UserID       string `json:"user_id"`
	Email        string `json:"email"`
	DisplayName  string `json:"display_name"`
	IsAdmin      bool   `json:"is_admin"`
	SessionToken string `json:"session_token"`
}

// AdmissionRejectedError is returned when provisioning was refused.
type AdmissionRejectedError struct {
	Reason common.AdmissionReason
}

func (e *AdmissionRejectedError) Error() string {
	return "admission rejected: " + string(e.Reason)
}

// EstablishSession signs in, optionally presenting an admission proof.
func (c *Client) EstablishSession(ctx context.Context, proofID, claimToken string) (*EstablishResult, error) {
	body := map[string]string{}
	if proofID != "" {
		body["proof_id"] = proofID
		body["claim_token"] = claimToken
	}

	resp, raw, err := c.post(ctx, "/api/v1/session/establish", body)
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode {
	case http.StatusOK:
		result := &EstablishResult{}
		if err := json.Unmarshal(raw, result); err != nil {
			return nil, err
		}
		return result, nil
	case http.StatusUnauthorized:
		return nil, ErrUnauthorized
	case http.StatusTooManyRequests:
		var body struct {
			RetryAfterSeconds int `json:"retry_after_seconds"`
		}
		_ = json.Unmarshal(raw, &body)
		return nil, &common.RateLimitError{RetryAfter: time.Duration(body.RetryAfterSeconds) * time.Second}
	case http.StatusForbidden:
		var body struct {
			Reason common.AdmissionReason `json:"reason"`
		}
		_ = json.Unmarshal(raw, &body)
		return nil, &AdmissionRejectedError{Reason: body.Reason}
	default:
		return nil, fmt.Errorf("%w: establish returned %s", ErrServerFault, resp.Status)
	}
}

// ValidateSession asks the server whether token is still current.
func (c *Client) ValidateSession(ctx context.Context, token string) (common.SessionReason, error) {
	resp, raw, err := c.post(ctx, "/api/v1/session/validate", map[string]string{"token": token})
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: validate returned %s", ErrServerFault, resp.Status)
	}

	var body struct {
		Valid  bool                 `json:"valid"`
		Reason common.SessionReason `json:"reason"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return "", err
	}
	if body.Valid {
		return common.SessionValid, nil
	}
	return body.Reason, nil
}

// ClaimResult mirrors the claim response body.
type ClaimResult struct {
	Valid             bool               `json:"valid"`
	Reason            common.ClaimReason `json:"reason"`
	RetryAfterSeconds int                `json:"retry_after_seconds"`
	ProofID           string             `json:"proof_id"`
	Tier              string             `json:"tier"`
	ClaimToken        string             `json:"claim_token"`
	ClaimExpiresAt    time.Time          `json:"claim_expires_at"`
}

// ClaimProof verifies a handle/code pair against the admission gate.
func (c *Client) ClaimProof(ctx context.Context, handle, code string) (*ClaimResult, error) {
	resp, raw, err := c.post(ctx, "/api/v1/admission/claim", map[string]string{"handle": handle, "code": code})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: claim returned %s", ErrServerFault, resp.Status)
	}

	result := &ClaimResult{}
	if err := json.Unmarshal(raw, result); err != nil {
		return nil, err
	}
	return result, nil
}

// UploadTicket mirrors the upload-ticket response body.
type UploadTicket struct {
	TicketID   string    `json:"ticket_id"`
	StorageKey string    `json:"storage_key"`
	URL        string    `json:"url"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// CreateUpload requests a pending-upload ticket. The server binds the
// ticket to the account behind the identity token.
func (c *Client) CreateUpload(ctx context.Context) (*UploadTicket, error) {
	resp, raw, err := c.post(ctx, "/api/v1/uploads", map[string]string{})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: upload ticket returned %s", ErrServerFault, resp.Status)
	}
	ticket := &UploadTicket{}
	if err := json.Unmarshal(raw, ticket); err != nil {
		return nil, err
	}
	return ticket, nil
}

// CommitUpload consumes the ticket and returns the download URL.
func (c *Client) CommitUpload(ctx context.Context, ticketID string) (string, error) {
	resp, raw, err := c.post(ctx, "/api/v1/uploads/"+ticketID+"/commit", map[string]string{})
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: commit returned %s", ErrServerFault, resp.Status)
	}
	var body struct {
		DownloadURL string `json:"download_url"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return "", err
	}
	return body.DownloadURL, nil
}

// Ping checks server liveness.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health returned %s", ErrServerFault, resp.Status)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body any) (*http.Response, []byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.identityToken != "" {
		req.Header.Set(common.IdentityTokenHeaderName, "Bearer "+c.identityToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, nil, err
	}
	return resp, raw, nil
}
