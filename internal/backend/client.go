package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Itqan-community/itqan-cms/internal/models"
	"golang.org/x/oauth2"
)

const completeProfilePath = "/api/v1/auth/complete-profile/"

// maxResponseBytes caps how much of a backend response is read.
const maxResponseBytes = 1 << 20

// CompleteProfileRequest is the body of the backend profile-completion call.
type CompleteProfileRequest struct {
	Auth0ID       string `json:"auth0_id"`
	Email         string `json:"email"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	JobTitle      string `json:"job_title"`
	PhoneNumber   string `json:"phone_number"`
	BusinessModel string `json:"business_model"`
	TeamSize      string `json:"team_size"`
	AboutYourself string `json:"about_yourself"`
}

// Client talks to the Itqan backend API on behalf of a signed-in user.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a backend client. A nil httpClient gets a client with the
// given timeout.
func NewClient(baseURL string, timeout time.Duration, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// CompleteProfile submits the profile form with the user's access token and
// returns the user record the backend responds with.
func (c *Client) CompleteProfile(ctx context.Context, accessToken string, req CompleteProfileRequest) (*models.User, error) {
	if accessToken == "" {
		return nil, models.ErrNotAuthenticated
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode profile: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+completeProfilePath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build profile request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.bearerClient(ctx, accessToken).Do(httpReq)
	if err != nil {
		c.logger.Error("backend request failed", "path", completeProfilePath, "error", err)
		return nil, fmt.Errorf("%w: complete profile: %v", models.ErrNetwork, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading profile response: %v", models.ErrNetwork, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		upstream := &models.UpstreamError{StatusCode: resp.StatusCode, Message: errorMessage(raw, resp.Status)}
		c.logger.Warn("backend rejected profile completion",
			"status", resp.StatusCode,
			"message", upstream.Message,
		)
		switch resp.StatusCode {
		case http.StatusUnauthorized:
			return nil, fmt.Errorf("%w: %w", models.ErrUnauthorized, upstream)
		case http.StatusBadRequest, http.StatusUnprocessableEntity:
			return nil, fmt.Errorf("%w: %w", models.ErrBadRequest, upstream)
		case http.StatusConflict:
			return nil, fmt.Errorf("%w: %w", models.ErrConflict, upstream)
		}
		return nil, upstream
	}

	var user models.User
	if err := json.Unmarshal(raw, &user); err != nil {
		c.logger.Error("invalid backend response", "path", completeProfilePath, "error", err)
		return nil, fmt.Errorf("%w: complete profile: %v", models.ErrInvalidResponse, err)
	}
	return &user, nil
}

func (c *Client) bearerClient(ctx context.Context, accessToken string) *http.Client {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))
	client.Timeout = c.httpClient.Timeout
	return client
}

// errorMessage extracts the human-readable message from a backend error
// payload, falling back to the status text.
func errorMessage(raw []byte, fallback string) string {
	var payload struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fallback
	}

	if len(payload.Detail) > 0 {
		var detail string
		if err := json.Unmarshal(payload.Detail, &detail); err == nil && detail != "" {
			return detail
		}
		// Validation errors arrive as {"detail": [{"msg": ...}]}.
		var items []struct {
			Msg string `json:"msg"`
		}
		if err := json.Unmarshal(payload.Detail, &items); err == nil {
			msgs := make([]string, 0, len(items))
			for _, item := range items {
				if item.Msg != "" {
					msgs = append(msgs, item.Msg)
				}
			}
			if len(msgs) > 0 {
				return strings.Join(msgs, "; ")
			}
		}
	}
	if payload.Message != "" {
		return payload.Message
	}
	if payload.Error != "" {
		return payload.Error
	}
	return fallback
}
