package coach

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrInvalidToken is returned when the identity provider rejects a token.
var ErrInvalidToken = errors.New("coach: invalid access token")

// User is an identity-provider account.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// IdentityProvider validates tokens and manages auth accounts.
type IdentityProvider interface {
	GetUser(ctx context.Context, accessToken string) (*User, error)
	CreateUser(ctx context.Context, email, password string, metadata map[string]any) (*User, error)
	DeleteUser(ctx context.Context, userID string) error
}

// IdentityError carries the provider's message for a rejected request.
type IdentityError struct {
	StatusCode int
	Message    string
}

func (e *IdentityError) Error() string {
	return fmt.Sprintf("coach: identity provider status %d: %s", e.StatusCode, e.Message)
}

// IdentityClient talks to a GoTrue-compatible auth API.
type IdentityClient struct {
	baseURL    string
	anonKey    string
	serviceKey string
	httpClient *http.Client
}

func NewIdentityClient(baseURL, anonKey, serviceKey string, httpClient *http.Client) *IdentityClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &IdentityClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		anonKey:    anonKey,
		serviceKey: serviceKey,
		httpClient: httpClient,
	}
}

func (c *IdentityClient) GetUser(ctx context.Context, accessToken string) (*User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return nil, fmt.Errorf("coach: build user request: %w", err)
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+accessToken)

	var user User
	if err := c.do(req, &user); err != nil {
		var idErr *IdentityError
		if errors.As(err, &idErr) && (idErr.StatusCode == http.StatusUnauthorized || idErr.StatusCode == http.StatusForbidden) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if user.ID == "" {
		return nil, ErrInvalidToken
	}
	return &user, nil
}

func (c *IdentityClient) CreateUser(ctx context.Context, email, password string, metadata map[string]any) (*User, error) {
	body, err := json.Marshal(map[string]any{
		"email":         email,
		"password":      password,
		"email_confirm": true,
		"user_metadata": metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("coach: marshal create user: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/v1/admin/users", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("coach: build create user request: %w", err)
	}
	c.adminHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	var user User
	if err := c.do(req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *IdentityClient) DeleteUser(ctx context.Context, userID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/auth/v1/admin/users/"+userID, nil)
	if err != nil {
		return fmt.Errorf("coach: build delete user request: %w", err)
	}
	c.adminHeaders(req)
	return c.do(req, nil)
}

func (c *IdentityClient) adminHeaders(req *http.Request) {
	req.Header.Set("apikey", c.serviceKey)
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
}

func (c *IdentityClient) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("coach: identity request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("coach: read identity response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &IdentityError{StatusCode: resp.StatusCode, Message: identityMessage(data, resp.Status)}
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("coach: decode identity response: %w", err)
	}
	return nil
}

func identityMessage(body []byte, fallback string) string {
	var payload struct {
		Msg              string `json:"msg"`
		Message          string `json:"message"`
		ErrorDescription string `json:"error_description"`
		Error            string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		for _, v := range []string{payload.Msg, payload.Message, payload.ErrorDescription, payload.Error} {
			if strings.TrimSpace(v) != "" {
				return v
			}
		}
	}
	return fallback
}
