// Package api implements the HTTP client for the credential service. The
// refresh token lives in the cookie jar and never surfaces to callers; the
// access token is held in memory and attached as a bearer header.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/dkuzmenko/authd/internal/common"
)

// Account is the caller's identity as reported by the server.
type Account struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type Client struct {
	base        string
	http        *http.Client
	accessToken string
}

func NewClient(baseURL string) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &Client{
		base: baseURL,
		http: &http.Client{Jar: jar, Timeout: 10 * time.Second},
	}, nil
}

// LoggedIn reports whether the client currently holds an access token.
func (c *Client) LoggedIn() bool {
	return c.accessToken != ""
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) (int, error) {
	var reqBody *bytes.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reqBody = bytes.NewReader(buf)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reqBody)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.accessToken != "" {
		req.Header.Set(common.AuthorizationHeaderName, "Bearer "+c.accessToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < http.StatusMultipleChoices {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

func (c *Client) Register(ctx context.Context, email, pwd string) error {
	status, err := c.do(ctx, http.MethodPost, "/api/register",
		map[string]string{"email": email, "password": pwd}, nil)
	if err != nil {
		return err
	}
	switch status {
	case http.StatusCreated:
		return nil
	case http.StatusConflict:
		return common.ErrorAlreadyExists
	case http.StatusBadRequest:
		return common.ErrInvalidCredentials
	default:
		return fmt.Errorf("register: unexpected status %d", status)
	}
}

// Login authenticates and stores the access token. The refresh cookie lands
// in the jar as a side effect of the response.
func (c *Client) Login(ctx context.Context, email, pwd string) error {
	var body tokenResponse
	status, err := c.do(ctx, http.MethodPost, "/api/login",
		map[string]string{"email": email, "password": pwd}, &body)
	if err != nil {
		return err
	}
	switch status {
	case http.StatusOK:
		c.accessToken = body.AccessToken
		return nil
	case http.StatusUnauthorized:
		return common.ErrInvalidCredentials
	default:
		return fmt.Errorf("login: unexpected status %d", status)
	}
}

// Refresh trades the refresh cookie for a new token pair. On rejection the
// session is gone for good and local credentials are dropped.
func (c *Client) Refresh(ctx context.Context) error {
	var body tokenResponse
	status, err := c.do(ctx, http.MethodPost, "/api/refresh", nil, &body)
	if err != nil {
		return err
	}
	switch status {
	case http.StatusOK:
		c.accessToken = body.AccessToken
		return nil
	case http.StatusUnauthorized:
		c.accessToken = ""
		return common.ErrorUnauthorized
	default:
		return fmt.Errorf("refresh: unexpected status %d", status)
	}
}

func (c *Client) Logout(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "/api/logout", nil, nil)
	c.accessToken = ""
	return err
}

// Me fetches the caller's account. On an expired access token it attempts a
// single silent refresh before giving up.
func (c *Client) Me(ctx context.Context) (*Account, error) {
	account, status, err := c.me(ctx)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized {
		if err := c.Refresh(ctx); err != nil {
			return nil, err
		}
		account, status, err = c.me(ctx)
		if err != nil {
			return nil, err
		}
	}
	if status != http.StatusOK {
		return nil, common.ErrorUnauthorized
	}
	return account, nil
}

func (c *Client) me(ctx context.Context) (*Account, int, error) {
	var account Account
	status, err := c.do(ctx, http.MethodGet, "/api/me", nil, &account)
	if err != nil {
		return nil, status, err
	}
	return &account, status, nil
}

func (c *Client) Ping(ctx context.Context) error {
	status, err := c.do(ctx, http.MethodGet, "/ping", nil, nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("ping: unexpected status %d", status)
	}
	return nil
}
