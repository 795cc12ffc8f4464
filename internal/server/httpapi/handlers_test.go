package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/dkuzmenko/authd/internal/common"
	"github.com/dkuzmenko/authd/internal/logging"
	"github.com/dkuzmenko/authd/internal/server/password"
	"github.com/dkuzmenko/authd/internal/server/repositories/sessions"
	"github.com/dkuzmenko/authd/internal/server/repositories/users"
	"github.com/dkuzmenko/authd/internal/server/services"
	"github.com/dkuzmenko/authd/internal/server/token"
)

func newTestServer(t *testing.T) (*httptest.Server, *http.Client) {
	t.Helper()

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	codec := token.NewCodec([]byte("test-secret"), 15*time.Minute, 720*time.Hour)
	svc := services.NewSessionService(
		users.NewMemoryRepository(),
		sessions.NewMemoryRepository(),
		codec,
		password.NewBcryptHasher(4),
		logger,
	)

	metrics := NewMetrics()
	handler := NewHandler(svc, metrics, logger, false)
	ts := httptest.NewServer(NewRouter(handler, metrics))
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar.New error: %v", err)
	}
	return ts, &http.Client{Jar: jar}
}

func postJSON(t *testing.T, client *http.Client, url string, body any) *http.Response {
	t.Helper()
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}
	resp, err := client.Post(url, "application/json", bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("POST %s error: %v", url, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decoding response body: %v", err)
	}
}

func registerAndLogin(t *testing.T, ts *httptest.Server, client *http.Client) string {
	t.Helper()

	resp := postJSON(t, client, ts.URL+"/api/register", map[string]string{
		"email": "alice@example.com", "password": "password1",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status = %d, want 201", resp.StatusCode)
	}

	resp = postJSON(t, client, ts.URL+"/api/login", map[string]string{
		"email": "alice@example.com", "password": "password1",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d, want 200", resp.StatusCode)
	}
	var body tokenResponse
	decodeBody(t, resp, &body)
	if body.AccessToken == "" {
		t.Fatal("login returned no access token")
	}
	return body.AccessToken
}

func refreshCookie(t *testing.T, client *http.Client, ts *httptest.Server) *http.Cookie {
	t.Helper()
	u, _ := url.Parse(ts.URL + "/api/")
	for _, c := range client.Jar.Cookies(u) {
		if c.Name == common.RefreshCookieName {
			return c
		}
	}
	return nil
}

func TestRegister_Validation(t *testing.T) {
	ts, client := newTestServer(t)

	cases := []struct {
		name string
		body map[string]string
	}{
		{"missing email", map[string]string{"password": "password1"}},
		{"bad email", map[string]string{"email": "not-an-email", "password": "password1"}},
		{"short password", map[string]string{"email": "a@x.com", "password": "short"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := postJSON(t, client, ts.URL+"/api/register", tc.body)
			resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestRegister_Duplicate(t *testing.T) {
	ts, client := newTestServer(t)

	body := map[string]string{"email": "alice@example.com", "password": "password1"}
	resp := postJSON(t, client, ts.URL+"/api/register", body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("first register status = %d, want 201", resp.StatusCode)
	}

	resp = postJSON(t, client, ts.URL+"/api/register", body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("second register status = %d, want 409", resp.StatusCode)
	}
}

func TestLogin_SetsRefreshCookie(t *testing.T) {
	ts, client := newTestServer(t)

	resp := postJSON(t, client, ts.URL+"/api/register", map[string]string{
		"email": "alice@example.com", "password": "password1",
	})
	resp.Body.Close()

	resp = postJSON(t, client, ts.URL+"/api/login", map[string]string{
		"email": "alice@example.com", "password": "password1",
	})
	defer resp.Body.Close()

	var found *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == common.RefreshCookieName {
			found = c
		}
	}
	if found == nil {
		t.Fatal("login set no refresh cookie")
	}
	if !found.HttpOnly {
		t.Error("refresh cookie is not HttpOnly")
	}
	if found.SameSite != http.SameSiteStrictMode {
		t.Errorf("refresh cookie SameSite = %v, want Strict", found.SameSite)
	}
	if found.Path != "/api" {
		t.Errorf("refresh cookie path = %q, want /api", found.Path)
	}
}

func TestLogin_BadCredentials(t *testing.T) {
	ts, client := newTestServer(t)

	resp := postJSON(t, client, ts.URL+"/api/login", map[string]string{
		"email": "nobody@example.com", "password": "password1",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestRefresh_RotatesCookie(t *testing.T) {
	ts, client := newTestServer(t)
	registerAndLogin(t, ts, client)

	before := refreshCookie(t, client, ts)
	if before == nil {
		t.Fatal("no refresh cookie after login")
	}

	resp := postJSON(t, client, ts.URL+"/api/refresh", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh status = %d, want 200", resp.StatusCode)
	}
	var body tokenResponse
	decodeBody(t, resp, &body)
	if body.AccessToken == "" {
		t.Fatal("refresh returned no access token")
	}

	after := refreshCookie(t, client, ts)
	if after == nil || after.Value == before.Value {
		t.Fatal("refresh cookie was not rotated")
	}
}

func TestRefresh_ReplayedCookieRejected(t *testing.T) {
	ts, client := newTestServer(t)
	registerAndLogin(t, ts, client)

	stolen := refreshCookie(t, client, ts)

	resp := postJSON(t, client, ts.URL+"/api/refresh", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("first refresh status = %d, want 200", resp.StatusCode)
	}

	// Replay the pre-rotation cookie from a bare client.
	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/refresh", nil)
	req.AddCookie(stolen)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("replay request error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("replay status = %d, want 401", resp.StatusCode)
	}
}

func TestRefresh_NoCookie(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/refresh", "application/json", nil)
	if err != nil {
		t.Fatalf("POST error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestLogout_AlwaysSucceeds(t *testing.T) {
	ts, client := newTestServer(t)
	registerAndLogin(t, ts, client)

	for i := 0; i < 2; i++ {
		resp := postJSON(t, client, ts.URL+"/api/logout", nil)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("logout %d status = %d, want 200", i, resp.StatusCode)
		}
	}

	// Without a cookie at all logout still reports success.
	resp, err := http.Post(ts.URL+"/api/logout", "application/json", nil)
	if err != nil {
		t.Fatalf("POST error: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cookieless logout status = %d, want 200", resp.StatusCode)
	}
}

func TestLogout_KillsSession(t *testing.T) {
	ts, client := newTestServer(t)
	registerAndLogin(t, ts, client)

	stolen := refreshCookie(t, client, ts)

	resp := postJSON(t, client, ts.URL+"/api/logout", nil)
	resp.Body.Close()

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/refresh", nil)
	req.AddCookie(stolen)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("refresh request error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("refresh after logout status = %d, want 401", resp.StatusCode)
	}
}

func TestMe(t *testing.T) {
	ts, client := newTestServer(t)
	access := registerAndLogin(t, ts, client)

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/me", nil)
	req.Header.Set(common.AuthorizationHeaderName, "Bearer "+access)
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("GET /api/me error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body userResponse
	decodeBody(t, resp, &body)
	if body.Email != "alice@example.com" || body.ID == "" {
		t.Fatalf("unexpected /api/me body: %+v", body)
	}
}

func TestMe_Unauthorized(t *testing.T) {
	ts, client := newTestServer(t)
	access := registerAndLogin(t, ts, client)

	cases := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"wrong scheme", "Basic " + access},
		{"garbage token", "Bearer not.a.jwt"},
		{"empty token", "Bearer "},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/me", nil)
			if tc.header != "" {
				req.Header.Set(common.AuthorizationHeaderName, tc.header)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("request error: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", resp.StatusCode)
			}
			var body map[string]string
			decodeBody(t, resp, &body)
			if body["error"] != "unauthorized" {
				t.Fatalf("error body = %q, want uniform \"unauthorized\"", body["error"])
			}
		})
	}
}

func TestPingAndMetrics(t *testing.T) {
	ts, client := newTestServer(t)
	registerAndLogin(t, ts, client)

	resp, err := http.Get(ts.URL + "/ping")
	if err != nil {
		t.Fatalf("GET /ping error: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/ping status = %d, want 200", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics error: %v", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", resp.StatusCode)
	}
	for _, metric := range []string{"authd_http_requests_total", "authd_auth_outcomes_total"} {
		if !strings.Contains(string(raw), metric) {
			t.Errorf("metrics output missing %s", metric)
		}
	}
}
