// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package identitytoolkit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAPIKey = "test-key"

// fakeBackend serves the subset of the REST APIs the client uses.
type fakeBackend struct {
	t *testing.T

	mu        sync.Mutex
	accounts  map[string]fakeAccount
	calls     map[string]int
	bodies    map[string]map[string]any
	forms     map[string]url.Values
	nextUID   int
	refreshes []refreshOutcome
	gate      chan struct{}
}

type fakeAccount struct {
	uid      string
	password string
}

// refreshOutcome scripts one token refresh. A zero status succeeds.
type refreshOutcome struct {
	status  int
	message string
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	return &fakeBackend{
		t:        t,
		accounts: make(map[string]fakeAccount),
		calls:    make(map[string]int),
		bodies:   make(map[string]map[string]any),
		forms:    make(map[string]url.Values),
	}
}

func (b *fakeBackend) addAccount(email, password string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextUID++
	uid := "uid-" + string(rune('0'+b.nextUID))
	b.accounts[email] = fakeAccount{uid: uid, password: password}
	return uid
}

func (b *fakeBackend) scriptRefresh(outcomes ...refreshOutcome) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refreshes = append(b.refreshes, outcomes...)
}

func (b *fakeBackend) callCount(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[path]
}

func (b *fakeBackend) body(path string) map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bodies[path]
}

func (b *fakeBackend) start() *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(b.serve))
	b.t.Cleanup(srv.Close)
	return srv
}

func (b *fakeBackend) serve(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("key") != testAPIKey {
		writeError(w, http.StatusBadRequest, "API key not valid. Please pass a valid API key.")
		return
	}

	b.mu.Lock()
	b.calls[r.URL.Path]++
	gate := b.gate
	b.mu.Unlock()

	switch r.URL.Path {
	case "/v1/accounts:signInWithPassword":
		body := b.decode(r)
		b.mu.Lock()
		acct, ok := b.accounts[body["email"].(string)]
		b.mu.Unlock()
		if !ok || acct.password != body["password"] {
			writeError(w, http.StatusBadRequest, "INVALID_LOGIN_CREDENTIALS")
			return
		}
		writeAccount(w, acct.uid, body["email"].(string))
	case "/v1/accounts:signUp":
		body := b.decode(r)
		email, _ := body["email"].(string)
		password, _ := body["password"].(string)
		if len(password) < 6 {
			writeError(w, http.StatusBadRequest, "WEAK_PASSWORD : Password should be at least 6 characters")
			return
		}
		b.mu.Lock()
		_, exists := b.accounts[email]
		b.mu.Unlock()
		if exists {
			writeError(w, http.StatusBadRequest, "EMAIL_EXISTS")
			return
		}
		writeAccount(w, b.addAccount(email, password), email)
	case "/v1/accounts:sendOobCode":
		b.decode(r)
		writeJSON(w, http.StatusOK, map[string]string{"email": "ok"})
	case "/token/token":
		if gate != nil {
			<-gate
		}
		assert.NoError(b.t, r.ParseForm())
		b.mu.Lock()
		b.forms[r.URL.Path] = r.PostForm
		var outcome refreshOutcome
		if len(b.refreshes) > 0 {
			outcome = b.refreshes[0]
			if len(b.refreshes) > 1 {
				b.refreshes = b.refreshes[1:]
			}
		}
		b.mu.Unlock()
		if outcome.status != 0 {
			writeError(w, outcome.status, outcome.message)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"id_token":      signedIDToken(b.t, "uid-restored", "restored@example.com", time.Now().Add(time.Hour)),
			"refresh_token": "refresh-rotated",
			"user_id":       "uid-restored",
			"expires_in":    "3600",
		})
	default:
		http.NotFound(w, r)
	}
}

func (b *fakeBackend) decode(r *http.Request) map[string]any {
	var body map[string]any
	assert.NoError(b.t, json.NewDecoder(r.Body).Decode(&body))
	b.mu.Lock()
	b.bodies[r.URL.Path] = body
	b.mu.Unlock()
	return body
}

func writeAccount(w http.ResponseWriter, uid, email string) {
	writeJSON(w, http.StatusOK, map[string]string{
		"idToken":      signedIDToken(nil, uid, email, time.Now().Add(time.Hour)),
		"refreshToken": "refresh-" + uid,
		"localId":      uid,
		"email":        email,
		"expiresIn":    "3600",
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	if message == "" {
		w.WriteHeader(status)
		_, _ = w.Write([]byte("<html>unavailable</html>"))
		return
	}
	writeJSON(w, status, map[string]any{
		"error": map[string]any{"code": status, "message": message},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func signedIDToken(t *testing.T, uid, email string, exp time.Time) string {
	claims := idTokenClaims{
		Email:         email,
		EmailVerified: true,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("not-a-real-key"))
	if t != nil {
		require.NoError(t, err)
	}
	return s
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := NewClient(ClientConfig{
		APIKey:        testAPIKey,
		Endpoint:      srv.URL + "/v1",
		TokenEndpoint: srv.URL + "/token",
		HTTPClient:    srv.Client(),
	})
	require.NoError(t, err)
	return c
}
