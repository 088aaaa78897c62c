package auth_test

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iam/internal/http/middleware"
)

func decodeError(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func TestAuthorize_Errors(t *testing.T) {
	e := newEnv(t, envOptions{})

	tests := []struct {
		name   string
		mutate func(q url.Values)
		code   string
	}{
		{name: "missing client_id", mutate: func(q url.Values) { q.Del("client_id") }, code: "invalid_request"},
		{name: "missing redirect_uri", mutate: func(q url.Values) { q.Del("redirect_uri") }, code: "invalid_request"},
		{name: "unknown client", mutate: func(q url.Values) { q.Set("client_id", "nope") }, code: "invalid_client"},
		{name: "foreign redirect", mutate: func(q url.Values) { q.Set("redirect_uri", "https://evil/cb") }, code: "invalid_request"},
		{name: "implicit flow", mutate: func(q url.Values) { q.Set("response_type", "token") }, code: "unsupported_response_type"},
		{name: "plain pkce", mutate: func(q url.Values) {
			q.Set("code_challenge", "abc")
			q.Set("code_challenge_method", "plain")
		}, code: "invalid_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := e.do(httptest.NewRequest(http.MethodGet, authorizeQuery(tt.mutate), nil))
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
			assert.Contains(t, w.Body.String(), tt.code)
			assert.Nil(t, findCookie(w.Result().Cookies(), "auth_ctx"))
		})
	}
}

func TestAuthorize_SetsCookieAndRendersForm(t *testing.T) {
	e := newEnv(t, envOptions{})

	w := e.do(httptest.NewRequest(http.MethodGet, authorizeQuery(nil), nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `action="/login"`)
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))

	cookie := findCookie(w.Result().Cookies(), "auth_ctx")
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
	assert.Equal(t, "/", cookie.Path)
	assert.Equal(t, 600, cookie.MaxAge)
}

func TestLogin(t *testing.T) {
	e := newEnv(t, envOptions{})

	t.Run("missing cookie", func(t *testing.T) {
		w := e.do(formRequest("/login", url.Values{"username": {username}, "password": {password}}))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "invalid_request")
	})

	t.Run("tampered cookie", func(t *testing.T) {
		cookie := e.authorize(t, nil)
		tampered := []byte(cookie.Value)
		if tampered[10] == 'A' {
			tampered[10] = 'B'
		} else {
			tampered[10] = 'A'
		}
		cookie.Value = string(tampered)
		req := formRequest("/login", url.Values{"username": {username}, "password": {password}})
		req.AddCookie(cookie)

		w := e.do(req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "invalid_request")
	})

	t.Run("generic message for bad credentials", func(t *testing.T) {
		cookie := e.authorize(t, nil)
		for _, creds := range []url.Values{
			{"username": {"bob"}, "password": {password}},
			{"username": {username}, "password": {"wrong"}},
		} {
			req := formRequest("/login", creds)
			req.AddCookie(cookie)
			w := e.do(req)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), "Invalid credentials")
		}
		assert.Equal(t, 0, e.store.GrantCount())
	})

	t.Run("redirects with code and state", func(t *testing.T) {
		cookie := e.authorize(t, nil)
		req := formRequest("/login", url.Values{"username": {username}, "password": {password}})
		req.AddCookie(cookie)

		w := e.do(req)
		require.Equal(t, http.StatusSeeOther, w.Code)
		location, err := url.Parse(w.Header().Get("Location"))
		require.NoError(t, err)
		assert.Equal(t, "https", location.Scheme)
		assert.Equal(t, "x", location.Host)
		assert.NotEmpty(t, location.Query().Get("code"))
		assert.Equal(t, "st", location.Query().Get("state"))

		cleared := findCookie(w.Result().Cookies(), "auth_ctx")
		require.NotNil(t, cleared)
		assert.Negative(t, cleared.MaxAge)
		assert.Equal(t, 1, e.store.GrantCount())
	})
}

func TestToken_Errors(t *testing.T) {
	e := newEnv(t, envOptions{})

	t.Run("unsupported grant type", func(t *testing.T) {
		for _, grantType := range []string{"", "password"} {
			w := e.do(formRequest("/oauth/token", url.Values{"grant_type": {grantType}, "client_id": {clientID}}))
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
			assert.Equal(t, "no-cache", w.Header().Get("Pragma"))

			body := decodeError(t, w)
			assert.Equal(t, "unsupported_grant_type", body["error"])
			assert.Contains(t, body["error_description"], "authorization_code")
			assert.Contains(t, body["error_description"], "refresh_token")
		}
	})

	t.Run("unknown client", func(t *testing.T) {
		w := e.do(formRequest("/oauth/token", url.Values{"grant_type": {"authorization_code"}, "client_id": {"nope"}, "code": {"x"}}))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "invalid_client", decodeError(t, w)["error"])
	})

	t.Run("wrong basic secret", func(t *testing.T) {
		req := formRequest("/oauth/token", url.Values{"grant_type": {"authorization_code"}, "code": {"x"}})
		req.SetBasicAuth(clientID, "wrong")
		w := e.do(req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.NotEmpty(t, w.Header().Get("WWW-Authenticate"))
		assert.Equal(t, "invalid_client", decodeError(t, w)["error"])
	})

	t.Run("missing code", func(t *testing.T) {
		w := e.do(formRequest("/oauth/token", url.Values{"grant_type": {"authorization_code"}, "client_id": {clientID}}))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "invalid_request", decodeError(t, w)["error"])
	})

	t.Run("garbage code does not leak the cause", func(t *testing.T) {
		w := e.do(formRequest("/oauth/token", url.Values{"grant_type": {"authorization_code"}, "client_id": {clientID}, "code": {"garbage"}}))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		body := decodeError(t, w)
		assert.Equal(t, "invalid_grant", body["error"])
		assert.NotContains(t, body["error_description"], "authorization code is invalid")
	})

	t.Run("missing refresh token", func(t *testing.T) {
		w := e.do(formRequest("/oauth/token", url.Values{"grant_type": {"refresh_token"}, "client_id": {clientID}}))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "invalid_request", decodeError(t, w)["error"])
	})
}

func TestToken_CodeExchangeAndReplay(t *testing.T) {
	e := newEnv(t, envOptions{})
	location := e.login(t, e.authorize(t, nil))

	form := url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {location.Query().Get("code")},
		"redirect_uri": {redirectURI},
	}
	req := formRequest("/oauth/token", form)
	req.SetBasicAuth(clientID, clientSecret)
	w := e.do(req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))

	var tokens map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tokens))
	assert.Equal(t, "Bearer", tokens["token_type"])
	assert.EqualValues(t, 3600, tokens["expires_in"])
	assert.Equal(t, "profile.read", tokens["scope"])
	assert.NotEmpty(t, tokens["access_token"])
	assert.NotEmpty(t, tokens["refresh_token"])

	req = formRequest("/oauth/token", form)
	req.SetBasicAuth(clientID, clientSecret)
	w = e.do(req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_grant", decodeError(t, w)["error"])
}

func TestJWK(t *testing.T) {
	e := newEnv(t, envOptions{})

	w := e.do(httptest.NewRequest(http.MethodGet, "/jwk", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.NotEmpty(t, decodeError(t, w)["error"])

	w = e.do(httptest.NewRequest(http.MethodGet, "/jwk?kid=unknown", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.NotEmpty(t, decodeError(t, w)["error"])

	kid := e.keys.PublicKeys()[0].KeyID
	w = e.do(httptest.NewRequest(http.MethodGet, "/jwk?kid="+kid, nil))
	require.Equal(t, http.StatusOK, w.Code)
	var key map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &key))
	assert.Equal(t, kid, key["kid"])
	assert.Equal(t, "OKP", key["kty"])
	assert.NotContains(t, key, "d")

	w = e.do(httptest.NewRequest(http.MethodGet, "/.well-known/jwks.json", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var set struct {
		Keys []map[string]any `json:"keys"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &set))
	assert.Len(t, set.Keys, 2)
}

func TestSignupAndCredentialsLogin(t *testing.T) {
	e := newEnv(t, envOptions{})

	w := e.do(jsonRequest("/auth/signup", `{"username":"bob@example.com","password":"hunter2"}`))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.NotZero(t, created["id"])

	w = e.do(jsonRequest("/auth/signup", `{"username":"bob@example.com","password":"hunter2"}`))
	assert.Equal(t, http.StatusConflict, w.Code)

	w = e.do(jsonRequest("/auth/signup", `{"username":"carol"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(jsonRequest("/auth/login", `{"username":"bob@example.com","password":"hunter2"}`))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "profile.read cv.read cv.share")

	w = e.do(jsonRequest("/auth/login", `{"username":"bob@example.com","password":"wrong"}`))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRateLimitedTokenEndpoint(t *testing.T) {
	limiter := middleware.NewRateLimiter(slog.Default(), 0.001, 2)
	t.Cleanup(limiter.Stop)
	e := newEnv(t, envOptions{limiter: limiter.Handler()})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := e.do(formRequest("/oauth/token", url.Values{"grant_type": {"password"}}))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusBadRequest, http.StatusBadRequest, http.StatusTooManyRequests}, codes)

	w := e.do(httptest.NewRequest(http.MethodGet, "/jwk", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code, "key publication is not throttled")
}
