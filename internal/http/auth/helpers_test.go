package auth_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"iam/internal/domain/models"
	httpauth "iam/internal/http/auth"
	"iam/internal/http/middleware"
	"iam/internal/lib/authcode"
	"iam/internal/lib/hasher"
	"iam/internal/lib/jwt"
	"iam/internal/lib/keys"
	"iam/internal/services/auth"
	"iam/internal/services/grant"
	"iam/internal/storage/memory"
)

const (
	clientID     = "app1"
	clientSecret = "app1-secret"
	redirectURI  = "https://x/cb"
	username     = "alice"
	password     = "P@ss1"
)

type env struct {
	router *gin.Engine
	keys   *keys.Manager
	tokens *jwt.Issuer
	store  *memory.Storage
}

type envOptions struct {
	limiter gin.HandlerFunc
}

func newEnv(t *testing.T, opts envOptions) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.New()
	pwHasher := hasher.New(hasher.Params{Time: 1, Memory: 1024, Threads: 1, SaltLen: 16, KeyLen: 32})

	_, err := store.SaveTenant(ctx, models.Tenant{
		ClientID:       clientID,
		ClientSecret:   clientSecret,
		RedirectURI:    redirectURI,
		RequiredScopes: "profile.read",
		Name:           "App 1",
	})
	require.NoError(t, err)
	passHash, err := pwHasher.Hash(password)
	require.NoError(t, err)
	_, err = store.SaveIdentity(ctx, models.Identity{Username: username, PassHash: passHash, ProvidedScopes: auth.DefaultProvidedScopes})
	require.NoError(t, err)

	keyManager, err := keys.New(log, keys.Options{PoolSize: 2, TokenLifetime: 3 * time.Hour})
	require.NoError(t, err)
	tokens := jwt.NewIssuer(keyManager, jwt.Options{Issuer: "my-iam-server", Audience: []string{"my-client-app"}})
	codec := authcode.New([]byte(gofakeit.LetterN(32)), authcode.DefaultTTL, nil)
	grants := grant.New(log, store, store, store)
	authService := auth.New(log, store, store, store, grants, codec, memory.NewCodeRegistry(nil), tokens, pwHasher, 0, nil)

	router := gin.New()
	router.Use(middleware.SecurityHeaders())
	httpauth.Register(router, log, authService, keyManager, httpauth.Options{
		CookieSecret:  []byte(gofakeit.LetterN(32)),
		SecureCookies: true,
		Limiter:       opts.limiter,
	})

	return &env{router: router, keys: keyManager, tokens: tokens, store: store}
}

func (e *env) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func authorizeQuery(mutate func(q url.Values)) string {
	q := url.Values{
		"client_id":     {clientID},
		"redirect_uri":  {redirectURI},
		"response_type": {"code"},
		"scope":         {"profile.read"},
		"state":         {"st"},
	}
	if mutate != nil {
		mutate(q)
	}
	return "/authorize?" + q.Encode()
}

func formRequest(target string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func jsonRequest(target string, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func findCookie(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// authorize runs /authorize and returns the authorization context cookie
func (e *env) authorize(t *testing.T, mutate func(q url.Values)) *http.Cookie {
	t.Helper()

	w := e.do(httptest.NewRequest(http.MethodGet, authorizeQuery(mutate), nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	cookie := findCookie(w.Result().Cookies(), "auth_ctx")
	require.NotNil(t, cookie)
	return cookie
}

// login posts credentials with the cookie and returns the redirect location
func (e *env) login(t *testing.T, cookie *http.Cookie) *url.URL {
	t.Helper()

	req := formRequest("/login", url.Values{"username": {username}, "password": {password}})
	req.AddCookie(cookie)
	w := e.do(req)
	require.Equal(t, http.StatusSeeOther, w.Code, w.Body.String())

	location, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	return location
}
