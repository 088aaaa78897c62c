package auth

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/gin-gonic/gin/render"
	"github.com/lestrrat-go/jwx/jwk"

	"iam/internal/domain/models"
	"iam/internal/http/middleware"
	"iam/internal/services/auth"
	"iam/internal/storage"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Auth is the authorization service behind the endpoints
type Auth interface {
	Authorize(ctx context.Context, req auth.AuthorizeRequest) (models.PendingAuthorization, error)
	Login(ctx context.Context, pending models.PendingAuthorization, username string, password string) (string, error)
	Exchange(ctx context.Context, req auth.TokenRequest) (models.TokenSet, error)
	Register(ctx context.Context, username string, password string) (int64, error)
	VerifyCredentials(ctx context.Context, username string, password string) (models.Identity, error)
	LoginTTL() time.Duration
}

// KeySet publishes verification keys
type KeySet interface {
	JWKS() (jwk.Set, error)
	JWK(keyID string) (jwk.Key, error)
}

type Options struct {
	// CookieSecret seals the authorization context cookie
	CookieSecret  []byte
	SecureCookies bool
	// Limiter guards credential and token endpoints, nil disables throttling
	Limiter gin.HandlerFunc
}

type serverAPI struct {
	log       *slog.Logger
	auth      Auth
	keys      KeySet
	cookie    *pendingCookie
	templates *template.Template
}

type loginPage struct {
	ClientID string
	Scope    string
	Error    string
}

type credentialsRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Register mounts the OAuth endpoints on router
func Register(router gin.IRouter, log *slog.Logger, authService Auth, keys KeySet, opts Options) {
	s := &serverAPI{
		log:       log,
		auth:      authService,
		keys:      keys,
		cookie:    newPendingCookie(opts.CookieSecret, opts.SecureCookies),
		templates: template.Must(template.ParseFS(templatesFS, "templates/*.html")),
	}

	limited := func(handlers ...gin.HandlerFunc) []gin.HandlerFunc {
		if opts.Limiter == nil {
			return handlers
		}
		return append([]gin.HandlerFunc{opts.Limiter}, handlers...)
	}

	router.GET("/authorize", s.Authorize)
	router.POST("/login", limited(s.Login)...)
	router.POST("/oauth/token", limited(middleware.NoStore(), s.Token)...)
	router.GET("/jwk", s.JWK)
	router.GET("/.well-known/jwks.json", s.JWKS)

	authGroup := router.Group("/auth", limited()...)
	{
		authGroup.POST("/signup", s.Signup)
		authGroup.POST("/login", s.CredentialsLogin)
	}
}

// Authorize validates the authorization request and renders the login form.
// The request context travels in a sealed cookie, nothing is stored server side.
func (s *serverAPI) Authorize(c *gin.Context) {
	const op = "http.auth.Authorize"

	var query struct {
		ClientID            string `form:"client_id"`
		RedirectURI         string `form:"redirect_uri"`
		ResponseType        string `form:"response_type"`
		Scope               string `form:"scope"`
		CodeChallenge       string `form:"code_challenge"`
		CodeChallengeMethod string `form:"code_challenge_method"`
		State               string `form:"state"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		s.renderError(c, op, err, oauthError{Status: http.StatusBadRequest, Code: "invalid_request", Description: "query is malformed"})
		return
	}

	pending, err := s.auth.Authorize(c.Request.Context(), auth.AuthorizeRequest{
		ClientID:            query.ClientID,
		RedirectURI:         query.RedirectURI,
		ResponseType:        query.ResponseType,
		Scope:               query.Scope,
		CodeChallenge:       query.CodeChallenge,
		CodeChallengeMethod: query.CodeChallengeMethod,
		State:               query.State,
	})
	if err != nil {
		e := toOAuthError(err)
		// the browser is not authenticating, an unknown client is a bad request here
		if e.Status == http.StatusUnauthorized {
			e.Status = http.StatusBadRequest
		}
		s.renderError(c, op, err, e)
		return
	}

	if err = s.cookie.set(c, pending, int(s.auth.LoginTTL().Seconds())); err != nil {
		s.renderError(c, op, err, toOAuthError(err))
		return
	}
	s.renderLogin(c, http.StatusOK, loginPage{ClientID: pending.ClientID, Scope: pending.Scope})
}

// Login checks the submitted credentials against the pending authorization
// and redirects the browser back to the client with a code
func (s *serverAPI) Login(c *gin.Context) {
	const op = "http.auth.Login"

	pending, err := s.cookie.get(c)
	if err != nil {
		s.renderError(c, op, err, oauthError{
			Status:      http.StatusBadRequest,
			Code:        "invalid_request",
			Description: "authorization request is missing or expired, start again from the client",
		})
		return
	}

	location, err := s.auth.Login(c.Request.Context(), pending, c.PostForm("username"), c.PostForm("password"))
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			s.renderLogin(c, http.StatusBadRequest, loginPage{
				ClientID: pending.ClientID,
				Scope:    pending.Scope,
				Error:    toOAuthError(err).Description,
			})
			return
		}
		s.cookie.clear(c)
		s.renderError(c, op, err, toOAuthError(err))
		return
	}

	s.cookie.clear(c)
	c.Redirect(http.StatusSeeOther, location)
}

// Token exchanges an authorization code or a refresh token for tokens
func (s *serverAPI) Token(c *gin.Context) {
	const op = "http.auth.Token"

	var form struct {
		GrantType    string `form:"grant_type"`
		Code         string `form:"code"`
		CodeVerifier string `form:"code_verifier"`
		RedirectURI  string `form:"redirect_uri"`
		ClientID     string `form:"client_id"`
		ClientSecret string `form:"client_secret"`
		RefreshToken string `form:"refresh_token"`
	}
	if err := c.ShouldBindWith(&form, binding.Form); err != nil {
		c.JSON(http.StatusBadRequest, oauthError{Code: "invalid_request", Description: "form is malformed"})
		return
	}

	basic := false
	if id, secret, ok := c.Request.BasicAuth(); ok {
		id, secret, ok = unescapeBasic(id, secret)
		if !ok || (form.ClientID != "" && form.ClientID != id) {
			c.JSON(http.StatusBadRequest, oauthError{Code: "invalid_request", Description: "client credentials are ambiguous"})
			return
		}
		form.ClientID, form.ClientSecret, basic = id, secret, true
	}

	tokens, err := s.auth.Exchange(c.Request.Context(), auth.TokenRequest{
		GrantType:    form.GrantType,
		Code:         form.Code,
		CodeVerifier: form.CodeVerifier,
		RedirectURI:  form.RedirectURI,
		ClientID:     form.ClientID,
		ClientSecret: form.ClientSecret,
		RefreshToken: form.RefreshToken,
	})
	if err != nil {
		e := toOAuthError(err)
		if e.Status == http.StatusUnauthorized && basic {
			c.Header("WWW-Authenticate", `Basic realm="iam"`)
		}
		if e.Status >= http.StatusInternalServerError {
			s.log.With(slog.String("op", op)).Error("token exchange failed", slog.String("error", err.Error()))
		}
		c.JSON(e.Status, e)
		return
	}

	c.JSON(http.StatusOK, tokens)
}

// JWK returns the public key with the requested kid
func (s *serverAPI) JWK(c *gin.Context) {
	kid := c.Query("kid")
	if kid == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "kid is required"})
		return
	}
	key, err := s.keys.JWK(kid)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown kid"})
		return
	}
	c.JSON(http.StatusOK, key)
}

// JWKS returns every verifiable public key
func (s *serverAPI) JWKS(c *gin.Context) {
	const op = "http.auth.JWKS"

	set, err := s.keys.JWKS()
	if err != nil {
		s.log.With(slog.String("op", op)).Error("failed to build key set", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, oauthError{Code: "server_error", Description: "internal server error"})
		return
	}
	c.JSON(http.StatusOK, set)
}

// Signup registers a new identity
func (s *serverAPI) Signup(c *gin.Context) {
	const op = "http.auth.Signup"

	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, oauthError{Code: "invalid_request", Description: "username and password are required"})
		return
	}

	id, err := s.auth.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrIdentityExists):
			c.JSON(http.StatusConflict, oauthError{Code: "identity_exists", Description: "username is already taken"})
		case errors.Is(err, auth.ErrInvalidRequest):
			c.JSON(http.StatusBadRequest, toOAuthError(err))
		default:
			s.log.With(slog.String("op", op)).Error("signup failed", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, toOAuthError(err))
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// CredentialsLogin checks username and password without starting an authorization
func (s *serverAPI) CredentialsLogin(c *gin.Context) {
	const op = "http.auth.CredentialsLogin"

	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, oauthError{Code: "invalid_request", Description: "username and password are required"})
		return
	}

	identity, err := s.auth.VerifyCredentials(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, toOAuthError(err))
			return
		}
		s.log.With(slog.String("op", op)).Error("credential check failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, toOAuthError(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": identity.ID, "username": identity.Username, "scope": identity.ProvidedScopes})
}

func (s *serverAPI) renderLogin(c *gin.Context, status int, page loginPage) {
	c.Render(status, render.HTML{Template: s.templates, Name: "login.html", Data: page})
}

func (s *serverAPI) renderError(c *gin.Context, op string, err error, e oauthError) {
	log := s.log.With(slog.String("op", op))
	if e.Status >= http.StatusInternalServerError {
		log.Error("request failed", slog.String("error", err.Error()))
	} else {
		log.Debug("request rejected", slog.String("error", err.Error()))
	}
	c.Render(e.Status, render.HTML{Template: s.templates, Name: "error.html", Data: e})
}

// unescapeBasic decodes client credentials form-encoded into the Basic header
func unescapeBasic(id string, secret string) (string, string, bool) {
	id, err := url.QueryUnescape(id)
	if err != nil {
		return "", "", false
	}
	secret, err = url.QueryUnescape(secret)
	if err != nil {
		return "", "", false
	}
	return id, secret, true
}
