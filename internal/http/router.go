package http

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	httpauth "iam/internal/http/auth"
	"iam/internal/http/middleware"
)

// NewRouter wires Gin routes and middleware
func NewRouter(log *slog.Logger, authService httpauth.Auth, keys httpauth.KeySet, opts httpauth.Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.SecurityHeaders())

	httpauth.Register(r, log, authService, keys, opts)

	return r
}
