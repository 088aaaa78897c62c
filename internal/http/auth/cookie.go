package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"iam/internal/domain/models"
	"iam/internal/lib/authcode"
)

const (
	cookieName    = "auth_ctx"
	cookiePurpose = "auth_ctx"
)

var errNoPendingAuthorization = errors.New("authorization context cookie is missing or invalid")

// pendingCookie keeps PendingAuthorization sealed in the browser
type pendingCookie struct {
	sealer *authcode.Sealer
	secure bool
}

func newPendingCookie(secret []byte, secure bool) *pendingCookie {
	return &pendingCookie{sealer: authcode.NewSealer(secret, cookiePurpose), secure: secure}
}

func (p *pendingCookie) set(c *gin.Context, pending models.PendingAuthorization, maxAge int) error {
	raw, err := json.Marshal(pending)
	if err != nil {
		return err
	}
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(cookieName, p.sealer.Seal(raw), maxAge, "/", "", p.secure, true)
	return nil
}

func (p *pendingCookie) get(c *gin.Context) (models.PendingAuthorization, error) {
	value, err := c.Cookie(cookieName)
	if err != nil || value == "" {
		return models.PendingAuthorization{}, errNoPendingAuthorization
	}
	raw, _, err := p.sealer.Open(value)
	if err != nil {
		return models.PendingAuthorization{}, errNoPendingAuthorization
	}

	var pending models.PendingAuthorization
	if err = json.Unmarshal(raw, &pending); err != nil {
		return models.PendingAuthorization{}, errNoPendingAuthorization
	}
	return pending, nil
}

func (p *pendingCookie) clear(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(cookieName, "", -1, "/", "", p.secure, true)
}
