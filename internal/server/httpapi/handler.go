// Package httpapi exposes the authentication service over HTTP/JSON.
package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/memberauth/internal/common"
	"github.com/dmitrijs2005/memberauth/internal/logging"
	"github.com/dmitrijs2005/memberauth/internal/server/auth"
	"github.com/dmitrijs2005/memberauth/internal/server/services"
	"github.com/gin-gonic/gin"
)

// AuthService is implemented by *services.AuthService.
type AuthService interface {
	Join(ctx context.Context, c services.Credentials) (services.Outcome, error)
	Login(ctx context.Context, c services.Credentials) (services.Outcome, error)
	Refresh(ctx context.Context, refreshToken string) (services.Outcome, error)
	Logout(ctx context.Context, refreshToken string) (services.Outcome, error)
	Authenticate(ctx context.Context, accessToken string) (*auth.Claims, error)
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type Handler struct {
	svc           AuthService
	logger        logging.Logger
	secureCookies bool
	now           func() time.Time
}

func NewHandler(svc AuthService, logger logging.Logger, secureCookies bool) *Handler {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Handler{
		svc:           svc,
		logger:        logger.With("module", "http"),
		secureCookies: secureCookies,
		now:           time.Now,
	}
}

// NewRouter builds the gin engine serving the auth routes.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(recovery(h.logger), requestLogger(h.logger))

	r.GET("/health", h.Health)

	g := r.Group("/auth")
	g.POST("/join", h.Join)
	g.POST("/login", h.Login)
	g.POST("/refresh", h.Refresh)
	g.POST("/logout", h.Logout)
	g.GET("/me", h.Me)

	return r
}

func (h *Handler) Health(c *gin.Context) {
	respond(c, http.StatusOK, "ok", nil)
}

func (h *Handler) Join(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	o, err := h.svc.Join(c.Request.Context(), services.Credentials{Email: req.Email, Password: req.Password})
	if err != nil {
		h.internalError(c, err)
		return
	}
	respond(c, o.HTTPStatus(), o.Message, nil)
}

func (h *Handler) Login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	o, err := h.svc.Login(c.Request.Context(), services.Credentials{Email: req.Email, Password: req.Password})
	if err != nil {
		h.internalError(c, err)
		return
	}
	h.respondTokens(c, o)
}

func (h *Handler) Refresh(c *gin.Context) {
	token, ok := h.refreshTokenFrom(c)
	if !ok {
		respond(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	o, err := h.svc.Refresh(c.Request.Context(), token)
	if err != nil {
		h.internalError(c, err)
		return
	}
	h.respondTokens(c, o)
}

func (h *Handler) Logout(c *gin.Context) {
	token, ok := h.refreshTokenFrom(c)
	if !ok {
		respond(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	o, err := h.svc.Logout(c.Request.Context(), token)
	if err != nil {
		h.internalError(c, err)
		return
	}
	if o.OK() {
		h.clearCookies(c)
	}
	respond(c, o.HTTPStatus(), o.Message, nil)
}

func (h *Handler) Me(c *gin.Context) {
	token := bearerToken(c.GetHeader("Authorization"))
	if token == "" {
		token, _ = c.Cookie(common.AccessTokenCookieName)
	}
	if token == "" {
		respond(c, http.StatusUnauthorized, msgUnauthorized, nil)
		return
	}

	claims, err := h.svc.Authenticate(c.Request.Context(), token)
	if err != nil {
		respond(c, http.StatusUnauthorized, err.Error(), nil)
		return
	}
	respond(c, http.StatusOK, services.MsgSuccess, MemberData{MemberID: claims.MemberID(), Email: claims.Email})
}

// respondTokens writes the outcome and, when it carries tokens, sets both
// cookies to exactly the values placed in the body.
func (h *Handler) respondTokens(c *gin.Context, o services.Outcome) {
	if !o.OK() || o.Tokens == nil {
		respond(c, o.HTTPStatus(), o.Message, nil)
		return
	}

	h.setCookie(c, common.AccessTokenCookieName, o.Tokens.AccessToken, o.Tokens.AccessExpiresAt)
	h.setCookie(c, common.RefreshTokenCookieName, o.Tokens.RefreshToken, o.Tokens.RefreshExpiresAt)

	respond(c, o.HTTPStatus(), o.Message, TokenData{
		AccessToken:  o.Tokens.AccessToken,
		RefreshToken: o.Tokens.RefreshToken,
	})
}

func (h *Handler) setCookie(c *gin.Context, name, value string, expiresAt time.Time) {
	maxAge := int(expiresAt.Sub(h.now()).Seconds())
	if maxAge <= 0 {
		maxAge = -1
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, value, maxAge, "/", "", h.secureCookies, true)
}

func (h *Handler) clearCookies(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(common.AccessTokenCookieName, "", -1, "/", "", h.secureCookies, true)
	c.SetCookie(common.RefreshTokenCookieName, "", -1, "/", "", h.secureCookies, true)
}

// refreshTokenFrom prefers the Refresh_Token cookie and falls back to the
// JSON body. An empty body with no cookie yields an empty token.
func (h *Handler) refreshTokenFrom(c *gin.Context) (string, bool) {
	if v, err := c.Cookie(common.RefreshTokenCookieName); err == nil && v != "" {
		return v, true
	}
	if c.Request.ContentLength == 0 {
		return "", true
	}
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return "", false
	}
	return req.RefreshToken, true
}

func (h *Handler) internalError(c *gin.Context, err error) {
	h.logger.Error(c.Request.Context(), "request failed", "path", c.Request.URL.Path, "error", err)
	respond(c, http.StatusInternalServerError, msgInternalError, nil)
}

func bearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
