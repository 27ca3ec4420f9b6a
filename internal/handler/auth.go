package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/decision-board/internal/config"
	"github.com/iliyamo/decision-board/internal/logger"
	"github.com/iliyamo/decision-board/internal/middleware"
	"github.com/iliyamo/decision-board/internal/repository"
	"github.com/iliyamo/decision-board/internal/utils"
)

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg      config.Config
	Users    *repository.UserRepo
	Sessions *repository.SessionRepo
	Log      logger.Logger
}

func NewAuthHandler(cfg config.Config, u *repository.UserRepo, s *repository.SessionRepo, log logger.Logger) *AuthHandler {
	if u == nil || s == nil {
		panic("nil repository passed to NewAuthHandler")
	}
	if log == nil {
		log = logger.Default()
	}
	return &AuthHandler{Cfg: cfg, Users: u, Sessions: s, Log: log}
}

type loginReq struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

type meResp struct {
	ID    uint64 `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Login verifies the credentials, opens a session and hands its token
// back as an HttpOnly cookie.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email and password are required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if errors.Is(err, repository.ErrUserNotFound) {
		utils.BurnPasswordCheck(req.Password)
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	token, err := h.Sessions.Create(ctx, u.ID)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	c.SetCookie(h.cookie(token, int(h.Cfg.SessionTTL/time.Second)))
	h.Log.Info("login", "user_id", u.ID, "role", u.Role)
	return c.JSON(http.StatusOK, echo.Map{"ok": true, "role": u.Role})
}

// Logout destroys the session named by the cookie, if any, and clears the
// cookie.  It always succeeds.
func (h *AuthHandler) Logout(c echo.Context) error {
	if ck, err := c.Cookie(h.Cfg.SessionCookie); err == nil && ck.Value != "" {
		if err := h.Sessions.Destroy(c.Request().Context(), ck.Value); err != nil {
			h.Log.Warn("destroy session", "err", err)
		}
	}
	c.SetCookie(h.cookie("", -1))
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}

// Me returns the user attached by the session gateway.
func (h *AuthHandler) Me(c echo.Context) error {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
	}
	return c.JSON(http.StatusOK, meResp{ID: u.ID, Email: u.Email, Role: string(u.Role)})
}

// cookie builds the session cookie.  A negative maxAge expires it.
func (h *AuthHandler) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     h.Cfg.SessionCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.Cfg.SecureCookies(),
		SameSite: http.SameSiteLaxMode,
	}
}
