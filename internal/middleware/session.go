package middleware

import (
	"context"
	"errors"
	"net/http"
	"path"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/decision-board/internal/logger"
	"github.com/iliyamo/decision-board/internal/model"
	"github.com/iliyamo/decision-board/internal/repository"
)

// AccessClass is the policy a route is held to.
type AccessClass int

const (
	// Authenticated routes need a resolvable session; the role is
	// irrelevant.  Unknown paths fall here.
	Authenticated AccessClass = iota
	// Public routes skip identity resolution.
	Public
	// Developer routes need a session whose user is a developer.
	Developer
)

func (a AccessClass) String() string {
	switch a {
	case Public:
		return "public"
	case Developer:
		return "developer"
	default:
		return "authenticated"
	}
}

// DenyReason explains why Authorize refused a caller.
type DenyReason string

const (
	ReasonUnauthenticated DenyReason = "unauthenticated"
	ReasonForbidden       DenyReason = "forbidden"
)

// Denied is returned by Authorize when the caller may not proceed.
type Denied struct {
	Reason DenyReason
}

func (d *Denied) Error() string { return string(d.Reason) }

// SessionResolver maps a session token to its user.  It returns
// repository.ErrSessionNotFound for unknown tokens.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (model.User, error)
}

// Classify maps a request path to its access class.
func Classify(p string) AccessClass {
	p = cleanPath(p)
	switch {
	case p == "/login" || strings.HasPrefix(p, "/login/"),
		p == "/auth/login", p == "/auth/logout",
		strings.HasPrefix(p, "/assets/"),
		p == "/favicon.ico", p == "/healthz":
		return Public
	case p == "/admin" || strings.HasPrefix(p, "/admin/"):
		return Developer
	default:
		return Authenticated
	}
}

// IsPage reports whether p is an HTML page rather than a JSON endpoint.
// Denied page requests are redirected instead of answered with a status.
func IsPage(p string) bool {
	switch cleanPath(p) {
	case "/", "/history", "/admin", "/login":
		return true
	}
	return strings.HasSuffix(p, ".html")
}

func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	return path.Clean("/" + p)
}

// Authorizer decides whether a session token satisfies an access class.
type Authorizer struct {
	Sessions SessionResolver
}

// Authorize resolves token and checks it against class.  A refusal is
// returned as *Denied; any other error comes from the session store.
func (a *Authorizer) Authorize(ctx context.Context, token string, class AccessClass) (model.User, error) {
	if class == Public {
		return model.User{}, nil
	}
	if token == "" {
		return model.User{}, &Denied{Reason: ReasonUnauthenticated}
	}
	u, err := a.Sessions.Resolve(ctx, token)
	if errors.Is(err, repository.ErrSessionNotFound) {
		return model.User{}, &Denied{Reason: ReasonUnauthenticated}
	}
	if err != nil {
		return model.User{}, err
	}
	if class == Developer && u.Role != model.RoleDeveloper {
		return u, &Denied{Reason: ReasonForbidden}
	}
	return u, nil
}

const userKey = "user"

// CurrentUser returns the user the gateway attached to c.
func CurrentUser(c echo.Context) (model.User, bool) {
	u, ok := c.Get(userKey).(model.User)
	return u, ok
}

func setUser(c echo.Context, u model.User) {
	c.Set(userKey, u)
	c.Set("role", string(u.Role))
}

// Gateway runs before every handler.  It classifies the request, resolves
// the session cookie and either attaches the user to the context or ends
// the request: pages are redirected (to /login, or to / for a partner on
// a developer page), data routes get 401 or 403.
func Gateway(auth *Authorizer, cookieName string, log logger.Logger) echo.MiddlewareFunc {
	if log == nil {
		log = logger.Default()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			class := Classify(req.URL.Path)
			if class == Public {
				return next(c)
			}

			var token string
			if ck, err := c.Cookie(cookieName); err == nil {
				token = ck.Value
			}
			u, err := auth.Authorize(req.Context(), token, class)
			if err != nil {
				var denied *Denied
				if errors.As(err, &denied) {
					return deny(c, denied.Reason)
				}
				log.Error("resolve session", "path", req.URL.Path, "err", err)
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
			}
			setUser(c, u)
			return next(c)
		}
	}
}

func deny(c echo.Context, reason DenyReason) error {
	if IsPage(c.Request().URL.Path) {
		if reason == ReasonForbidden {
			return c.Redirect(http.StatusFound, "/")
		}
		return c.Redirect(http.StatusFound, "/login")
	}
	if reason == ReasonForbidden {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
}
