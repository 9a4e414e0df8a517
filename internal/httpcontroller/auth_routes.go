package httpcontroller

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/hellobirdie/hellobirdie/internal/api/auth"
	"github.com/hellobirdie/hellobirdie/internal/errors"
)

const (
	loginFailedMessage   = "Please enter a correct username and password."
	loginDisabledMessage = "Admin login is not configured."
)

// LoginPageData is rendered by the login template.
type LoginPageData struct {
	PageData
	Error     string
	Next      string
	LoginName string
}

// safeNext returns next when it is a local path, else the admin list.
func safeNext(next string) string {
	if next != "" && auth.IsSafeRedirect(next) {
		return next
	}
	return adminListURL
}

// handleLoginPage renders the login form. A logged-in admin goes straight
// to next.
func (s *Server) handleLoginPage(c echo.Context) error {
	next := c.QueryParam(auth.NextParam)
	if s.Auth.IsAuthenticated(c) {
		return c.Redirect(http.StatusFound, safeNext(next))
	}

	page, err := s.newPageData(c, "Log in")
	if err != nil {
		return err
	}
	return c.Render(http.StatusOK, "login", &LoginPageData{PageData: page, Next: next})
}

// handleLogin checks the credentials and starts the admin session.
func (s *Server) handleLogin(c echo.Context) error {
	username := strings.TrimSpace(c.FormValue("username"))
	next := c.FormValue(auth.NextParam)

	err := s.Auth.Login(c, username, c.FormValue("password"))
	if err == nil {
		return c.Redirect(http.StatusFound, safeNext(next))
	}

	page, pageErr := s.newPageData(c, "Log in")
	if pageErr != nil {
		return pageErr
	}
	data := &LoginPageData{PageData: page, Next: next, LoginName: username}

	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		data.Error = loginFailedMessage
	case errors.Is(err, auth.ErrLoginDisabled):
		data.Error = loginDisabledMessage
	default:
		s.logger.Error("admin login failed", logError(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "login failed")
	}
	return c.Render(http.StatusUnauthorized, "login", data)
}

// handleLogout ends the admin session.
func (s *Server) handleLogout(c echo.Context) error {
	if err := s.Auth.Logout(c); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "logout failed")
	}
	return c.Redirect(http.StatusSeeOther, auth.LoginPath)
}
