package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/hellobirdie/hellobirdie/internal/conf"
	"github.com/hellobirdie/hellobirdie/internal/errors"
	"github.com/hellobirdie/hellobirdie/internal/logger"
)

const (
	// SessionName is the admin session cookie name.
	SessionName = "hellobirdie_session"

	// DefaultSessionMaxAge applies when the settings leave MaxAge unset.
	DefaultSessionMaxAge = 14 * 24 * time.Hour

	// MinPasswordLength is enforced by HashPassword.
	MinPasswordLength = 8

	sessionKeyUsername = "username"
	sessionKeyLoginAt  = "login_at"
)

var _ Service = (*SessionService)(nil)

// SessionService authenticates the single configured admin user with a
// bcrypt password hash and keeps the login in a signed, encrypted cookie.
type SessionService struct {
	store        *sessions.CookieStore
	username     string
	passwordHash []byte
}

// NewSessionService builds the service from the web server settings. An
// empty session secret gets a random one, so sessions do not survive a
// restart.
func NewSessionService(settings *conf.WebServerSettings) *SessionService {
	secret := settings.Session.Secret
	if secret == "" {
		GetLogger().Warn("no session secret configured, admin sessions end on restart")
		secret = conf.GenerateRandomSecret()
	}

	maxAge := settings.Session.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultSessionMaxAge
	}

	store := sessions.NewCookieStore(createSessionKey(secret), createSessionKey(secret+"encryption"))
	store.Options = buildSessionOptions(settings.Session.Secure, int(maxAge.Seconds()))

	return &SessionService{
		store:        store,
		username:     strings.TrimSpace(settings.Admin.Username),
		passwordHash: []byte(settings.Admin.PasswordHash),
	}
}

// createSessionKey derives a fixed-length key from the configured secret.
func createSessionKey(seed string) []byte {
	hash := sha256.Sum256([]byte(seed))
	return hash[:]
}

// buildSessionOptions creates session options with standard security settings.
// The secure parameter controls whether cookies require HTTPS.
// The maxAge parameter sets the session duration in seconds.
func buildSessionOptions(secure bool, maxAge int) *sessions.Options {
	return &sessions.Options{
		Path:     "/",
		MaxAge:   maxAge,
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// LoginEnabled reports whether an admin password hash is configured.
func (s *SessionService) LoginEnabled() bool {
	return s.username != "" && len(s.passwordHash) > 0
}

// IsAuthRequired is always true: without configured credentials the admin
// pages stay locked.
func (s *SessionService) IsAuthRequired(echo.Context) bool {
	return true
}

// CheckAccess returns ErrSessionNotFound unless the request carries a
// session for the configured admin.
func (s *SessionService) CheckAccess(c echo.Context) error {
	if s.GetUsername(c) == "" {
		return ErrSessionNotFound
	}
	return nil
}

// GetUsername returns the admin name stored in the session, or "".
func (s *SessionService) GetUsername(c echo.Context) string {
	session, err := s.store.Get(c.Request(), SessionName)
	if err != nil {
		// A cookie signed with an old secret; treat as anonymous.
		return ""
	}
	username, _ := session.Values[sessionKeyUsername].(string)
	if username == "" || username != s.username {
		return ""
	}
	return username
}

// GetAuthMethod returns AuthMethodBrowserSession for logged-in requests.
func (s *SessionService) GetAuthMethod(c echo.Context) AuthMethod {
	if s.GetUsername(c) != "" {
		return AuthMethodBrowserSession
	}
	return AuthMethodUnknown
}

// IsAuthenticated reports whether the request has a valid admin session.
func (s *SessionService) IsAuthenticated(c echo.Context) bool {
	return s.CheckAccess(c) == nil
}

// Login verifies the credentials and replaces any existing session.
func (s *SessionService) Login(c echo.Context, username, password string) error {
	log := GetLogger().With(logger.String("ip", c.RealIP()))
	if !s.LoginEnabled() {
		log.Warn("admin login attempted but no credentials are configured")
		return ErrLoginDisabled
	}

	userOK := subtle.ConstantTimeCompare([]byte(strings.TrimSpace(username)), []byte(s.username)) == 1
	// Always run bcrypt so a wrong username costs the same as a wrong password.
	passErr := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password))
	if !userOK || passErr != nil {
		log.Warn("admin login failed", logger.String("username", username))
		return ErrInvalidCredentials
	}

	session, _ := s.store.Get(c.Request(), SessionName)
	// New session values on every login.
	session.Values = map[any]any{
		sessionKeyUsername: s.username,
		sessionKeyLoginAt:  time.Now().Unix(),
	}
	session.Options = s.store.Options
	if err := session.Save(c.Request(), c.Response()); err != nil {
		return errors.New(err).
			Component("auth").
			Category(errors.CategoryAuth).
			Context("operation", "save-session").
			Build()
	}

	log.Info("admin logged in", logger.String("username", s.username))
	return nil
}

// Logout expires the session cookie.
func (s *SessionService) Logout(c echo.Context) error {
	session, _ := s.store.Get(c.Request(), SessionName)
	session.Values = map[any]any{}
	opts := *s.store.Options
	opts.MaxAge = -1
	session.Options = &opts
	if err := session.Save(c.Request(), c.Response()); err != nil {
		GetLogger().Error("failed to clear admin session", logger.Error(err))
		return ErrLogoutFailed
	}
	return nil
}

// HashPassword returns the bcrypt hash stored in webserver.admin.passwordhash.
func HashPassword(password string) (string, error) {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return "", errors.Newf("password must be at least %d characters", MinPasswordLength).
			Component("auth").
			Category(errors.CategoryValidation).
			Build()
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.New(err).
			Component("auth").
			Category(errors.CategoryValidation).
			Build()
	}
	return string(hash), nil
}
