package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/hellobirdie/hellobirdie/internal/conf"
	"github.com/hellobirdie/hellobirdie/internal/errors"
)

func newTestService(t *testing.T, password string) *SessionService {
	t.Helper()
	settings := &conf.WebServerSettings{
		Admin:   conf.AdminSettings{Username: "admin"},
		Session: conf.SessionSettings{Secret: "test-secret"},
	}
	if password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
		require.NoError(t, err)
		settings.Admin.PasswordHash = string(hash)
	}
	return NewSessionService(settings)
}

// login performs a login and returns the session cookie.
func login(t *testing.T, svc *SessionService, username, password string) (*http.Cookie, error) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, LoginPath, http.NoBody), rec)
	if err := svc.Login(c, username, password); err != nil {
		return nil, err
	}
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == SessionName {
			return cookie, nil
		}
	}
	t.Fatal("login did not set a session cookie")
	return nil, nil
}

func TestSessionService_Login(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, "correct horse")
	assert.True(t, svc.LoginEnabled())

	_, err := login(t, svc, "admin", "wrong password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = login(t, svc, "someone", "correct horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	cookie, err := login(t, svc, "admin", "correct horse")
	require.NoError(t, err)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/admin/birds/", http.NoBody)
	req.AddCookie(cookie)
	c := e.NewContext(req, httptest.NewRecorder())
	assert.True(t, svc.IsAuthenticated(c))
	assert.Equal(t, "admin", svc.GetUsername(c))
	assert.Equal(t, AuthMethodBrowserSession, svc.GetAuthMethod(c))
}

func TestSessionService_LoginDisabledWithoutHash(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, "")
	assert.False(t, svc.LoginEnabled())
	_, err := login(t, svc, "admin", "anything")
	assert.ErrorIs(t, err, ErrLoginDisabled)
}

func TestSessionService_RejectsForeignCookie(t *testing.T) {
	t.Parallel()

	cookie, err := login(t, newTestService(t, "correct horse"), "admin", "correct horse")
	require.NoError(t, err)

	other := NewSessionService(&conf.WebServerSettings{
		Admin:   conf.AdminSettings{Username: "admin", PasswordHash: "x"},
		Session: conf.SessionSettings{Secret: "another-secret"},
	})
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.AddCookie(cookie)
	c := echo.New().NewContext(req, httptest.NewRecorder())
	assert.False(t, other.IsAuthenticated(c))
	assert.ErrorIs(t, other.CheckAccess(c), ErrSessionNotFound)
}

func TestSessionService_Logout(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, "correct horse")
	cookie, err := login(t, svc, "admin", "correct horse")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/admin/logout/", http.NoBody)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	require.NoError(t, svc.Logout(echo.New().NewContext(req, rec)))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionName, cookies[0].Name)
	assert.Negative(t, cookies[0].MaxAge)
}

func TestMiddleware_Authenticate(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, "correct horse")
	cookie, err := login(t, svc, "admin", "correct horse")
	require.NoError(t, err)

	protected := func(c echo.Context) error {
		assert.Equal(t, "admin", c.Get(CtxKeyUsername))
		assert.Equal(t, true, c.Get(CtxKeyIsAuthenticated))
		return c.String(http.StatusOK, "secret")
	}

	tests := []struct {
		name     string
		browser  bool
		accept   string
		cookie   *http.Cookie
		wantCode int
		wantLoc  string
	}{
		{"api client gets 401", false, "application/json", nil, http.StatusUnauthorized, ""},
		{"html client redirected", false, "text/html", nil, http.StatusFound, "/admin/login/?next=%2Fadmin%2Fbirds%2F%3Fq%3Dhawk"},
		{"browser mode redirects", true, "", nil, http.StatusFound, "/admin/login/?next=%2Fadmin%2Fbirds%2F%3Fq%3Dhawk"},
		{"valid session passes", true, "", cookie, http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := echo.New()
			m := &Middleware{AuthService: svc, Browser: tt.browser}
			e.GET("/admin/birds/", protected, m.Authenticate)

			req := httptest.NewRequest(http.MethodGet, "/admin/birds/?q=hawk", http.NoBody)
			if tt.accept != "" {
				req.Header.Set("Accept", tt.accept)
			}
			if tt.cookie != nil {
				req.AddCookie(tt.cookie)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantLoc != "" {
				assert.Equal(t, tt.wantLoc, rec.Header().Get("Location"))
			}
		})
	}
}

func TestMiddleware_NilService(t *testing.T) {
	t.Parallel()

	e := echo.New()
	m := NewMiddleware(nil)
	reached := false
	e.GET("/", func(c echo.Context) error {
		reached = true
		return c.NoContent(http.StatusOK)
	}, m.Authenticate)

	rec := httptest.NewRecorder()
	require.NotPanics(t, func() {
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "authentication service not available")
	assert.False(t, reached, "handler must not run without an auth service")

	// Called directly, the middleware reports the failure instead of continuing.
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", http.NoBody), httptest.NewRecorder())
	err := m.Authenticate(func(echo.Context) error {
		reached = true
		return nil
	})(c)
	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusInternalServerError, httpErr.Code)
	assert.False(t, reached)
}

func TestIsSafeRedirect(t *testing.T) {
	t.Parallel()

	tests := map[string]bool{
		"/admin/birds/":         true,
		"/admin/birds/?genus=A": true,
		"":                      false,
		"admin":                 false,
		"//evil.example":        false,
		"/\\evil.example":       false,
		"https://evil.example/": false,
		"/ok\r\nSet-Cookie: x":  false,
	}
	for target, want := range tests {
		assert.Equal(t, want, IsSafeRedirect(target), target)
	}
}

func TestRequestBasePath(t *testing.T) {
	t.Parallel()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/admin/birds/", http.NoBody)
	req.Header.Set("X-Forwarded-Prefix", "/birdie/")
	assert.Equal(t, "/birdie", requestBasePath(e.NewContext(req, httptest.NewRecorder())))

	req.Header.Set("X-Forwarded-Prefix", "//evil.example")
	assert.Empty(t, requestBasePath(e.NewContext(req, httptest.NewRecorder())))
}

func TestHashPassword(t *testing.T) {
	t.Parallel()

	_, err := HashPassword("short")
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))

	hash, err := HashPassword("long enough password")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("long enough password")))
}
