package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell/storybot/pkg/logger"
)

const testSecret = "test-secret"

func echoUser() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("user=" + GetUserID(r.Context())))
	})
}

func TestAuthOptional(t *testing.T) {
	h := Auth(testSecret, false)(echoUser())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user=", rec.Body.String())
}

func TestAuthRequired(t *testing.T) {
	h := Auth(testSecret, true)(echoUser())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"missing authorization header"}`, rec.Body.String())
}

func TestAuthValidToken(t *testing.T) {
	token, err := IssueToken(testSecret, "writer-42", time.Minute, "chat")
	require.NoError(t, err)

	var scopes []string
	h := Auth(testSecret, true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scopes = GetScopes(r.Context())
		echoUser().ServeHTTP(w, r)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user=writer-42", rec.Body.String())
	assert.Equal(t, []string{"chat"}, scopes)
}

func TestAuthRejectsBadTokens(t *testing.T) {
	expired, err := IssueToken(testSecret, "writer-42", -time.Minute)
	require.NoError(t, err)
	foreign, err := IssueToken("other-secret", "writer-42", time.Minute)
	require.NoError(t, err)

	for name, header := range map[string]string{
		"expired":   "Bearer " + expired,
		"foreign":   "Bearer " + foreign,
		"malformed": "Bearer nope",
		"scheme":    "Basic abc",
	} {
		t.Run(name, func(t *testing.T) {
			h := Auth(testSecret, false)(echoUser())
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", header)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestRequireScope(t *testing.T) {
	token, err := IssueToken(testSecret, "u", time.Minute, "read")
	require.NoError(t, err)

	h := Auth(testSecret, true)(RequireScope("admin")(echoUser()))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestLoggingSetsCorrelationID(t *testing.T) {
	var seen string
	h := Logging(logger.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetCorrelationID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Correlation-ID", "corr-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "corr-1", seen)
	assert.Equal(t, "corr-1", rec.Header().Get("X-Correlation-ID"))
}

func TestValidation(t *testing.T) {
	assert.NoError(t, ValidateUtterance("hello"))
	assert.NoError(t, ValidateUtterance("   "))
	assert.Error(t, ValidateUtterance(strings.Repeat("a", MaxUtteranceLength+1)))
	assert.Error(t, ValidateUtterance(string([]byte{0xff, 0xfe})))

	assert.NoError(t, ValidateSessionID("0190a3c4-7b1e-7c2d-9f00-1234567890ab"))
	assert.Error(t, ValidateSessionID("not-a-uuid"))
}

func TestAuthAcceptsQueryToken(t *testing.T) {
	token, err := IssueToken(testSecret, "reader-7", time.Minute)
	require.NoError(t, err)

	h := Auth(testSecret, true)(echoUser())
	req := httptest.NewRequest(http.MethodGet, "/?access_token="+token, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user=reader-7", rec.Body.String())
}

func TestRateLimitPerVisitor(t *testing.T) {
	h := RateLimit(2, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	call := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		resp := httptest.NewRecorder()
		h.ServeHTTP(resp, req)
		return resp
	}

	assert.Equal(t, http.StatusNoContent, call("192.0.2.1:1000").Code)
	assert.Equal(t, http.StatusNoContent, call("192.0.2.1:1001").Code)

	limited := call("192.0.2.1:1002")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "60", limited.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"rate limit exceeded"}`, limited.Body.String())

	assert.Equal(t, http.StatusNoContent, call("198.51.100.7:1000").Code)
}
