package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/spec-kit/ticket-upgrade-agent/pkg/util/errorutil"
)

func TestTokenManager_RoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", time.Minute, "upgrade-agent")

	token, expires, err := tm.GenerateToken("orchestrator", ScopeToolsInvoke)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), expires, 2*time.Second)

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "orchestrator", claims.Service)
	assert.True(t, claims.HasScope(ScopeToolsInvoke))
	assert.False(t, claims.HasScope(ScopeOpsRead))
}

func TestTokenManager_RejectsForeignOrExpiredTokens(t *testing.T) {
	tm := NewTokenManager("secret", time.Minute, "upgrade-agent")
	other := NewTokenManager("other-secret", time.Minute, "upgrade-agent")
	token, _, err := other.GenerateToken("orchestrator", ScopeToolsInvoke)
	require.NoError(t, err)
	_, err = tm.ParseToken(token)
	assert.Error(t, err)

	base := time.Now()
	tm.now = func() time.Time { return base }
	token, _, err = tm.GenerateToken("orchestrator")
	require.NoError(t, err)
	tm.now = func() time.Time { return base.Add(2 * time.Minute) }
	_, err = tm.ParseToken(token)
	assert.Error(t, err)
}

func TestServiceTokenSource_CachesUntilNearExpiry(t *testing.T) {
	tm := NewTokenManager("secret", time.Minute, "upgrade-agent")
	base := time.Now()
	tm.now = func() time.Time { return base }
	src := NewServiceTokenSource(tm, "orchestrator", ScopeToolsInvoke)

	first, err := src.Token()
	require.NoError(t, err)
	second, err := src.Token()
	require.NoError(t, err)
	assert.Equal(t, first, second)

	tm.now = func() time.Time { return base.Add(55 * time.Second) }
	third, err := src.Token()
	require.NoError(t, err)
	assert.NotEqual(t, first, third)
}

func TestMiddleware_RequireScope(t *testing.T) {
	tm := NewTokenManager("secret", time.Minute, "upgrade-agent")
	app := fiber.New(fiber.Config{ErrorHandler: func(c *fiber.Ctx, err error) error {
		return c.SendStatus(apperrors.ToDomainError(err).HTTPStatus)
	}})
	app.Post("/tools/invoke", NewAuthMiddleware(tm, nil).Handle, RequireScope(ScopeToolsInvoke), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusOK)
	})

	status := func(header string) int {
		req := httptest.NewRequest(http.MethodPost, "/tools/invoke", nil)
		if header != "" {
			req.Header.Set(fiber.HeaderAuthorization, header)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}

	good, _, err := tm.GenerateToken("orchestrator", ScopeToolsInvoke)
	require.NoError(t, err)
	narrow, _, err := tm.GenerateToken("dashboard", ScopeOpsRead)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, status("Bearer "+good))
	assert.Equal(t, http.StatusForbidden, status("Bearer "+narrow))
	assert.Equal(t, http.StatusUnauthorized, status(""))
	assert.Equal(t, http.StatusUnauthorized, status("Bearer nope"))
	assert.Equal(t, http.StatusUnauthorized, status("Basic abc"))
}
