package browser

import (
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/attachtimer/internal/models"
)

func TestCookieParam(t *testing.T) {
	t.Run("persistent cookie", func(t *testing.T) {
		param := cookieParam(models.StateCookie{
			Name:     "session",
			Value:    "abc",
			Domain:   "example.test",
			Path:     "/",
			Expires:  1700000000.5,
			HTTPOnly: true,
			Secure:   true,
			SameSite: "Lax",
		})

		assert.Equal(t, "session", param.Name)
		assert.Equal(t, "abc", param.Value)
		assert.Equal(t, "example.test", param.Domain)
		assert.True(t, param.HTTPOnly)
		assert.True(t, param.Secure)
		assert.Equal(t, network.CookieSameSiteLax, param.SameSite)
		require.NotNil(t, param.Expires)
		assert.Equal(t, int64(1700000000500), param.Expires.Time().UnixMilli())
	})

	t.Run("session cookie", func(t *testing.T) {
		param := cookieParam(models.StateCookie{Name: "s", Value: "v", Expires: -1, SameSite: "bogus"})
		assert.Nil(t, param.Expires)
		assert.Empty(t, param.SameSite)
	})
}

func TestLocalStorageScript(t *testing.T) {
	script, err := localStorageScript(models.StateOrigin{
		Origin: "https://example.test",
		LocalStorage: []models.StateKeyValue{
			{Name: "token", Value: `a"b`},
		},
	})
	require.NoError(t, err)

	assert.Contains(t, script, `location.origin !== "https://example.test"`)
	assert.Contains(t, script, `[{"name":"token","value":"a\"b"}]`)
}

func TestNewLauncherDefaultsTimeout(t *testing.T) {
	l := NewLauncher(LauncherConfig{}, nil)
	assert.Equal(t, 30*time.Second, l.config.ActionTimeout)
}
