package places

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/httpclient"
	"github.com/Ramsey-B/fern/pkg/models"
)

type fakeSettings struct {
	setting *models.Setting
	err     error
}

func (f fakeSettings) Get(context.Context, string) (*models.Setting, error) {
	return f.setting, f.err
}

func TestResolveCredential(t *testing.T) {
	stored := &models.Setting{Key: SettingsKey, Value: database.NewJSONB(map[string]any{"api_key": "from-settings"})}

	tests := []struct {
		name       string
		env        string
		settings   SettingsReader
		wantKey    string
		wantSource string
	}{
		{name: "environment first", env: "from-env", settings: fakeSettings{setting: stored}, wantKey: "from-env", wantSource: CredentialSourceEnvironment},
		{name: "settings fallback", settings: fakeSettings{setting: stored}, wantKey: "from-settings", wantSource: CredentialSourceSettings},
		{name: "missing setting", settings: fakeSettings{err: httperror.NewHTTPError(http.StatusNotFound, "missing")}},
		{name: "no settings store"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cred, err := ResolveCredential(context.Background(), tt.env, tt.settings)
			require.NoError(t, err)
			assert.Equal(t, tt.wantKey, cred.Key)
			assert.Equal(t, tt.wantSource, cred.Source)
		})
	}
}

func TestCredentialResolver(t *testing.T) {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	stored := &models.Setting{Key: SettingsKey, Value: database.NewJSONB(map[string]any{"api_key": "from-settings"})}

	t.Run("settings are not read until started", func(t *testing.T) {
		r := NewCredentialResolver("", fakeSettings{err: httperror.NewHTTPError(http.StatusInternalServerError, "failed to get setting")}, logger)
		assert.Equal(t, "places-credential", r.GetName())
		assert.Empty(t, r.Current().Key)
		assert.Error(t, r.Start(context.Background()))
	})

	t.Run("environment key is usable before start", func(t *testing.T) {
		r := NewCredentialResolver("from-env", nil, logger)
		assert.Equal(t, "from-env", r.Current().Key)
	})

	t.Run("start loads the stored key", func(t *testing.T) {
		r := NewCredentialResolver("", fakeSettings{setting: stored}, logger)
		require.NoError(t, r.Start(context.Background()))
		assert.Equal(t, Credential{Key: "from-settings", Source: CredentialSourceSettings}, r.Current())
	})
}

func TestClientUsesResolvedCredential(t *testing.T) {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-Goog-Api-Key")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"places": []}`))
	}))
	t.Cleanup(srv.Close)

	stored := &models.Setting{Key: SettingsKey, Value: database.NewJSONB(map[string]any{"api_key": "from-settings"})}
	resolver := NewCredentialResolver("", fakeSettings{setting: stored}, logger)

	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL
	client := NewClient(cfg, resolver, httpclient.NewClient(httpclient.DefaultConfig(), logger), nil, logger)

	_, err := client.SearchText(context.Background(), "q", "")
	assert.True(t, IsConfigurationError(err))

	require.NoError(t, resolver.Start(context.Background()))
	_, err = client.SearchText(context.Background(), "q", "")
	require.NoError(t, err)
	assert.Equal(t, "from-settings", gotKey)
}
