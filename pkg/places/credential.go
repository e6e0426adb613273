package places

import (
	"context"
	"strings"
	"sync"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/repositories"
)

const (
	// SettingsKey is the settings row that may hold {"api_key": "..."}.
	SettingsKey = "places_provider"

	CredentialSourceEnvironment = "environment"
	CredentialSourceSettings    = "settings"
)

// Credential is the resolved provider key and where it came from.
type Credential struct {
	Key    string
	Source string
}

// Current lets a fixed Credential serve as a CredentialSource.
func (c Credential) Current() Credential {
	return c
}

// CredentialSource hands the client the key to use for the next call.
type CredentialSource interface {
	Current() Credential
}

// SettingsReader is satisfied by repositories.SettingsRepo.
type SettingsReader interface {
	Get(ctx context.Context, key string) (*models.Setting, error)
}

// ResolveCredential prefers envKey and falls back to the settings store.
// A zero Credential means no key is configured; calls then fail with a
// ConfigurationError rather than at startup.
func ResolveCredential(ctx context.Context, envKey string, settings SettingsReader) (Credential, error) {
	if key := strings.TrimSpace(envKey); key != "" {
		return Credential{Key: key, Source: CredentialSourceEnvironment}, nil
	}
	if settings == nil {
		return Credential{}, nil
	}

	setting, err := settings.Get(ctx, SettingsKey)
	if repositories.IsNotFound(err) {
		return Credential{}, nil
	}
	if err != nil {
		return Credential{}, err
	}
	if setting == nil || setting.Value.Data == nil {
		return Credential{}, nil
	}

	key, _ := setting.Value.Data["api_key"].(string)
	key = strings.TrimSpace(key)
	if key == "" {
		return Credential{}, nil
	}
	return Credential{Key: key, Source: CredentialSourceSettings}, nil
}

// CredentialResolver resolves the key when started rather than when built,
// so the settings table only has to exist once migrations have run.
type CredentialResolver struct {
	envKey   string
	settings SettingsReader
	logger   ectologger.Logger

	mu         sync.RWMutex
	credential Credential
}

func NewCredentialResolver(envKey string, settings SettingsReader, logger ectologger.Logger) *CredentialResolver {
	r := &CredentialResolver{envKey: envKey, settings: settings, logger: logger}
	if key := strings.TrimSpace(envKey); key != "" {
		r.credential = Credential{Key: key, Source: CredentialSourceEnvironment}
	}
	return r
}

func (r *CredentialResolver) GetName() string {
	return "places-credential"
}

func (r *CredentialResolver) DependsOn() []string {
	return nil
}

func (r *CredentialResolver) Start(ctx context.Context) error {
	cred, err := ResolveCredential(ctx, r.envKey, r.settings)
	if err != nil {
		return err
	}
	if cred.Key == "" {
		r.logger.WithContext(ctx).Warn("No places API key configured, provider calls will fail until one is set")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.credential = cred
	return nil
}

func (r *CredentialResolver) Stop(context.Context) error {
	return nil
}

func (r *CredentialResolver) Current() Credential {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.credential
}
