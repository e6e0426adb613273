package places

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	// statusPermissionDenied is the provider status for a key without access to the API.
	statusPermissionDenied = "PERMISSION_DENIED"

	remediationEnableAPI = `Go to APIs & Services > Library, search for "Places API (New)" and enable it for the project that owns the key`
	remediationSetKey    = "Set PLACES_API_KEY or store an api_key under the places_provider setting"
)

// ConfigurationError means the provider cannot be used with the current
// credentials. It aborts the whole request.
type ConfigurationError struct {
	Message       string
	Remediation   string
	RequiresSetup bool
}

func (e *ConfigurationError) Error() string {
	return e.Message
}

// ProviderError is any other provider failure. Message is the provider's text verbatim.
type ProviderError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *ProviderError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("places API error: %s - %s", e.Status, e.Message)
	}
	return fmt.Sprintf("places API error: %d - %s", e.StatusCode, e.Message)
}

// IsConfigurationError reports whether err is or wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}

// IsNotFound reports whether the provider said the place does not exist.
func IsNotFound(err error) bool {
	var provErr *ProviderError
	if !errors.As(err, &provErr) {
		return false
	}
	return provErr.StatusCode == http.StatusNotFound || provErr.Status == "NOT_FOUND"
}

func permissionDenied(message string) *ConfigurationError {
	if message == "" {
		message = "permission denied"
	}
	return &ConfigurationError{
		Message:       fmt.Sprintf(`API key configuration error: enable "Places API (New)" in the Google Cloud console (%s)`, message),
		Remediation:   remediationEnableAPI,
		RequiresSetup: true,
	}
}

func missingCredential() *ConfigurationError {
	return &ConfigurationError{
		Message:       "places API key is not configured",
		Remediation:   remediationSetKey,
		RequiresSetup: true,
	}
}
