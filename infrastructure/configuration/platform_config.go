package configuration

import (
	"fmt"
	"os"
	"strings"
)

// PlatformOAuthConfig is the resolved OAuth client configuration for one platform.
type PlatformOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	APIKey       string
}

// GetPlatformOAuthConfig resolves a platform's OAuth client settings from the
// JSON config with environment variable fallback (YOUTUBE_CLIENT_ID etc).
func GetPlatformOAuthConfig(platform string) (*PlatformOAuthConfig, error) {
	var client OAuthClient
	switch strings.ToLower(platform) {
	case "youtube":
		client = C.OAuth.YouTube
	default:
		return nil, fmt.Errorf("unsupported platform: %s", platform)
	}

	prefix := strings.ToUpper(platform)
	scheme := "http"
	if C.App.TLSEnabled {
		scheme = "https"
	}
	port := C.App.Port
	if port == 0 {
		port = 10002
	}
	defaultRedirect := fmt.Sprintf("%s://localhost:%d/auth/%s/callback", scheme, port, strings.ToLower(platform))

	return &PlatformOAuthConfig{
		ClientID:     getConfigValue(client.ClientID, prefix+"_CLIENT_ID", ""),
		ClientSecret: getConfigValue(client.ClientSecret, prefix+"_CLIENT_SECRET", ""),
		RedirectURL:  getConfigValue(client.RedirectURI, prefix+"_REDIRECT_URL", defaultRedirect),
		APIKey:       getConfigValue(client.APIKey, prefix+"_API_KEY", ""),
	}, nil
}

// getConfigValue prefers the environment variable, then the config value when
// it is set and not a placeholder, then the default.
func getConfigValue(configValue, envKey, defaultValue string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	if configValue != "" && !strings.HasPrefix(configValue, "YOUR_") {
		return configValue
	}
	return defaultValue
}
