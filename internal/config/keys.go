package config

import "os"

// APIKeySource represents where an API key comes from.
type APIKeySource string

const (
	KeySourceEnv         APIKeySource = "env"
	KeySourceConfig      APIKeySource = "config"
	KeySourceCredentials APIKeySource = "credentials"
	KeySourceNone        APIKeySource = "none"
)

// KeyStatus represents the status of an API key.
type KeyStatus struct {
	Name   string       `json:"name"`
	Source APIKeySource `json:"source"`
	IsSet  bool         `json:"is_set"`
	Masked string       `json:"masked,omitempty"` // e.g., "abc...xyz"
}

// CheckAPIKeys returns the status of all secrets the client uses. The BMRS
// key falls back to the credentials file when it is not set directly.
func CheckAPIKeys(cfg *Config) []KeyStatus {
	bmrs := checkKey("BMRS API Key", cfg.BMRS.APIKey, "BMRS_API_KEY")
	if !bmrs.IsSet && cfg.BMRS.CredentialsFile != "" {
		if key, err := LoadCredentials(cfg.BMRS.CredentialsFile, cfg.BMRS.Profile); err == nil {
			bmrs = KeyStatus{Name: bmrs.Name, Source: KeySourceCredentials, IsSet: true, Masked: maskKey(key)}
		}
	}
	return []KeyStatus{
		bmrs,
		checkKey("PostgreSQL DSN", cfg.Sinks.Postgres.DSN, "BMRS_POSTGRES_DSN"),
	}
}

// checkKey checks if a key is set and where it came from.
func checkKey(name, value, envVar string) KeyStatus {
	status := KeyStatus{
		Name:  name,
		IsSet: value != "",
	}

	if value != "" {
		if os.Getenv(envVar) != "" {
			status.Source = KeySourceEnv
		} else {
			status.Source = KeySourceConfig
		}
		status.Masked = maskKey(value)
	} else {
		status.Source = KeySourceNone
	}

	return status
}

// maskKey masks an API key for display, showing only first 3 and last 3 chars.
func maskKey(key string) string {
	if len(key) <= 8 {
		return "***"
	}
	return key[:3] + "..." + key[len(key)-3:]
}
