package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/ini.v1"
)

// ErrNoCredentials is returned when no API key is configured anywhere.
var ErrNoCredentials = errors.New("no BMRS API key configured")

// LoadCredentials reads the api_key of profile from an INI credentials file:
//
//	[default]
//	api_key = abc123
func LoadCredentials(path, profile string) (string, error) {
	if profile == "" {
		profile = "default"
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: credentials file %s not found", ErrNoCredentials, path)
	}
	f, err := ini.Load(path)
	if err != nil {
		return "", fmt.Errorf("read credentials %s: %w", path, err)
	}
	sec, err := f.GetSection(profile)
	if err != nil {
		return "", fmt.Errorf("%w: profile %q not in %s", ErrNoCredentials, profile, path)
	}
	key := strings.TrimSpace(sec.Key("api_key").String())
	if key == "" {
		return "", fmt.Errorf("%w: profile %q has no api_key", ErrNoCredentials, profile)
	}
	return key, nil
}

// ResolveAPIKey returns the configured API key, falling back to the
// credentials file. It records the key on cfg.
func (cfg *Config) ResolveAPIKey() (string, error) {
	if cfg.BMRS.APIKey != "" {
		return cfg.BMRS.APIKey, nil
	}
	if cfg.BMRS.CredentialsFile == "" {
		return "", ErrNoCredentials
	}
	key, err := LoadCredentials(cfg.BMRS.CredentialsFile, cfg.BMRS.Profile)
	if err != nil {
		return "", err
	}
	cfg.BMRS.APIKey = key
	return key, nil
}
