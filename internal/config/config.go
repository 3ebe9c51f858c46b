package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.vox/config.toml.
type Config struct {
	DefaultSession string `toml:"default_session"`
	Server         Server `toml:"server"`
	Media          Media  `toml:"media"`
}

// Media holds the media gateway settings and the device permission policy.
// The daemon is headless, so device permissions are granted here instead of
// through an interactive prompt.
type Media struct {
	URL             string `toml:"url"`
	Token           string `toml:"token"`
	AllowMicrophone bool   `toml:"allow_microphone"`
	AllowCamera     bool   `toml:"allow_camera"`
}

// Server holds the signaling backend settings for a session.
type Server struct {
	// URL is the websocket endpoint of the signaling server.
	URL string `toml:"url"`
	// Token is the bearer token presented when dialing. Refreshing an
	// expired token happens outside the daemon; the connection manager
	// simply retries with whatever token is configured.
	Token string `toml:"token"`
	// UserID is the numeric id of the local user on the backend.
	UserID int64 `toml:"user_id"`
}

// Load reads config from the given path. Returns zero config and error if file missing.
func Load(path string) (*Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// ValidateServer checks that the settings needed to dial the backend are set.
func (c *Config) ValidateServer() error {
	if c.Server.URL == "" {
		return errors.New("server.url is not configured")
	}
	if c.Server.UserID <= 0 {
		return errors.New("server.user_id is not configured")
	}
	return nil
}
