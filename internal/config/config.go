// Package config loads process configuration from an optional YAML file with
// environment-variable overrides.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the process configuration. OAuth client credentials are optional
// at startup; an account of the matching type resolved without them fails
// with a configuration error at construction time.
type Config struct {
	Server struct {
		Host string `yaml:"host"`
		Port string `yaml:"port"`
	} `yaml:"server"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	// EncryptionKey protects credential blobs at rest. Required.
	EncryptionKey string `yaml:"encryption_key"`

	Google struct {
		ClientID     string `yaml:"client_id"`
		ClientSecret string `yaml:"client_secret"`
	} `yaml:"google"`

	Microsoft struct {
		ClientID     string `yaml:"client_id"`
		ClientSecret string `yaml:"client_secret"`
		TenantID     string `yaml:"tenant_id"`
	} `yaml:"microsoft"`
}

// Load reads the YAML file at path (skipped when the file does not exist),
// applies environment overrides and defaults, and validates.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	overrideEnv(&cfg.Server.Host, "HOST")
	overrideEnv(&cfg.Server.Port, "PORT")
	overrideEnv(&cfg.Database.Path, "OUTMAIL_DB")
	overrideEnv(&cfg.EncryptionKey, "OUTMAIL_ENCRYPTION_KEY")
	overrideEnv(&cfg.Google.ClientID, "GOOGLE_CLIENT_ID")
	overrideEnv(&cfg.Google.ClientSecret, "GOOGLE_CLIENT_SECRET")
	overrideEnv(&cfg.Microsoft.ClientID, "MICROSOFT_CLIENT_ID")
	overrideEnv(&cfg.Microsoft.ClientSecret, "MICROSOFT_CLIENT_SECRET")
	overrideEnv(&cfg.Microsoft.TenantID, "MICROSOFT_TENANT_ID")

	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8090"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "outmail.db"
	}
	if cfg.Microsoft.TenantID == "" {
		cfg.Microsoft.TenantID = "common"
	}

	if cfg.EncryptionKey == "" {
		return nil, fmt.Errorf("encryption key is required (set encryption_key or OUTMAIL_ENCRYPTION_KEY)")
	}

	return cfg, nil
}

func overrideEnv(target *string, name string) {
	if v := os.Getenv(name); v != "" {
		*target = v
	}
}
