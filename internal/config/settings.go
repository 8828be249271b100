package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/kiranshivaraju/citadel/internal/provider"
	"github.com/kiranshivaraju/citadel/pkg/models"
	"github.com/spf13/viper"
)

// DefaultSettingsFile is where the CLI looks for provider settings when no
// --config flag is given.
func DefaultSettingsFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".citadel.yaml"
	}
	return filepath.Join(home, ".citadel.yaml")
}

// LoadSettingsFile reads provider settings for the CLI. Any format viper
// understands works (YAML, JSON, TOML). Providers listed in the file replace
// the registry default with the same id, and values of the form ${VAR} are
// expanded from the environment. A missing file yields the registry defaults.
//
// CITADEL_SELECTED_PROVIDER overrides the selected provider.
func LoadSettingsFile(path string) (models.AISettings, error) {
	defaults := provider.DefaultSettings()

	v := viper.New()
	v.SetDefault("selected_provider", defaults.SelectedProvider)
	v.SetEnvPrefix("CITADEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = DefaultSettingsFile()
	}
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return models.AISettings{}, fmt.Errorf("read settings file %s: %w", path, err)
		}
		slog.Debug("settings file not found, using defaults", "path", path)
	} else {
		slog.Debug("loaded settings file", "path", v.ConfigFileUsed())
	}

	var file models.AISettings
	if err := v.Unmarshal(&file); err != nil {
		return models.AISettings{}, fmt.Errorf("parse settings file %s: %w", path, err)
	}

	out := models.AISettings{SelectedProvider: file.SelectedProvider}
	overrides := make(map[string]models.AIProvider, len(file.Providers))
	for _, p := range file.Providers {
		p.APIKey = expandEnv(p.APIKey)
		p.BaseURL = expandEnv(p.BaseURL)
		overrides[p.ID] = p
	}
	for _, p := range defaults.Providers {
		if o, ok := overrides[p.ID]; ok {
			if o.Name == "" {
				o.Name = p.Name
			}
			p = o
			delete(overrides, p.ID)
		}
		out.Providers = append(out.Providers, p)
	}
	for _, p := range file.Providers {
		if _, unknown := overrides[p.ID]; unknown {
			slog.Warn("ignoring unknown provider in settings file", "provider", p.ID)
		}
	}
	return out, nil
}

// expandEnv expands a ${VAR} placeholder.
func expandEnv(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		return os.Getenv(s[2 : len(s)-1])
	}
	return s
}
