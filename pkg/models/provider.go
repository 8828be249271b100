// Package models contains shared data models used across the Citadel codebase.
package models

// AIProvider is one configured AI inference endpoint as the user edits it in
// the settings panel. BaseURL and Model are optional overrides of the
// registry defaults.
type AIProvider struct {
	ID      string `json:"id"               mapstructure:"id"`
	Name    string `json:"name"             mapstructure:"name"`
	Enabled bool   `json:"enabled"          mapstructure:"enabled"`
	APIKey  string `json:"apiKey,omitempty"  mapstructure:"api_key"`
	BaseURL string `json:"baseUrl,omitempty" mapstructure:"base_url"`
	Model   string `json:"model,omitempty"   mapstructure:"model"`
}

// AISettings is the persisted provider configuration.
type AISettings struct {
	Providers        []AIProvider `json:"providers"        mapstructure:"providers"`
	SelectedProvider string       `json:"selectedProvider" mapstructure:"selected_provider"`
}

// Provider returns the provider with the given id.
func (s AISettings) Provider(id string) (AIProvider, bool) {
	for _, p := range s.Providers {
		if p.ID == id {
			return p, true
		}
	}
	return AIProvider{}, false
}

// DashboardSettings holds per-module visibility flags for the dashboard.
type DashboardSettings struct {
	ShowLogStream      bool `json:"showLogStream"`
	ShowSystemOverview bool `json:"showSystemOverview"`
	ShowNetworkHealth  bool `json:"showNetworkHealth"`
	ShowAIInsights     bool `json:"showAIInsights"`
	ShowAlertsSummary  bool `json:"showAlertsSummary"`
	ShowDeviceHealth   bool `json:"showDeviceHealth"`
}

// DefaultDashboardSettings shows every module.
func DefaultDashboardSettings() DashboardSettings {
	return DashboardSettings{
		ShowLogStream:      true,
		ShowSystemOverview: true,
		ShowNetworkHealth:  true,
		ShowAIInsights:     true,
		ShowAlertsSummary:  true,
		ShowDeviceHealth:   true,
	}
}
