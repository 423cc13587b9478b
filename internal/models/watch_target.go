package models

// WatchedFolder is a directory the monitor polls for new files.
// Its identity is the path; two entries with the same path are rejected by config validation.
type WatchedFolder struct {
	Path      string `json:"path" yaml:"path" validate:"required"`
	Enabled   bool   `json:"enabled" yaml:"enabled"`
	Recursive bool   `json:"recursive" yaml:"recursive"`
}

// WebhookEndpoint is an HTTP target that receives every new file.
// Endpoints are not unique: several may share one URL.
type WebhookEndpoint struct {
	Name    string `json:"name" yaml:"name" validate:"required"`
	URL     string `json:"url" yaml:"url" validate:"required,httpurl"`
	Enabled bool   `json:"enabled" yaml:"enabled"`
}

// EnabledFolders returns the enabled folders in configuration order.
func EnabledFolders(folders []WatchedFolder) []WatchedFolder {
	var out []WatchedFolder
	for _, f := range folders {
		if f.Enabled {
			out = append(out, f)
		}
	}
	return out
}

// EnabledEndpoints returns enabled endpoints with a non-empty URL, in configuration order.
func EnabledEndpoints(endpoints []WebhookEndpoint) []WebhookEndpoint {
	var out []WebhookEndpoint
	for _, ep := range endpoints {
		if ep.Enabled && ep.URL != "" {
			out = append(out, ep)
		}
	}
	return out
}

// EndpointNames lists endpoint names, used in session start messages.
func EndpointNames(endpoints []WebhookEndpoint) []string {
	names := make([]string, 0, len(endpoints))
	for _, ep := range endpoints {
		names = append(names, ep.Name)
	}
	return names
}
