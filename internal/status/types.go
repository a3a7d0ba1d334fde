package status

import "github.com/davbridge/davbridge/internal/config"

// StatusResponse is the sidecar's state snapshot. Field names are part
// of the JSON wire contract with the sidecar's `status --json` output.
type StatusResponse struct {
	Server  ServerStatus `json:"server"`
	Auth    AuthStatus   `json:"auth"`
	Config  ConfigStatus `json:"config"`
	LogFile string       `json:"logFile"`
}

type ServerStatus struct {
	Running bool    `json:"running"`
	PID     *int    `json:"pid"`
	URL     *string `json:"url"`
}

type AuthStatus struct {
	LoggedIn bool    `json:"loggedIn"`
	Username *string `json:"username"`
}

type ConfigStatus struct {
	Webdav     WebdavConfig `json:"webdav"`
	RemotePath string       `json:"remotePath"`
	Cache      *CacheConfig `json:"cache"`
	Debug      *bool        `json:"debug"`
	AutoStart  *bool        `json:"autoStart"`
}

// WebdavConfig describes the endpoint the sidecar serves. Port is the
// primary key used for mount matching fallback.
type WebdavConfig struct {
	Host         string  `json:"host"`
	Port         int     `json:"port"`
	HTTPS        bool    `json:"https"`
	RequireAuth  bool    `json:"requireAuth"`
	Username     *string `json:"username"`
	PasswordHash *string `json:"passwordHash"`
}

type CacheConfig struct {
	Enabled    bool `json:"enabled"`
	TTLSeconds int  `json:"ttlSeconds"`
	MaxSizeMB  int  `json:"maxSizeMB"`
}

// Default is the safe degraded status: stopped server, logged-out
// auth and the canonical local endpoint configuration. No partial or
// null fields beyond the documented optional ones.
func Default() StatusResponse {
	debug := false
	return StatusResponse{
		Server: ServerStatus{Running: false},
		Auth:   AuthStatus{LoggedIn: false},
		Config: ConfigStatus{
			Webdav: WebdavConfig{
				Host:        "localhost",
				Port:        config.DefaultPort,
				HTTPS:       false,
				RequireAuth: false,
			},
			RemotePath: "",
			Debug:      &debug,
		},
		LogFile: "",
	}
}
