package config

import "time"

// Config is the root configuration for leechcore.
type Config struct {
	Core    CoreConfig    `yaml:"core,omitempty"`
	Logging LoggingConfig `yaml:"logging,omitempty"`
	Gateway GatewayConfig `yaml:"gateway,omitempty"`
	History HistoryConfig `yaml:"history,omitempty"`
	Network NetworkConfig `yaml:"network,omitempty"`
	Plugins PluginsConfig `yaml:"plugins,omitempty"`
}

// CoreConfig controls entity dispatch and the main loop.
type CoreConfig struct {
	TiePolicy       string `yaml:"tiePolicy,omitempty"`       // "first" | "ask" | "broadcast"
	StrictStale     bool   `yaml:"strictStale,omitempty"`     // panic on calls into unloaded plugins
	NoHandlerNotice bool   `yaml:"noHandlerNotice,omitempty"` // dispatch a notification when nothing handles an entity
	LoopQueue       int    `yaml:"loopQueue,omitempty"`       // main loop queue length
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	File         string `yaml:"file,omitempty"`
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "json"
}

// GatewayConfig controls the gateway HTTP/WebSocket server.
type GatewayConfig struct {
	Enabled        bool        `yaml:"enabled,omitempty"`
	Port           int         `yaml:"port,omitempty"`
	Bind           string      `yaml:"bind,omitempty"` // "loopback" | "lan" | "custom"
	CustomBindHost string      `yaml:"customBindHost,omitempty"`
	Auth           GatewayAuth `yaml:"auth,omitempty"`
	TLS            GatewayTLS  `yaml:"tls,omitempty"`
	AllowedOrigins []string    `yaml:"allowedOrigins,omitempty"` // browser origins allowed on /ws and /api
}

// GatewayTLS configures TLS on the gateway listener.
type GatewayTLS struct {
	Enabled  bool   `yaml:"enabled,omitempty"`
	CertPath string `yaml:"certPath,omitempty"`
	KeyPath  string `yaml:"keyPath,omitempty"`
}

// GatewayAuth configures gateway authentication.
type GatewayAuth struct {
	Mode     string `yaml:"mode,omitempty"` // "token" | "password"
	Token    string `yaml:"token,omitempty"`
	Password string `yaml:"password,omitempty"`
}

// HistoryConfig configures the entity history journal.
type HistoryConfig struct {
	Store string `yaml:"store,omitempty"` // "sqlite" | "memory" | "none"
	Path  string `yaml:"path,omitempty"`  // defaults to <data>/history.db
	Limit int    `yaml:"limit,omitempty"` // records kept; 0 keeps all
}

// NetworkConfig configures the shared HTTP client.
type NetworkConfig struct {
	Timeout   time.Duration `yaml:"timeout,omitempty"`
	UserAgent string        `yaml:"userAgent,omitempty"`
}

// PluginsConfig selects bundled plugins and holds their settings.
type PluginsConfig struct {
	Enabled []string      `yaml:"enabled,omitempty"`
	Fetch   FetchConfig   `yaml:"fetch,omitempty"`
	IRC     *IRCConfig    `yaml:"irc,omitempty"`
	Mail    *MailConfig   `yaml:"mail,omitempty"`
	Sidebar SidebarConfig `yaml:"sidebar,omitempty"`
}

// FetchConfig configures the downloader plugin.
type FetchConfig struct {
	Dir      string `yaml:"dir,omitempty"`      // defaults to <base>/downloads
	MaxBytes int64  `yaml:"maxBytes,omitempty"` // 0 means unlimited
}

// IRCConfig configures the IRC notification relay.
type IRCConfig struct {
	Server   string   `yaml:"server"`
	Port     int      `yaml:"port,omitempty"`
	Nick     string   `yaml:"nick"`
	Password string   `yaml:"password,omitempty"`
	Channels []string `yaml:"channels"`
	UseTLS   bool     `yaml:"useTLS,omitempty"`
	SASL     bool     `yaml:"sasl,omitempty"`
}

// MailConfig configures the IMAP mailbox watcher.
type MailConfig struct {
	Server       string        `yaml:"server"` // host:port
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password,omitempty"`
	Mailbox      string        `yaml:"mailbox,omitempty"`
	PollInterval time.Duration `yaml:"pollInterval,omitempty"`
	UseTLS       *bool         `yaml:"useTLS,omitempty"` // defaults to true
	OAuth        *MailOAuth    `yaml:"oauth,omitempty"`
}

// MailOAuth switches IMAP login to SASL XOAUTH2 with an access token
// refreshed from RefreshToken.
type MailOAuth struct {
	ClientID     string   `yaml:"clientId"`
	ClientSecret string   `yaml:"clientSecret,omitempty"`
	TokenURL     string   `yaml:"tokenUrl"`
	RefreshToken string   `yaml:"refreshToken"`
	Scopes       []string `yaml:"scopes,omitempty"`
}

// SidebarConfig configures the dock toolbar policy plugin.
type SidebarConfig struct {
	HideAreas []string `yaml:"hideAreas,omitempty"`
}
