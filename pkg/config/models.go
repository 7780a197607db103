package config

import "time"

type Config struct {
	Log       LogConfig
	Client    ClientConfig
	Relay     RelayConfig
	Transport TransportConfig
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type ClientConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	Path        string `mapstructure:"path"`
	Room        string `mapstructure:"room"`
	Token       string `mapstructure:"token"`
	DisplayName string `mapstructure:"displayName"`
	// Color is a hex triplet such as "#3366ff".
	Color      string  `mapstructure:"color"`
	Handedness string  `mapstructure:"handedness"` // "right" or "left"
	SendRate   float64 `mapstructure:"sendRate"`
	TickRate   float64 `mapstructure:"tickRate"`
	InboxSize  int     `mapstructure:"inboxSize"`

	CloseTimeout time.Duration `mapstructure:"closeTimeout"`
}

type RelayConfig struct {
	Address      string        `mapstructure:"address"`
	DefaultRoom  string        `mapstructure:"defaultRoom"`
	PingInterval time.Duration `mapstructure:"pingInterval"`
	// MessageRate limits inbound messages per connection and second; zero disables it.
	MessageRate     float64               `mapstructure:"messageRate"`
	MessageBurst    int                   `mapstructure:"messageBurst"`
	Auth            AuthConfig            `mapstructure:"auth"`
	ConnectionLimit ConnectionLimitConfig `mapstructure:"connectionLimit"`
}

// AuthConfig enables token checks when JWTSecret is set.
type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwtSecret"`
	TokenTTL  time.Duration `mapstructure:"tokenTTL"`
}

type ConnectionLimitConfig struct {
	MaxPerUser int    `mapstructure:"maxPerUser"`
	Mode       string `mapstructure:"mode"` // "reject" or "cycle"
}

type TransportConfig struct {
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
	SendBuffer   int           `mapstructure:"sendBuffer"`
	ReadLimit    int64         `mapstructure:"readLimit"`
}
