package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Mode selects which sessions run.
type Mode string

const (
	ModeSender   Mode = "sender"
	ModeReceiver Mode = "receiver"
	ModeBoth     Mode = "both"
)

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeSender, ModeReceiver, ModeBoth:
		return true
	}
	return false
}

// Sends reports whether m runs the sender session.
func (m Mode) Sends() bool { return m == ModeSender || m == ModeBoth }

// Receives reports whether m runs the receiver session.
func (m Mode) Receives() bool { return m == ModeReceiver || m == ModeBoth }

const (
	DefaultPreviewChars = 100
	DefaultWebPort      = 7878
	appDirName          = "clipshare"
	fileName            = "config.toml"
)

type Config struct {
	Mode          Mode          `toml:"mode" json:"mode"`
	SendPort      string        `toml:"send_port" json:"send_port"`
	RecvPort      string        `toml:"recv_port" json:"recv_port"`
	Baud          int           `toml:"baud" json:"baud"`
	DelayMs       int           `toml:"delay_ms" json:"delay_ms"`
	Hotkey        string        `toml:"hotkey" json:"hotkey"`
	Notifications bool          `toml:"notifications" json:"notifications"`
	PreviewChars  int           `toml:"preview_chars" json:"preview_chars"`
	Sound         bool          `toml:"sound" json:"sound"`
	Web           WebConfig     `toml:"web" json:"web"`
	History       HistoryConfig `toml:"history" json:"history"`
}

type WebConfig struct {
	Enabled bool `toml:"enabled" json:"enabled"`
	Port    int  `toml:"port" json:"port"`
}

type HistoryConfig struct {
	Enabled bool `toml:"enabled" json:"enabled"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Mode:          ModeSender,
		SendPort:      "COM3",
		RecvPort:      "COM4",
		Baud:          115200,
		DelayMs:       200,
		Hotkey:        "Ctrl+Shift+C",
		Notifications: true,
		PreviewChars:  DefaultPreviewChars,
		Sound:         false,
		Web: WebConfig{
			Enabled: false,
			Port:    DefaultWebPort,
		},
		History: HistoryConfig{
			Enabled: true,
		},
	}
}

// Delay is DelayMs as a duration. Negative values count as zero.
func (c *Config) Delay() time.Duration {
	if c.DelayMs < 0 {
		return 0
	}
	return time.Duration(c.DelayMs) * time.Millisecond
}

// Normalize repairs values that would break the sessions and returns a
// warning for each questionable value it found.
func (c *Config) Normalize() []string {
	var warnings []string

	c.Mode = Mode(strings.ToLower(strings.TrimSpace(string(c.Mode))))
	if !c.Mode.Valid() {
		warnings = append(warnings, fmt.Sprintf("unknown mode %q, no session will start", c.Mode))
	}
	if c.PreviewChars <= 0 {
		c.PreviewChars = DefaultPreviewChars
	}
	if c.Baud <= 0 {
		warnings = append(warnings, fmt.Sprintf("invalid baud %d, using 115200", c.Baud))
		c.Baud = 115200
	}
	if c.DelayMs < 0 {
		warnings = append(warnings, fmt.Sprintf("negative delay_ms %d, using 0", c.DelayMs))
		c.DelayMs = 0
	}
	if c.Web.Port <= 0 || c.Web.Port > 65535 {
		c.Web.Port = DefaultWebPort
	}
	return warnings
}

// Dir returns the configuration directory, creating it if needed.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config directory: %w", err)
	}

	dir := filepath.Join(base, appDirName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return dir, nil
}

// Path returns the path to the configuration file
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fileName), nil
}

// Load loads the configuration from the default location.
func Load() (*Config, string, error) {
	path, err := Path()
	if err != nil {
		return nil, "", err
	}
	cfg, err := LoadFrom(path)
	return cfg, path, err
}

// LoadFrom loads the configuration from path. Keys missing from the file
// keep their defaults. If the file doesn't exist, it is created with
// default values.
func LoadFrom(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		cfg := Default()
		if err := Save(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return cfg, nil
	}

	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.Normalize()
	return cfg, nil
}

// Save writes the configuration to path, creating parent directories.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// Overrides holds command-line values. Nil fields leave the file value
// untouched.
type Overrides struct {
	Mode          *string
	SendPort      *string
	RecvPort      *string
	Baud          *int
	DelayMs       *int
	Hotkey        *string
	Notifications *bool
	PreviewChars  *int
}

// Empty reports whether no override is set.
func (o Overrides) Empty() bool {
	return o == Overrides{}
}

// Apply copies every set override into c.
func (o Overrides) Apply(c *Config) {
	if o.Mode != nil {
		c.Mode = Mode(*o.Mode)
	}
	if o.SendPort != nil {
		c.SendPort = *o.SendPort
	}
	if o.RecvPort != nil {
		c.RecvPort = *o.RecvPort
	}
	if o.Baud != nil {
		c.Baud = *o.Baud
	}
	if o.DelayMs != nil {
		c.DelayMs = *o.DelayMs
	}
	if o.Hotkey != nil {
		c.Hotkey = *o.Hotkey
	}
	if o.Notifications != nil {
		c.Notifications = *o.Notifications
	}
	if o.PreviewChars != nil {
		c.PreviewChars = *o.PreviewChars
	}
}
