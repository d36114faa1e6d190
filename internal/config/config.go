// Package config holds the CLI configuration and its TOML file form.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/1ureka/wsxfer/internal/transfer"
)

// Role represents which end of the transfer this process plays.
type Role string

const (
	RoleSend Role = "send"
	RoleRecv Role = "recv"
)

// TransportKind selects the channel transfers run over.
type TransportKind string

const (
	TransportWS     TransportKind = "ws"
	TransportWebRTC TransportKind = "webrtc"
)

// Config stores every runtime setting. Values come from Default, then a TOML
// file, then command-line flags.
type Config struct {
	Role      Role
	Listen    string        // send: signaling listen address
	URL       string        // recv: signaling URL, without the PIN
	PIN       string        // send: empty means generate one
	Transport TransportKind // upgrade to WebRTC after signaling, or stay on ws

	Timeout      time.Duration
	PollInterval time.Duration
	ChunkSize    int

	OutDir     string   // recv: destination directory
	ICEServers []string // webrtc only
	Debug      bool
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Role:         RoleSend,
		Listen:       ":0",
		Transport:    TransportWS,
		Timeout:      transfer.DefaultTimeout,
		PollInterval: transfer.DefaultPollInterval,
		ChunkSize:    transfer.DefaultChunkSize,
		OutDir:       ".",
	}
}

// fileConfig is the config.toml key mapping.
type fileConfig struct {
	Role         string   `toml:"role"`
	Listen       string   `toml:"listen"`
	URL          string   `toml:"url"`
	PIN          string   `toml:"pin"`
	Transport    string   `toml:"transport"`
	Timeout      string   `toml:"timeout"`
	PollInterval string   `toml:"poll_interval"`
	ChunkSize    int      `toml:"chunk_size"`
	OutDir       string   `toml:"out_dir"`
	ICEServers   []string `toml:"ice_servers"`
	Debug        bool     `toml:"debug"`
}

// Load overlays the TOML file at path on Default. Only keys present in the
// file override a default. The result is validated.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("role") {
		cfg.Role = Role(strings.TrimSpace(raw.Role))
	}
	if meta.IsDefined("listen") {
		cfg.Listen = strings.TrimSpace(raw.Listen)
	}
	if meta.IsDefined("url") {
		cfg.URL = strings.TrimSpace(raw.URL)
	}
	if meta.IsDefined("pin") {
		cfg.PIN = strings.TrimSpace(raw.PIN)
	}
	if meta.IsDefined("transport") {
		cfg.Transport = TransportKind(strings.TrimSpace(raw.Transport))
	}
	if meta.IsDefined("timeout") {
		if cfg.Timeout, err = parseDuration("timeout", raw.Timeout); err != nil {
			return Config{}, err
		}
	}
	if meta.IsDefined("poll_interval") {
		if cfg.PollInterval, err = parseDuration("poll_interval", raw.PollInterval); err != nil {
			return Config{}, err
		}
	}
	if meta.IsDefined("chunk_size") {
		cfg.ChunkSize = raw.ChunkSize
	}
	if meta.IsDefined("out_dir") {
		cfg.OutDir = strings.TrimSpace(raw.OutDir)
	}
	if meta.IsDefined("ice_servers") {
		cfg.ICEServers = raw.ICEServers
	}
	if meta.IsDefined("debug") {
		cfg.Debug = raw.Debug
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func parseDuration(key, value string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("load config: %s: %w", key, err)
	}
	return d, nil
}

// Validate rejects settings no transfer could run with.
func (c Config) Validate() error {
	switch c.Role {
	case RoleSend, RoleRecv:
	default:
		return fmt.Errorf("invalid config: unknown role %q (expected send or recv)", c.Role)
	}
	switch c.Transport {
	case TransportWS, TransportWebRTC:
	default:
		return fmt.Errorf("invalid config: unknown transport %q (expected ws or webrtc)", c.Transport)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("invalid config: timeout must be positive, got %s", c.Timeout)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("invalid config: poll_interval must be positive, got %s", c.PollInterval)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("invalid config: chunk_size must be positive, got %d", c.ChunkSize)
	}
	return nil
}

// TransferOptions returns the session options these settings imply.
func (c Config) TransferOptions() transfer.Options {
	return transfer.Options{Timeout: c.Timeout, PollInterval: c.PollInterval}
}
