// Package config loads jdwpctl settings from TOML over built-in defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/danmuck/jdwpctl/internal/protocol/session"
	"github.com/danmuck/jdwpctl/internal/tunnel"
	"github.com/danmuck/jdwpctl/internal/vm"
)

type Config struct {
	Address            string
	ConnectTimeout     time.Duration
	HandshakeTimeout   time.Duration
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	MaxPacketBytes     uint32
	MaxConnectAttempts int
	Backoff            session.BackoffConfig
	LogLevel           string
	MetricsFile        string

	// SSH reaches Address through a bastion when SSH.Host is set.
	SSH SSHConfig
}

type SSHConfig struct {
	Host                  string
	User                  string
	KeyFile               string
	KnownHostsFile        string
	InsecureSkipHostCheck bool
}

type fileConfig struct {
	Address            string  `toml:"address"`
	ConnectTimeout     string  `toml:"connect_timeout"`
	HandshakeTimeout   string  `toml:"handshake_timeout"`
	ReadTimeout        string  `toml:"read_timeout"`
	WriteTimeout       string  `toml:"write_timeout"`
	MaxPacketBytes     int64   `toml:"max_packet_bytes"`
	MaxConnectAttempts int     `toml:"max_connect_attempts"`
	BackoffInitial     string  `toml:"backoff_initial"`
	BackoffMax         string  `toml:"backoff_max"`
	BackoffMultiplier  float64 `toml:"backoff_multiplier"`
	BackoffJitter      bool    `toml:"backoff_jitter"`
	LogLevel           string  `toml:"log_level"`
	MetricsFile        string  `toml:"metrics_file"`
	SSHHost            string  `toml:"ssh_host"`
	SSHUser            string  `toml:"ssh_user"`
	SSHKeyFile         string  `toml:"ssh_key_file"`
	SSHKnownHosts      string  `toml:"ssh_known_hosts"`
	SSHInsecure        bool    `toml:"ssh_insecure_skip_host_key"`
}

func Default() Config {
	scfg := session.DefaultConfig()
	return Config{
		Address:            scfg.Address,
		ConnectTimeout:     scfg.ConnectTimeout,
		HandshakeTimeout:   scfg.HandshakeTimeout,
		ReadTimeout:        scfg.ReadTimeout,
		WriteTimeout:       scfg.WriteTimeout,
		MaxPacketBytes:     scfg.Limits.MaxPacketBytes,
		MaxConnectAttempts: 1,
		Backoff:            scfg.Backoff,
	}
}

// Load reads path and applies every key it defines over Default.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load jdwpctl config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load jdwpctl config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("address") {
		cfg.Address = strings.TrimSpace(raw.Address)
	}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"connect_timeout", raw.ConnectTimeout, &cfg.ConnectTimeout},
		{"handshake_timeout", raw.HandshakeTimeout, &cfg.HandshakeTimeout},
		{"read_timeout", raw.ReadTimeout, &cfg.ReadTimeout},
		{"write_timeout", raw.WriteTimeout, &cfg.WriteTimeout},
		{"backoff_initial", raw.BackoffInitial, &cfg.Backoff.InitialDelay},
		{"backoff_max", raw.BackoffMax, &cfg.Backoff.MaxDelay},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = v
	}

	if meta.IsDefined("max_packet_bytes") {
		if raw.MaxPacketBytes < 11 || raw.MaxPacketBytes > int64(^uint32(0)) {
			return Config{}, fmt.Errorf("max_packet_bytes out of range: %d", raw.MaxPacketBytes)
		}
		cfg.MaxPacketBytes = uint32(raw.MaxPacketBytes)
	}

	if meta.IsDefined("max_connect_attempts") {
		cfg.MaxConnectAttempts = raw.MaxConnectAttempts
	}

	if meta.IsDefined("backoff_multiplier") {
		cfg.Backoff.Multiplier = raw.BackoffMultiplier
	}

	if meta.IsDefined("backoff_jitter") {
		cfg.Backoff.Jitter = raw.BackoffJitter
	}

	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}

	if meta.IsDefined("metrics_file") {
		cfg.MetricsFile = strings.TrimSpace(raw.MetricsFile)
	}

	if meta.IsDefined("ssh_host") {
		cfg.SSH.Host = strings.TrimSpace(raw.SSHHost)
	}
	if meta.IsDefined("ssh_user") {
		cfg.SSH.User = strings.TrimSpace(raw.SSHUser)
	}
	if meta.IsDefined("ssh_key_file") {
		cfg.SSH.KeyFile = strings.TrimSpace(raw.SSHKeyFile)
	}
	if meta.IsDefined("ssh_known_hosts") {
		cfg.SSH.KnownHostsFile = strings.TrimSpace(raw.SSHKnownHosts)
	}
	if meta.IsDefined("ssh_insecure_skip_host_key") {
		cfg.SSH.InsecureSkipHostCheck = raw.SSHInsecure
	}

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.Address) == "" {
		return fmt.Errorf("jdwpctl config missing address")
	}
	for _, f := range []struct {
		name string
		d    time.Duration
	}{
		{"connect_timeout", cfg.ConnectTimeout},
		{"handshake_timeout", cfg.HandshakeTimeout},
		{"read_timeout", cfg.ReadTimeout},
		{"write_timeout", cfg.WriteTimeout},
	} {
		if f.d < 0 {
			return fmt.Errorf("%s must not be negative: %v", f.name, f.d)
		}
	}
	if cfg.MaxConnectAttempts < 0 {
		return fmt.Errorf("max_connect_attempts must not be negative: %d", cfg.MaxConnectAttempts)
	}
	if cfg.SSH.Host != "" && (cfg.SSH.User == "" || cfg.SSH.KeyFile == "") {
		return fmt.Errorf("ssh_host needs ssh_user and ssh_key_file")
	}
	return nil
}

// Tunnel converts the ssh_* settings. The bastion handshake shares the
// connect timeout.
func (c Config) Tunnel() tunnel.Config {
	return tunnel.Config{
		Host:                        c.SSH.Host,
		User:                        c.SSH.User,
		KeyPath:                     c.SSH.KeyFile,
		KnownHostsPath:              c.SSH.KnownHostsFile,
		InsecureSkipHostKeyChecking: c.SSH.InsecureSkipHostCheck,
		Timeout:                     c.ConnectTimeout,
	}
}

// VM converts the loaded settings into what vm.Attach takes.
func (c Config) VM() vm.Config {
	scfg := session.Config{
		Address:          c.Address,
		ConnectTimeout:   c.ConnectTimeout,
		HandshakeTimeout: c.HandshakeTimeout,
		ReadTimeout:      c.ReadTimeout,
		WriteTimeout:     c.WriteTimeout,
		Backoff:          c.Backoff,
	}
	scfg.Limits.MaxPacketBytes = c.MaxPacketBytes
	return vm.Config{
		Session:            scfg.WithDefaults(),
		MaxConnectAttempts: c.MaxConnectAttempts,
	}
}
