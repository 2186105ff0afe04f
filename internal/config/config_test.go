package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/jdwpctl/internal/protocol/frame"
	"github.com/danmuck/jdwpctl/internal/protocol/session"
	"github.com/danmuck/jdwpctl/internal/testutil/testlog"
)

func TestLoadDefaultsAndOverrides(t *testing.T) {
	testlog.Start(t)
	cfg, err := Load(filepath.Join("testdata", "ex.config.toml"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Address != "10.0.0.7:5005" {
		t.Fatalf("unexpected address: %q", cfg.Address)
	}
	if cfg.ReadTimeout != 0 {
		t.Fatalf("read_timeout 0s must disable the deadline, got %v", cfg.ReadTimeout)
	}
	if cfg.HandshakeTimeout != 2*time.Second {
		t.Fatalf("unexpected handshake timeout: %v", cfg.HandshakeTimeout)
	}
	if cfg.ConnectTimeout != 5*time.Second || cfg.WriteTimeout != 15*time.Second {
		t.Fatalf("undefined keys must keep defaults: %+v", cfg)
	}
	if cfg.MaxConnectAttempts != 4 {
		t.Fatalf("unexpected attempts: %d", cfg.MaxConnectAttempts)
	}
	if cfg.Backoff.InitialDelay != 100*time.Millisecond || cfg.Backoff.Jitter {
		t.Fatalf("unexpected backoff: %+v", cfg.Backoff)
	}
	if cfg.Backoff.MaxDelay != 5*time.Second || cfg.Backoff.Multiplier != 2.0 {
		t.Fatalf("backoff defaults lost: %+v", cfg.Backoff)
	}
	if cfg.LogLevel != "debug" || cfg.MetricsFile != "/tmp/jdwpctl.prom" {
		t.Fatalf("unexpected log/metrics: %q %q", cfg.LogLevel, cfg.MetricsFile)
	}
	if cfg.MaxPacketBytes != frame.DefaultLimits().MaxPacketBytes {
		t.Fatalf("unexpected max packet bytes: %d", cfg.MaxPacketBytes)
	}
}

func TestTemplateLoadsAsDefaults(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "jdwpctl.toml")
	if err := WriteTemplate(path, false); err != nil {
		t.Fatalf("write template: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load template: %v", err)
	}
	def := Default()
	def.LogLevel = "info"
	if cfg != def {
		t.Fatalf("template drifted from defaults:\n got=%+v\nwant=%+v", cfg, def)
	}

	if err := WriteTemplate(path, false); err == nil {
		t.Fatalf("expected refusal to overwrite")
	}
	if err := WriteTemplate(path, true); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
}

func TestLoadRejectsBadInput(t *testing.T) {
	testlog.Start(t)
	cases := map[string]string{
		"bad duration":    `read_timeout = "soon"`,
		"unknown key":     `adress = "x:1"`,
		"empty address":   `address = "  "`,
		"negative":        `connect_timeout = "-1s"`,
		"tiny packet cap": `max_packet_bytes = 4`,
		"not toml":        `address = `,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.toml")
			if err := os.WriteFile(path, []byte(body+"\n"), 0o600); err != nil {
				t.Fatalf("write: %v", err)
			}
			if _, err := Load(path); err == nil {
				t.Fatalf("expected error for %q", body)
			}
		})
	}
}

func TestVMConfig(t *testing.T) {
	testlog.Start(t)
	cfg := Default()
	cfg.Address = "127.0.0.1:5005"
	cfg.ReadTimeout = 0
	cfg.MaxConnectAttempts = 3

	v := cfg.VM()
	if v.Session.Address != "127.0.0.1:5005" || v.Session.ReadTimeout != 0 || v.MaxConnectAttempts != 3 {
		t.Fatalf("unexpected vm config: %+v", v)
	}
	if v.Session.Limits.MaxPacketBytes == 0 {
		t.Fatalf("limits not filled")
	}
	if !strings.Contains(Template(), "address =") {
		t.Fatalf("template missing address")
	}
}

func TestValidateReportsFirstBadTimeoutInOrder(t *testing.T) {
	testlog.Start(t)
	cfg := Default()
	cfg.ConnectTimeout = -time.Second
	cfg.HandshakeTimeout = -time.Second
	cfg.ReadTimeout = -time.Second
	cfg.WriteTimeout = -time.Second

	for i := 0; i < 50; i++ {
		err := Validate(cfg)
		if err == nil || !strings.HasPrefix(err.Error(), "connect_timeout ") {
			t.Fatalf("run %d: expected connect_timeout to be reported first, got %v", i, err)
		}
	}

	cfg.ConnectTimeout = 0
	if err := Validate(cfg); err == nil || !strings.HasPrefix(err.Error(), "handshake_timeout ") {
		t.Fatalf("expected handshake_timeout next, got %v", err)
	}
}

func TestZeroBackoffSurvivesLoadAndVM(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "zero.toml")
	body := "backoff_initial = \"0s\"\nbackoff_max = \"0s\"\nbackoff_multiplier = 0.0\nbackoff_jitter = false\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Backoff != (session.BackoffConfig{}) {
		t.Fatalf("explicit zero backoff not loaded: %+v", cfg.Backoff)
	}
	if got := cfg.VM().Session.Backoff; got != (session.BackoffConfig{}) {
		t.Fatalf("zero backoff replaced on the way to vm: %+v", got)
	}
}

func TestLoadSSHSettings(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "ssh.toml")
	body := `address = "localhost:8000"
connect_timeout = "3s"
ssh_host = "bastion.example.com"
ssh_user = "deploy"
ssh_key_file = "/keys/id_ed25519"
ssh_known_hosts = "/keys/known_hosts"
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	tc := cfg.Tunnel()
	if !tc.Enabled() || tc.Host != "bastion.example.com" || tc.User != "deploy" ||
		tc.KeyPath != "/keys/id_ed25519" || tc.KnownHostsPath != "/keys/known_hosts" ||
		tc.InsecureSkipHostKeyChecking || tc.Timeout != 3*time.Second {
		t.Fatalf("unexpected tunnel config: %+v", tc)
	}
	if Default().Tunnel().Enabled() {
		t.Fatalf("tunnel must be off by default")
	}

	cfg.SSH.KeyFile = ""
	if err := Validate(cfg); err == nil {
		t.Fatalf("ssh_host without ssh_key_file must fail")
	}
}
