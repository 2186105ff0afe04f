package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/danmuck/jdwpctl/internal/config"
	"github.com/danmuck/jdwpctl/internal/logging"
	"github.com/danmuck/jdwpctl/internal/observability"
	"github.com/danmuck/jdwpctl/internal/tunnel"
	"github.com/danmuck/jdwpctl/internal/vm"
)

type globalOptions struct {
	configPath  string
	address     string
	readTimeout time.Duration
	attempts    int
	logLevel    string
	metricsFile string
	sshHost     string
	sshUser     string
	sshKey      string
}

func (o *globalOptions) bind(root *cobra.Command) {
	flags := root.PersistentFlags()
	flags.StringVarP(&o.configPath, "config", "c", "", "TOML config file")
	flags.StringVarP(&o.address, "address", "a", "", "debuggee host:port (default localhost:8000)")
	flags.DurationVar(&o.readTimeout, "read-timeout", 0, "reply timeout, 0 waits forever")
	flags.IntVar(&o.attempts, "attempts", 0, "connect attempts before giving up")
	flags.StringVar(&o.logLevel, "log-level", "", "trace|debug|info|warn|error|off")
	flags.StringVar(&o.metricsFile, "metrics-file", "", "write Prometheus textfile metrics here on exit")
	flags.StringVar(&o.sshHost, "ssh", "", "reach the debuggee through this SSH bastion (host[:port])")
	flags.StringVar(&o.sshUser, "ssh-user", "", "SSH user for --ssh")
	flags.StringVar(&o.sshKey, "ssh-key", "", "SSH private key file for --ssh")
}

// settings resolves defaults, then the config file, then flags the user set.
func (o *globalOptions) settings(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if o.configPath != "" {
		loaded, err := config.Load(o.configPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}
	flags := cmd.Flags()
	if flags.Changed("address") {
		cfg.Address = o.address
	}
	if flags.Changed("read-timeout") {
		cfg.ReadTimeout = o.readTimeout
	}
	if flags.Changed("attempts") {
		cfg.MaxConnectAttempts = o.attempts
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}
	if flags.Changed("metrics-file") {
		cfg.MetricsFile = o.metricsFile
	}
	if flags.Changed("ssh") {
		cfg.SSH.Host = o.sshHost
	}
	if flags.Changed("ssh-user") {
		cfg.SSH.User = o.sshUser
	}
	if flags.Changed("ssh-key") {
		cfg.SSH.KeyFile = o.sshKey
	}
	if err := config.Validate(cfg); err != nil {
		return config.Config{}, err
	}
	if err := logging.SetLevel(cfg.LogLevel); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// run attaches, hands the client to fn and always releases the session.
func (o *globalOptions) run(cmd *cobra.Command, fn func(ctx context.Context, c *vm.Client) error) (err error) {
	cfg, err := o.settings(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if cfg.MetricsFile != "" {
		defer func() {
			if werr := observability.WriteTextfile(cfg.MetricsFile); werr != nil {
				log.Warn().Err(werr).Str("path", cfg.MetricsFile).Msg("write metrics textfile")
			}
		}()
	}

	vcfg := cfg.VM()
	if tcfg := cfg.Tunnel(); tcfg.Enabled() {
		bastion, err := tunnel.Open(ctx, tcfg)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := bastion.Close(); cerr != nil {
				log.Debug().Err(cerr).Msg("ssh tunnel close")
			}
		}()
		vcfg.Session.Dial = bastion.DialContext
	}

	client, err := vm.Attach(ctx, vcfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := client.Close(); cerr != nil {
			log.Debug().Err(cerr).Msg("jdwp close")
		}
	}()

	if err := fn(ctx, client); err != nil {
		return fmt.Errorf("%s: %w", cmd.Name(), err)
	}
	return nil
}
