package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Travis-Britz/cfddns"
	"github.com/Travis-Britz/cfddns/internal/config"
)

var flags = struct {
	Config    string
	KeyFile   string
	Interval  time.Duration
	Limit     string
	IP        string
	Ifaces    string
	Verbose   bool
	Once      bool
	LogFormat string
}{}

func init() {
	flag.StringVar(&flags.Config, "config", "", "Path to a YAML config file")
	flag.StringVar(&flags.KeyFile, "k", "", "Path to cloudflare API credentials file (default $HOME/.cloudflare)")
	flag.DurationVar(&flags.Interval, "i", cfddns.DefaultInterval, "Duration to wait between IP checks")
	flag.StringVar(&flags.Limit, "limit", "", "Only manage records whose name ends with this domain")
	flag.StringVar(&flags.IP, "ip", "", "IP address to set instead of looking up the public address")
	flag.StringVar(&flags.Ifaces, "iface", "", "Comma separated interfaces to read the address from instead of looking up the public address")
	flag.BoolVar(&flags.Verbose, "v", false, "Enable verbose logging")
	flag.BoolVar(&flags.Once, "once", false, "Run a single update and exit")
	flag.StringVar(&flags.LogFormat, "log-format", "", "Log format: text or json")
}

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	logger, err := newLogger(cfg.Log, flags.Verbose)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	logger.WithFields(logrus.Fields{
		"interval": cfg.Interval(),
		"limit":    cfg.LimitToDomain,
	}).Debug("config is valid")

	creds, err := credentials(cfg, logger)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	resolver, err := newResolver(cfg)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	client, err := cfddns.New(
		cfddns.UsingCloudflare(cfddns.Credentials{
			APIToken: creds.APIToken,
			Email:    creds.Email,
			APIKey:   creds.APIKey,
		}),
		cfddns.UsingResolver(resolver),
		cfddns.LimitToDomain(cfg.LimitToDomain),
		cfddns.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("error creating cfddns.Client: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if flags.Once {
		if report := client.Reconcile(ctx); report.Err != nil {
			return fmt.Errorf("run: %w", report.Err)
		}
		return nil
	}
	return cfddns.RunDaemon(ctx, client, cfg.Interval(), logger)
}

// loadConfig layers command line flags over the config file and environment.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flags.Config)
	if err != nil {
		return nil, err
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "k":
			cfg.KeyFile = flags.KeyFile
		case "i":
			cfg.UpdateIntervalSeconds = int(flags.Interval / time.Second)
		case "limit":
			cfg.LimitToDomain = flags.Limit
		case "ip":
			cfg.IP = flags.IP
		case "iface":
			cfg.Interfaces = config.SplitList(flags.Ifaces)
		case "log-format":
			cfg.Log.Format = flags.LogFormat
		}
	})
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newResolver(cfg *config.Config) (cfddns.Resolver, error) {
	switch {
	case cfg.IP != "":
		return cfddns.FromString(cfg.IP)
	case len(cfg.Interfaces) > 0:
		return cfddns.InterfaceResolver(cfg.Interfaces...), nil
	}
	return cfddns.WebResolver(cfg.IPProviders...)
}

// credentials prefers credentials from the config file or environment and falls back to the key file,
// offering to create it when running interactively.
func credentials(cfg *config.Config, logger logrus.FieldLogger) (config.Cloudflare, error) {
	if cfg.Cloudflare.Valid() {
		return cfg.Cloudflare, nil
	}

	_, err := os.Stat(cfg.KeyFile)
	if errors.Is(err, os.ErrNotExist) {
		logger.Debugf("key file %q does not exist", cfg.KeyFile)
		if err := runSetup(cfg.KeyFile, logger); err != nil {
			return config.Cloudflare{}, fmt.Errorf("setup: %w", err)
		}
	}
	creds, err := config.ReadKeyFile(cfg.KeyFile)
	if err != nil {
		return config.Cloudflare{}, err
	}
	logger.Debug("successfully read key from key file")
	return creds, nil
}
