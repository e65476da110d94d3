package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/presbrey/ircd/irc/admin"
	"github.com/presbrey/ircd/irc/bot"
	"github.com/presbrey/ircd/irc/config"
	"github.com/presbrey/ircd/irc/metrics"
	"github.com/presbrey/ircd/irc/server"
	log "github.com/sirupsen/logrus"
)

func main() {
	// Define command-line flags
	configSource := flag.String("config", os.Getenv("IRCD_CONFIG"), "Config file path or URL (yaml, toml or json)")
	port := flag.Int("port", 0, "IRC listen port (overrides config)")
	password := flag.String("password", "", "Connection password (overrides config)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] [<port> <password>]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load(*configSource)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := applyArgs(cfg, *port, *password, flag.Args()); err != nil {
		flag.Usage()
		log.Fatal(err)
	}
	if *debug {
		cfg.Logging.Level = "debug"
	}
	if err := config.Validate(cfg); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	configureLogging(cfg)

	if err := run(cfg); err != nil {
		log.Fatal(err)
	}
	log.Info("Server stopped. Goodbye!")
}

// applyArgs layers flags and the positional "<port> <password>" form over
// the loaded configuration.
func applyArgs(cfg *config.Config, port int, password string, args []string) error {
	switch len(args) {
	case 0:
	case 2:
		p, err := strconv.Atoi(args[0])
		if err != nil || p < 1 || p > 65535 {
			return fmt.Errorf("invalid port %q", args[0])
		}
		cfg.Server.Port = p
		cfg.Server.Password = args[1]
		cfg.Server.PasswordHash = ""
	default:
		return errors.New("expected <port> <password>")
	}

	if port != 0 {
		cfg.Server.Port = port
	}
	if password != "" {
		cfg.Server.Password = password
		cfg.Server.PasswordHash = ""
	}
	return nil
}

func configureLogging(cfg *config.Config) {
	level, err := log.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Logging.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}

func run(cfg *config.Config) error {
	collector := metrics.New()
	srv, err := server.NewServer(cfg, server.WithMetrics(collector))
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	if cfg.Bot.Enabled {
		b, err := bot.New(srv, cfg.Bot.Nick)
		if err != nil {
			return err
		}
		srv.AttachBot(b)
		for _, channel := range cfg.Bot.Channels {
			b.Join(channel)
		}
	}

	ln, err := net.Listen("tcp", cfg.GetListenAddress())
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go serve("irc", func() error { return srv.Serve(ln) })

	if cfg.WebSocket.Enabled {
		wsln, err := net.Listen("tcp", cfg.GetWebSocketListenAddress())
		if err != nil {
			return fmt.Errorf("failed to listen for websocket: %w", err)
		}
		go serve("websocket", func() error { return srv.ServeWebSocket(wsln) })
	}

	var api *admin.API
	if cfg.Admin.Enabled {
		adminln, err := net.Listen("tcp", cfg.GetAdminListenAddress())
		if err != nil {
			return fmt.Errorf("failed to listen for admin API: %w", err)
		}
		api = admin.New(srv, cfg, collector)
		go serve("admin", func() error { return api.Serve(adminln) })
	}

	go reloadOnHangup(ctx, cfg)

	log.WithFields(log.Fields{
		"server": cfg.Server.Name,
		"addr":   ln.Addr().String(),
	}).Info("Server is running. Press Ctrl+C to stop.")

	err = srv.Run(ctx)

	if api != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := api.Shutdown(shutdownCtx); err != nil {
			log.Warnf("Error stopping admin API: %v", err)
		}
	}
	return err
}

func serve(name string, fn func() error) {
	if err := fn(); err != nil && !errors.Is(err, server.ErrServerClosed) {
		log.WithField("listener", name).Errorf("serve failed: %v", err)
	}
}

// reloadOnHangup re-reads the config source on SIGHUP. Only the logging
// settings take effect without a restart.
func reloadOnHangup(ctx context.Context, cfg *config.Config) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			fresh, err := reloadLogging(cfg)
			if err != nil {
				log.Warnf("Config reload failed: %v", err)
				continue
			}
			log.WithField("level", fresh.Logging.Level).Info("configuration reloaded")
		}
	}
}

// reloadLogging reloads a copy of cfg from its source and applies the new
// logging settings. cfg itself is shared with the running server and stays
// untouched.
func reloadLogging(cfg *config.Config) (*config.Config, error) {
	fresh := *cfg
	if err := fresh.Reload(""); err != nil {
		return nil, err
	}
	configureLogging(&fresh)
	return &fresh, nil
}
