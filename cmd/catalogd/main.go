package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"catalogd/internal/config"
	appLog "catalogd/internal/log"
	"catalogd/internal/model"
	"catalogd/internal/source"
	"catalogd/internal/web"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	envFile    string
	listen     string
}

func main() {
	appLog.Info("catalogd starting", "version", "0.1.0")
	defer appLog.Sync()

	flags := parseFlags()

	// .env is optional; a missing file is not an error.
	if err := godotenv.Load(flags.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		appLog.Error("failed to load env file", err, "path", flags.envFile)
		os.Exit(1)
	}

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	conf.ApplyEnv()

	// CLI --listen overrides config file and env.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	loc, err := conf.Location()
	if err != nil {
		appLog.Error("failed to load timezone; falling back to UTC", err, "name", conf.Timezone)
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", loc.String(),
		"api_base_url", conf.API.BaseURL,
		"registration_timeout", conf.RegistrationTimeout,
		"refresh", conf.RefreshCron,
		"cors_origins", conf.CORS.AllowedOrigins,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := source.NewClient(source.Options{
		BaseURL:           conf.API.BaseURL,
		CatalogPaths:      kindPaths(conf.API.CatalogPaths),
		RegistrationPaths: kindPaths(conf.API.RegistrationPaths),
		Timeout:           conf.API.Timeout,
	})

	srv := web.NewServer(conf, client, loc)
	defer srv.Close()

	// Initial feed load runs in the background so the API is up immediately.
	go srv.RefreshFeeds(ctx)

	sched := cron.New()
	if _, err := sched.AddFunc(conf.RefreshCron, func() {
		appLog.Debug("scheduled feed refresh")
		srv.RefreshFeeds(ctx)
	}); err != nil {
		appLog.Error("invalid refresh schedule", err, "refresh", conf.RefreshCron)
		os.Exit(1)
	}
	sched.Start()
	defer sched.Stop()

	if err := web.StartServer(ctx, srv); err != nil {
		appLog.Error("HTTP server failed", err)
		os.Exit(1)
	}
	appLog.Info("catalogd exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/catalogd/config.yaml", "Path to config file")
	flag.StringVar(&cfg.envFile, "env", ".env", "Path to optional .env file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")

	flag.Parse()

	return cfg
}

// kindPaths converts config keys ("event", "events", ...) to kinds. Unknown
// keys are logged and ignored.
func kindPaths(in map[string]string) map[model.Kind]string {
	out := make(map[model.Kind]string, len(in))
	for k, p := range in {
		kind, ok := model.ParseKind(k)
		if !ok {
			appLog.Info("ignoring path for unknown catalog kind", "kind", k)
			continue
		}
		out[kind] = p
	}
	return out
}
