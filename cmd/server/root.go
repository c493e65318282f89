package main

import (
	"context"
	"fmt"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Tyrowin/chatrelay/internal/config"
	"github.com/Tyrowin/chatrelay/internal/logger"
	"github.com/Tyrowin/chatrelay/internal/server"
)

const version = "0.1.0"

func newRootCmd() *cobra.Command {
	v := viper.New()
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "chatrelay",
		Short: "Real-time WebSocket chat relay",
		Long: `chatrelay accepts WebSocket connections, gives each one an ephemeral
identity and rebroadcasts chat messages, presence changes, typing status and
renames to every connected participant, replaying recent history to newcomers.`,
		Version:      version,
		SilenceUsage: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			if cfgFile != "" {
				v.SetConfigFile(cfgFile)
			}
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			return run(cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfgFile, "config", "", "config file (json, yaml or toml)")
	flags.Int("port", config.Default().Port, "listening port")
	flags.String("log-level", config.Default().Log.Level, "log level (debug, info, warn, error)")
	flags.Bool("log-pretty", false, "human readable console logs")

	_ = v.BindPFlag("port", flags.Lookup("port"))
	_ = v.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = v.BindPFlag("log.pretty", flags.Lookup("log-pretty"))

	return cmd
}

func run(cfg *config.Config) error {
	log := logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
	log.Info().
		Int("port", cfg.Port).
		Int("history_limit", cfg.HistoryLimit).
		Int("max_username_length", cfg.MaxUsernameLength).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Msg("Starting chat relay")

	srv := server.New(*cfg, log)
	srv.StartHub()
	httpServer := server.CreateServer(cfg.Addr(), srv.SetupRoutes())

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.StartServer(httpServer)
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"http-server": func(ctx context.Context) error {
				return srv.ShutdownServer(ctx, httpServer)
			},
			"hub": func(ctx context.Context) error {
				return srv.Hub().Shutdown(ctx)
			},
		},
	)

	select {
	case err := <-serveErr:
		if err != nil {
			log.Error().Err(err).Msg("HTTP server failed")
			return fmt.Errorf("listen on %s: %w", cfg.Addr(), err)
		}
	case code := <-wait:
		log.Info().Int("code", code).Msg("Chat relay stopped")
		if code != 0 {
			return fmt.Errorf("shutdown finished with exit code %d", code)
		}
		return nil
	}

	code := <-wait
	log.Info().Int("code", code).Msg("Chat relay stopped")
	return nil
}
