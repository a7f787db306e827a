package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/yk-CNMB/gemini-itchat-bot/internal/generate"
	"github.com/yk-CNMB/gemini-itchat-bot/internal/history"
	"github.com/yk-CNMB/gemini-itchat-bot/internal/logutil"
	"github.com/yk-CNMB/gemini-itchat-bot/internal/router"
	"github.com/yk-CNMB/gemini-itchat-bot/internal/session"
	"github.com/yk-CNMB/gemini-itchat-bot/internal/settings"
	"github.com/yk-CNMB/gemini-itchat-bot/internal/wechat"
	"github.com/yk-CNMB/gemini-itchat-bot/llm"
	"github.com/yk-CNMB/gemini-itchat-bot/providers/gemini"
	"github.com/yk-CNMB/gemini-itchat-bot/providers/openai"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Log in and relay chat messages to the model",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logutil.LoggerFromViper()
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			settingsPath := strings.TrimSpace(flagOrViperString(cmd, "settings", "settings.path"))
			store := settings.NewStore(settingsPath, logger)
			cfg, err := store.Load()
			if err != nil {
				return err
			}
			logger.Info("settings_loaded",
				"path", settingsPath,
				"provider", cfg.Provider,
				"model", cfg.Model,
				"admins", len(cfg.Admins),
			)

			client, err := llmClientFromSettings(cfg)
			if err != nil {
				return err
			}

			hist := history.NewStore(cfg.HistoryMaxTurns)
			gen := generate.New(client, store, logger)

			gateway := wechat.NewClient(flagOrViperString(cmd, "gateway-base-url", "gateway.base_url"), logger)
			gateway.QRPollInterval = flagOrViperDuration(cmd, "gateway-qr-poll-interval", "gateway.qr_poll_interval")
			gateway.LoginTimeout = flagOrViperDuration(cmd, "gateway-login-timeout", "gateway.login_timeout")

			rt := router.New(store, hist, gen, func() string { return gateway.Self().NickName }, logger)

			backoff, err := backoffFromFlags(cmd)
			if err != nil {
				return err
			}
			artifacts := session.NewArtifactStore(flagOrViperString(cmd, "session-artifact", "session.artifact_path"))
			mgr := session.NewManager(gateway, artifacts, rt.Handle, backoff, logger)
			mgr.MaxLoginAttempts = flagOrViperInt(cmd, "session-max-login-attempts", "session.max_login_attempts")

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger.Info("relay_start", "gateway", gateway.BaseURL)
			return mgr.Run(ctx)
		},
	}

	cmd.Flags().String("settings", "config.json", "Bot settings file (JSON).")
	cmd.Flags().String("gateway-base-url", "http://127.0.0.1:8090", "Chat gateway base URL.")
	cmd.Flags().Duration("gateway-qr-poll-interval", 2*time.Second, "QR confirmation poll interval.")
	cmd.Flags().Duration("gateway-login-timeout", 3*time.Minute, "Max wait for the QR scan.")
	cmd.Flags().String("session-artifact", "itchat.session", "Cached session artifact path.")
	cmd.Flags().String("session-backoff", "fixed", "Retry backoff policy: fixed|exponential.")
	cmd.Flags().Duration("session-backoff-interval", 5*time.Second, "Fixed backoff interval.")
	cmd.Flags().Duration("session-backoff-base", time.Second, "Exponential backoff base.")
	cmd.Flags().Duration("session-backoff-max", time.Minute, "Exponential backoff cap.")
	cmd.Flags().Int("session-max-login-attempts", 0, "Give up after this many failed fresh logins (0 retries forever).")

	return cmd
}

func llmClientFromSettings(cfg settings.Settings) (llm.Client, error) {
	switch cfg.Provider {
	case "", "gemini":
		return gemini.New(cfg.Endpoint, cfg.APIKey), nil
	case "openai":
		return openai.New(cfg.Endpoint, cfg.APIKey), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
	}
}

func backoffFromFlags(cmd *cobra.Command) (session.Backoff, error) {
	switch strings.ToLower(strings.TrimSpace(flagOrViperString(cmd, "session-backoff", "session.backoff"))) {
	case "", "fixed":
		return session.FixedBackoff{
			Interval: flagOrViperDuration(cmd, "session-backoff-interval", "session.backoff_interval"),
		}, nil
	case "exponential":
		return session.ExponentialBackoff{
			Base: flagOrViperDuration(cmd, "session-backoff-base", "session.backoff_base"),
			Max:  flagOrViperDuration(cmd, "session-backoff-max", "session.backoff_max"),
		}, nil
	default:
		return nil, fmt.Errorf("unknown session.backoff policy")
	}
}
