package main

import (
	"time"

	"github.com/spf13/viper"
)

func initViperDefaults() {
	// Bot settings file (api key, model, prompt, admins ...).
	viper.SetDefault("settings.path", "config.json")

	// Gateway connection.
	viper.SetDefault("gateway.base_url", "http://127.0.0.1:8090")
	viper.SetDefault("gateway.qr_poll_interval", 2*time.Second)
	viper.SetDefault("gateway.login_timeout", 3*time.Minute)

	// Session supervision.
	viper.SetDefault("session.artifact_path", "itchat.session")
	viper.SetDefault("session.backoff", "fixed")
	viper.SetDefault("session.backoff_interval", 5*time.Second)
	viper.SetDefault("session.backoff_base", 1*time.Second)
	viper.SetDefault("session.backoff_max", 1*time.Minute)
	viper.SetDefault("session.max_login_attempts", 0)

	// Logging.
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.add_source", false)
}
