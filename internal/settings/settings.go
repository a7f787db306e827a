// Package settings owns the bot's tunables: loading them from the
// config file, handing out immutable snapshots, and persisting
// admin-driven changes. It is the sole writer of record for the file.
package settings

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/spf13/viper"

	"github.com/yk-CNMB/gemini-itchat-bot/internal/bus"
	"github.com/yk-CNMB/gemini-itchat-bot/internal/fsstore"
)

const (
	DefaultModel           = "gemini-pro"
	DefaultProvider        = "gemini"
	DefaultPromptTemplate  = "{history}User: {message}\nAssistant:"
	DefaultMaxTokens       = 300
	DefaultTemperature     = 0.7
	DefaultFallbackReply   = "Sorry, the AI service is temporarily unavailable."
	DefaultHistoryMaxTurns = 20
)

// Settings is an immutable snapshot. Mutation goes through Store.Save,
// which persists first and swaps the in-memory copy after.
type Settings struct {
	APIKey             string   `json:"api_key"`
	Model              string   `json:"model"`
	Provider           string   `json:"provider"`
	Endpoint           string   `json:"endpoint"`
	PromptTemplate     string   `json:"prompt_template"`
	MaxTokens          int      `json:"max_tokens"`
	Temperature        float64  `json:"temperature"`
	Admins             []string `json:"admins"`
	GroupTriggerPrefix string   `json:"group_trigger_prefix"`
	FallbackReply      string   `json:"fallback_reply"`
	HistoryMaxTurns    int      `json:"history_max_turns"`
}

func (s Settings) IsAdmin(id bus.Identity) bool {
	for _, a := range s.Admins {
		if strings.TrimSpace(a) == string(id) {
			return true
		}
	}
	return false
}

type Store struct {
	path   string
	logger *slog.Logger

	mu      sync.RWMutex
	current Settings
}

func NewStore(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{path: path, logger: logger}
}

// Load re-reads the config file and swaps the in-memory snapshot.
// A missing file is not an error: every field takes its default. An
// empty api_key logs a warning and continues, since the process can
// start and fail later at the first generation call.
func (s *Store) Load() (Settings, error) {
	v := viper.New()
	v.SetConfigFile(s.path)
	v.SetConfigType("json")

	v.SetDefault("api_key", "")
	v.SetDefault("model", DefaultModel)
	v.SetDefault("provider", DefaultProvider)
	v.SetDefault("endpoint", "")
	v.SetDefault("prompt_template", DefaultPromptTemplate)
	v.SetDefault("max_tokens", DefaultMaxTokens)
	v.SetDefault("temperature", DefaultTemperature)
	v.SetDefault("admins", []string{})
	v.SetDefault("group_trigger_prefix", "")
	v.SetDefault("fallback_reply", DefaultFallbackReply)
	v.SetDefault("history_max_turns", DefaultHistoryMaxTurns)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return Settings{}, fmt.Errorf("read settings %s: %w", s.path, err)
		}
		s.logger.Info("settings_file_missing", "path", s.path)
	}

	loaded := Settings{
		APIKey:             strings.TrimSpace(v.GetString("api_key")),
		Model:              strings.TrimSpace(v.GetString("model")),
		Provider:           strings.ToLower(strings.TrimSpace(v.GetString("provider"))),
		Endpoint:           strings.TrimSpace(v.GetString("endpoint")),
		PromptTemplate:     v.GetString("prompt_template"),
		MaxTokens:          v.GetInt("max_tokens"),
		Temperature:        v.GetFloat64("temperature"),
		Admins:             v.GetStringSlice("admins"),
		GroupTriggerPrefix: v.GetString("group_trigger_prefix"),
		FallbackReply:      v.GetString("fallback_reply"),
		HistoryMaxTurns:    v.GetInt("history_max_turns"),
	}
	if loaded.APIKey == "" {
		s.logger.Warn("settings_api_key_empty", "path", s.path)
	}

	s.mu.Lock()
	s.current = loaded
	s.mu.Unlock()
	return loaded, nil
}

// Current returns the active snapshot.
func (s *Store) Current() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Save persists the snapshot and, only once the write has succeeded,
// makes it the active one.
func (s *Store) Save(next Settings) error {
	if err := fsstore.WriteJSONAtomic(s.path, next, fsstore.FileOptions{}); err != nil {
		return fmt.Errorf("persist settings: %w", err)
	}
	s.mu.Lock()
	s.current = next
	s.mu.Unlock()
	return nil
}

// UpdatePrompt is the admin setprompt flow: new template, persisted
// before it is acknowledged.
func (s *Store) UpdatePrompt(template string) (Settings, error) {
	next := s.Current()
	next.PromptTemplate = template
	if err := s.Save(next); err != nil {
		return Settings{}, err
	}
	return next, nil
}
