package main

import (
	"testing"
	"time"

	"github.com/yk-CNMB/gemini-itchat-bot/internal/session"
	"github.com/yk-CNMB/gemini-itchat-bot/internal/settings"
)

func TestLLMClientFromSettings(t *testing.T) {
	if _, err := llmClientFromSettings(settings.Settings{Provider: "gemini"}); err != nil {
		t.Fatalf("llmClientFromSettings(gemini) error = %v", err)
	}
	if _, err := llmClientFromSettings(settings.Settings{Provider: ""}); err != nil {
		t.Fatalf("llmClientFromSettings(default) error = %v", err)
	}
	if _, err := llmClientFromSettings(settings.Settings{Provider: "openai"}); err != nil {
		t.Fatalf("llmClientFromSettings(openai) error = %v", err)
	}
	if _, err := llmClientFromSettings(settings.Settings{Provider: "palm"}); err == nil {
		t.Fatalf("llmClientFromSettings(palm) expected error")
	}
}

func TestBackoffFromFlags(t *testing.T) {
	cmd := newServeCmd()

	b, err := backoffFromFlags(cmd)
	if err != nil {
		t.Fatalf("backoffFromFlags() error = %v", err)
	}
	if _, ok := b.(session.FixedBackoff); !ok {
		t.Fatalf("backoffFromFlags() = %T, want FixedBackoff", b)
	}

	if err := cmd.Flags().Set("session-backoff", "exponential"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := cmd.Flags().Set("session-backoff-max", "30s"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	b, err = backoffFromFlags(cmd)
	if err != nil {
		t.Fatalf("backoffFromFlags() error = %v", err)
	}
	exp, ok := b.(session.ExponentialBackoff)
	if !ok {
		t.Fatalf("backoffFromFlags() = %T, want ExponentialBackoff", b)
	}
	if exp.Max != 30*time.Second {
		t.Fatalf("backoff max = %s, want 30s", exp.Max)
	}

	if err := cmd.Flags().Set("session-backoff", "jittered"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if _, err := backoffFromFlags(cmd); err == nil {
		t.Fatalf("backoffFromFlags(jittered) expected error")
	}
}
