// Package generate wraps the model call for the router. Generate never
// returns an error: any provider failure becomes the configured
// fallback reply, so a flaky model can't take down the dispatch loop.
package generate

import (
	"context"
	"log/slog"
	"strings"

	"github.com/yk-CNMB/gemini-itchat-bot/internal/settings"
	"github.com/yk-CNMB/gemini-itchat-bot/llm"
)

type Generator struct {
	client   llm.Client
	settings *settings.Store
	logger   *slog.Logger
}

func New(client llm.Client, store *settings.Store, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{client: client, settings: store, logger: logger}
}

// Generate produces a reply for message given the already-rendered
// history. history must be a plain string snapshot; the caller must not
// hold any store lock while this blocks on the network.
func (g *Generator) Generate(ctx context.Context, history, message string) string {
	cfg := g.settings.Current()
	prompt := BuildPrompt(cfg.PromptTemplate, history, message)

	res, err := g.client.Chat(ctx, llm.Request{
		Model:       cfg.Model,
		Prompt:      prompt,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
	})
	if err != nil {
		g.logger.Error("generate_error", "model", cfg.Model, "error", err.Error())
		return cfg.FallbackReply
	}

	reply := strings.TrimSpace(res.Text)
	g.logger.Debug("generate_ok",
		"model", cfg.Model,
		"total_tokens", res.Usage.TotalTokens,
		"duration", res.Duration.String(),
	)
	if reply == "" {
		return cfg.FallbackReply
	}
	return reply
}

// BuildPrompt substitutes {history} and {message} into the template.
// A template without either placeholder is treated as a bare prefix.
func BuildPrompt(template, history, message string) string {
	if strings.Contains(template, "{history}") || strings.Contains(template, "{message}") {
		out := strings.ReplaceAll(template, "{history}", history)
		return strings.ReplaceAll(out, "{message}", message)
	}
	var b strings.Builder
	if template != "" {
		b.WriteString(template)
		b.WriteString("\n")
	}
	b.WriteString(history)
	b.WriteString("User: ")
	b.WriteString(message)
	b.WriteString("\nAssistant:")
	return b.String()
}
