// Package router classifies inbound events and produces at most one
// reply per event. It is the boundary where per-message failures stop:
// nothing it does may terminate the transport's dispatch loop.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/yk-CNMB/gemini-itchat-bot/internal/bus"
	"github.com/yk-CNMB/gemini-itchat-bot/internal/generate"
	"github.com/yk-CNMB/gemini-itchat-bot/internal/history"
	"github.com/yk-CNMB/gemini-itchat-bot/internal/settings"
)

const (
	adminMarker = "/"

	internalErrorReply  = "Something went wrong handling that message."
	unknownCommandReply = "Unknown command. Available: /setprompt <text>, /showsettings"
	setPromptUsageReply = "Usage: /setprompt <text>"
)

type Router struct {
	settings *settings.Store
	history  *history.Store
	gen      *generate.Generator
	botName  func() string
	logger   *slog.Logger
}

// New wires the router. botName supplies the transport's own nickname
// for group mention detection; it is a func because the nickname is
// only known after authentication.
func New(store *settings.Store, hist *history.Store, gen *generate.Generator, botName func() string, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	if botName == nil {
		botName = func() string { return "" }
	}
	return &Router{settings: store, history: hist, gen: gen, botName: botName, logger: logger}
}

// Handle routes one event and returns the reply text, or "" for no
// reply. It never panics and never returns an error: routing defects
// collapse to a fixed internal-error reply.
func (r *Router) Handle(ctx context.Context, ev bus.InboundEvent) (reply string) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("router_panic", "event_id", ev.ID, "kind", ev.Kind, "panic", fmt.Sprint(rec))
			reply = internalErrorReply
		}
	}()

	if err := ev.Validate(); err != nil {
		r.logger.Error("router_invalid_event",
			"event_id", ev.ID, "kind", ev.Kind, "sender", ev.Sender, "error", err.Error())
		return internalErrorReply
	}

	r.logger.Info("inbound_message",
		"event_id", ev.ID,
		"kind", ev.Kind,
		"sender", ev.Sender,
		"room", ev.Room,
		"chars", len(ev.Text),
	)

	switch ev.Kind {
	case bus.KindPrivateText:
		reply = r.handlePrivate(ctx, ev)
	case bus.KindGroupText:
		reply = r.handleGroup(ctx, ev)
	}

	if reply != "" {
		r.logger.Info("outbound_reply", "event_id", ev.ID, "sender", ev.Sender, "chars", len(reply))
	}
	return reply
}

func (r *Router) handlePrivate(ctx context.Context, ev bus.InboundEvent) string {
	text := strings.TrimSpace(ev.Text)
	// Admin gating is identity-based: a non-admin typing "/setprompt"
	// gets a normal conversational turn, not a command.
	if r.settings.Current().IsAdmin(ev.Sender) && strings.HasPrefix(text, adminMarker) {
		return r.handleAdminCommand(ev, text)
	}
	return r.converse(ctx, ev.ConversationKey(), text)
}

func (r *Router) handleGroup(ctx context.Context, ev bus.InboundEvent) string {
	text := strings.TrimSpace(ev.Text)
	effective, mentioned := r.stripMention(text)
	if !mentioned {
		r.logger.Debug("group_message_ignored", "event_id", ev.ID, "room", ev.Room)
		return ""
	}

	reply := r.converse(ctx, ev.ConversationKey(), effective)
	name := strings.TrimSpace(ev.SenderName)
	if name == "" {
		name = string(ev.Sender)
	}
	return "@" + name + " " + reply
}

// stripMention reports whether a group message addresses the bot, via
// the trigger prefix or an @-mention of the bot's nickname, and returns
// the text with the addressing token removed.
func (r *Router) stripMention(text string) (string, bool) {
	prefix := r.settings.Current().GroupTriggerPrefix
	if prefix != "" && strings.HasPrefix(text, prefix) {
		return strings.TrimSpace(strings.TrimPrefix(text, prefix)), true
	}
	if name := strings.TrimSpace(r.botName()); name != "" {
		mention := "@" + name
		if strings.Contains(text, mention) {
			return strings.TrimSpace(strings.Replace(text, mention, "", 1)), true
		}
	}
	return text, false
}

func (r *Router) converse(ctx context.Context, key, text string) string {
	// History is snapshotted before the blocking model call; the
	// current message is not part of the rendered history.
	rendered := r.history.Render(key)
	r.history.Append(key, history.RoleUser, text)

	reply := r.gen.Generate(ctx, rendered, text)

	r.history.Append(key, history.RoleAssistant, reply)
	return reply
}

// Admin commands never touch conversation history or the model.
func (r *Router) handleAdminCommand(ev bus.InboundEvent, text string) string {
	verb, args := splitCommand(strings.TrimPrefix(text, adminMarker))
	r.logger.Info("admin_command", "event_id", ev.ID, "sender", ev.Sender, "verb", verb)

	switch verb {
	case "setprompt":
		if args == "" {
			return setPromptUsageReply
		}
		if _, err := r.settings.UpdatePrompt(args); err != nil {
			r.logger.Error("admin_setprompt_error", "event_id", ev.ID, "error", err.Error())
			return internalErrorReply
		}
		return "Prompt template updated."
	case "showsettings":
		return renderSettings(r.settings.Current())
	default:
		return unknownCommandReply
	}
}

func splitCommand(s string) (string, string) {
	s = strings.TrimSpace(s)
	verb, args, _ := strings.Cut(s, " ")
	return strings.ToLower(strings.TrimSpace(verb)), strings.TrimSpace(args)
}

func renderSettings(cfg settings.Settings) string {
	// The API key stays out of chat transcripts.
	if cfg.APIKey != "" {
		cfg.APIKey = "***"
	}
	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return internalErrorReply
	}
	return string(b)
}
