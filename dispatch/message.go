package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-botway/core"
)

var greetingWords = []string{"hello", "hi", "hey", "howdy", "greetings"}

// handleMessage runs the message sub-dispatch: the three slash commands by
// prefix match, then the ordered free-form pattern rules. The handled
// contract only fails when the underlying send does.
func (d *Dispatcher) handleMessage(ctx context.Context, msg *core.Message) (bool, string) {
	if msg == nil || msg.Chat == nil {
		return false, "message without chat"
	}
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return false, "message without text"
	}

	var reply, detail string
	switch {
	case strings.HasPrefix(text, "/start"):
		reply = d.welcomeText()
		detail = "command:/start"
	case strings.HasPrefix(text, "/help"):
		reply = d.helpText()
		detail = "command:/help"
	case strings.HasPrefix(text, "/status"):
		reply = d.statusText(ctx)
		detail = "command:/status"
	default:
		var ok bool
		reply, detail, ok = d.customReply(msg)
		if !ok {
			reply, detail = d.replyForText(text, msg.From)
		}
	}

	result := d.send(ctx, msg.Chat.ID, reply)
	if !result.Success {
		core.EmitLog(ctx, d.Logger, "error", "message reply failed", map[string]any{
			"chat_id": msg.Chat.ID,
			"detail":  detail,
			"error":   result.Error,
		})
		return false, detail
	}
	return true, detail
}

// customReply consults registered responders in registration order.
func (d *Dispatcher) customReply(msg *core.Message) (string, string, bool) {
	for _, responder := range d.Responders {
		if responder == nil {
			continue
		}
		if reply, detail, ok := responder.Respond(msg); ok {
			return reply, detail, true
		}
	}
	return "", "", false
}

// replyForText applies the free-form pattern rules in order; the generic
// echo-back at the end guarantees a reply for any text.
func (d *Dispatcher) replyForText(text string, sender *core.User) (string, string) {
	lower := strings.ToLower(text)

	if strings.HasPrefix(lower, "echo ") {
		echoed := strings.TrimSpace(text[len("echo "):])
		if echoed == "" {
			echoed = "..."
		}
		return echoed, "pattern:echo"
	}

	if startsWithGreeting(lower) {
		if name := sender.DisplayName(); name != "" {
			return fmt.Sprintf("Hello, %s! How can I help you today?", name), "pattern:greeting"
		}
		return "Hello! How can I help you today?", "pattern:greeting"
	}

	if strings.Contains(lower, "how are you") {
		return "I'm doing well, thanks for asking! What can I do for you?", "pattern:how-are-you"
	}

	if containsWord(lower, "time") {
		return fmt.Sprintf("It's currently %s.", d.now().Format("Mon, 02 Jan 2006 15:04:05 MST")), "pattern:time"
	}

	return fmt.Sprintf("You said: %q", text), "pattern:echo-back"
}

func (d *Dispatcher) welcomeText() string {
	return fmt.Sprintf(
		"Hi! I'm %s. Send me a message and I'll do my best to reply.\n%s",
		d.botName(), d.helpText(),
	)
}

func (d *Dispatcher) helpText() string {
	return strings.Join([]string{
		"Here's what I understand:",
		"/start - welcome and summary",
		"/help - this message",
		"/status - usage and upstream health",
		"Anything else and I'll try to reply in kind.",
	}, "\n")
}

// statusText combines the usage snapshot with a live upstream identity probe.
func (d *Dispatcher) statusText(ctx context.Context) string {
	var snapshot core.UsageSnapshot
	if d.Usage != nil {
		snapshot = d.Usage.Snapshot()
	}

	upstream := "unreachable"
	if d.Caller != nil {
		if probe := d.Caller.Call(ctx, "getMe", nil); probe.Success {
			upstream = "reachable"
		}
	}

	lastActivity := "never"
	if !snapshot.LastActivity.IsZero() {
		lastActivity = snapshot.LastActivity.UTC().Format("2006-01-02 15:04:05 MST")
	}

	return fmt.Sprintf(
		"Status for %s\nMessages: %d\nActive senders (24h): %d\nErrors (24h): %d\nLast activity: %s\nUpstream: %s",
		d.botName(),
		snapshot.TotalMessages,
		snapshot.ActiveSenders,
		snapshot.Errors24h,
		lastActivity,
		upstream,
	)
}

func (d *Dispatcher) botName() string {
	if d != nil && strings.TrimSpace(d.BotName) != "" {
		return d.BotName
	}
	return "your bot"
}

func startsWithGreeting(lower string) bool {
	fields := strings.Fields(lower)
	if len(fields) == 0 {
		return false
	}
	first := strings.Trim(fields[0], ".,!?")
	for _, word := range greetingWords {
		if first == word {
			return true
		}
	}
	return false
}

func containsWord(lower string, word string) bool {
	for _, field := range strings.Fields(lower) {
		if strings.Trim(field, ".,!?") == word {
			return true
		}
	}
	return false
}
