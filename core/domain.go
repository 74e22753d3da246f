package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// UpdateKind discriminates the inbound update union. Classification is an
// ordered check over which payload field is populated; first match wins.
type UpdateKind string

const (
	UpdateKindMessage       UpdateKind = "message"
	UpdateKindEditedMessage UpdateKind = "edited_message"
	UpdateKindCallbackQuery UpdateKind = "callback_query"
	UpdateKindInlineQuery   UpdateKind = "inline_query"
	UpdateKindChannelPost   UpdateKind = "channel_post"
	UpdateKindChatMember    UpdateKind = "chat_member"
	UpdateKindOther         UpdateKind = "other"
)

type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

// DisplayName returns the friendliest non-empty identifier for the user.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if name := strings.TrimSpace(u.FirstName); name != "" {
		return name
	}
	if name := strings.TrimSpace(u.Username); name != "" {
		return name
	}
	return ""
}

type Chat struct {
	ID    int64  `json:"id"`
	Type  string `json:"type,omitempty"`
	Title string `json:"title,omitempty"`
}

type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from,omitempty"`
	Chat      *Chat  `json:"chat,omitempty"`
	Date      int64  `json:"date,omitempty"`
	Text      string `json:"text,omitempty"`
}

type CallbackQuery struct {
	ID      string   `json:"id"`
	From    *User    `json:"from,omitempty"`
	Message *Message `json:"message,omitempty"`
	Data    string   `json:"data,omitempty"`
}

type InlineQuery struct {
	ID     string `json:"id"`
	From   *User  `json:"from,omitempty"`
	Query  string `json:"query,omitempty"`
	Offset string `json:"offset,omitempty"`
}

type ChatMemberState struct {
	User   *User  `json:"user,omitempty"`
	Status string `json:"status,omitempty"`
}

type ChatMemberUpdate struct {
	Chat      *Chat            `json:"chat,omitempty"`
	From      *User            `json:"from,omitempty"`
	Date      int64            `json:"date,omitempty"`
	OldMember *ChatMemberState `json:"old_chat_member,omitempty"`
	NewMember *ChatMemberState `json:"new_chat_member,omitempty"`
}

// Update is one inbound webhook notification. Exactly one kind field is
// expected to be populated; an update with no recognized kind classifies as
// UpdateKindOther. Updates are immutable once received.
type Update struct {
	UpdateID      int64             `json:"update_id"`
	Message       *Message          `json:"message,omitempty"`
	EditedMessage *Message          `json:"edited_message,omitempty"`
	CallbackQuery *CallbackQuery    `json:"callback_query,omitempty"`
	InlineQuery   *InlineQuery      `json:"inline_query,omitempty"`
	ChannelPost   *Message          `json:"channel_post,omitempty"`
	ChatMember    *ChatMemberUpdate `json:"my_chat_member,omitempty"`
}

// ParseUpdate decodes a single webhook delivery body.
func ParseUpdate(body []byte) (Update, error) {
	var update Update
	if err := json.Unmarshal(body, &update); err != nil {
		return Update{}, fmt.Errorf("core: decode update payload: %w", err)
	}
	return update, nil
}

// Kind classifies the update. First populated field wins, in declaration
// order; anything unrecognized is UpdateKindOther.
func (u Update) Kind() UpdateKind {
	switch {
	case u.Message != nil:
		return UpdateKindMessage
	case u.EditedMessage != nil:
		return UpdateKindEditedMessage
	case u.CallbackQuery != nil:
		return UpdateKindCallbackQuery
	case u.InlineQuery != nil:
		return UpdateKindInlineQuery
	case u.ChannelPost != nil:
		return UpdateKindChannelPost
	case u.ChatMember != nil:
		return UpdateKindChatMember
	default:
		return UpdateKindOther
	}
}

// SenderID extracts the sending user's id where the variant carries one.
func (u Update) SenderID() (int64, bool) {
	switch {
	case u.Message != nil && u.Message.From != nil:
		return u.Message.From.ID, true
	case u.EditedMessage != nil && u.EditedMessage.From != nil:
		return u.EditedMessage.From.ID, true
	case u.CallbackQuery != nil && u.CallbackQuery.From != nil:
		return u.CallbackQuery.From.ID, true
	case u.InlineQuery != nil && u.InlineQuery.From != nil:
		return u.InlineQuery.From.ID, true
	case u.ChannelPost != nil && u.ChannelPost.From != nil:
		return u.ChannelPost.From.ID, true
	case u.ChatMember != nil && u.ChatMember.From != nil:
		return u.ChatMember.From.ID, true
	default:
		return 0, false
	}
}

// ChatID extracts the reply target where the variant carries one. Inline
// queries have no chat; they are answered through the inline surface.
func (u Update) ChatID() (int64, bool) {
	switch {
	case u.Message != nil && u.Message.Chat != nil:
		return u.Message.Chat.ID, true
	case u.EditedMessage != nil && u.EditedMessage.Chat != nil:
		return u.EditedMessage.Chat.ID, true
	case u.CallbackQuery != nil && u.CallbackQuery.Message != nil && u.CallbackQuery.Message.Chat != nil:
		return u.CallbackQuery.Message.Chat.ID, true
	case u.ChannelPost != nil && u.ChannelPost.Chat != nil:
		return u.ChannelPost.Chat.ID, true
	case u.ChatMember != nil && u.ChatMember.Chat != nil:
		return u.ChatMember.Chat.ID, true
	default:
		return 0, false
	}
}

// Sender returns the sending user where the variant carries one.
func (u Update) Sender() *User {
	switch {
	case u.Message != nil:
		return u.Message.From
	case u.EditedMessage != nil:
		return u.EditedMessage.From
	case u.CallbackQuery != nil:
		return u.CallbackQuery.From
	case u.InlineQuery != nil:
		return u.InlineQuery.From
	case u.ChannelPost != nil:
		return u.ChannelPost.From
	case u.ChatMember != nil:
		return u.ChatMember.From
	default:
		return nil
	}
}

// APIResult is the outcome of one outbound gateway call. It is produced once
// per call and never mutated after return; every failure path resolves to a
// result with Success=false rather than an escaping error.
type APIResult struct {
	Success    bool
	Data       json.RawMessage
	Error      string
	RetryAfter time.Duration
}

// UsageSnapshot is derived on read from the TTL store counters; it is never
// persisted separately.
type UsageSnapshot struct {
	TotalMessages int64
	ActiveSenders int
	Errors24h     int64
	LastActivity  time.Time
}

// DispatchStatus records how an update dispatch concluded.
type DispatchStatus string

const (
	DispatchStatusHandled   DispatchStatus = "handled"
	DispatchStatusFallback  DispatchStatus = "fallback"
	DispatchStatusThrottled DispatchStatus = "throttled"
	DispatchStatusRecovered DispatchStatus = "recovered"
	DispatchStatusDropped   DispatchStatus = "dropped"
)

// DispatchOutcome summarizes one completed dispatch. Dispatch always
// completes; the outcome is informational and feeds activity records.
type DispatchOutcome struct {
	UpdateID int64
	Kind     UpdateKind
	Status   DispatchStatus
	ChatID   int64
	HasChat  bool
	Detail   string
}

// DispatchActivity is the persisted trace of one dispatch outcome.
type DispatchActivity struct {
	ID        string
	UpdateID  int64
	Kind      string
	Status    string
	ChatID    int64
	SenderID  int64
	Detail    string
	Metadata  map[string]any
	CreatedAt time.Time
}

// DispatchActivityFilter bounds activity listings.
type DispatchActivityFilter struct {
	Kind    string
	Status  string
	ChatID  int64
	Page    int
	PerPage int
}

// DispatchActivityPage is one page of activity records.
type DispatchActivityPage struct {
	Entries []DispatchActivity
	Total   int
	Page    int
	PerPage int
}
