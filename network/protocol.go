package network

import (
	"github.com/wfunc/connect4bot/round"
)

const (
	MsgTypeHeartbeat = 1

	// client -> server
	MsgTypeChat    = 101
	MsgTypeReact   = 102
	MsgTypeUnreact = 103

	// server -> client
	MsgTypeMessage       = 301
	MsgTypeEdit          = 302
	MsgTypeReply         = 303
	MsgTypeOptions       = 304
	MsgTypeOptionRemoved = 305
	MsgTypeChatEcho      = 306
	MsgTypeWelcome       = 307
)

// ChatRequest is a line typed by a user; it may be a command.
type ChatRequest struct {
	Text string `json:"text"`
}

// ReactRequest selects (or withdraws) a symbol on a message.
type ReactRequest struct {
	MessageID string `json:"message_id"`
	Symbol    string `json:"symbol"`
}

// MessagePayload carries a new or edited message. Board is the rendered
// grid for clients that only print text; View is the structured form.
type MessagePayload struct {
	MessageID string          `json:"message_id"`
	ChannelID string          `json:"channel_id"`
	Text      string          `json:"text"`
	Board     string          `json:"board,omitempty"`
	View      *round.Snapshot `json:"view,omitempty"`
}

type ReplyPayload struct {
	MessageID string `json:"message_id"`
	Text      string `json:"text"`
}

type OptionsPayload struct {
	MessageID string   `json:"message_id"`
	Symbols   []string `json:"symbols"`
}

type OptionRemovedPayload struct {
	MessageID string `json:"message_id"`
	Symbol    string `json:"symbol"`
	UserID    string `json:"user_id"`
}

type ChatEchoPayload struct {
	ChannelID string `json:"channel_id"`
	UserID    string `json:"user_id"`
	Name      string `json:"name"`
	Text      string `json:"text"`
}

type WelcomePayload struct {
	SessionID string `json:"session_id"`
	ChannelID string `json:"channel_id"`
	UserID    string `json:"user_id"`
}
