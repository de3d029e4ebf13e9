// Package surface is the contract between rounds and the chat they are
// played in. Adapters live in the server (websocket) and discord packages.
package surface

import (
	"context"

	"github.com/wfunc/connect4bot/round"
)

// Handle addresses one message in one channel.
type Handle struct {
	ChannelID string
	MessageID string
}

func (h Handle) IsZero() bool { return h.MessageID == "" }

// Surface is the messaging side of a round. A nil view sends plain text.
type Surface interface {
	Send(ctx context.Context, channelID, text string, view *round.Snapshot) (Handle, error)
	Edit(ctx context.Context, h Handle, text string, view *round.Snapshot) error
	Reply(ctx context.Context, h Handle, text string) error
	// AddOptions offers selectable symbols (reactions) on a message.
	AddOptions(ctx context.Context, h Handle, symbols []string) error
	// RemoveOption withdraws actorID's selection of symbol so it can be
	// selected again.
	RemoveOption(ctx context.Context, h Handle, symbol, actorID string) error
}

// Event is an inbound selection on a message: a reaction added, or removed
// when Removed is set.
type Event struct {
	Handle  Handle
	ActorID string
	Symbol  string
	Removed bool
}

// Message is an inbound chat message that may hold a command.
type Message struct {
	ChannelID string
	Author    round.Player
	Content   string
	// Mentions are the users the message mentions, in order.
	Mentions []round.Player
}

// Handler receives inbound traffic from an adapter. reply answers in the
// channel msg came from.
type Handler interface {
	HandleMessage(ctx context.Context, msg Message, reply func(ctx context.Context, text string) error) bool
	HandleReaction(ctx context.Context, ev Event)
}
