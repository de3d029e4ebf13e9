package server

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/connect4bot/command"
	"github.com/wfunc/connect4bot/network"
	"github.com/wfunc/connect4bot/registry"
	"github.com/wfunc/connect4bot/round"
	"github.com/wfunc/connect4bot/services"
	"github.com/wfunc/connect4bot/surface"
	"github.com/wfunc/connect4bot/timer"
)

type recordingHandler struct {
	messages  chan surface.Message
	reactions chan surface.Event
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{
		messages:  make(chan surface.Message, 8),
		reactions: make(chan surface.Event, 8),
	}
}

func (h *recordingHandler) HandleMessage(ctx context.Context, msg surface.Message, reply func(ctx context.Context, text string) error) bool {
	h.messages <- msg
	return true
}

func (h *recordingHandler) HandleReaction(ctx context.Context, ev surface.Event) {
	h.reactions <- ev
}

func startTestServer(t *testing.T) (*ChatServer, string) {
	t.Helper()
	s := NewChatServer("")
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		s.Shutdown()
		ts.Close()
	})
	return s, "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func dial(t *testing.T, base, channel, user, name string) *websocket.Conn {
	t.Helper()
	c, _, err := websocket.DefaultDialer.Dial(base+"?channel="+channel+"&user="+user+"&name="+name, nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	var welcome network.WelcomePayload
	readUntil(t, c, network.MsgTypeWelcome, &welcome)
	require.Equal(t, user, welcome.UserID)
	return c
}

func send(t *testing.T, c *websocket.Conn, msgID uint16, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	packet, err := network.Encode(msgID, data)
	require.NoError(t, err)
	require.NoError(t, c.WriteMessage(websocket.BinaryMessage, packet))
}

// readUntil skips packets until one with msgID arrives and decodes it into v.
func readUntil(t *testing.T, c *websocket.Conn, msgID uint16, v any) {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		_, raw, err := c.ReadMessage()
		require.NoError(t, err)
		packet, err := network.Decode(raw)
		require.NoError(t, err)
		if packet.MsgID == msgID {
			require.NoError(t, json.Unmarshal(packet.Data, v))
			return
		}
	}
}

func TestChatServer_SendReachesChannel(t *testing.T) {
	s, base := startTestServer(t)
	alice := dial(t, base, "t", "1", "alice")
	bob := dial(t, base, "t", "2", "bob")

	h, err := s.Send(context.Background(), "t", "hello", nil)
	require.NoError(t, err)
	assert.Equal(t, "t", h.ChannelID)
	assert.NotEmpty(t, h.MessageID)

	for _, c := range []*websocket.Conn{alice, bob} {
		var msg network.MessagePayload
		readUntil(t, c, network.MsgTypeMessage, &msg)
		assert.Equal(t, h.MessageID, msg.MessageID)
		assert.Equal(t, "hello", msg.Text)
		assert.Empty(t, msg.Board)
	}

	require.NoError(t, s.Edit(context.Background(), h, "edited", nil))
	var edit network.MessagePayload
	readUntil(t, alice, network.MsgTypeEdit, &edit)
	assert.Equal(t, "edited", edit.Text)
}

func TestChatServer_UnknownMessage(t *testing.T) {
	s := NewChatServer("")
	ctx := context.Background()
	h := surface.Handle{ChannelID: "t", MessageID: "nope"}

	assert.ErrorIs(t, s.Edit(ctx, h, "x", nil), ErrUnknownMessage)
	assert.ErrorIs(t, s.Reply(ctx, h, "x"), ErrUnknownMessage)
	assert.ErrorIs(t, s.AddOptions(ctx, h, []string{"a"}), ErrUnknownMessage)
	assert.ErrorIs(t, s.RemoveOption(ctx, h, "a", "1"), ErrUnknownMessage)
}

func TestChatServer_RoutesChatAndReactions(t *testing.T) {
	s, base := startTestServer(t)
	handler := newRecordingHandler()
	s.SetHandler(handler)

	alice := dial(t, base, "t", "1", "alice")
	dial(t, base, "t", "2", "bob")

	send(t, alice, network.MsgTypeChat, network.ChatRequest{Text: "]start @alice @bob @nobody"})
	select {
	case msg := <-handler.messages:
		assert.Equal(t, "t", msg.ChannelID)
		assert.Equal(t, "1", msg.Author.ID)
		require.Len(t, msg.Mentions, 2)
		assert.Equal(t, "alice", msg.Mentions[0].Name)
		assert.Equal(t, "2", msg.Mentions[1].ID)
		assert.Equal(t, "@bob", msg.Mentions[1].Mention)
	case <-time.After(5 * time.Second):
		t.Fatal("chat line never reached the handler")
	}

	h, err := s.Send(context.Background(), "t", "board", nil)
	require.NoError(t, err)
	send(t, alice, network.MsgTypeReact, network.ReactRequest{MessageID: h.MessageID, Symbol: "1⃣"})
	select {
	case ev := <-handler.reactions:
		assert.Equal(t, h, ev.Handle)
		assert.Equal(t, "1", ev.ActorID)
		assert.False(t, ev.Removed)
	case <-time.After(5 * time.Second):
		t.Fatal("reaction never reached the handler")
	}
	assert.Equal(t, []string{"1"}, s.Reactions(h.MessageID, "1⃣"))

	send(t, alice, network.MsgTypeUnreact, network.ReactRequest{MessageID: h.MessageID, Symbol: "1⃣"})
	select {
	case ev := <-handler.reactions:
		assert.True(t, ev.Removed)
	case <-time.After(5 * time.Second):
		t.Fatal("reaction removal never reached the handler")
	}
	assert.Empty(t, s.Reactions(h.MessageID, "1⃣"))
}

func TestChatServer_IgnoresReactionsFromOtherChannels(t *testing.T) {
	s, base := startTestServer(t)
	handler := newRecordingHandler()
	s.SetHandler(handler)

	carol := dial(t, base, "games", "3", "carol")
	h, err := s.Send(context.Background(), "t", "board", nil)
	require.NoError(t, err)

	send(t, carol, network.MsgTypeReact, network.ReactRequest{MessageID: h.MessageID, Symbol: "1⃣"})
	// A chat line after the reaction proves the reaction was processed.
	send(t, carol, network.MsgTypeChat, network.ChatRequest{Text: "hi"})
	<-handler.messages

	select {
	case ev := <-handler.reactions:
		t.Fatalf("unexpected reaction %+v", ev)
	default:
	}
}

func TestChatServer_PlaysRound(t *testing.T) {
	s, base := startTestServer(t)
	reg := registry.NewRegistry(timer.NewTimerManager(quartz.NewMock(t)), nil)
	svc := services.NewRoundService(reg, s)
	s.SetHandler(command.NewDispatcher("]", svc))

	alice := dial(t, base, "t", "1", "alice")
	bob := dial(t, base, "t", "2", "bob")

	send(t, alice, network.MsgTypeChat, network.ChatRequest{Text: "]start @alice @bob"})

	var options network.OptionsPayload
	readUntil(t, bob, network.MsgTypeOptions, &options)
	assert.Len(t, options.Symbols, 8)
	assert.Equal(t, round.CancelSymbol, options.Symbols[7])

	var board network.MessagePayload
	readUntil(t, bob, network.MsgTypeEdit, &board)
	require.NotNil(t, board.View)
	assert.Equal(t, options.MessageID, board.MessageID)
	assert.Equal(t, 0, board.View.Moves)
	assert.Contains(t, board.Board, "Turn 1")

	send(t, alice, network.MsgTypeReact, network.ReactRequest{MessageID: board.MessageID, Symbol: options.Symbols[3]})

	var removed network.OptionRemovedPayload
	readUntil(t, bob, network.MsgTypeOptionRemoved, &removed)
	assert.Equal(t, "1", removed.UserID)

	readUntil(t, bob, network.MsgTypeEdit, &board)
	require.NotNil(t, board.View)
	assert.Equal(t, 1, board.View.Moves)
	assert.Equal(t, 1, board.View.Current)
}

func TestChatServer_ConcurrentSends(t *testing.T) {
	s, base := startTestServer(t)
	c := dial(t, base, "t", "1", "alice")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Send(context.Background(), "t", "x", nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	for i := 0; i < 10; i++ {
		var msg network.MessagePayload
		readUntil(t, c, network.MsgTypeMessage, &msg)
	}
}

type replyingHandler struct{}

func (replyingHandler) HandleMessage(ctx context.Context, msg surface.Message, reply func(ctx context.Context, text string) error) bool {
	_ = reply(ctx, "Error: no such command")
	return true
}

func (replyingHandler) HandleReaction(ctx context.Context, ev surface.Event) {}

func TestChatServer_CommandRepliesAreNotRemembered(t *testing.T) {
	s, base := startTestServer(t)
	s.SetHandler(replyingHandler{})
	alice := dial(t, base, "t", "1", "alice")

	send(t, alice, network.MsgTypeChat, network.ChatRequest{Text: "]bogus"})

	var msg network.MessagePayload
	readUntil(t, alice, network.MsgTypeMessage, &msg)
	assert.Equal(t, "Error: no such command", msg.Text)
	assert.NotEmpty(t, msg.MessageID)

	assert.Zero(t, s.Remembered())
	h := surface.Handle{ChannelID: "t", MessageID: msg.MessageID}
	assert.ErrorIs(t, s.Edit(context.Background(), h, "x", nil), ErrUnknownMessage)
}

func TestChatServer_ForgetsOldestMessages(t *testing.T) {
	s := newChatServer("", 2)
	ctx := context.Background()

	first, err := s.Send(ctx, "t", "one", nil)
	require.NoError(t, err)
	second, err := s.Send(ctx, "t", "two", nil)
	require.NoError(t, err)
	require.NoError(t, s.AddOptions(ctx, first, []string{"a"}))

	third, err := s.Send(ctx, "t", "three", nil)
	require.NoError(t, err)

	assert.Equal(t, 2, s.Remembered())
	// first was touched more recently than second, so second goes.
	assert.ErrorIs(t, s.Edit(ctx, second, "x", nil), ErrUnknownMessage)
	assert.NoError(t, s.Edit(ctx, first, "x", nil))
	assert.NoError(t, s.Edit(ctx, third, "x", nil))
}
