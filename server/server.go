package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/wfunc/connect4bot/broadcast"
	"github.com/wfunc/connect4bot/logger"
	"github.com/wfunc/connect4bot/network"
	"github.com/wfunc/connect4bot/render"
	"github.com/wfunc/connect4bot/round"
	"github.com/wfunc/connect4bot/session"
	"github.com/wfunc/connect4bot/surface"
)

var ErrUnknownMessage = errors.New("unknown message")

const DefaultChannel = "lobby"

// MaxMessages is how many posted messages the server remembers for edits and
// reactions. The oldest are forgotten first.
const MaxMessages = 1024

// chatMessage is a message the server posted, with the reactions on it.
type chatMessage struct {
	channelID string
	text      string
	options   []string
	reactions map[string]map[string]bool // symbol -> user ids
}

// ChatServer is a small websocket chat. Clients join one channel each and
// see every message posted there; rounds are played on messages through
// reactions, the same way they are on Discord.
type ChatServer struct {
	addr           string
	upgrader       websocket.Upgrader
	sessionManager *session.Manager
	broadcaster    broadcast.Broadcaster
	heartbeat      time.Duration

	handlerMutex sync.RWMutex
	handler      surface.Handler

	mutex    sync.Mutex
	messages *lru.Cache[string, *chatMessage]

	shutdownChan chan struct{}
	shutdownOnce sync.Once
}

func NewChatServer(addr string) *ChatServer {
	return newChatServer(addr, MaxMessages)
}

func newChatServer(addr string, maxMessages int) *ChatServer {
	messages, err := lru.New[string, *chatMessage](maxMessages)
	if err != nil {
		panic(err)
	}
	sessions := session.NewManager()
	return &ChatServer{
		addr:           addr,
		sessionManager: sessions,
		broadcaster:    broadcast.NewChannelBroadcaster(sessions),
		heartbeat:      time.Minute,
		messages:       messages,
		shutdownChan:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有跨域请求
			},
		},
	}
}

// SetHandler installs the receiver of chat lines and reactions.
func (s *ChatServer) SetHandler(h surface.Handler) {
	s.handlerMutex.Lock()
	defer s.handlerMutex.Unlock()
	s.handler = h
}

func (s *ChatServer) getHandler() surface.Handler {
	s.handlerMutex.RLock()
	defer s.handlerMutex.RUnlock()
	return s.handler
}

func (s *ChatServer) Sessions() *session.Manager { return s.sessionManager }

func (s *ChatServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	return mux
}

// Start serves websocket clients until ctx is cancelled.
func (s *ChatServer) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.Handler()}
	go func() {
		<-ctx.Done()
		s.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Log.Infof("Chat server listening on %s", s.addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *ChatServer) Shutdown() {
	s.shutdownOnce.Do(func() {
		close(s.shutdownChan)
		for _, sess := range s.sessionManager.All() {
			sess.Close()
		}
	})
}

func (s *ChatServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	userID := query.Get("user")
	if userID == "" {
		http.Error(w, "user is required", http.StatusBadRequest)
		return
	}
	name := query.Get("name")
	if name == "" {
		name = userID
	}
	channelID := query.Get("channel")
	if channelID == "" {
		channelID = DefaultChannel
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(conn, userID, name, channelID)
}

func (s *ChatServer) handleConnection(conn *websocket.Conn, userID, name, channelID string) {
	wsConn := network.NewWSConnection(conn)
	wsConn.SetHeartbeat(s.heartbeat)
	sess := session.NewSession(uuid.New().String(), wsConn, userID, name, channelID)
	s.sessionManager.Add(sess)

	logger.Log.Infof("New connection from %s, session ID: %s, user %s in #%s", wsConn.RemoteAddr(), sess.GetID(), userID, channelID)

	defer func() {
		logger.Log.Infof("Connection closed from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())
		s.sessionManager.Remove(sess.GetID())
		wsConn.Close()
	}()

	if err := network.SendJSON(sess, network.MsgTypeWelcome, network.WelcomePayload{
		SessionID: sess.GetID(),
		ChannelID: channelID,
		UserID:    userID,
	}); err != nil {
		return
	}

	for {
		select {
		case <-s.shutdownChan:
			return
		default:
			packet, err := wsConn.ReadPacket()
			if err != nil {
				return
			}
			sess.Touch()
			s.handlePacket(sess, packet)
		}
	}
}

func (s *ChatServer) handlePacket(sess *session.Session, packet *network.Packet) {
	switch packet.MsgID {
	case network.MsgTypeHeartbeat:
	case network.MsgTypeChat:
		s.handleChat(sess, packet)
	case network.MsgTypeReact:
		s.handleReact(sess, packet, false)
	case network.MsgTypeUnreact:
		s.handleReact(sess, packet, true)
	default:
		logger.Log.Infof("Unknown message type: %d", packet.MsgID)
	}
}

func (s *ChatServer) handleChat(sess *session.Session, packet *network.Packet) {
	var req network.ChatRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		logger.Log.Warnf("Session %s sent a malformed chat packet: %v", sess.GetID(), err)
		return
	}

	s.broadcast(sess.ChannelID, network.MsgTypeChatEcho, network.ChatEchoPayload{
		ChannelID: sess.ChannelID,
		UserID:    sess.UserID,
		Name:      sess.Name,
		Text:      req.Text,
	})

	h := s.getHandler()
	if h == nil {
		return
	}
	msg := surface.Message{
		ChannelID: sess.ChannelID,
		Author:    playerOf(sess),
		Content:   req.Text,
		Mentions:  s.mentions(sess.ChannelID, req.Text),
	}
	h.HandleMessage(context.Background(), msg, func(ctx context.Context, text string) error {
		s.post(sess.ChannelID, text)
		return nil
	})
}

// mentions resolves "@name" and "@id" words against the channel members.
func (s *ChatServer) mentions(channelID, text string) []round.Player {
	var players []round.Player
	for _, word := range strings.Fields(text) {
		if !strings.HasPrefix(word, "@") {
			continue
		}
		if member, ok := s.sessionManager.FindMember(channelID, word[1:]); ok {
			players = append(players, playerOf(member))
		}
	}
	return players
}

func (s *ChatServer) handleReact(sess *session.Session, packet *network.Packet, removed bool) {
	var req network.ReactRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		logger.Log.Warnf("Session %s sent a malformed reaction: %v", sess.GetID(), err)
		return
	}

	s.mutex.Lock()
	m, exists := s.messages.Get(req.MessageID)
	if exists && m.channelID == sess.ChannelID {
		users := m.reactions[req.Symbol]
		if users == nil {
			users = make(map[string]bool)
			m.reactions[req.Symbol] = users
		}
		if removed {
			delete(users, sess.UserID)
		} else {
			users[sess.UserID] = true
		}
	}
	s.mutex.Unlock()
	if !exists || m.channelID != sess.ChannelID {
		return
	}

	if h := s.getHandler(); h != nil {
		h.HandleReaction(context.Background(), surface.Event{
			Handle:  surface.Handle{ChannelID: sess.ChannelID, MessageID: req.MessageID},
			ActorID: sess.UserID,
			Symbol:  req.Symbol,
			Removed: removed,
		})
	}
}

// post broadcasts a one-off message that is never edited or reacted to,
// such as a command reply. It is not remembered.
func (s *ChatServer) post(channelID, text string) {
	s.broadcast(channelID, network.MsgTypeMessage, messagePayload(uuid.New().String(), channelID, text, nil))
}

// Send posts a new message to a channel. The message stays addressable
// until MaxMessages newer ones have been sent.
func (s *ChatServer) Send(ctx context.Context, channelID, text string, view *round.Snapshot) (surface.Handle, error) {
	id := uuid.New().String()
	s.mutex.Lock()
	s.messages.Add(id, &chatMessage{
		channelID: channelID,
		text:      text,
		reactions: make(map[string]map[string]bool),
	})
	s.mutex.Unlock()

	s.broadcast(channelID, network.MsgTypeMessage, messagePayload(id, channelID, text, view))
	return surface.Handle{ChannelID: channelID, MessageID: id}, nil
}

func (s *ChatServer) Edit(ctx context.Context, h surface.Handle, text string, view *round.Snapshot) error {
	s.mutex.Lock()
	m, exists := s.messages.Get(h.MessageID)
	if exists {
		m.text = text
	}
	s.mutex.Unlock()
	if !exists {
		return ErrUnknownMessage
	}

	s.broadcast(h.ChannelID, network.MsgTypeEdit, messagePayload(h.MessageID, h.ChannelID, text, view))
	return nil
}

func (s *ChatServer) Reply(ctx context.Context, h surface.Handle, text string) error {
	if !s.known(h) {
		return ErrUnknownMessage
	}
	s.broadcast(h.ChannelID, network.MsgTypeReply, network.ReplyPayload{MessageID: h.MessageID, Text: text})
	return nil
}

func (s *ChatServer) AddOptions(ctx context.Context, h surface.Handle, symbols []string) error {
	s.mutex.Lock()
	m, exists := s.messages.Get(h.MessageID)
	if exists {
		m.options = append(m.options, symbols...)
	}
	s.mutex.Unlock()
	if !exists {
		return ErrUnknownMessage
	}

	s.broadcast(h.ChannelID, network.MsgTypeOptions, network.OptionsPayload{MessageID: h.MessageID, Symbols: symbols})
	return nil
}

func (s *ChatServer) RemoveOption(ctx context.Context, h surface.Handle, symbol, actorID string) error {
	s.mutex.Lock()
	m, exists := s.messages.Get(h.MessageID)
	if exists {
		delete(m.reactions[symbol], actorID)
	}
	s.mutex.Unlock()
	if !exists {
		return ErrUnknownMessage
	}

	s.broadcast(h.ChannelID, network.MsgTypeOptionRemoved, network.OptionRemovedPayload{
		MessageID: h.MessageID,
		Symbol:    symbol,
		UserID:    actorID,
	})
	return nil
}

// Reactions returns who selected symbol on a message.
func (s *ChatServer) Reactions(messageID, symbol string) []string {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	m, exists := s.messages.Peek(messageID)
	if !exists {
		return nil
	}
	var users []string
	for u := range m.reactions[symbol] {
		users = append(users, u)
	}
	return users
}

// Remembered is how many messages are kept for edits and reactions.
func (s *ChatServer) Remembered() int { return s.messages.Len() }

func (s *ChatServer) known(h surface.Handle) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.messages.Contains(h.MessageID)
}

func (s *ChatServer) broadcast(channelID string, msgID uint16, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		logger.Log.Errorf("Failed to encode message %d: %v", msgID, err)
		return
	}
	if err := s.broadcaster.BroadcastToChannel(channelID, msgID, data); err != nil && !errors.Is(err, broadcast.ErrChannelEmpty) {
		logger.Log.Warnf("Broadcast to #%s failed: %v", channelID, err)
	}
}

func messagePayload(id, channelID, text string, view *round.Snapshot) network.MessagePayload {
	p := network.MessagePayload{MessageID: id, ChannelID: channelID, Text: text, View: view}
	if view != nil {
		p.Board = render.FieldName(*view) + "\n" + render.Board(*view)
	}
	return p
}

func playerOf(sess *session.Session) round.Player {
	return round.Player{ID: sess.UserID, Name: sess.Name, Mention: "@" + sess.Name}
}
