// session/session.go
package session

import (
	"sync"
	"time"

	"github.com/wfunc/connect4bot/network"
)

// Session is one websocket client sitting in one chat channel.
type Session struct {
	ID         string
	Conn       network.Connection
	UserID     string
	Name       string
	ChannelID  string
	CreatedAt  time.Time
	lastActive time.Time
	mutex      sync.RWMutex
}

func NewSession(id string, conn network.Connection, userID, name, channelID string) *Session {
	now := time.Now()
	return &Session{
		ID:         id,
		Conn:       conn,
		UserID:     userID,
		Name:       name,
		ChannelID:  channelID,
		CreatedAt:  now,
		lastActive: now,
	}
}

func (s *Session) Send(msgID uint16, data []byte) error {
	return s.Conn.Send(msgID, data)
}

// Touch records inbound activity.
func (s *Session) Touch() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.lastActive = time.Now()
}

func (s *Session) LastActive() time.Time {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.lastActive
}

func (s *Session) GetID() string {
	return s.ID
}

func (s *Session) Close() error {
	return s.Conn.Close()
}

// Session管理器
type Manager struct {
	sessions map[string]*Session
	mutex    sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) Add(session *Session) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sessions[session.ID] = session
}

func (m *Manager) Remove(sessionID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.sessions, sessionID)
}

func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	session, exists := m.sessions[sessionID]
	return session, exists
}

func (m *Manager) GetByUserID(userID string) []*Session {
	return m.filter(func(s *Session) bool { return s.UserID == userID })
}

// InChannel returns the sessions connected to a channel.
func (m *Manager) InChannel(channelID string) []*Session {
	return m.filter(func(s *Session) bool { return s.ChannelID == channelID })
}

// FindMember resolves a user in a channel by id or display name.
func (m *Manager) FindMember(channelID, who string) (*Session, bool) {
	for _, s := range m.InChannel(channelID) {
		if s.UserID == who || s.Name == who {
			return s, true
		}
	}
	return nil, false
}

func (m *Manager) All() []*Session {
	return m.filter(func(*Session) bool { return true })
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}

func (m *Manager) filter(keep func(*Session) bool) []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var result []*Session
	for _, session := range m.sessions {
		if keep(session) {
			result = append(result, session)
		}
	}
	return result
}
