package session

import (
	"net"
	"testing"
	"time"

	"github.com/wfunc/connect4bot/network"
)

// MockConnection is a test double for the network.Connection interface.
type MockConnection struct{}

func (m *MockConnection) Send(msgID uint16, data []byte) error { return nil }
func (m *MockConnection) Close() error                         { return nil }
func (m *MockConnection) RemoteAddr() net.Addr                 { return &net.TCPAddr{} }
func (m *MockConnection) SetHeartbeat(interval time.Duration)  {}
func (m *MockConnection) ReadPacket() (*network.Packet, error) { return nil, nil }

func TestNewManager(t *testing.T) {
	manager := NewManager()
	if manager == nil {
		t.Fatal("NewManager should not return nil")
	}
	if manager.sessions == nil {
		t.Fatal("NewManager should initialize the sessions map")
	}
}

func TestManager_Add_Get_Remove(t *testing.T) {
	manager := NewManager()
	sessionID := "test_session_1"
	sess := NewSession(sessionID, &MockConnection{}, "u1", "alice", "lobby")

	manager.Add(sess)
	if manager.Count() != 1 {
		t.Fatalf("Expected session count to be 1, got %d", manager.Count())
	}

	retrievedSess, exists := manager.Get(sessionID)
	if !exists {
		t.Fatal("Get should find the added session")
	}
	if retrievedSess != sess {
		t.Fatal("Get should return the same session instance")
	}

	manager.Remove(sessionID)
	if manager.Count() != 0 {
		t.Fatalf("Expected session count to be 0 after removal, got %d", manager.Count())
	}

	_, exists = manager.Get(sessionID)
	if exists {
		t.Fatal("Get should not find the removed session")
	}
}

func TestManager_GetByUserID(t *testing.T) {
	manager := NewManager()

	manager.Add(NewSession("session1", &MockConnection{}, "100", "alice", "lobby"))
	manager.Add(NewSession("session2", &MockConnection{}, "200", "bob", "lobby"))
	manager.Add(NewSession("session3", &MockConnection{}, "100", "alice", "games"))

	if got := len(manager.GetByUserID("100")); got != 2 {
		t.Errorf("Expected 2 sessions for user 100, got %d", got)
	}
	if got := len(manager.GetByUserID("200")); got != 1 {
		t.Errorf("Expected 1 session for user 200, got %d", got)
	}
	if got := len(manager.GetByUserID("300")); got != 0 {
		t.Errorf("Expected 0 sessions for user 300, got %d", got)
	}
}

func TestManager_Channels(t *testing.T) {
	manager := NewManager()
	manager.Add(NewSession("s1", &MockConnection{}, "100", "alice", "lobby"))
	manager.Add(NewSession("s2", &MockConnection{}, "200", "bob", "lobby"))
	manager.Add(NewSession("s3", &MockConnection{}, "300", "carol", "games"))

	if got := len(manager.InChannel("lobby")); got != 2 {
		t.Errorf("Expected 2 sessions in lobby, got %d", got)
	}

	s, ok := manager.FindMember("lobby", "bob")
	if !ok || s.UserID != "200" {
		t.Errorf("Expected to find bob by name, got %v", s)
	}
	s, ok = manager.FindMember("lobby", "100")
	if !ok || s.Name != "alice" {
		t.Errorf("Expected to find alice by id, got %v", s)
	}
	if _, ok := manager.FindMember("lobby", "carol"); ok {
		t.Error("carol is in another channel")
	}
}

func TestSession_Touch(t *testing.T) {
	sess := NewSession("s", &MockConnection{}, "u", "n", "c")
	before := sess.LastActive()
	time.Sleep(time.Millisecond)
	sess.Touch()
	if !sess.LastActive().After(before) {
		t.Error("Touch should move LastActive forward")
	}
}
