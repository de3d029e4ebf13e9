// broadcast/broadcast.go
package broadcast

import (
	"errors"

	"github.com/wfunc/connect4bot/logger"
	"github.com/wfunc/connect4bot/session"
)

var (
	ErrChannelEmpty = errors.New("no one is connected to the channel")
)

// 广播接口
type Broadcaster interface {
	BroadcastToChannel(channelID string, msgID uint16, data []byte) error
	BroadcastToAll(msgID uint16, data []byte) error
	BroadcastToUsers(userIDs []string, msgID uint16, data []byte) error
}

// 基于频道的广播器
type ChannelBroadcaster struct {
	sessionManager *session.Manager
}

func NewChannelBroadcaster(sessionManager *session.Manager) *ChannelBroadcaster {
	return &ChannelBroadcaster{
		sessionManager: sessionManager,
	}
}

// BroadcastToChannel sends to every session in the channel. A failed send
// to one session does not stop the others.
func (b *ChannelBroadcaster) BroadcastToChannel(channelID string, msgID uint16, data []byte) error {
	sessions := b.sessionManager.InChannel(channelID)
	if len(sessions) == 0 {
		return ErrChannelEmpty
	}
	b.sendAll(sessions, msgID, data)
	return nil
}

func (b *ChannelBroadcaster) BroadcastToAll(msgID uint16, data []byte) error {
	b.sendAll(b.sessionManager.All(), msgID, data)
	return nil
}

func (b *ChannelBroadcaster) BroadcastToUsers(userIDs []string, msgID uint16, data []byte) error {
	for _, userID := range userIDs {
		b.sendAll(b.sessionManager.GetByUserID(userID), msgID, data)
	}
	return nil
}

func (b *ChannelBroadcaster) sendAll(sessions []*session.Session, msgID uint16, data []byte) {
	for _, s := range sessions {
		if err := s.Send(msgID, data); err != nil {
			// 发送失败的连接由读循环负责清理
			logger.Log.Debugw("broadcast send failed", "session", s.ID, "msg", msgID, "error", err)
		}
	}
}
