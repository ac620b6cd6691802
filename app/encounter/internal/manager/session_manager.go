package manager

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/model"
	"github.com/lk2023060901/xdooria-encounter/pkg/logger"
)

// ErrSessionExists 训练师已有进行中的遭遇
var ErrSessionExists = errors.New("encounter session already registered")

// Session 一次进行中的遭遇，同一会话上的动作由 Lock 串行化
type Session struct {
	mu        sync.Mutex
	encounter *model.WildEncounter
	closed    bool
}

// Lock 锁定会话
func (s *Session) Lock() { s.mu.Lock() }

// Unlock 解锁会话
func (s *Session) Unlock() { s.mu.Unlock() }

// Encounter 遭遇状态，调用方需持有会话锁
func (s *Session) Encounter() *model.WildEncounter { return s.encounter }

// Closed 会话是否已结束，调用方需持有会话锁
func (s *Session) Closed() bool { return s.closed }

// Close 标记会话结束，调用方需持有会话锁
func (s *Session) Close() { s.closed = true }

// SessionManager 会话管理器，维护训练师到进行中遭遇的映射
type SessionManager struct {
	logger logger.Logger

	mu       sync.RWMutex
	sessions map[string]*Session // trainerID -> Session
}

// NewSessionManager 创建会话管理器
func NewSessionManager(l logger.Logger) *SessionManager {
	return &SessionManager{
		logger:   l.Named("manager.session"),
		sessions: make(map[string]*Session),
	}
}

// Register 注册会话
func (m *SessionManager) Register(enc *model.WildEncounter) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[enc.OwnerID]; ok {
		return nil, errors.Wrapf(ErrSessionExists, "trainer %s", enc.OwnerID)
	}
	s := &Session{encounter: enc}
	m.sessions[enc.OwnerID] = s

	m.logger.Debug("session registered",
		"trainer_id", enc.OwnerID,
		"encounter_id", enc.ID,
	)
	return s, nil
}

// Get 获取会话
func (m *SessionManager) Get(trainerID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[trainerID]
	return s, ok
}

// Remove 注销会话，只有映射中仍是该会话时才删除
func (m *SessionManager) Remove(trainerID string, s *Session) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.sessions[trainerID]
	if !ok || cur != s {
		return false
	}
	delete(m.sessions, trainerID)

	m.logger.Debug("session unregistered",
		"trainer_id", trainerID,
	)
	return true
}

// GetAllSessions 获取所有会话
func (m *SessionManager) GetAllSessions() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	return sessions
}

// GetSessionCount 获取会话数量
func (m *SessionManager) GetSessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.sessions)
}
