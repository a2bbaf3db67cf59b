package storage

import (
	"sync"

	"workhub/internal/model"
)

// DefaultMaxTurns bounds a conversation transcript when no explicit limit
// is configured. Only the most recent turns are kept.
const DefaultMaxTurns = 100

// Memory is the default store: mutex-guarded maps that live exactly as long
// as the process. Every handler runs on its own goroutine, so all access
// goes through the lock.
type Memory struct {
	mu        sync.RWMutex
	users     map[string]model.PlatformUser
	rules     map[string]model.AutomationRule
	ruleOrder []string
	codes     map[string]struct{}
	turns     map[string][]model.Turn
	maxTurns  int
	ai        model.AIConfig
}

// NewMemory creates an empty in-memory store. maxTurns <= 0 selects
// DefaultMaxTurns.
func NewMemory(maxTurns int) *Memory {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &Memory{
		users:    make(map[string]model.PlatformUser),
		rules:    make(map[string]model.AutomationRule),
		codes:    make(map[string]struct{}),
		turns:    make(map[string][]model.Turn),
		maxTurns: maxTurns,
	}
}

func (m *Memory) PutUser(u model.PlatformUser) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	return nil
}

func (m *Memory) GetUser(id string) (model.PlatformUser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return model.PlatformUser{}, ErrNotFound
	}
	return u, nil
}

func (m *Memory) UserByAuthCode(code string) (model.PlatformUser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.AuthCode != "" && u.AuthCode == code {
			return u, nil
		}
	}
	return model.PlatformUser{}, ErrNotFound
}

func (m *Memory) CountUsers() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users), nil
}

func (m *Memory) PutRule(r model.AutomationRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rules[r.OwnerID]; !ok {
		m.ruleOrder = append(m.ruleOrder, r.OwnerID)
	}
	m.rules[r.OwnerID] = r
	return nil
}

func (m *Memory) GetRule(ownerID string) (model.AutomationRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rules[ownerID]
	if !ok {
		return model.AutomationRule{}, ErrNotFound
	}
	return r, nil
}

func (m *Memory) AllRules() ([]model.AutomationRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.AutomationRule, 0, len(m.ruleOrder))
	for _, owner := range m.ruleOrder {
		out = append(out, m.rules[owner])
	}
	return out, nil
}

func (m *Memory) CountRules() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rules), nil
}

func (m *Memory) MarkUsed(code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.codes[code]; ok {
		return true, nil
	}
	m.codes[code] = struct{}{}
	return false, nil
}

func (m *Memory) AppendTurn(senderID string, t model.Turn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	turns := append(m.turns[senderID], t)
	if len(turns) > m.maxTurns {
		turns = turns[len(turns)-m.maxTurns:]
	}
	m.turns[senderID] = turns
}

func (m *Memory) History(senderID string) []model.Turn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	turns := m.turns[senderID]
	out := make([]model.Turn, len(turns))
	copy(out, turns)
	return out
}

func (m *Memory) SetAIConfig(c model.AIConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ai = c
}

func (m *Memory) AIConfig() model.AIConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ai
}
