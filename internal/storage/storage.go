// Package storage holds the process state behind small injectable
// interfaces so the webhook router never touches a concrete backend. The
// default backend is in-memory and process-lifetime only; an SQLite backend
// can be selected via DSN for users, rules, and redeemed codes.
package storage

import (
	"errors"

	"workhub/internal/model"
)

// ErrNotFound is returned when a referenced record does not exist.
var ErrNotFound = errors.New("storage: not found")

// UserStore holds per-platform-user credentials and profile metadata.
type UserStore interface {
	// PutUser inserts or overwrites the record keyed by u.ID.
	PutUser(u model.PlatformUser) error
	GetUser(id string) (model.PlatformUser, error)
	// UserByAuthCode finds the user whose login redeemed the given
	// authorization code. Used to resolve replayed OAuth callbacks.
	UserByAuthCode(code string) (model.PlatformUser, error)
	CountUsers() (int, error)
}

// RuleStore holds keyword automation rules, at most one per owner.
// AllRules iterates in insertion order; matching relies on that.
type RuleStore interface {
	PutRule(r model.AutomationRule) error
	GetRule(ownerID string) (model.AutomationRule, error)
	AllRules() ([]model.AutomationRule, error)
	CountRules() (int, error)
}

// CodeStore tracks redeemed OAuth authorization codes.
type CodeStore interface {
	// MarkUsed records the code and reports whether it had already been
	// redeemed. The mark happens before any token exchange so a replay
	// never triggers a second exchange.
	MarkUsed(code string) (already bool, err error)
}

// ConversationStore keeps the per-sender WhatsApp transcript. Append-only,
// bounded to the configured number of most recent turns.
type ConversationStore interface {
	AppendTurn(senderID string, t model.Turn)
	History(senderID string) []model.Turn
}

// AIConfigStore holds the process-wide AI configuration, swapped wholesale.
type AIConfigStore interface {
	SetAIConfig(c model.AIConfig)
	AIConfig() model.AIConfig
}

// Store bundles everything the HTTP layer and router need.
type Store interface {
	UserStore
	RuleStore
	CodeStore
	ConversationStore
	AIConfigStore
}
