package storage

import (
	"testing"

	"workhub/internal/model"
)

func TestMemory_PutUserOverwrites(t *testing.T) {
	m := NewMemory(0)
	if err := m.PutUser(model.PlatformUser{ID: "u1", Platform: model.PlatformInstagram, AccessToken: "t1"}); err != nil {
		t.Fatalf("PutUser: %v", err)
	}
	if err := m.PutUser(model.PlatformUser{ID: "u1", Platform: model.PlatformInstagram, AccessToken: "t2"}); err != nil {
		t.Fatalf("PutUser: %v", err)
	}
	u, err := m.GetUser("u1")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if u.AccessToken != "t2" {
		t.Errorf("AccessToken = %q, want t2", u.AccessToken)
	}
	n, _ := m.CountUsers()
	if n != 1 {
		t.Errorf("CountUsers = %d, want 1", n)
	}
}

func TestMemory_GetUserNotFound(t *testing.T) {
	m := NewMemory(0)
	if _, err := m.GetUser("missing"); err != ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestMemory_UserByAuthCode(t *testing.T) {
	m := NewMemory(0)
	_ = m.PutUser(model.PlatformUser{ID: "u1", AccessToken: "t", AuthCode: "code-1"})
	u, err := m.UserByAuthCode("code-1")
	if err != nil {
		t.Fatalf("UserByAuthCode: %v", err)
	}
	if u.ID != "u1" {
		t.Errorf("ID = %q, want u1", u.ID)
	}
	if _, err := m.UserByAuthCode(""); err != ErrNotFound {
		t.Errorf("empty code should not match, got err = %v", err)
	}
}

func TestMemory_RuleOverwritePerOwner(t *testing.T) {
	m := NewMemory(0)
	_ = m.PutRule(model.AutomationRule{OwnerID: "a", PostID: "P1", Keyword: "price", Response: "r1"})
	_ = m.PutRule(model.AutomationRule{OwnerID: "b", PostID: "P2", Keyword: "info", Response: "r2"})
	_ = m.PutRule(model.AutomationRule{OwnerID: "a", PostID: "P3", Keyword: "buy", Response: "r3"})

	rules, err := m.AllRules()
	if err != nil {
		t.Fatalf("AllRules: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("len(rules) = %d, want 2", len(rules))
	}
	// Insertion order preserved, overwrite keeps the original slot.
	if rules[0].OwnerID != "a" || rules[0].PostID != "P3" {
		t.Errorf("rules[0] = %+v, want owner a with post P3", rules[0])
	}
	if rules[1].OwnerID != "b" {
		t.Errorf("rules[1].OwnerID = %q, want b", rules[1].OwnerID)
	}
}

func TestMemory_MarkUsed(t *testing.T) {
	m := NewMemory(0)
	already, err := m.MarkUsed("c1")
	if err != nil || already {
		t.Fatalf("first MarkUsed = (%v, %v), want (false, nil)", already, err)
	}
	already, err = m.MarkUsed("c1")
	if err != nil || !already {
		t.Fatalf("second MarkUsed = (%v, %v), want (true, nil)", already, err)
	}
}

func TestMemory_TranscriptBound(t *testing.T) {
	m := NewMemory(4)
	for i := 0; i < 6; i++ {
		m.AppendTurn("s", model.Turn{Role: model.RoleUser, Text: string(rune('a' + i))})
	}
	h := m.History("s")
	if len(h) != 4 {
		t.Fatalf("len(history) = %d, want 4", len(h))
	}
	if h[0].Text != "c" || h[3].Text != "f" {
		t.Errorf("history window = %v, want oldest c newest f", h)
	}
}

func TestMemory_HistoryIsCopy(t *testing.T) {
	m := NewMemory(0)
	m.AppendTurn("s", model.Turn{Role: model.RoleUser, Text: "hi"})
	h := m.History("s")
	h[0].Text = "mutated"
	if got := m.History("s")[0].Text; got != "hi" {
		t.Errorf("stored turn = %q, want hi", got)
	}
}

func TestMemory_AIConfigSwap(t *testing.T) {
	m := NewMemory(0)
	if m.AIConfig().Ready() {
		t.Error("empty config should not be ready")
	}
	m.SetAIConfig(model.AIConfig{APIKey: "k", WhatsAppToken: "w", SystemPrompt: "p"})
	got := m.AIConfig()
	if !got.Ready() || got.SystemPrompt != "p" {
		t.Errorf("AIConfig = %+v", got)
	}
	// Wholesale swap drops fields not present in the new value.
	m.SetAIConfig(model.AIConfig{APIKey: "k2"})
	if m.AIConfig().WhatsAppToken != "" {
		t.Error("swap should have cleared WhatsAppToken")
	}
}
