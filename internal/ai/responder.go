// Package ai turns an inbound WhatsApp message into a reply using the
// configured model, keeping a bounded per-sender transcript so follow-up
// messages carry context.
package ai

import (
	"context"
	"log"
	"strings"

	"workhub/internal/model"
	"workhub/internal/storage"
)

// Fallback is returned to the sender whenever the completion fails. The
// conversation keeps alternating user/model turns either way.
const Fallback = "I apologize, but I cannot respond right now. Please try again later."

const basePersona = "You are a helpful sales AI bot. Answer everything briefly and you are handling users on WhatsApp. Be friendly and concise."

// Completer produces one reply for a transcript whose last turn is the
// newest user message.
type Completer interface {
	CompleteAIPrompt(ctx context.Context, apiKey, system string, turns []model.Turn) (string, error)
}

type Responder struct {
	completer Completer
	memory    storage.ConversationStore
}

func New(c Completer, mem storage.ConversationStore) *Responder {
	return &Responder{completer: c, memory: mem}
}

// Respond records the inbound text and asks the model for a reply. Never
// returns an empty string; failures degrade to Fallback. The reply is not
// written to the transcript here: callers record it with RecordReply once
// the send went through.
func (r *Responder) Respond(ctx context.Context, senderID, text string, cfg model.AIConfig) string {
	r.memory.AppendTurn(senderID, model.Turn{Role: model.RoleUser, Text: text})

	system := basePersona
	if s := strings.TrimSpace(cfg.SystemPrompt); s != "" {
		system = basePersona + "\n" + s
	}

	reply, err := r.completer.CompleteAIPrompt(ctx, cfg.APIKey, system, r.memory.History(senderID))
	if err != nil || reply == "" {
		log.Printf("[ai] completion failed for %s: %v", senderID, err)
		reply = Fallback
	}
	return reply
}

// RecordReply appends a delivered reply as the model turn. Called after the
// outbound send succeeded, so the transcript never claims a reply the
// sender did not receive.
func (r *Responder) RecordReply(senderID, text string) {
	r.memory.AppendTurn(senderID, model.Turn{Role: model.RoleModel, Text: text})
}
