package webhook

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"

	"workhub/internal/model"
	"workhub/internal/storage"
)

// Platform labels accepted by Dispatch.
const (
	PlatformInstagram = "instagram"
	PlatformWhatsApp  = "whatsapp"
	PlatformMessenger = "messenger"
)

// Sender covers the outbound operations the router triggers.
type Sender interface {
	SendInstagramDM(ctx context.Context, igUserID, accessToken, username, text string) error
	SendWhatsAppMessage(ctx context.Context, token, to, text string) error
}

// Responder produces the WhatsApp auto-reply. Respond never returns an
// empty string; RecordReply is invoked only after the reply was delivered.
type Responder interface {
	Respond(ctx context.Context, senderID, text string, cfg model.AIConfig) string
	RecordReply(senderID, text string)
}

// Sink receives dashboard events. Publishing must never block dispatch.
type Sink interface {
	Publish(e model.LiveEvent)
}

// Router processes acknowledged webhook deliveries. Every handler tolerates
// malformed bodies; a delivery that cannot be decoded is logged and dropped.
type Router struct {
	Users     storage.UserStore
	Rules     storage.RuleStore
	Config    storage.AIConfigStore
	Sender    Sender
	Responder Responder
	Sink      Sink
}

// Dispatch routes one delivery body by platform. Called after the HTTP
// handler has already acknowledged with 200.
func (rt *Router) Dispatch(ctx context.Context, platform, signature string, body []byte) {
	switch platform {
	case PlatformInstagram:
		rt.handleInstagram(ctx, body)
	case PlatformWhatsApp:
		rt.handleWhatsApp(ctx, body)
	case PlatformMessenger:
		rt.handleMessenger(signature, body)
	default:
		log.Printf("[webhook] unknown platform %q", platform)
	}
}

func (rt *Router) handleInstagram(ctx context.Context, body []byte) {
	var p InstagramPayload
	if err := json.Unmarshal(body, &p); err != nil {
		log.Printf("[webhook] instagram: bad payload: %v", err)
		return
	}
	rules, err := rt.Rules.AllRules()
	if err != nil {
		log.Printf("[webhook] instagram: load rules: %v", err)
		return
	}
	for _, entry := range p.Entry {
		for _, change := range entry.Changes {
			if change.Field != "comments" {
				continue
			}
			v := change.Value
			for _, rule := range Match(v.MediaID, v.Text, rules) {
				owner, err := rt.Users.GetUser(rule.OwnerID)
				if err != nil || owner.AccessToken == "" {
					continue
				}
				msg := RenderTemplate(rule.Response, v.Username)
				if err := rt.Sender.SendInstagramDM(ctx, rule.OwnerID, owner.AccessToken, v.Username, msg); err != nil {
					log.Printf("[webhook] instagram: dm to %s failed: %v", v.Username, err)
					continue
				}
				log.Printf("[webhook] instagram: sent dm to %s for media %s", v.Username, v.MediaID)
			}
		}
	}
}

func (rt *Router) handleWhatsApp(ctx context.Context, body []byte) {
	var p WhatsAppPayload
	if err := json.Unmarshal(body, &p); err != nil {
		log.Printf("[webhook] whatsapp: bad payload: %v", err)
		return
	}
	cfg := rt.Config.AIConfig()
	for _, entry := range p.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				if msg.Text.Body == "" {
					continue
				}
				rt.publish(model.EventWhatsAppMessage, model.WhatsAppMirror{
					From:      msg.From,
					Text:      msg.Text.Body,
					Direction: model.DirectionIn,
				})
				if !cfg.Ready() {
					log.Printf("[webhook] whatsapp: message from %s dropped, no AI assignment", msg.From)
					continue
				}
				reply := rt.Responder.Respond(ctx, msg.From, msg.Text.Body, cfg)
				if err := rt.Sender.SendWhatsAppMessage(ctx, cfg.WhatsAppToken, msg.From, reply); err != nil {
					log.Printf("[webhook] whatsapp: reply to %s failed: %v", msg.From, err)
					continue
				}
				rt.Responder.RecordReply(msg.From, reply)
				rt.publish(model.EventWhatsAppMessage, model.WhatsAppMirror{
					From:      "🤖 AI Assistant",
					Text:      reply,
					Direction: model.DirectionOut,
				})
			}
		}
	}
}

func (rt *Router) handleMessenger(signature string, body []byte) {
	if signature == "" {
		log.Printf("[webhook] messenger: missing signature, ignoring delivery")
		return
	}
	var p MessengerPayload
	if err := json.Unmarshal(body, &p); err != nil {
		log.Printf("[webhook] messenger: bad payload: %v", err)
		return
	}
	if p.Object != "page" {
		return
	}
	for _, entry := range p.Entry {
		for _, raw := range entry.Messaging {
			rt.publish(model.EventMessengerEvent, raw)
		}
	}
}

func (rt *Router) publish(event string, data any) {
	if rt.Sink == nil {
		return
	}
	rt.Sink.Publish(model.LiveEvent{
		ID:    uuid.NewString(),
		Event: event,
		Data:  data,
		At:    time.Now().UTC(),
	})
}
