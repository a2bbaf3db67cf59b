// Package webhook decodes platform delivery payloads and routes them to
// automation, the AI responder, and the live dashboard feed. Delivery
// handlers acknowledge before dispatch; everything here runs after the 200.
package webhook

import "encoding/json"

// InstagramPayload is the comment-change envelope delivered for subscribed
// Instagram accounts. Only field "comments" changes are acted on.
type InstagramPayload struct {
	Object string           `json:"object"`
	Entry  []InstagramEntry `json:"entry"`
}

type InstagramEntry struct {
	ID      string            `json:"id"`
	Changes []InstagramChange `json:"changes"`
}

type InstagramChange struct {
	Field string       `json:"field"`
	Value CommentValue `json:"value"`
}

// CommentValue carries the commented media id, the comment text, and the
// commenter's handle used for the reply DM.
type CommentValue struct {
	MediaID  string `json:"media_id"`
	Text     string `json:"text"`
	Username string `json:"username"`
}

// WhatsAppPayload is the Cloud API message envelope. Status-only deliveries
// carry no Messages and are ignored.
type WhatsAppPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []WhatsAppMessage `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type WhatsAppMessage struct {
	From string `json:"from"`
	Type string `json:"type"`
	Text struct {
		Body string `json:"body"`
	} `json:"text"`
}

// MessengerPayload keeps each messaging event raw; the dashboard receives
// them verbatim and interprets the shapes itself.
type MessengerPayload struct {
	Object string `json:"object"`
	Entry  []struct {
		Messaging []json.RawMessage `json:"messaging"`
	} `json:"entry"`
}
