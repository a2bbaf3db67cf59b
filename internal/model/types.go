package model

import "time"

// Platform identifiers for stored credentials.
const (
	PlatformInstagram = "instagram"
	PlatformFacebook  = "facebook"
)

// Transcript roles used by the WhatsApp AI responder.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Mirror directions for dashboard live events.
const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// PlatformUser is an authorized account on one platform. Records are created
// on successful OAuth redemption and overwritten on re-login; the platform
// user id is the primary key.
type PlatformUser struct {
	ID          string    `json:"id" db:"id"`
	Platform    string    `json:"platform" db:"platform"`
	AccessToken string    `json:"-" db:"access_token"`
	Username    string    `json:"username" db:"username"`
	ProfilePic  string    `json:"profile_pic,omitempty" db:"profile_pic"`
	AuthCode    string    `json:"-" db:"auth_code"`
	LastLogin   time.Time `json:"last_login" db:"last_login"`
}

// AutomationRule is a keyword-triggered Instagram DM reply configuration.
// At most one rule per owner; saving again overwrites. Keyword matching is
// case-insensitive substring, and Response may contain a {username}
// placeholder.
type AutomationRule struct {
	OwnerID  string `json:"owner_id" db:"owner_id"`
	PostID   string `json:"post_id" db:"post_id"`
	Keyword  string `json:"keyword" db:"keyword"`
	Response string `json:"response" db:"response"`
}

// Turn is one entry in a WhatsApp conversation transcript.
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// AIConfig is the operator-supplied WhatsApp auto-reply configuration. It is
// swapped wholesale by the config endpoint and read on every inbound
// WhatsApp message. A single instance serves all WhatsApp traffic.
type AIConfig struct {
	APIKey        string `json:"api_key"`
	SystemPrompt  string `json:"system_prompt"`
	WhatsAppToken string `json:"wa_token"`
}

// Ready reports whether the auto-reply path can run at all.
func (c AIConfig) Ready() bool {
	return c.APIKey != "" && c.WhatsAppToken != ""
}

// LiveEvent is one frame pushed to the dashboard subscriber.
type LiveEvent struct {
	ID    string    `json:"id"`
	Event string    `json:"event"`
	Data  any       `json:"data"`
	At    time.Time `json:"at"`
}

// Live event names.
const (
	EventWhatsAppMessage = "whatsapp-message"
	EventMessengerEvent  = "messenger-event"
)

// WhatsAppMirror is the data payload of a "whatsapp-message" live event.
type WhatsAppMirror struct {
	From      string `json:"from"`
	Text      string `json:"text"`
	Direction string `json:"direction"`
}
