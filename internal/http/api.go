package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/skip2/go-qrcode"

	"workhub/internal/auth"
	"workhub/internal/config"
	"workhub/internal/live"
	"workhub/internal/model"
	"workhub/internal/sender"
	"workhub/internal/storage"
	"workhub/internal/webhook"
)

type API struct {
	Cfg     config.Config
	Store   storage.Store
	Gateway *sender.Gateway
	Auth    *auth.Service
	Events  *webhook.Router
	Hub     *live.Hub
	Router  *chi.Mux

	started time.Time
}

func NewRouter(cfg config.Config, store storage.Store, gw *sender.Gateway, authSvc *auth.Service, events *webhook.Router, hub *live.Hub) *chi.Mux {
	api := &API{
		Cfg:     cfg,
		Store:   store,
		Gateway: gw,
		Auth:    authSvc,
		Events:  events,
		Hub:     hub,
		Router:  chi.NewRouter(),
		started: time.Now(),
	}
	r := api.Router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))
	r.Use(cors)

	api.routes()
	return r
}

func (a *API) routes() {
	r := a.Router

	// Platform webhooks: GET is the subscription handshake, POST a delivery.
	r.Get("/webhook/instagram", a.handleVerify(a.Cfg.WebhookVerifyToken))
	r.Post("/webhook/instagram", a.handleDelivery(webhook.PlatformInstagram))
	r.Get("/webhook/whatsapp", a.handleVerify(a.Cfg.WhatsApp.VerifyToken))
	r.Post("/webhook/whatsapp", a.handleDelivery(webhook.PlatformWhatsApp))
	r.Get("/webhook/messenger", a.handleVerify(a.Cfg.WebhookVerifyToken))
	r.Post("/webhook/messenger", a.handleDelivery(webhook.PlatformMessenger))

	// WhatsApp AI assignment and manual sends
	r.Post("/api/whatsapp/config", a.handleWhatsAppConfig)
	r.Post("/api/whatsapp/send", a.handleWhatsAppSend)
	r.Post("/api/whatsapp/send-manual", a.handleWhatsAppSendManual)
	r.Get("/api/whatsapp/setup-qr", a.handleSetupQR)

	// Instagram automation and content proxies
	r.Post("/api/instagram/configure", a.handleInstagramConfigure)
	r.Post("/api/instagram/send-dm", a.handleInstagramSendDM)
	r.Get("/api/instagram/posts", a.handleInstagramPosts)
	r.Get("/api/instagram/comments", a.handleInstagramComments)

	// Messenger inbox proxies
	r.Get("/api/messenger/conversations", a.handleMessengerConversations)
	r.Get("/api/messenger/messages", a.handleMessengerMessages)
	r.Post("/api/messenger/send", a.handleMessengerSend)

	r.Get("/api/user-info", a.handleUserInfo)
	r.Get("/api/stats", a.handleStats)
	r.Get("/health", a.handleHealth)
	r.Get("/debug", a.handleDebug)

	// Operator logins
	r.Get("/auth/instagram", a.handleInstagramAuth)
	r.Get("/auth/instagram/callback", a.handleInstagramCallback)
	r.Get("/auth/facebook", a.handleFacebookAuth)
	r.Get("/auth/facebook/callback", a.handleFacebookCallback)

	// Dashboard live feed
	r.Get("/ws", a.handleWS)
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type whatsappConfigReq struct {
	APIKey       string `json:"apiKey"`
	GeminiKey    string `json:"geminiKey"` // legacy field name
	SystemPrompt string `json:"systemPrompt"`
	WAToken      string `json:"waToken"`
}

func (a *API) handleWhatsAppConfig(w http.ResponseWriter, r *http.Request) {
	var req whatsappConfigReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	key := req.APIKey
	if key == "" {
		key = req.GeminiKey
	}
	if key == "" || req.WAToken == "" {
		writeErr(w, http.StatusBadRequest, "apiKey and waToken required")
		return
	}
	a.Store.SetAIConfig(model.AIConfig{
		APIKey:        key,
		SystemPrompt:  req.SystemPrompt,
		WhatsAppToken: req.WAToken,
	})
	log.Println("[api] whatsapp AI assignment updated")
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type whatsappSendReq struct {
	Token   string `json:"token"`
	To      string `json:"to"`
	Message string `json:"message"`
}

// handleWhatsAppSend sends with a caller-supplied token, independent of the
// stored AI assignment.
func (a *API) handleWhatsAppSend(w http.ResponseWriter, r *http.Request) {
	var req whatsappSendReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Token == "" || req.To == "" || req.Message == "" {
		writeErr(w, http.StatusBadRequest, "token, to and message required")
		return
	}
	if err := a.Gateway.SendWhatsAppMessage(r.Context(), req.Token, req.To, req.Message); err != nil {
		writeErr(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleWhatsAppSendManual is the operator takeover path: the send is
// mirrored to the dashboard and recorded in the transcript so the AI keeps
// context.
func (a *API) handleWhatsAppSendManual(w http.ResponseWriter, r *http.Request) {
	var req whatsappSendReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.To == "" || req.Message == "" {
		writeErr(w, http.StatusBadRequest, "to and message required")
		return
	}
	cfg := a.Store.AIConfig()
	if cfg.WhatsAppToken == "" {
		writeErr(w, http.StatusBadRequest, "no WhatsApp token configured")
		return
	}
	if err := a.Gateway.SendWhatsAppMessage(r.Context(), cfg.WhatsAppToken, req.To, req.Message); err != nil {
		writeErr(w, http.StatusBadGateway, err.Error())
		return
	}
	a.Store.AppendTurn(req.To, model.Turn{Role: model.RoleModel, Text: req.Message})
	a.publish(model.EventWhatsAppMessage, model.WhatsAppMirror{
		From:      "You",
		Text:      req.Message,
		Direction: model.DirectionOut,
	})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleSetupQR renders the webhook URL and verify token as a QR image so
// the values can be scanned straight into the platform console setup.
func (a *API) handleSetupQR(w http.ResponseWriter, r *http.Request) {
	target := a.Cfg.PublicBaseURL + "/webhook/whatsapp\nverify_token: " + a.Cfg.WhatsApp.VerifyToken
	png, err := qrcode.Encode(target, qrcode.Medium, 256)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

type instagramConfigureReq struct {
	UserID   string `json:"userId"`
	PostID   string `json:"postId"`
	Keyword  string `json:"keyword"`
	Response string `json:"response"`
}

func (a *API) handleInstagramConfigure(w http.ResponseWriter, r *http.Request) {
	var req instagramConfigureReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.UserID == "" || req.PostID == "" || req.Keyword == "" || req.Response == "" {
		writeErr(w, http.StatusBadRequest, "userId, postId, keyword and response required")
		return
	}
	if _, err := a.Store.GetUser(req.UserID); err != nil {
		writeErr(w, http.StatusNotFound, "user not logged in")
		return
	}
	rule := model.AutomationRule{
		OwnerID:  req.UserID,
		PostID:   req.PostID,
		Keyword:  req.Keyword,
		Response: req.Response,
	}
	if err := a.Store.PutRule(rule); err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	log.Printf("[api] automation rule set for %s on post %s", req.UserID, req.PostID)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "configuration": rule})
}

type instagramDMReq struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Message  string `json:"message"`
}

func (a *API) handleInstagramSendDM(w http.ResponseWriter, r *http.Request) {
	var req instagramDMReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.UserID == "" || req.Username == "" || req.Message == "" {
		writeErr(w, http.StatusBadRequest, "userId, username and message required")
		return
	}
	user, err := a.Store.GetUser(req.UserID)
	if err != nil {
		writeErr(w, http.StatusNotFound, "user not logged in")
		return
	}
	if err := a.Gateway.SendInstagramDM(r.Context(), user.ID, user.AccessToken, req.Username, req.Message); err != nil {
		writeErr(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (a *API) handleInstagramPosts(w http.ResponseWriter, r *http.Request) {
	user, ok := a.userFromQuery(w, r)
	if !ok {
		return
	}
	posts, err := a.Gateway.ListPosts(r.Context(), user.AccessToken)
	if err != nil {
		writeErr(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"posts": posts})
}

func (a *API) handleInstagramComments(w http.ResponseWriter, r *http.Request) {
	user, ok := a.userFromQuery(w, r)
	if !ok {
		return
	}
	postID := r.URL.Query().Get("postId")
	if postID == "" {
		writeErr(w, http.StatusBadRequest, "postId required")
		return
	}
	comments, err := a.Gateway.ListComments(r.Context(), user.AccessToken, postID)
	if err != nil {
		writeErr(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"comments": comments})
}

func (a *API) handleMessengerConversations(w http.ResponseWriter, r *http.Request) {
	user, ok := a.userFromQuery(w, r)
	if !ok {
		return
	}
	page, err := a.Gateway.GetPage(r.Context(), user.AccessToken)
	if err != nil {
		if errors.Is(err, sender.ErrNoPage) {
			writeErr(w, http.StatusNotFound, "no managed page")
			return
		}
		writeErr(w, http.StatusBadGateway, err.Error())
		return
	}
	convos, err := a.Gateway.ListConversations(r.Context(), page.ID, page.AccessToken)
	if err != nil {
		writeErr(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": convos, "pageId": page.ID})
}

func (a *API) handleMessengerMessages(w http.ResponseWriter, r *http.Request) {
	user, ok := a.userFromQuery(w, r)
	if !ok {
		return
	}
	conversationID := r.URL.Query().Get("id")
	if conversationID == "" {
		writeErr(w, http.StatusBadRequest, "id required")
		return
	}
	page, err := a.Gateway.GetPage(r.Context(), user.AccessToken)
	if err != nil {
		writeErr(w, http.StatusBadGateway, err.Error())
		return
	}
	msgs, err := a.Gateway.ListMessages(r.Context(), conversationID, page.AccessToken)
	if err != nil {
		writeErr(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

type messengerSendReq struct {
	UserID  string `json:"userId"`
	ID      string `json:"id"` // conversation id
	Message string `json:"message"`
}

func (a *API) handleMessengerSend(w http.ResponseWriter, r *http.Request) {
	var req messengerSendReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.UserID == "" || req.ID == "" || req.Message == "" {
		writeErr(w, http.StatusBadRequest, "userId, id and message required")
		return
	}
	user, err := a.Store.GetUser(req.UserID)
	if err != nil {
		writeErr(w, http.StatusNotFound, "user not logged in")
		return
	}
	page, err := a.Gateway.GetPage(r.Context(), user.AccessToken)
	if err != nil {
		writeErr(w, http.StatusBadGateway, err.Error())
		return
	}
	recipient, err := a.Gateway.ConversationRecipient(r.Context(), req.ID, page.AccessToken, page.ID)
	if err != nil {
		writeErr(w, http.StatusBadGateway, err.Error())
		return
	}
	if err := a.Gateway.SendMessengerMessage(r.Context(), page.AccessToken, recipient, req.Message); err != nil {
		writeErr(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "recipientId": recipient})
}

func (a *API) handleUserInfo(w http.ResponseWriter, r *http.Request) {
	user, ok := a.userFromQuery(w, r)
	if !ok {
		return
	}
	senderID := r.URL.Query().Get("senderId")
	if senderID == "" {
		writeJSON(w, http.StatusOK, map[string]any{"user": user})
		return
	}
	page, err := a.Gateway.GetPage(r.Context(), user.AccessToken)
	if err != nil {
		writeErr(w, http.StatusBadGateway, err.Error())
		return
	}
	info, err := a.Gateway.GetUserInfo(r.Context(), senderID, page.AccessToken)
	if err != nil {
		writeErr(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"name": info.Name, "profilePic": info.Picture})
}

func (a *API) handleStats(w http.ResponseWriter, r *http.Request) {
	users, err := a.Store.CountUsers()
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	rules, err := a.Store.CountRules()
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"instagramUsers": users,
		"configurations": rules,
		"messagesSent":   0,
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":     true,
		"uptime": time.Since(a.started).Round(time.Second).String(),
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (a *API) handleDebug(w http.ResponseWriter, r *http.Request) {
	users, _ := a.Store.CountUsers()
	rules, _ := a.Store.CountRules()
	cfg := a.Store.AIConfig()
	writeJSON(w, http.StatusOK, map[string]any{
		"users":              users,
		"configurations":     rules,
		"aiAssigned":         cfg.Ready(),
		"dashboardConnected": a.Hub.Connected(),
	})
}

func (a *API) handleInstagramAuth(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, a.Auth.InstagramAuthURL(), http.StatusFound)
}

func (a *API) handleInstagramCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		writeErr(w, http.StatusBadRequest, "code required")
		return
	}
	user, err := a.Auth.RedeemInstagramCode(r.Context(), code)
	if err != nil {
		if errors.Is(err, auth.ErrCodeAlreadyUsed) {
			writeErr(w, http.StatusBadRequest, "authorization code already used")
			return
		}
		writeErr(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "user": user})
}

func (a *API) handleFacebookAuth(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, a.Auth.FacebookAuthURL(), http.StatusFound)
}

func (a *API) handleFacebookCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		writeErr(w, http.StatusBadRequest, "code required")
		return
	}
	user, err := a.Auth.RedeemFacebookCode(r.Context(), code)
	if err != nil {
		if errors.Is(err, auth.ErrCodeAlreadyUsed) {
			writeErr(w, http.StatusBadRequest, "authorization code already used")
			return
		}
		writeErr(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "user": user})
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (a *API) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[api] ws upgrade: %v", err)
		return
	}
	a.Hub.Attach(conn)
	log.Println("[api] dashboard connected")
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
		a.Hub.Detach(conn)
		log.Println("[api] dashboard disconnected")
	}()
}

func (a *API) userFromQuery(w http.ResponseWriter, r *http.Request) (model.PlatformUser, bool) {
	id := r.URL.Query().Get("userId")
	if id == "" {
		writeErr(w, http.StatusBadRequest, "userId required")
		return model.PlatformUser{}, false
	}
	user, err := a.Store.GetUser(id)
	if err != nil {
		writeErr(w, http.StatusNotFound, "user not logged in")
		return model.PlatformUser{}, false
	}
	return user, true
}

func (a *API) publish(event string, data any) {
	a.Hub.Publish(model.LiveEvent{
		ID:    uuid.NewString(),
		Event: event,
		Data:  data,
		At:    time.Now().UTC(),
	})
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	if err := enc.Encode(v); err != nil {
		log.Println("writeJSON err:", err)
	}
}
