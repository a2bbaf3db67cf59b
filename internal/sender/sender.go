// Package sender wraps every outbound HTTP call the hub makes: Meta Graph
// sends for Instagram DMs, Messenger, and WhatsApp Business, the Instagram
// Graph read proxies, OAuth code redemption, and the Gemini completion
// endpoint. Each call is fire-once with its own timeout; retry policy
// belongs to callers, and none of them retry. Mirroring sent traffic to the
// dashboard is also the caller's job, never the gateway's.
package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Default API hosts; overridable for tests.
const (
	defaultGraphBase  = "https://graph.facebook.com"
	defaultIGGraph    = "https://graph.instagram.com"
	defaultIGAuthBase = "https://api.instagram.com"
)

// Per-call timeouts. Instagram DM sends get a longer budget because the
// platform is slow to resolve usernames.
const (
	instagramDMTimeout = 15 * time.Second
	defaultTimeout     = 30 * time.Second
)

// Gateway is the outbound transport. It holds no hub state.
type Gateway struct {
	Client *http.Client

	GraphBase  string
	IGGraph    string
	IGAuthBase string

	InstagramAppID string
	PhoneNumberID  string
}

// New creates a Gateway with production endpoints.
func New(instagramAppID, phoneNumberID string) *Gateway {
	return &Gateway{
		Client:         &http.Client{Timeout: defaultTimeout},
		GraphBase:      defaultGraphBase,
		IGGraph:        defaultIGGraph,
		IGAuthBase:     defaultIGAuthBase,
		InstagramAppID: instagramAppID,
		PhoneNumberID:  phoneNumberID,
	}
}

// graphError is the nested error envelope Meta APIs return on non-2xx.
type graphError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// normalizeError prefers the platform's nested error.message and falls back
// to a generic operation+status string.
func normalizeError(op string, status int, body []byte) error {
	var ge graphError
	if err := json.Unmarshal(body, &ge); err == nil && ge.Error.Message != "" {
		return errors.New(ge.Error.Message)
	}
	return fmt.Errorf("%s: status %d", op, status)
}

func (g *Gateway) doJSON(ctx context.Context, method, rawURL, bearer string, headers map[string]string, payload, out any, op string) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("%s: encode: %w", op, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := g.Client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer res.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s: read body: %w", op, err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return normalizeError(op, res.StatusCode, raw)
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("%s: decode: %w", op, err)
		}
	}
	return nil
}

func (g *Gateway) igHeaders() map[string]string {
	return map[string]string{"X-IG-App-ID": g.InstagramAppID}
}

// --- message sends ---

type textMessage struct {
	Text string `json:"text"`
}

// SendInstagramDM sends a direct message from the given Instagram business
// account to a username.
func (g *Gateway) SendInstagramDM(ctx context.Context, igUserID, accessToken, username, text string) error {
	ctx, cancel := context.WithTimeout(ctx, instagramDMTimeout)
	defer cancel()
	payload := map[string]any{
		"recipient": map[string]string{"username": username},
		"message":   textMessage{Text: text},
	}
	u := fmt.Sprintf("%s/v19.0/%s/messages", g.GraphBase, igUserID)
	return g.doJSON(ctx, http.MethodPost, u, accessToken, nil, payload, nil, "instagram dm")
}

// SendMessengerMessage sends a page message to a PSID.
func (g *Gateway) SendMessengerMessage(ctx context.Context, pageToken, recipientID, text string) error {
	payload := map[string]any{
		"recipient": map[string]string{"id": recipientID},
		"message":   textMessage{Text: text},
	}
	u := g.GraphBase + "/v19.0/me/messages"
	return g.doJSON(ctx, http.MethodPost, u, pageToken, nil, payload, nil, "messenger send")
}

// SendWhatsAppMessage sends a text message through the WhatsApp Business
// Cloud API using the configured phone number id.
func (g *Gateway) SendWhatsAppMessage(ctx context.Context, token, to, text string) error {
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "text",
		"text":              map[string]string{"body": text},
	}
	u := fmt.Sprintf("%s/v17.0/%s/messages", g.GraphBase, g.PhoneNumberID)
	return g.doJSON(ctx, http.MethodPost, u, token, nil, payload, nil, "whatsapp send")
}

// --- Instagram read proxies ---

// Post is a processed Instagram media item for the dashboard.
type Post struct {
	ID        string `json:"id"`
	Caption   string `json:"caption"`
	MediaURL  string `json:"media_url"`
	MediaType string `json:"media_type"`
}

// ListPosts fetches the account's media. Videos report their thumbnail as
// the media URL so the dashboard can render a preview.
func (g *Gateway) ListPosts(ctx context.Context, accessToken string) ([]Post, error) {
	var resp struct {
		Data []struct {
			ID           string `json:"id"`
			Caption      string `json:"caption"`
			MediaURL     string `json:"media_url"`
			MediaType    string `json:"media_type"`
			ThumbnailURL string `json:"thumbnail_url"`
		} `json:"data"`
	}
	u := fmt.Sprintf("%s/v19.0/me/media?fields=id,caption,media_url,media_type,thumbnail_url&access_token=%s",
		g.IGGraph, url.QueryEscape(accessToken))
	if err := g.doJSON(ctx, http.MethodGet, u, "", g.igHeaders(), nil, &resp, "instagram posts"); err != nil {
		return nil, err
	}
	posts := make([]Post, 0, len(resp.Data))
	for _, p := range resp.Data {
		mediaURL := p.MediaURL
		if p.MediaType == "VIDEO" {
			mediaURL = p.ThumbnailURL
		}
		posts = append(posts, Post{ID: p.ID, Caption: p.Caption, MediaURL: mediaURL, MediaType: p.MediaType})
	}
	return posts, nil
}

// Comment is one Instagram comment on a post.
type Comment struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Username  string `json:"username"`
	Timestamp string `json:"timestamp"`
}

// ListComments fetches the comments of one post.
func (g *Gateway) ListComments(ctx context.Context, accessToken, postID string) ([]Comment, error) {
	var resp struct {
		Data []Comment `json:"data"`
	}
	u := fmt.Sprintf("%s/v19.0/%s/comments?fields=id,text,username,timestamp&access_token=%s",
		g.IGGraph, url.PathEscape(postID), url.QueryEscape(accessToken))
	if err := g.doJSON(ctx, http.MethodGet, u, "", g.igHeaders(), nil, &resp, "instagram comments"); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// --- Messenger read proxies ---

// Page is a managed Facebook page with its own access token.
type Page struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	AccessToken string `json:"access_token"`
}

// ErrNoPage is returned when the user manages no pages.
var ErrNoPage = errors.New("no managed pages")

// GetPage resolves the first page the user token manages.
func (g *Gateway) GetPage(ctx context.Context, userToken string) (Page, error) {
	var resp struct {
		Data []Page `json:"data"`
	}
	u := g.GraphBase + "/me/accounts?access_token=" + url.QueryEscape(userToken)
	if err := g.doJSON(ctx, http.MethodGet, u, "", nil, nil, &resp, "page lookup"); err != nil {
		return Page{}, err
	}
	if len(resp.Data) == 0 {
		return Page{}, ErrNoPage
	}
	return resp.Data[0], nil
}

// ListConversations returns the conversation ids of a page.
func (g *Gateway) ListConversations(ctx context.Context, pageID, pageToken string) ([]string, error) {
	var resp struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	u := fmt.Sprintf("%s/%s/conversations?access_token=%s", g.GraphBase, url.PathEscape(pageID), url.QueryEscape(pageToken))
	if err := g.doJSON(ctx, http.MethodGet, u, "", nil, nil, &resp, "conversations"); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(resp.Data))
	for _, c := range resp.Data {
		ids = append(ids, c.ID)
	}
	return ids, nil
}

// ConversationRecipient resolves the participant of a conversation that is
// not selfID (the page or the logged-in user).
func (g *Gateway) ConversationRecipient(ctx context.Context, conversationID, pageToken, selfID string) (string, error) {
	var resp struct {
		Participants struct {
			Data []struct {
				ID string `json:"id"`
			} `json:"data"`
		} `json:"participants"`
	}
	u := fmt.Sprintf("%s/%s?fields=participants&access_token=%s", g.GraphBase, url.PathEscape(conversationID), url.QueryEscape(pageToken))
	if err := g.doJSON(ctx, http.MethodGet, u, "", nil, nil, &resp, "conversation participants"); err != nil {
		return "", err
	}
	for _, p := range resp.Participants.Data {
		if p.ID != selfID {
			return p.ID, nil
		}
	}
	return "", errors.New("recipient not found")
}

// UserInfo is a Graph profile lookup result.
type UserInfo struct {
	Name    string
	Picture string
}

// GetUserInfo fetches name and picture for a PSID.
func (g *Gateway) GetUserInfo(ctx context.Context, userID, pageToken string) (UserInfo, error) {
	var resp struct {
		Name    string `json:"name"`
		Picture struct {
			Data struct {
				URL string `json:"url"`
			} `json:"data"`
		} `json:"picture"`
	}
	u := fmt.Sprintf("%s/%s?fields=name,picture&access_token=%s", g.GraphBase, url.PathEscape(userID), url.QueryEscape(pageToken))
	if err := g.doJSON(ctx, http.MethodGet, u, "", nil, nil, &resp, "user info"); err != nil {
		return UserInfo{}, err
	}
	return UserInfo{Name: resp.Name, Picture: resp.Picture.Data.URL}, nil
}

// GraphMessage is one message inside a Messenger conversation.
type GraphMessage struct {
	Message     string `json:"message"`
	CreatedTime string `json:"created_time"`
	From        struct {
		ID string `json:"id"`
	} `json:"from"`
}

// ListMessages fetches the messages of one conversation, newest first as
// the Graph API returns them.
func (g *Gateway) ListMessages(ctx context.Context, conversationID, pageToken string) ([]GraphMessage, error) {
	var resp struct {
		Data []GraphMessage `json:"data"`
	}
	u := fmt.Sprintf("%s/%s/messages?fields=message,from,created_time&access_token=%s",
		g.GraphBase, url.PathEscape(conversationID), url.QueryEscape(pageToken))
	if err := g.doJSON(ctx, http.MethodGet, u, "", nil, nil, &resp, "messages"); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// --- OAuth redemption ---

// ExchangeInstagramCode redeems an authorization code for an access token
// and the platform-assigned user id.
func (g *Gateway) ExchangeInstagramCode(ctx context.Context, appID, appSecret, redirectURI, code string) (token, userID string, err error) {
	form := url.Values{
		"client_id":     {appID},
		"client_secret": {appSecret},
		"grant_type":    {"authorization_code"},
		"redirect_uri":  {redirectURI},
		"code":          {code},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.IGAuthBase+"/oauth/access_token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", "", fmt.Errorf("instagram token exchange: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-IG-App-ID", appID)
	res, err := g.Client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("instagram token exchange: %w", err)
	}
	defer res.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return "", "", fmt.Errorf("instagram token exchange: read body: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return "", "", normalizeError("instagram token exchange", res.StatusCode, raw)
	}
	var resp struct {
		AccessToken string      `json:"access_token"`
		UserID      json.Number `json:"user_id"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", "", fmt.Errorf("instagram token exchange: decode: %w", err)
	}
	if resp.AccessToken == "" {
		return "", "", errors.New("invalid token response")
	}
	return resp.AccessToken, resp.UserID.String(), nil
}

// InstagramProfile is the authenticated account's own profile.
type InstagramProfile struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	PictureURL string `json:"profile_picture_url"`
}

// FetchInstagramProfile loads the profile of the token owner.
func (g *Gateway) FetchInstagramProfile(ctx context.Context, accessToken string) (InstagramProfile, error) {
	var p InstagramProfile
	u := g.IGGraph + "/me?fields=id,username,profile_picture_url&access_token=" + url.QueryEscape(accessToken)
	if err := g.doJSON(ctx, http.MethodGet, u, "", g.igHeaders(), nil, &p, "instagram profile"); err != nil {
		return InstagramProfile{}, err
	}
	return p, nil
}

// ExchangeFacebookCode redeems a Facebook login code for a user token.
func (g *Gateway) ExchangeFacebookCode(ctx context.Context, appID, appSecret, redirectURI, code string) (string, error) {
	var resp struct {
		AccessToken string `json:"access_token"`
	}
	u := fmt.Sprintf("%s/v19.0/oauth/access_token?client_id=%s&redirect_uri=%s&client_secret=%s&code=%s",
		g.GraphBase, url.QueryEscape(appID), url.QueryEscape(redirectURI), url.QueryEscape(appSecret), url.QueryEscape(code))
	if err := g.doJSON(ctx, http.MethodGet, u, "", nil, nil, &resp, "facebook token exchange"); err != nil {
		return "", err
	}
	if resp.AccessToken == "" {
		return "", errors.New("invalid token response")
	}
	return resp.AccessToken, nil
}

// FacebookProfile is the authenticated Facebook user's profile.
type FacebookProfile struct {
	ID         string
	Name       string
	PictureURL string
}

// FetchFacebookProfile loads the profile of the token owner.
func (g *Gateway) FetchFacebookProfile(ctx context.Context, accessToken string) (FacebookProfile, error) {
	var resp struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Picture struct {
			Data struct {
				URL string `json:"url"`
			} `json:"data"`
		} `json:"picture"`
	}
	u := g.GraphBase + "/me?fields=id,name,picture&access_token=" + url.QueryEscape(accessToken)
	if err := g.doJSON(ctx, http.MethodGet, u, "", nil, nil, &resp, "facebook profile"); err != nil {
		return FacebookProfile{}, err
	}
	return FacebookProfile{ID: resp.ID, Name: resp.Name, PictureURL: resp.Picture.Data.URL}, nil
}
