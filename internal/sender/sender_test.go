package sender

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testGateway(srvURL string) *Gateway {
	g := New("ig-app-1", "657991800734493")
	g.GraphBase = srvURL
	g.IGGraph = srvURL
	g.IGAuthBase = srvURL
	return g
}

func TestSendWhatsAppMessage_PayloadAndAuth(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"messages":[{"id":"wamid.x"}]}`))
	}))
	defer srv.Close()

	g := testGateway(srv.URL)
	if err := g.SendWhatsAppMessage(context.Background(), "wa-token", "628123", "halo"); err != nil {
		t.Fatalf("SendWhatsAppMessage: %v", err)
	}
	if gotPath != "/v17.0/657991800734493/messages" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer wa-token" {
		t.Errorf("auth = %q", gotAuth)
	}
	if gotBody["messaging_product"] != "whatsapp" || gotBody["to"] != "628123" {
		t.Errorf("body = %v", gotBody)
	}
	text, _ := gotBody["text"].(map[string]any)
	if text["body"] != "halo" {
		t.Errorf("text.body = %v", text["body"])
	}
}

func TestSendInstagramDM_RecipientByUsername(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v19.0/17841400/messages" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"message_id":"m1"}`))
	}))
	defer srv.Close()

	g := testGateway(srv.URL)
	if err := g.SendInstagramDM(context.Background(), "17841400", "tok", "alice", "hi alice"); err != nil {
		t.Fatalf("SendInstagramDM: %v", err)
	}
	recipient, _ := gotBody["recipient"].(map[string]any)
	if recipient["username"] != "alice" {
		t.Errorf("recipient = %v", gotBody["recipient"])
	}
}

func TestNormalizeError_PrefersNestedMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"(#100) recipient not found","type":"OAuthException","code":100}}`))
	}))
	defer srv.Close()

	g := testGateway(srv.URL)
	err := g.SendMessengerMessage(context.Background(), "tok", "psid", "hi")
	if err == nil {
		t.Fatal("expected error")
	}
	if err.Error() != "(#100) recipient not found" {
		t.Errorf("err = %q, want nested platform message", err.Error())
	}
}

func TestNormalizeError_GenericFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`upstream exploded`))
	}))
	defer srv.Close()

	g := testGateway(srv.URL)
	err := g.SendWhatsAppMessage(context.Background(), "tok", "1", "x")
	if err == nil {
		t.Fatal("expected error")
	}
	if got := err.Error(); got != "whatsapp send: status 502" {
		t.Errorf("err = %q", got)
	}
}

func TestListPosts_VideoUsesThumbnail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-IG-App-ID"); got != "ig-app-1" {
			t.Errorf("X-IG-App-ID = %q", got)
		}
		w.Write([]byte(`{"data":[
			{"id":"p1","caption":"a photo","media_url":"http://cdn/p1.jpg","media_type":"IMAGE"},
			{"id":"p2","caption":"a clip","media_url":"http://cdn/p2.mp4","media_type":"VIDEO","thumbnail_url":"http://cdn/p2.jpg"}
		]}`))
	}))
	defer srv.Close()

	g := testGateway(srv.URL)
	posts, err := g.ListPosts(context.Background(), "tok")
	if err != nil {
		t.Fatalf("ListPosts: %v", err)
	}
	if len(posts) != 2 {
		t.Fatalf("len = %d", len(posts))
	}
	if posts[0].MediaURL != "http://cdn/p1.jpg" {
		t.Errorf("image media_url = %q", posts[0].MediaURL)
	}
	if posts[1].MediaURL != "http://cdn/p2.jpg" {
		t.Errorf("video media_url = %q, want thumbnail", posts[1].MediaURL)
	}
}

func TestGetPage_NoPages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	g := testGateway(srv.URL)
	if _, err := g.GetPage(context.Background(), "tok"); err != ErrNoPage {
		t.Errorf("err = %v, want ErrNoPage", err)
	}
}

func TestExchangeInstagramCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth/access_token" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("ParseForm: %v", err)
		}
		if r.PostForm.Get("grant_type") != "authorization_code" || r.PostForm.Get("code") != "c-1" {
			t.Errorf("form = %v", r.PostForm)
		}
		// user_id arrives as a JSON number from the platform
		w.Write([]byte(`{"access_token":"IGQ-abc","user_id":17841400000000001}`))
	}))
	defer srv.Close()

	g := testGateway(srv.URL)
	token, userID, err := g.ExchangeInstagramCode(context.Background(), "app", "secret", "https://cb", "c-1")
	if err != nil {
		t.Fatalf("ExchangeInstagramCode: %v", err)
	}
	if token != "IGQ-abc" || userID != "17841400000000001" {
		t.Errorf("got (%q, %q)", token, userID)
	}
}

func TestConversationRecipient_SkipsSelf(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"participants":{"data":[{"id":"page-1"},{"id":"user-9"}]}}`))
	}))
	defer srv.Close()

	g := testGateway(srv.URL)
	got, err := g.ConversationRecipient(context.Background(), "t_1", "tok", "page-1")
	if err != nil {
		t.Fatalf("ConversationRecipient: %v", err)
	}
	if got != "user-9" {
		t.Errorf("recipient = %q, want user-9", got)
	}
}
