package auth

import (
	"context"
	"errors"
	"strings"
	"testing"

	"workhub/internal/model"
	"workhub/internal/sender"
	"workhub/internal/storage"
)

type fakeExchanger struct {
	igExchanges int
	fbExchanges int
	igErr       error
}

func (f *fakeExchanger) ExchangeInstagramCode(ctx context.Context, appID, appSecret, redirectURI, code string) (string, string, error) {
	f.igExchanges++
	if f.igErr != nil {
		return "", "", f.igErr
	}
	return "ig-token", "17841400", nil
}

func (f *fakeExchanger) FetchInstagramProfile(ctx context.Context, token string) (sender.InstagramProfile, error) {
	return sender.InstagramProfile{ID: "17841400", Username: "alice", PictureURL: "http://cdn/alice.jpg"}, nil
}

func (f *fakeExchanger) ExchangeFacebookCode(ctx context.Context, appID, appSecret, redirectURI, code string) (string, error) {
	f.fbExchanges++
	return "fb-token", nil
}

func (f *fakeExchanger) FetchFacebookProfile(ctx context.Context, token string) (sender.FacebookProfile, error) {
	return sender.FacebookProfile{ID: "fb-1", Name: "Bob Page", PictureURL: "http://cdn/bob.jpg"}, nil
}

func newTestService(ex Exchanger) (*Service, *storage.Memory) {
	mem := storage.NewMemory(0)
	s := New(mem, mem, ex,
		OAuthApp{ID: "ig-app", Secret: "ig-secret", RedirectURI: "https://hub/auth/instagram/callback"},
		OAuthApp{ID: "fb-app", Secret: "fb-secret", RedirectURI: "https://hub/auth/facebook/callback"})
	return s, mem
}

func TestRedeemInstagramCode(t *testing.T) {
	ex := &fakeExchanger{}
	s, mem := newTestService(ex)

	u, err := s.RedeemInstagramCode(context.Background(), "code-1")
	if err != nil {
		t.Fatalf("RedeemInstagramCode: %v", err)
	}
	if u.ID != "17841400" || u.Username != "alice" || u.AccessToken != "ig-token" {
		t.Errorf("user = %+v", u)
	}
	if u.Platform != model.PlatformInstagram {
		t.Errorf("platform = %q", u.Platform)
	}
	if n, _ := mem.CountUsers(); n != 1 {
		t.Errorf("CountUsers = %d", n)
	}
}

func TestRedeemInstagramCode_ReplayReturnsExistingUser(t *testing.T) {
	ex := &fakeExchanger{}
	s, _ := newTestService(ex)

	first, err := s.RedeemInstagramCode(context.Background(), "code-1")
	if err != nil {
		t.Fatalf("first redeem: %v", err)
	}
	second, err := s.RedeemInstagramCode(context.Background(), "code-1")
	if err != nil {
		t.Fatalf("replay redeem: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("replay returned %q, want %q", second.ID, first.ID)
	}
	if ex.igExchanges != 1 {
		t.Errorf("exchanges = %d, want exactly 1", ex.igExchanges)
	}
}

func TestRedeemInstagramCode_UsedCodeWithoutUser(t *testing.T) {
	ex := &fakeExchanger{}
	s, mem := newTestService(ex)

	// The code was burned but the exchange behind it never stored a user.
	if _, err := mem.MarkUsed("code-x"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.RedeemInstagramCode(context.Background(), "code-x"); !errors.Is(err, ErrCodeAlreadyUsed) {
		t.Errorf("err = %v, want ErrCodeAlreadyUsed", err)
	}
	if ex.igExchanges != 0 {
		t.Errorf("exchanges = %d, want 0", ex.igExchanges)
	}
}

func TestRedeemFacebookCode(t *testing.T) {
	ex := &fakeExchanger{}
	s, _ := newTestService(ex)

	u, err := s.RedeemFacebookCode(context.Background(), "fb-code")
	if err != nil {
		t.Fatalf("RedeemFacebookCode: %v", err)
	}
	if u.Platform != model.PlatformFacebook || u.Username != "Bob Page" {
		t.Errorf("user = %+v", u)
	}

	again, err := s.RedeemFacebookCode(context.Background(), "fb-code")
	if err != nil || again.ID != u.ID {
		t.Errorf("replay = (%+v, %v)", again, err)
	}
	if ex.fbExchanges != 1 {
		t.Errorf("exchanges = %d, want 1", ex.fbExchanges)
	}
}

func TestAuthURLs(t *testing.T) {
	s, _ := newTestService(&fakeExchanger{})

	ig := s.InstagramAuthURL()
	if !strings.HasPrefix(ig, "https://www.instagram.com/oauth/authorize?") {
		t.Errorf("instagram url = %q", ig)
	}
	if !strings.Contains(ig, "client_id=ig-app") || !strings.Contains(ig, "response_type=code") {
		t.Errorf("instagram url missing params: %q", ig)
	}

	fb := s.FacebookAuthURL()
	if !strings.HasPrefix(fb, "https://www.facebook.com/v19.0/dialog/oauth?") {
		t.Errorf("facebook url = %q", fb)
	}
}
