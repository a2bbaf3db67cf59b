// Package auth runs the OAuth code redemption flows for Instagram and
// Facebook logins. Codes are single-use; a replayed code resolves to the
// user it originally logged in instead of triggering a second exchange.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"time"

	"workhub/internal/model"
	"workhub/internal/sender"
	"workhub/internal/storage"
)

// ErrCodeAlreadyUsed is returned when a code was redeemed before but no
// user record can be traced back to it.
var ErrCodeAlreadyUsed = errors.New("auth: authorization code already used")

// Exchanger covers the platform calls a redemption needs.
type Exchanger interface {
	ExchangeInstagramCode(ctx context.Context, appID, appSecret, redirectURI, code string) (token, userID string, err error)
	FetchInstagramProfile(ctx context.Context, accessToken string) (sender.InstagramProfile, error)
	ExchangeFacebookCode(ctx context.Context, appID, appSecret, redirectURI, code string) (string, error)
	FetchFacebookProfile(ctx context.Context, accessToken string) (sender.FacebookProfile, error)
}

// OAuthApp is one platform app registration.
type OAuthApp struct {
	ID          string
	Secret      string
	RedirectURI string
}

type Service struct {
	users     storage.UserStore
	codes     storage.CodeStore
	exchanger Exchanger
	instagram OAuthApp
	facebook  OAuthApp
}

func New(users storage.UserStore, codes storage.CodeStore, ex Exchanger, instagram, facebook OAuthApp) *Service {
	return &Service{users: users, codes: codes, exchanger: ex, instagram: instagram, facebook: facebook}
}

// InstagramAuthURL is the login URL the dashboard redirects operators to.
func (s *Service) InstagramAuthURL() string {
	q := url.Values{
		"client_id":     {s.instagram.ID},
		"redirect_uri":  {s.instagram.RedirectURI},
		"scope":         {"instagram_business_basic,instagram_business_manage_messages,instagram_business_manage_comments"},
		"response_type": {"code"},
	}
	return "https://www.instagram.com/oauth/authorize?" + q.Encode()
}

// FacebookAuthURL is the login URL for the Messenger page connection.
func (s *Service) FacebookAuthURL() string {
	q := url.Values{
		"client_id":     {s.facebook.ID},
		"redirect_uri":  {s.facebook.RedirectURI},
		"scope":         {"pages_show_list,pages_messaging,pages_read_engagement"},
		"response_type": {"code"},
	}
	return "https://www.facebook.com/v19.0/dialog/oauth?" + q.Encode()
}

// RedeemInstagramCode exchanges a login code for a token and stores the
// user. The code is marked used before the exchange; a replay returns the
// previously stored user without contacting the platform again.
func (s *Service) RedeemInstagramCode(ctx context.Context, code string) (model.PlatformUser, error) {
	already, err := s.codes.MarkUsed(code)
	if err != nil {
		return model.PlatformUser{}, fmt.Errorf("auth: mark code: %w", err)
	}
	if already {
		if u, err := s.users.UserByAuthCode(code); err == nil {
			log.Printf("[auth] instagram code replayed, returning user %s", u.ID)
			return u, nil
		}
		return model.PlatformUser{}, ErrCodeAlreadyUsed
	}

	token, userID, err := s.exchanger.ExchangeInstagramCode(ctx, s.instagram.ID, s.instagram.Secret, s.instagram.RedirectURI, code)
	if err != nil {
		return model.PlatformUser{}, err
	}
	u := model.PlatformUser{
		ID:          userID,
		Platform:    model.PlatformInstagram,
		AccessToken: token,
		AuthCode:    code,
		LastLogin:   time.Now().UTC(),
	}
	if p, err := s.exchanger.FetchInstagramProfile(ctx, token); err != nil {
		log.Printf("[auth] instagram profile fetch failed for %s: %v", userID, err)
	} else {
		if p.ID != "" {
			u.ID = p.ID
		}
		u.Username = p.Username
		u.ProfilePic = p.PictureURL
	}
	if err := s.users.PutUser(u); err != nil {
		return model.PlatformUser{}, fmt.Errorf("auth: store user: %w", err)
	}
	log.Printf("[auth] instagram user %s (@%s) logged in", u.ID, u.Username)
	return u, nil
}

// RedeemFacebookCode exchanges a Facebook login code and stores the user.
// Same replay semantics as the Instagram flow.
func (s *Service) RedeemFacebookCode(ctx context.Context, code string) (model.PlatformUser, error) {
	already, err := s.codes.MarkUsed(code)
	if err != nil {
		return model.PlatformUser{}, fmt.Errorf("auth: mark code: %w", err)
	}
	if already {
		if u, err := s.users.UserByAuthCode(code); err == nil {
			log.Printf("[auth] facebook code replayed, returning user %s", u.ID)
			return u, nil
		}
		return model.PlatformUser{}, ErrCodeAlreadyUsed
	}

	token, err := s.exchanger.ExchangeFacebookCode(ctx, s.facebook.ID, s.facebook.Secret, s.facebook.RedirectURI, code)
	if err != nil {
		return model.PlatformUser{}, err
	}
	p, err := s.exchanger.FetchFacebookProfile(ctx, token)
	if err != nil {
		return model.PlatformUser{}, err
	}
	u := model.PlatformUser{
		ID:          p.ID,
		Platform:    model.PlatformFacebook,
		AccessToken: token,
		Username:    p.Name,
		ProfilePic:  p.PictureURL,
		AuthCode:    code,
		LastLogin:   time.Now().UTC(),
	}
	if err := s.users.PutUser(u); err != nil {
		return model.PlatformUser{}, fmt.Errorf("auth: store user: %w", err)
	}
	log.Printf("[auth] facebook user %s (%s) logged in", u.ID, u.Username)
	return u, nil
}
