package main

import (
	"log"
	"net/http"

	"workhub/internal/ai"
	"workhub/internal/auth"
	"workhub/internal/config"
	httpapi "workhub/internal/http"
	"workhub/internal/live"
	"workhub/internal/sender"
	"workhub/internal/storage"
	"workhub/internal/webhook"
)

func main() {
	cfg := config.Load()

	var store storage.Store
	if cfg.DBDSN != "" {
		db, err := storage.Open(cfg.DBDSN, cfg.MemoryMaxTurns)
		if err != nil {
			log.Fatal(err)
		}
		defer db.Close()
		store = db
		log.Println("[main] sqlite backend:", cfg.DBDSN)
	} else {
		store = storage.NewMemory(cfg.MemoryMaxTurns)
		log.Println("[main] in-memory backend")
	}

	gw := sender.New(cfg.Instagram.AppID, cfg.WhatsApp.PhoneNumberID)
	hub := live.NewHub()
	responder := ai.New(gw, store)

	events := &webhook.Router{
		Users:     store,
		Rules:     store,
		Config:    store,
		Sender:    gw,
		Responder: responder,
		Sink:      hub,
	}

	authSvc := auth.New(store, store, gw,
		auth.OAuthApp{ID: cfg.Instagram.AppID, Secret: cfg.Instagram.AppSecret, RedirectURI: cfg.Instagram.RedirectURI},
		auth.OAuthApp{ID: cfg.Facebook.AppID, Secret: cfg.Facebook.AppSecret, RedirectURI: cfg.Facebook.RedirectURI})

	router := httpapi.NewRouter(cfg, store, gw, authSvc, events, hub)

	log.Println("HTTP listening on :" + cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, router); err != nil {
		log.Fatal(err)
	}
}
