package httpapi

import (
	"context"
	"io"
	"log"
	"net/http"

	"workhub/internal/webhook"
)

// Deliveries are capped well above any real platform payload.
const maxDeliveryBytes = 1 << 20

// handleVerify answers the subscription handshake by echoing the challenge.
func (a *API) handleVerify(expected string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		challenge, ok := webhook.VerifyHandshake(q.Get("hub.mode"), q.Get("hub.verify_token"), q.Get("hub.challenge"), expected)
		if !ok {
			log.Printf("[api] webhook verification failed for %s", r.URL.Path)
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(challenge))
	}
}

// handleDelivery acknowledges immediately and processes in the background.
// The platform retries deliveries that are not answered with a 200, so the
// ack never waits on parsing or downstream sends.
func (a *API) handleDelivery(platform string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxDeliveryBytes))
		if err != nil {
			log.Printf("[api] %s delivery read: %v", platform, err)
			w.WriteHeader(http.StatusOK)
			return
		}
		signature := r.Header.Get("X-Hub-Signature-256")
		w.WriteHeader(http.StatusOK)
		go a.Events.Dispatch(context.Background(), platform, signature, body)
	}
}
