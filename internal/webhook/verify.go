package webhook

// VerifyHandshake checks a subscription handshake and returns the challenge
// to echo back. Only mode "subscribe" with the exact expected token passes.
func VerifyHandshake(mode, token, challenge, expected string) (string, bool) {
	if mode != "subscribe" || token != expected {
		return "", false
	}
	return challenge, true
}
