// Package payment wraps the external payment gateway as a verification
// oracle: the core only ever asks "is this payment assertion genuine". The
// gateway signs {order_ref}|{payment_ref} with HMAC-SHA256; webhooks are
// signed over the raw body.
package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

var (
	ErrNotConfigured = errors.New("payment gateway is not configured")

	// ErrVerificationFailed means the assertion was rejected. A rejected
	// assertion is never retried; the client has to start a fresh payment.
	ErrVerificationFailed = errors.New("payment signature verification failed")
)

// Assertion is the client-supplied proof of a completed gateway payment.
type Assertion struct {
	OrderRef   string
	PaymentRef string
	Signature  string
}

type Gateway struct {
	KeyID         string
	KeySecret     string
	WebhookSecret string

	// ForceSuccess skips signature checks for local development. Ignored
	// whenever LiveMode is set, so a stray env var can't disable
	// verification in production.
	ForceSuccess bool
	LiveMode     bool
}

func (g *Gateway) IsConfigured() bool {
	return g.KeyID != "" && g.KeySecret != ""
}

// Verify checks a payment assertion. nil means verified; ErrVerificationFailed
// means the gateway rejected it.
func (g *Gateway) Verify(a Assertion) error {
	if g.ForceSuccess && !g.LiveMode {
		return nil
	}
	if !g.IsConfigured() {
		return ErrNotConfigured
	}
	if a.OrderRef == "" || a.PaymentRef == "" || a.Signature == "" {
		return ErrVerificationFailed
	}

	expected := g.sign(g.KeySecret, a.OrderRef+"|"+a.PaymentRef)
	if !hmac.Equal([]byte(expected), []byte(a.Signature)) {
		return ErrVerificationFailed
	}
	return nil
}

// VerifyWebhook authenticates a raw webhook body against its signature
// header.
func (g *Gateway) VerifyWebhook(body []byte, signatureHeader string) bool {
	if g.ForceSuccess && !g.LiveMode {
		return true
	}
	if g.WebhookSecret == "" || signatureHeader == "" {
		return false
	}
	expected := g.sign(g.WebhookSecret, string(body))
	return hmac.Equal([]byte(expected), []byte(signatureHeader))
}

// Sign produces the signature the gateway would attach to a payment
// assertion. Used by tests and by the development simulator.
func (g *Gateway) Sign(orderRef, paymentRef string) string {
	return g.sign(g.KeySecret, orderRef+"|"+paymentRef)
}

func (g *Gateway) sign(secret, message string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}
