package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
)

func TestDeliveryErrorIsRetryable(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{500, true},
		{502, true},
		{429, true},
		{400, false},
		{404, false},
		{410, false},
		{0, true}, // network error, no status
	}

	for _, tt := range tests {
		e := &DeliveryError{StatusCode: tt.status}
		if got := e.IsRetryable(); got != tt.want {
			t.Errorf("IsRetryable(status=%d) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestGenerateSignature(t *testing.T) {
	payload := []byte(`{"story_id":"abc","event":"story_completed"}`)
	secret := "topsecret"

	got := generateSignature(payload, secret)

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	want := hex.EncodeToString(mac.Sum(nil))

	if got != want {
		t.Errorf("signature = %s, want %s", got, want)
	}
	if generateSignature(payload, "other") == got {
		t.Error("different secrets must not produce the same signature")
	}
}
