package webhook

import (
	"testing"
)

func TestVerifySignature(t *testing.T) {
	secret := "test-secret-key"
	body := []byte(`{"id":123,"status":"processing"}`)
	validSig := Sign(body, secret)

	tests := []struct {
		name      string
		body      []byte
		signature string
		secret    string
		want      bool
	}{
		{
			name:      "valid signature",
			body:      body,
			signature: validSig,
			secret:    secret,
			want:      true,
		},
		{
			name:      "tampered body",
			body:      []byte(`{"id":999,"status":"processing"}`),
			signature: validSig,
			secret:    secret,
			want:      false,
		},
		{
			name:      "wrong secret",
			body:      body,
			signature: validSig,
			secret:    "wrong-secret",
			want:      false,
		},
		{
			name:      "signature for different secret",
			body:      body,
			signature: Sign(body, "other"),
			secret:    secret,
			want:      false,
		},
		{
			name:      "not base64",
			body:      body,
			signature: "!!!not-base64!!!",
			secret:    secret,
			want:      false,
		},
		{
			name:      "empty signature",
			body:      body,
			signature: "",
			secret:    secret,
			want:      false,
		},
		{
			name:      "empty secret bypasses verification",
			body:      body,
			signature: "anything at all",
			secret:    "",
			want:      true,
		},
		{
			name:      "empty secret and empty signature",
			body:      body,
			signature: "",
			secret:    "",
			want:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := VerifySignature(tt.body, tt.signature, tt.secret)
			if got != tt.want {
				t.Errorf("VerifySignature() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSignRoundTrip(t *testing.T) {
	body := []byte(`{"id":"42"}`)
	if !VerifySignature(body, Sign(body, "s3cret"), "s3cret") {
		t.Error("signature produced by Sign should verify against the same secret")
	}
}
