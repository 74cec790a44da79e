package paystack

import (
	"strings"
	"testing"
)

const testSecret = "sk_test_webhook"

func TestVerifySignatureAcceptsExactBytes(t *testing.T) {
	body := []byte(`{"event":"charge.success","data":{"reference":"VG-1-x","status":"success"}}`)
	sig := Sign(body, testSecret)
	if !VerifySignature(body, sig, testSecret) {
		t.Fatal("expected signature to verify")
	}
	if !VerifySignature(body, strings.ToUpper(sig), testSecret) {
		t.Fatal("hex case should not matter")
	}
}

func TestVerifySignatureRejectsTamperedBytes(t *testing.T) {
	body := []byte(`{"event":"charge.success","data":{"reference":"VG-1-x","status":"success"}}`)
	sig := Sign(body, testSecret)

	for i := range body {
		tampered := append([]byte(nil), body...)
		tampered[i] ^= 0x01
		if VerifySignature(tampered, sig, testSecret) {
			t.Fatalf("flipping bit at %d should invalidate the signature", i)
		}
	}
}

func TestVerifySignatureRejectsReencodedJSON(t *testing.T) {
	body := []byte(`{"event": "charge.success", "data": {"reference": "VG-1-x"}}`)
	compact := []byte(`{"event":"charge.success","data":{"reference":"VG-1-x"}}`)
	if VerifySignature(compact, Sign(body, testSecret), testSecret) {
		t.Fatal("re-encoded body must not verify")
	}
}

func TestVerifySignatureRejectsGarbage(t *testing.T) {
	body := []byte(`{}`)
	cases := []struct {
		name, sig, secret string
		body              []byte
	}{
		{name: "empty signature", sig: "", secret: testSecret, body: body},
		{name: "not hex", sig: "zz", secret: testSecret, body: body},
		{name: "wrong secret", sig: Sign(body, "other"), secret: testSecret, body: body},
		{name: "empty secret", sig: Sign(body, ""), secret: "", body: body},
		{name: "empty body", sig: Sign(nil, testSecret), secret: testSecret, body: nil},
	}
	for _, tc := range cases {
		if VerifySignature(tc.body, tc.sig, tc.secret) {
			t.Fatalf("%s: expected rejection", tc.name)
		}
	}
}

func TestParseEvent(t *testing.T) {
	evt, err := ParseEvent([]byte(`{"event":"charge.success","data":{"reference":" VG-1-x ","status":"success"}}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if evt.Event != EventChargeSuccess || evt.Reference != "VG-1-x" || evt.Status != StatusSuccess {
		t.Fatalf("unexpected event %+v", evt)
	}

	if _, err := ParseEvent([]byte(`{"data":{}}`)); err == nil {
		t.Fatal("expected missing event error")
	}
	if _, err := ParseEvent([]byte(`not json`)); err == nil {
		t.Fatal("expected decode error")
	}
}
