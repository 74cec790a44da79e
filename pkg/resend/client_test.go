package resend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	pkgerrors "github.com/obedyakpa0-dev/VitalAndGreen/pkg/errors"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func TestSendPostsEmail(t *testing.T) {
	var captured Email
	var url, auth string
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		url = req.URL.String()
		auth = req.Header.Get("Authorization")
		body, _ := io.ReadAll(req.Body)
		if err := json.Unmarshal(body, &captured); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader(`{"id":"msg_1"}`)), Header: http.Header{}}, nil
	})

	client, err := NewClient("re_key", WithBaseURL("http://resend.test"), WithHTTPClient(&http.Client{Transport: rt}))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	id, err := client.Send(context.Background(), Email{
		From:    "Vital Green <hello@vitalgreen.test>",
		To:      []string{"owner@vitalgreen.test"},
		Subject: "New contact message",
		Text:    "hi",
		ReplyTo: "ama@example.com",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if id != "msg_1" || url != "http://resend.test/emails" || auth != "Bearer re_key" {
		t.Fatalf("unexpected request id=%s url=%s auth=%s", id, url, auth)
	}
	if captured.ReplyTo != "ama@example.com" || len(captured.To) != 1 {
		t.Fatalf("unexpected payload %+v", captured)
	}
}

func TestSendMapsProviderFailure(t *testing.T) {
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusUnprocessableEntity, Body: io.NopCloser(strings.NewReader(`{"message":"bad from"}`)), Header: http.Header{}}, nil
	})
	client, _ := NewClient("re_key", WithHTTPClient(&http.Client{Transport: rt}))
	_, err := client.Send(context.Background(), Email{From: "a@b.co", To: []string{"c@d.co"}, Subject: "s"})
	if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient(""); err == nil {
		t.Fatal("expected error")
	}
}
