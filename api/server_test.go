package api

import (
	"net/http"
	"testing"

	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/config"
)

func TestNewServerUsesPortOverride(t *testing.T) {
	cfg := &config.Config{}
	cfg.App.Port = "5000"

	t.Setenv("PORT", "")
	if got := NewServer(cfg, http.NotFoundHandler()).Addr; got != ":5000" {
		t.Fatalf("unexpected addr %q", got)
	}

	t.Setenv("PORT", "8080")
	srv := NewServer(cfg, http.NotFoundHandler())
	if srv.Addr != ":8080" {
		t.Fatalf("unexpected addr %q", srv.Addr)
	}
	if srv.ReadHeaderTimeout == 0 || srv.WriteTimeout == 0 {
		t.Fatalf("expected timeouts to be set")
	}
}
