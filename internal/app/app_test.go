package app

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"outfit-studio/internal/catalog"
	"outfit-studio/internal/config"
)

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		level     string
		debugSeen bool
		infoSeen  bool
	}{
		{"debug", true, true},
		{"info", false, true},
		{"warn", false, false},
		{"bogus", false, true},
	}
	for _, tc := range tests {
		t.Run(tc.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := newLogger(&buf, tc.level)
			logger.Debug("dbg")
			logger.Info("inf")

			out := buf.String()
			if strings.Contains(out, `"msg":"dbg"`) != tc.debugSeen {
				t.Errorf("debug seen = %v, want %v", !tc.debugSeen, tc.debugSeen)
			}
			if strings.Contains(out, `"msg":"inf"`) != tc.infoSeen {
				t.Errorf("info seen = %v, want %v", !tc.infoSeen, tc.infoSeen)
			}
		})
	}
}

func TestNewSessionStoreBuildsIdleOrchestrators(t *testing.T) {
	cfg := config.Config{
		GeminiAPIKey:       "k",
		BatchSize:          3,
		ClassifyCacheTTL:   time.Minute,
		MaxSessions:        2,
		SessionIdleTimeout: time.Minute,
	}
	store := NewSessionStore(cfg, http.DefaultClient, catalog.Default(), nil)

	sess := store.Create()
	if sess.Orchestrator() == nil {
		t.Fatal("no orchestrator")
	}
	if st := sess.Orchestrator().Snapshot().Status; st.Running() {
		t.Fatalf("fresh session is %s", st)
	}
	if _, err := sess.Orchestrator().Run(context.Background(), sess.Image()); err == nil {
		t.Fatal("running without an image should fail")
	}
}
