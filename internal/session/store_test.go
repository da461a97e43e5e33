package session

import (
	"context"
	"testing"
	"time"

	"outfit-studio/internal/catalog"
	"outfit-studio/internal/imaging"
	"outfit-studio/internal/lookgen"
	"outfit-studio/internal/orchestrator"
)

type staticClassifier struct{}

func (staticClassifier) Classify(ctx context.Context, img imaging.SourceImage) catalog.Category {
	return catalog.Male
}

type okGenerator struct{}

func (okGenerator) Generate(ctx context.Context, img imaging.SourceImage, cat catalog.Category, style catalog.Style) (lookgen.Look, error) {
	return lookgen.Look{StyleID: style.ID, StyleLabel: style.Label, ImageData: "data:image/png;base64,QQ=="}, nil
}

func newTestStore(max int) (*Store, *time.Time) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewStore(Options{
		MaxSessions: max,
		IdleTimeout: 10 * time.Minute,
		NewOrchestrator: func() *orchestrator.Orchestrator {
			return orchestrator.New(orchestrator.Options{Classifier: staticClassifier{}, Generator: okGenerator{}})
		},
	})
	s.now = func() time.Time { return now }
	return s, &now
}

func TestGetOrCreateReturnsSameSession(t *testing.T) {
	s, _ := newTestStore(10)
	a := s.GetOrCreate("tg:1:1")
	b := s.GetOrCreate("tg:1:1")
	if a != b {
		t.Fatal("expected the same session for the same key")
	}
	if a.Orchestrator() == nil {
		t.Fatal("session has no orchestrator")
	}
	if s.Len() != 1 {
		t.Fatalf("Len = %d", s.Len())
	}
}

func TestCreateUsesUniqueIDs(t *testing.T) {
	s, _ := newTestStore(10)
	if a, b := s.Create(), s.Create(); a.ID == b.ID {
		t.Fatal("duplicate session ids")
	}
}

func TestSetImageResetsRun(t *testing.T) {
	s, _ := newTestStore(10)
	sess := s.Create()
	img := imaging.SourceImage{Data: []byte("a"), MimeType: "image/jpeg"}
	sess.SetImage(img)

	if _, err := sess.Orchestrator().Run(context.Background(), sess.Image()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sess.Orchestrator().Snapshot().Status != orchestrator.StatusDone {
		t.Fatal("run did not finish")
	}

	sess.SetImage(imaging.SourceImage{Data: []byte("b")})
	snap := sess.Orchestrator().Snapshot()
	if snap.Status != orchestrator.StatusIdle || len(snap.Artifacts) != 0 {
		t.Fatalf("replacing the image should reset the run, got %+v", snap)
	}

	sess.Clear()
	if !sess.Image().Empty() {
		t.Fatal("Clear kept the image")
	}
}

func TestCapacityEvictsOldest(t *testing.T) {
	s, now := newTestStore(2)
	s.GetOrCreate("a")
	*now = now.Add(time.Minute)
	s.GetOrCreate("b")
	*now = now.Add(time.Minute)
	s.Get("a")
	*now = now.Add(time.Minute)
	s.GetOrCreate("c")

	if _, ok := s.Get("b"); ok {
		t.Fatal("least recently used session should be evicted")
	}
	if _, ok := s.Get("a"); !ok {
		t.Fatal("recently used session was evicted")
	}
	if s.Len() != 2 {
		t.Fatalf("Len = %d", s.Len())
	}
}

func TestCleanupDropsIdleSessions(t *testing.T) {
	s, now := newTestStore(10)
	s.GetOrCreate("old")
	*now = now.Add(9 * time.Minute)
	s.GetOrCreate("fresh")
	*now = now.Add(2 * time.Minute)

	if n := s.Cleanup(); n != 1 {
		t.Fatalf("Cleanup removed %d, want 1", n)
	}
	if _, ok := s.Get("old"); ok {
		t.Fatal("idle session survived cleanup")
	}
	if _, ok := s.Get("fresh"); !ok {
		t.Fatal("fresh session removed")
	}
}

func TestDeleteAndMeta(t *testing.T) {
	s, _ := newTestStore(10)
	sess := s.GetOrCreate("x")
	sess.SetInt("progress_msg", 42)
	if sess.Int("progress_msg") != 42 || sess.Int("missing") != 0 {
		t.Fatal("meta round trip failed")
	}
	if !s.Delete("x") || s.Delete("x") {
		t.Fatal("Delete should report presence once")
	}
}
