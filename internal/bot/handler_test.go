package bot

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"outfit-studio/internal/catalog"
	"outfit-studio/internal/imaging"
	"outfit-studio/internal/lookgen"
	"outfit-studio/internal/orchestrator"
	"outfit-studio/internal/session"
	"outfit-studio/internal/telegram"
)

type fakeMessenger struct {
	mu        sync.Mutex
	texts     []string
	sent      []string
	edits     map[int][]string
	answers   []string
	albums    [][]telegram.Photo
	nextMsgID int
	download  []byte
	albumSent chan struct{}
}

func newFakeMessenger(t *testing.T) *fakeMessenger {
	t.Helper()
	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	img.Set(1, 1, color.RGBA{R: 200, A: 255})
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return &fakeMessenger{
		edits:     make(map[int][]string),
		nextMsgID: 100,
		download:  buf.Bytes(),
		albumSent: make(chan struct{}, 4),
	}
}

func (f *fakeMessenger) SendText(chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return nil
}

func (f *fakeMessenger) SendMessage(chatID int64, text string, kb *tgbotapi.InlineKeyboardMarkup) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextMsgID++
	f.sent = append(f.sent, text)
	return f.nextMsgID, nil
}

func (f *fakeMessenger) EditText(chatID int64, messageID int, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits[messageID] = append(f.edits[messageID], text)
	return nil
}

func (f *fakeMessenger) AnswerCallback(callbackID, text string, alert bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, text)
	return nil
}

func (f *fakeMessenger) SendAlbum(chatID int64, photos []telegram.Photo) error {
	f.mu.Lock()
	f.albums = append(f.albums, photos)
	f.mu.Unlock()
	f.albumSent <- struct{}{}
	return nil
}

func (f *fakeMessenger) SendTyping(chatID int64) {}

func (f *fakeMessenger) DownloadFile(ctx context.Context, fileID string) ([]byte, string, error) {
	if fileID == "broken" {
		return nil, "", errors.New("boom")
	}
	return f.download, "image/png", nil
}

func (f *fakeMessenger) lastEdit(msgID int) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := f.edits[msgID]
	if len(e) == 0 {
		return ""
	}
	return e[len(e)-1]
}

func (f *fakeMessenger) lastText() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.texts) == 0 {
		return ""
	}
	return f.texts[len(f.texts)-1]
}

type stubClassifier struct{ cat catalog.Category }

func (s stubClassifier) Classify(ctx context.Context, img imaging.SourceImage) catalog.Category {
	return s.cat
}

type stubGenerator struct {
	fail    map[string]bool
	release chan struct{}
}

func (g stubGenerator) Generate(ctx context.Context, img imaging.SourceImage, cat catalog.Category, style catalog.Style) (lookgen.Look, error) {
	if g.release != nil {
		select {
		case <-g.release:
		case <-ctx.Done():
			return lookgen.Look{}, ctx.Err()
		}
	}
	if g.fail[style.ID] {
		return lookgen.Look{}, errors.New("upstream said no")
	}
	return lookgen.Look{StyleID: style.ID, StyleLabel: style.Label, ImageData: "data:image/png;base64,QUJD", CreatedAt: time.Now()}, nil
}

func newTestHandler(t *testing.T, gen stubGenerator) (*Handler, *fakeMessenger) {
	t.Helper()
	fm := newFakeMessenger(t)
	store := session.NewStore(session.Options{
		NewOrchestrator: func() *orchestrator.Orchestrator {
			return orchestrator.New(orchestrator.Options{
				Classifier: stubClassifier{cat: catalog.Female},
				Generator:  gen,
			})
		},
	})
	h := New(Options{
		Telegram:         fm,
		Sessions:         store,
		Prepare:          imaging.PrepareOptions{MaxDimension: 1024, JPEGQuality: 80},
		ProgressDebounce: 5 * time.Millisecond,
	})
	return h, fm
}

func photoUpdate(chatID, userID int64, fileID string) telegram.Update {
	return telegram.Update{Message: &tgbotapi.Message{
		Chat:  &tgbotapi.Chat{ID: chatID},
		From:  &tgbotapi.User{ID: userID},
		Photo: []tgbotapi.PhotoSize{{FileID: "small"}, {FileID: fileID}},
	}}
}

func commandUpdate(chatID, userID int64, command string) telegram.Update {
	text := "/" + command
	return telegram.Update{Message: &tgbotapi.Message{
		Chat:     &tgbotapi.Chat{ID: chatID},
		From:     &tgbotapi.User{ID: userID},
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}},
	}}
}

func callbackUpdate(chatID, fromID int64, data string) telegram.Update {
	return telegram.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cq",
		From:    &tgbotapi.User{ID: fromID},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: chatID}},
		Data:    data,
	}}
}

func waitAlbum(t *testing.T, fm *fakeMessenger) {
	t.Helper()
	select {
	case <-fm.albumSent:
	case <-time.After(3 * time.Second):
		t.Fatal("album was not sent")
	}
}

func TestPhotoThenGenerateSendsAlbumInDisplayOrder(t *testing.T) {
	h, fm := newTestHandler(t, stubGenerator{fail: map[string]bool{"f2": true}})
	ctx := context.Background()

	if err := h.HandleUpdate(ctx, photoUpdate(1, 7, "big")); err != nil {
		t.Fatalf("photo: %v", err)
	}
	sess, ok := h.sessions.Get(sessionKey(1, 7))
	if !ok || sess.Image().Empty() {
		t.Fatal("photo was not stored in the session")
	}
	if sess.Image().MimeType != "image/jpeg" {
		t.Fatalf("stored mime = %q, want re-encoded jpeg", sess.Image().MimeType)
	}

	if err := h.HandleUpdate(ctx, callbackUpdate(1, 7, cb(7, actionGenerate))); err != nil {
		t.Fatalf("generate: %v", err)
	}
	waitAlbum(t, fm)

	fm.mu.Lock()
	album := fm.albums[0]
	fm.mu.Unlock()

	want := catalog.Default().FilterByCategory(catalog.Female)
	if len(album) != len(want)-1 {
		t.Fatalf("album has %d photos, want %d", len(album), len(want)-1)
	}
	j := 0
	for _, s := range want {
		if s.ID == "f2" {
			continue
		}
		if album[j].Caption != s.Label {
			t.Fatalf("album[%d] = %q, want %q", j, album[j].Caption, s.Label)
		}
		j++
	}

	progressID := sess.Int(progressMessageKey)
	if got := fm.lastEdit(progressID); !strings.HasPrefix(got, "✅ Done! 8 of 9") {
		t.Fatalf("final progress text = %q", got)
	}
}

func TestGenerateWithoutPhoto(t *testing.T) {
	h, fm := newTestHandler(t, stubGenerator{})

	if err := h.HandleUpdate(context.Background(), callbackUpdate(1, 7, cb(7, actionGenerate))); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got := fm.lastText(); !strings.Contains(got, "Send a photo first") {
		t.Fatalf("got %q", got)
	}
}

func TestAllLooksFailSendsExplanation(t *testing.T) {
	fail := map[string]bool{}
	for _, s := range catalog.Default().FilterByCategory(catalog.Female) {
		fail[s.ID] = true
	}
	h, fm := newTestHandler(t, stubGenerator{fail: fail})
	ctx := context.Background()

	_ = h.HandleUpdate(ctx, photoUpdate(1, 7, "big"))
	_ = h.HandleUpdate(ctx, callbackUpdate(1, 7, cb(7, actionGenerate)))

	sess, _ := h.sessions.Get(sessionKey(1, 7))
	progressID := sess.Int(progressMessageKey)

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(fm.lastEdit(progressID), "No looks came back") {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("last edit = %q", fm.lastEdit(progressID))
}

func TestCallbackFromAnotherUserIsRejected(t *testing.T) {
	h, fm := newTestHandler(t, stubGenerator{})

	_ = h.HandleUpdate(context.Background(), callbackUpdate(1, 8, cb(7, actionGenerate)))

	fm.mu.Lock()
	defer fm.mu.Unlock()
	if len(fm.answers) != 1 || fm.answers[0] != "This menu is not for you." {
		t.Fatalf("answers = %v", fm.answers)
	}
	if len(fm.sent) != 0 {
		t.Fatal("run should not start for a foreign callback")
	}
}

func TestResetMidRunCancels(t *testing.T) {
	release := make(chan struct{})
	h, fm := newTestHandler(t, stubGenerator{release: release})
	ctx := context.Background()

	_ = h.HandleUpdate(ctx, photoUpdate(1, 7, "big"))
	_ = h.HandleUpdate(ctx, callbackUpdate(1, 7, cb(7, actionGenerate)))

	sess, _ := h.sessions.Get(sessionKey(1, 7))
	progressID := sess.Int(progressMessageKey)

	if err := h.HandleUpdate(ctx, commandUpdate(1, 7, "reset")); err != nil {
		t.Fatalf("reset: %v", err)
	}
	close(release)

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) && fm.lastEdit(progressID) != "⏹ Cancelled." {
		time.Sleep(5 * time.Millisecond)
	}
	if got := fm.lastEdit(progressID); got != "⏹ Cancelled." {
		t.Fatalf("last edit = %q", got)
	}
	if !sess.Image().Empty() {
		t.Fatal("reset kept the photo")
	}
	if snap := sess.Orchestrator().Snapshot(); snap.Status != orchestrator.StatusIdle || len(snap.Artifacts) != 0 {
		t.Fatalf("snapshot after reset = %+v", snap)
	}
}

func TestPhotoDownloadFailure(t *testing.T) {
	h, fm := newTestHandler(t, stubGenerator{})
	if err := h.HandleUpdate(context.Background(), photoUpdate(1, 7, "broken")); err != nil {
		t.Fatalf("photo: %v", err)
	}
	if got := fm.lastText(); !strings.Contains(got, "Could not download") {
		t.Fatalf("got %q", got)
	}
}

func TestCommands(t *testing.T) {
	h, fm := newTestHandler(t, stubGenerator{})

	tests := []struct {
		command string
		want    string
	}{
		{"start", "Outfit Studio"},
		{"help", "Tap Generate"},
		{"styles", "Women:"},
		{"nope", "Unknown command"},
	}
	for _, tc := range tests {
		t.Run(tc.command, func(t *testing.T) {
			if err := h.HandleUpdate(context.Background(), commandUpdate(1, 7, tc.command)); err != nil {
				t.Fatalf("HandleUpdate: %v", err)
			}
			if got := fm.lastText(); !strings.Contains(got, tc.want) {
				t.Fatalf("reply %q does not contain %q", got, tc.want)
			}
		})
	}
}
