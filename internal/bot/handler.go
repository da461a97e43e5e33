package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"outfit-studio/internal/catalog"
	"outfit-studio/internal/debounce"
	"outfit-studio/internal/imaging"
	"outfit-studio/internal/orchestrator"
	"outfit-studio/internal/session"
	"outfit-studio/internal/telegram"
)

const progressMessageKey = "progress_msg"

// Messenger is the part of the Telegram client the handler talks to.
type Messenger interface {
	SendText(chatID int64, text string) error
	SendMessage(chatID int64, text string, kb *tgbotapi.InlineKeyboardMarkup) (int, error)
	EditText(chatID int64, messageID int, text string) error
	AnswerCallback(callbackID, text string, alert bool) error
	SendAlbum(chatID int64, photos []telegram.Photo) error
	SendTyping(chatID int64)
	DownloadFile(ctx context.Context, fileID string) ([]byte, string, error)
}

type Options struct {
	Telegram Messenger
	Sessions *session.Store
	Catalog  *catalog.Catalog
	Prepare  imaging.PrepareOptions

	// BaseContext outlives single updates; runs derive from it.
	BaseContext      context.Context
	RunTimeout       time.Duration
	ProgressDebounce time.Duration
	Logger           *slog.Logger
}

type Handler struct {
	tg         Messenger
	sessions   *session.Store
	catalog    *catalog.Catalog
	prepare    imaging.PrepareOptions
	baseCtx    context.Context
	runTimeout time.Duration
	logger     *slog.Logger
	progress   *debounce.Coalescer[progressEdit]
}

type progressEdit struct {
	ChatID    int64
	MessageID int
	Percent   int
}

func New(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	cat := opts.Catalog
	if cat == nil {
		cat = catalog.Default()
	}
	baseCtx := opts.BaseContext
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	runTimeout := opts.RunTimeout
	if runTimeout <= 0 {
		runTimeout = 10 * time.Minute
	}

	h := &Handler{
		tg:         opts.Telegram,
		sessions:   opts.Sessions,
		catalog:    cat,
		prepare:    opts.Prepare,
		baseCtx:    baseCtx,
		runTimeout: runTimeout,
		logger:     logger,
	}
	h.progress = debounce.New(debounce.Options[progressEdit]{
		Interval: opts.ProgressDebounce,
		OnFlush:  h.editProgress,
	})
	return h
}

func (h *Handler) HandleUpdate(ctx context.Context, update telegram.Update) error {
	if update.CallbackQuery != nil {
		return h.handleCallback(update.CallbackQuery)
	}
	if update.Message == nil || update.Message.From == nil {
		return nil
	}

	msg := update.Message
	chatID := msg.Chat.ID
	userID := msg.From.ID

	if msg.IsCommand() {
		return h.handleCommand(chatID, userID, msg)
	}

	if len(msg.Photo) > 0 {
		photo := msg.Photo[len(msg.Photo)-1]
		return h.handlePhoto(ctx, chatID, userID, photo.FileID)
	}
	if msg.Document != nil && strings.HasPrefix(msg.Document.MimeType, "image/") {
		return h.handlePhoto(ctx, chatID, userID, msg.Document.FileID)
	}

	if strings.TrimSpace(msg.Text) != "" {
		return h.tg.SendText(chatID, "📷 Send me a photo of yourself and I'll design a set of outfits for it.")
	}
	return nil
}

func (h *Handler) handleCommand(chatID, userID int64, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return h.tg.SendText(chatID,
			"👗 Outfit Studio\n\n"+
				"Send a photo and I'll redesign your outfit in several styles.\n\n"+
				"Commands:\n"+
				"/start - Start the bot\n"+
				"/help - Help\n"+
				"/styles - List available styles\n"+
				"/reset - Forget the current photo and looks",
		)
	case "help":
		return h.tg.SendText(chatID,
			"👗 Help\n\n"+
				"1. Send a clear photo of one person.\n"+
				"2. Tap Generate.\n"+
				"3. Wait while the looks are designed; they arrive as an album.\n"+
				"/reset - start over.",
		)
	case "styles":
		return h.tg.SendText(chatID, stylesText(h.catalog))
	case "reset":
		h.reset(chatID, userID)
		return h.tg.SendText(chatID, "✅ Cleared. Send a new photo whenever you like.")
	default:
		return h.tg.SendText(chatID, "❌ Unknown command. Use /help.")
	}
}

func (h *Handler) handlePhoto(ctx context.Context, chatID, userID int64, fileID string) error {
	h.tg.SendTyping(chatID)

	raw, mimeType, err := h.tg.DownloadFile(ctx, fileID)
	if err != nil {
		h.logger.Error("photo download failed", "chat_id", chatID, "err", err)
		return h.tg.SendText(chatID, "❌ Could not download the photo. Please try again.")
	}

	img, err := imaging.Prepare(raw, mimeType, h.prepare)
	if err != nil {
		h.logger.Error("photo preprocessing failed", "chat_id", chatID, "err", err)
		return h.tg.SendText(chatID, "❌ Could not read the photo. Please send another one.")
	}

	key := sessionKey(chatID, userID)
	h.progress.Cancel(key)
	sess := h.sessions.GetOrCreate(key)
	sess.SetImage(img)

	kb := actionKeyboard(userID)
	_, err = h.tg.SendMessage(chatID, "📸 Photo saved. Tap Generate to design your looks.", &kb)
	return err
}

func (h *Handler) handleCallback(q *tgbotapi.CallbackQuery) error {
	if q == nil || q.Message == nil || q.From == nil {
		return nil
	}

	ownerID, action, ok := parseCallback(q.Data)
	if !ok {
		return nil
	}
	if ownerID != q.From.ID {
		_ = h.tg.AnswerCallback(q.ID, "This menu is not for you.", true)
		return nil
	}

	chatID := q.Message.Chat.ID
	switch action {
	case actionGenerate:
		notice, err := h.startRun(chatID, ownerID)
		if err != nil {
			return err
		}
		_ = h.tg.AnswerCallback(q.ID, notice, false)
	case actionReset:
		h.reset(chatID, ownerID)
		_ = h.tg.AnswerCallback(q.ID, "Cleared", false)
		return h.tg.SendText(chatID, "✅ Cleared. Send a new photo whenever you like.")
	default:
		_ = h.tg.AnswerCallback(q.ID, "OK", false)
	}
	return nil
}

// startRun kicks off a run for the user's current photo and returns the
// short notice shown on the button press.
func (h *Handler) startRun(chatID, userID int64) (string, error) {
	key := sessionKey(chatID, userID)
	sess := h.sessions.GetOrCreate(key)
	orch := sess.Orchestrator()

	img := sess.Image()
	if img.Empty() {
		return "Send a photo first", h.tg.SendText(chatID, "📷 Send a photo first.")
	}
	if orch.Snapshot().Status.Running() {
		return "Already designing…", nil
	}

	msgID, err := h.tg.SendMessage(chatID, progressText(0), nil)
	if err != nil {
		return "", err
	}
	sess.SetInt(progressMessageKey, msgID)

	unsubscribe := orch.Subscribe(func(snap orchestrator.Snapshot) {
		if snap.Status.Running() {
			h.progress.Add(key, progressEdit{ChatID: chatID, MessageID: msgID, Percent: snap.Progress})
		}
	})

	ctx, cancel := context.WithTimeout(h.baseCtx, h.runTimeout)
	results, err := orch.Start(ctx, img)
	if err != nil {
		cancel()
		unsubscribe()
		if errors.Is(err, orchestrator.ErrRunInProgress) {
			_ = h.tg.EditText(chatID, msgID, "⏳ Already designing, hang on.")
			return "Already designing…", nil
		}
		_ = h.tg.EditText(chatID, msgID, "📷 Send a photo first.")
		return "Send a photo first", nil
	}

	go func() {
		defer cancel()
		res := <-results
		unsubscribe()
		h.progress.Cancel(key)
		h.deliver(chatID, msgID, res)
	}()

	h.logger.Info("run started", "chat_id", chatID, "user_id", userID)
	return "Designing…", nil
}

func (h *Handler) deliver(chatID int64, msgID int, res orchestrator.Result) {
	snap := res.Snapshot

	switch {
	case errors.Is(res.Err, orchestrator.ErrRunReset):
		_ = h.tg.EditText(chatID, msgID, "⏹ Cancelled.")
		return
	case res.Err != nil:
		h.logger.Error("run failed", "chat_id", chatID, "run_id", snap.RunID, "err", res.Err)
		_ = h.tg.EditText(chatID, msgID, "❌ "+orchestrator.UserMessage)
		return
	case len(snap.Artifacts) == 0:
		_ = h.tg.EditText(chatID, msgID, "😕 No looks came back this time. Try again or send a different photo.")
		return
	}

	_ = h.tg.EditText(chatID, msgID, doneText(snap))
	if err := h.tg.SendAlbum(chatID, albumPhotos(snap.Artifacts)); err != nil {
		h.logger.Error("album send failed", "chat_id", chatID, "run_id", snap.RunID, "err", err)
		_ = h.tg.SendText(chatID, "❌ Could not send the looks. Please try again.")
	}
}

func (h *Handler) reset(chatID, userID int64) {
	key := sessionKey(chatID, userID)
	h.progress.Cancel(key)
	if sess, ok := h.sessions.Get(key); ok {
		sess.Clear()
	}
}

func (h *Handler) editProgress(_ string, e progressEdit) {
	if err := h.tg.EditText(e.ChatID, e.MessageID, progressText(e.Percent)); err != nil {
		h.logger.Debug("progress edit failed", "chat_id", e.ChatID, "err", err)
	}
}

func sessionKey(chatID, userID int64) string {
	return fmt.Sprintf("tg:%d:%d", chatID, userID)
}
