package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"outfit-studio/internal/imaging"
)

const (
	maxMessageBytes = 4096
	maxCaptionBytes = 1024
	// MaxAlbumSize is the largest media group Telegram accepts.
	MaxAlbumSize = 10
)

type Options struct {
	Token      string
	HTTPClient *http.Client
	Logger     *slog.Logger
	Debug      bool
}

type Client struct {
	bot        *tgbotapi.BotAPI
	httpClient *http.Client
	logger     *slog.Logger
}

func New(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if opts.HTTPClient == nil {
		return nil, errors.New("http client is nil")
	}

	bot, err := tgbotapi.NewBotAPIWithClient(opts.Token, tgbotapi.APIEndpoint, opts.HTTPClient)
	if err != nil {
		return nil, err
	}
	bot.Debug = opts.Debug

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		bot:        bot,
		httpClient: opts.HTTPClient,
		logger:     logger,
	}, nil
}

func (c *Client) Username() string {
	return c.bot.Self.UserName
}

type Update = tgbotapi.Update

type UpdatesOptions struct {
	Timeout time.Duration
}

func (c *Client) Updates(opts UpdatesOptions) tgbotapi.UpdatesChannel {
	u := tgbotapi.NewUpdate(0)
	u.AllowedUpdates = []string{"message", "callback_query"}
	if opts.Timeout > 0 {
		u.Timeout = int(opts.Timeout.Seconds())
	} else {
		u.Timeout = 30
	}
	return c.bot.GetUpdatesChan(u)
}

func (c *Client) StopUpdates() {
	c.bot.StopReceivingUpdates()
}

func (c *Client) SendTyping(chatID int64) {
	_, _ = c.bot.Send(tgbotapi.NewChatAction(chatID, tgbotapi.ChatUploadPhoto))
}

func (c *Client) SendText(chatID int64, text string) error {
	for _, p := range SplitByBytes(text, maxMessageBytes) {
		if _, err := c.bot.Send(tgbotapi.NewMessage(chatID, p)); err != nil {
			return err
		}
	}
	return nil
}

// SendMessage sends a single message, optionally with an inline keyboard,
// and returns its id so it can be edited later.
func (c *Client) SendMessage(chatID int64, text string, kb *tgbotapi.InlineKeyboardMarkup) (int, error) {
	msg := tgbotapi.NewMessage(chatID, TruncateByBytes(text, maxMessageBytes))
	if kb != nil {
		msg.ReplyMarkup = *kb
	}
	sent, err := c.bot.Send(msg)
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

func (c *Client) EditText(chatID int64, messageID int, text string) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, TruncateByBytes(text, maxMessageBytes))
	_, err := c.bot.Request(edit)
	if err != nil && strings.Contains(err.Error(), "message is not modified") {
		return nil
	}
	return err
}

func (c *Client) AnswerCallback(callbackID, text string, alert bool) error {
	resp := tgbotapi.NewCallback(callbackID, text)
	resp.ShowAlert = alert
	_, err := c.bot.Request(resp)
	return err
}

// Photo is one album entry; Image is a data URL or raw base64 payload.
type Photo struct {
	Image   string
	Caption string
}

// SendAlbum sends photos as media groups of at most MaxAlbumSize, in order.
// A single leftover photo is sent on its own since Telegram rejects
// one-item groups.
func (c *Client) SendAlbum(chatID int64, photos []Photo) error {
	for _, chunk := range ChunkPhotos(photos, MaxAlbumSize) {
		files := make([]tgbotapi.FileBytes, 0, len(chunk))
		for _, p := range chunk {
			fb, err := fileBytes(p.Image)
			if err != nil {
				return err
			}
			files = append(files, fb)
		}

		if len(chunk) == 1 {
			photo := tgbotapi.NewPhoto(chatID, files[0])
			photo.Caption = TruncateByBytes(chunk[0].Caption, maxCaptionBytes)
			if _, err := c.bot.Send(photo); err != nil {
				return err
			}
			continue
		}

		media := make([]interface{}, 0, len(chunk))
		for i, p := range chunk {
			item := tgbotapi.NewInputMediaPhoto(files[i])
			item.Caption = TruncateByBytes(p.Caption, maxCaptionBytes)
			media = append(media, item)
		}
		if _, err := c.bot.SendMediaGroup(tgbotapi.NewMediaGroup(chatID, media)); err != nil {
			return err
		}
	}
	return nil
}

// DownloadFile fetches a file by id and returns its bytes and MIME type.
func (c *Client) DownloadFile(ctx context.Context, fileID string) ([]byte, string, error) {
	fileURL, err := c.bot.GetFileDirectURL(fileID)
	if err != nil {
		return nil, "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, "", fmt.Errorf("telegram file download %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}

	declared := strings.TrimSpace(resp.Header.Get("content-type"))
	if mt, _, err := mime.ParseMediaType(declared); err == nil {
		declared = mt
	}
	return data, imaging.DetectMimeType(data, declared), nil
}

func fileBytes(image string) (tgbotapi.FileBytes, error) {
	img, err := imaging.ParseDataURL(image)
	if err != nil {
		return tgbotapi.FileBytes{}, err
	}

	name := "look.png"
	if exts, _ := mime.ExtensionsByType(img.MimeType); len(exts) > 0 {
		name = "look" + exts[0]
	}
	return tgbotapi.FileBytes{Name: name, Bytes: img.Data}, nil
}

func ChunkPhotos(photos []Photo, size int) [][]Photo {
	if size <= 0 {
		size = MaxAlbumSize
	}
	var out [][]Photo
	for start := 0; start < len(photos); start += size {
		end := min(start+size, len(photos))
		out = append(out, photos[start:end])
	}
	return out
}

func SplitByBytes(text string, maxBytes int) []string {
	if len(text) <= maxBytes || maxBytes <= 0 {
		return []string{text}
	}

	var out []string
	var buf strings.Builder
	buf.Grow(maxBytes)

	for _, r := range text {
		runeBytes := utf8.RuneLen(r)
		if runeBytes < 0 {
			runeBytes = len(string(r))
		}

		if buf.Len() > 0 && buf.Len()+runeBytes > maxBytes {
			out = append(out, buf.String())
			buf.Reset()
		}
		buf.WriteRune(r)
	}

	if buf.Len() > 0 {
		out = append(out, buf.String())
	}

	return out
}

func TruncateByBytes(text string, maxBytes int) string {
	if len(text) <= maxBytes || maxBytes <= 0 {
		return text
	}

	var buf strings.Builder
	buf.Grow(maxBytes)
	for _, r := range text {
		runeBytes := utf8.RuneLen(r)
		if runeBytes < 0 {
			runeBytes = len(string(r))
		}

		if buf.Len()+runeBytes > maxBytes {
			break
		}
		buf.WriteRune(r)
	}
	return buf.String()
}
