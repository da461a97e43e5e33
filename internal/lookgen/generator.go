package lookgen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"outfit-studio/internal/catalog"
	"outfit-studio/internal/gemini"
	"outfit-studio/internal/imaging"
)

const (
	DefaultModel      = "gemini-2.5-flash-image"
	defaultInputMime  = "image/jpeg"
	defaultOutputMime = "image/png"
)

type ContentGenerator interface {
	GenerateContent(ctx context.Context, req gemini.Request) (gemini.Response, error)
}

type Options struct {
	Client ContentGenerator
	Model  string
	// Interval is the minimum spacing between outbound calls; zero disables
	// limiting.
	Interval time.Duration
	Burst    int
	Logger   *slog.Logger
}

type Generator struct {
	client  ContentGenerator
	model   string
	limiter *rate.Limiter
	logger  *slog.Logger
	now     func() time.Time
}

// Look is a rendered image for one style, ready for display.
type Look struct {
	StyleID    string
	StyleLabel string
	ImageData  string // data URL
	CreatedAt  time.Time
}

func New(opts Options) *Generator {
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = DefaultModel
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	var limiter *rate.Limiter
	if opts.Interval > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Every(opts.Interval), burst)
	}

	return &Generator{
		client:  opts.Client,
		model:   model,
		limiter: limiter,
		logger:  logger,
		now:     time.Now,
	}
}

// Generate renders one style from the source image with a single service
// call. It does not retry.
func (g *Generator) Generate(ctx context.Context, img imaging.SourceImage, cat catalog.Category, style catalog.Style) (Look, error) {
	if g.client == nil {
		return Look{}, &UpstreamError{StyleID: style.ID, Err: errors.New("generator client is nil")}
	}

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return Look{}, &UpstreamError{StyleID: style.ID, Err: err}
		}
	}

	mimeType := img.MimeType
	if mimeType == "" {
		mimeType = defaultInputMime
	}

	resp, err := g.client.GenerateContent(ctx, gemini.Request{
		Model:  g.model,
		Prompt: catalog.BuildLookPrompt(cat, style.PromptKey),
		Images: []gemini.ImageInput{{
			DataBase64: img.Payload(),
			MimeType:   mimeType,
		}},
		WantImage: true,
	})
	if err != nil {
		return Look{}, &UpstreamError{StyleID: style.ID, Err: err}
	}

	for _, out := range resp.Images {
		data := strings.TrimSpace(out.Data)
		if data == "" {
			continue
		}
		outMime := strings.TrimSpace(out.MimeType)
		if outMime == "" {
			outMime = defaultOutputMime
		}
		return Look{
			StyleID:    style.ID,
			StyleLabel: style.Label,
			ImageData:  imaging.DataURL(outMime, imaging.StripDataURLPrefix(data)),
			CreatedAt:  g.now(),
		}, nil
	}

	g.logger.Debug("generation returned no image", "style_id", style.ID, "text", truncate(resp.Text, 200))
	return Look{}, fmt.Errorf("style %s: %w", style.ID, ErrNoArtifactReturned)
}

func truncate(s string, max int) string {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) <= max {
		return string(runes)
	}
	return string(runes[:max]) + "…"
}
