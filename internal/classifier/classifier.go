package classifier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"outfit-studio/internal/catalog"
	"outfit-studio/internal/gemini"
	"outfit-studio/internal/imaging"
)

const DefaultModel = "gemini-2.5-flash"

var ErrUnrecognized = errors.New("unrecognized classification answer")

type ContentGenerator interface {
	GenerateContent(ctx context.Context, req gemini.Request) (gemini.Response, error)
}

type Options struct {
	Client ContentGenerator
	Model  string
	Logger *slog.Logger
}

type Classifier struct {
	client ContentGenerator
	model  string
	logger *slog.Logger
}

func New(opts Options) *Classifier {
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = DefaultModel
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Classifier{
		client: opts.Client,
		model:  model,
		logger: logger,
	}
}

// Classify never fails: any error or unrecognized answer yields
// catalog.DefaultCategory.
func (c *Classifier) Classify(ctx context.Context, img imaging.SourceImage) catalog.Category {
	cat, err := c.Detect(ctx, img)
	if err != nil {
		c.logger.Warn("classification failed, using default category", "default", catalog.DefaultCategory, "err", err)
		return catalog.DefaultCategory
	}
	return cat
}

// Detect makes a single call to the service and reports failures instead of
// falling back.
func (c *Classifier) Detect(ctx context.Context, img imaging.SourceImage) (catalog.Category, error) {
	if c.client == nil {
		return "", errors.New("classifier client is nil")
	}
	if img.Empty() {
		return "", errors.New("image is empty")
	}

	resp, err := c.client.GenerateContent(ctx, gemini.Request{
		Model:  c.model,
		Prompt: catalog.ClassifyInstruction,
		Images: []gemini.ImageInput{{
			DataBase64: img.Payload(),
			MimeType:   img.MimeType,
		}},
	})
	if err != nil {
		return "", fmt.Errorf("classify: %w", err)
	}

	return parseAnswer(resp.Text)
}

func parseAnswer(text string) (catalog.Category, error) {
	answer := strings.ToUpper(strings.TrimSpace(text))
	switch {
	// FEMALE contains MALE, so it is checked first.
	case strings.Contains(answer, string(catalog.Female)):
		return catalog.Female, nil
	case strings.Contains(answer, string(catalog.Male)):
		return catalog.Male, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnrecognized, text)
}
