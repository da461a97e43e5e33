package classifier

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/patrickmn/go-cache"

	"outfit-studio/internal/catalog"
	"outfit-studio/internal/imaging"
)

type Detector interface {
	Detect(ctx context.Context, img imaging.SourceImage) (catalog.Category, error)
}

// Cached remembers successful classifications per image fingerprint so that
// re-running the same photo skips the service. Fallback results are not
// cached.
type Cached struct {
	next   Detector
	cache  *cache.Cache
	logger *slog.Logger
}

func NewCached(next Detector, ttl time.Duration, logger *slog.Logger) *Cached {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Cached{
		next:   next,
		cache:  cache.New(ttl, 2*ttl),
		logger: logger,
	}
}

func (c *Cached) Classify(ctx context.Context, img imaging.SourceImage) catalog.Category {
	key := img.Fingerprint()
	if v, ok := c.cache.Get(key); ok {
		if cat, ok := v.(catalog.Category); ok {
			return cat
		}
	}

	cat, err := c.next.Detect(ctx, img)
	if err != nil {
		c.logger.Warn("classification failed, using default category", "default", catalog.DefaultCategory, "err", err)
		return catalog.DefaultCategory
	}

	c.cache.SetDefault(key, cat)
	return cat
}
