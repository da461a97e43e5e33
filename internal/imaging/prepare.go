package imaging

import (
	"bytes"
	"errors"
	"image"
	"image/jpeg"
	"log/slog"

	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	DefaultMaxDimension = 1024
	DefaultJPEGQuality  = 80
)

type PrepareOptions struct {
	MaxDimension int
	JPEGQuality  int
	Logger       *slog.Logger
}

// Prepare turns an uploaded file into a SourceImage: images wider than
// MaxDimension are scaled down keeping the aspect ratio and everything is
// re-encoded as JPEG. Payloads that cannot be decoded are kept as-is.
func Prepare(raw []byte, declaredMime string, opts PrepareOptions) (SourceImage, error) {
	if len(raw) == 0 {
		return SourceImage{}, errors.New("image is empty")
	}

	maxDim := opts.MaxDimension
	if maxDim <= 0 {
		maxDim = DefaultMaxDimension
	}
	quality := opts.JPEGQuality
	if quality < 1 || quality > 100 {
		quality = DefaultJPEGQuality
	}

	original := SourceImage{Data: raw, MimeType: DetectMimeType(raw, declaredMime)}

	src, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		if opts.Logger != nil {
			opts.Logger.Warn("image decode failed, keeping original", "mime", original.MimeType, "err", err)
		}
		return original, nil
	}

	dst := downscale(src, maxDim)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, flatten(dst), &jpeg.Options{Quality: quality}); err != nil {
		if opts.Logger != nil {
			opts.Logger.Warn("jpeg encode failed, keeping original", "format", format, "err", err)
		}
		return original, nil
	}

	return SourceImage{Data: buf.Bytes(), MimeType: "image/jpeg"}, nil
}

func downscale(src image.Image, maxWidth int) image.Image {
	b := src.Bounds()
	width, height := b.Dx(), b.Dy()
	if width <= maxWidth || width == 0 {
		return src
	}

	newHeight := (height*maxWidth + width/2) / width
	if newHeight < 1 {
		newHeight = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, newHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}

// flatten composites onto white; JPEG has no alpha channel.
func flatten(src image.Image) image.Image {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
	return dst
}
