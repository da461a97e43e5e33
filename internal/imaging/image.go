package imaging

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
)

const defaultMimeType = "image/jpeg"

// SourceImage is an encoded image payload with its format tag. Treat it as
// immutable; Data must not be modified after capture.
type SourceImage struct {
	Data     []byte
	MimeType string
}

func (s SourceImage) Empty() bool {
	return len(s.Data) == 0
}

func (s SourceImage) Base64() string {
	return base64.StdEncoding.EncodeToString(s.Data)
}

// Payload is the base64 body sent upstream. Images captured verbatim as a
// data URL have their prefix stripped rather than being double-encoded.
func (s SourceImage) Payload() string {
	if bytes.HasPrefix(s.Data, []byte("data:")) {
		return StripDataURLPrefix(string(s.Data))
	}
	return s.Base64()
}

func (s SourceImage) DataURL() string {
	return DataURL(s.mimeType(), s.Base64())
}

// Fingerprint identifies the payload bytes; equal images share a fingerprint.
func (s SourceImage) Fingerprint() string {
	sum := sha256.Sum256(s.Data)
	return hex.EncodeToString(sum[:])
}

func (s SourceImage) mimeType() string {
	if m := strings.TrimSpace(s.MimeType); m != "" {
		return m
	}
	return defaultMimeType
}

var dataURLRegex = regexp.MustCompile(`^data:([^;,]+)(;[^,]*)?,`)

func DataURL(mimeType, base64Data string) string {
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64Data)
}

// StripDataURLPrefix returns the payload part of a data URL, or value unchanged
// when it carries no data: prefix.
func StripDataURLPrefix(value string) string {
	value = strings.TrimSpace(value)
	if loc := dataURLRegex.FindStringIndex(value); loc != nil {
		return value[loc[1]:]
	}
	return value
}

// ParseDataURL decodes a base64 data URL. A bare base64 string is accepted and
// its format sniffed from the decoded bytes.
func ParseDataURL(value string) (SourceImage, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return SourceImage{}, errors.New("empty data url")
	}

	mimeType := ""
	if m := dataURLRegex.FindStringSubmatch(value); len(m) >= 2 {
		mimeType = strings.TrimSpace(m[1])
	}

	data, err := base64.StdEncoding.DecodeString(StripDataURLPrefix(value))
	if err != nil {
		return SourceImage{}, fmt.Errorf("decode base64: %w", err)
	}
	if mimeType == "" {
		mimeType = DetectMimeType(data, "")
	}
	return SourceImage{Data: data, MimeType: mimeType}, nil
}

// DetectMimeType prefers the declared type and falls back to sniffing.
func DetectMimeType(data []byte, declared string) string {
	mimeType := cleanMimeType(declared)
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = cleanMimeType(http.DetectContentType(data))
	}
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = defaultMimeType
	}
	return mimeType
}

func cleanMimeType(value string) string {
	value = strings.TrimSpace(value)
	if strings.Contains(value, ";") {
		value = strings.TrimSpace(strings.SplitN(value, ";", 2)[0])
	}
	return strings.ToLower(value)
}
