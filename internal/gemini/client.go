package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultBaseURL    = "https://generativelanguage.googleapis.com"
	DefaultAPIVersion = "v1beta"
)

type Options struct {
	APIKey     string
	BaseURL    string
	APIVersion string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

type Client struct {
	apiKey     string
	baseURL    string
	apiVersion string
	httpClient *http.Client
	logger     *slog.Logger
}

func New(opts Options) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	apiVersion := strings.TrimSpace(opts.APIVersion)
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		apiKey:     opts.APIKey,
		baseURL:    baseURL,
		apiVersion: apiVersion,
		httpClient: opts.HTTPClient,
		logger:     logger,
	}
}

// GenerateContent sends one prompt with optional inline images and returns the
// text and inline image parts of the first candidate. It makes exactly one
// HTTP request.
func (c *Client) GenerateContent(ctx context.Context, req Request) (Response, error) {
	model := strings.TrimSpace(req.Model)
	if model == "" {
		return Response{}, errors.New("model is empty")
	}

	parts := []part{{Text: req.Prompt}}
	for _, img := range req.Images {
		parts = append(parts, part{InlineData: &blob{
			Data:     img.DataBase64,
			MimeType: img.MimeType,
		}})
	}

	payload := generateContentRequest{
		Contents: []content{{Role: "user", Parts: parts}},
	}
	if req.WantImage {
		payload.GenerationConfig = &generationConfig{ResponseModalities: []string{"IMAGE", "TEXT"}}
	}

	start := time.Now()
	decoded, err := c.generateContent(ctx, model, payload)
	if err != nil {
		c.logger.Debug("gemini call failed", "model", model, "dur_ms", time.Since(start).Milliseconds(), "err", err)
		return Response{}, err
	}

	resp := extractParts(decoded)
	c.logger.Debug("gemini call done", "model", model, "dur_ms", time.Since(start).Milliseconds(), "images", len(resp.Images))
	return resp, nil
}

func (c *Client) generateContent(ctx context.Context, model string, payload generateContentRequest) (generateContentResponse, error) {
	if c.httpClient == nil {
		return generateContentResponse{}, errors.New("http client is nil")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return generateContentResponse{}, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/models/%s:generateContent", c.baseURL, c.apiVersion, model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return generateContentResponse{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("content-type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return generateContentResponse{}, fmt.Errorf("request: %w", err)
	}
	defer httpResp.Body.Close()

	rawBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return generateContentResponse{}, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode >= 400 {
		return generateContentResponse{}, &APIError{
			StatusCode: httpResp.StatusCode,
			Status:     httpResp.Status,
			Body:       strings.TrimSpace(string(rawBody)),
		}
	}

	var decoded generateContentResponse
	if err := json.Unmarshal(rawBody, &decoded); err != nil {
		return generateContentResponse{}, fmt.Errorf("decode response: %w", err)
	}
	return decoded, nil
}

func extractParts(resp generateContentResponse) Response {
	if len(resp.Candidates) == 0 {
		return Response{}
	}

	var text strings.Builder
	var images []InlineImage
	for _, p := range resp.Candidates[0].Content.Parts {
		if p.Text != "" {
			text.WriteString(p.Text)
		}
		if p.InlineData != nil && p.InlineData.Data != "" {
			images = append(images, InlineImage{MimeType: p.InlineData.MimeType, Data: p.InlineData.Data})
		}
	}

	return Response{Text: text.String(), Images: images}
}

type generateContentRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type generationConfig struct {
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string `json:"text,omitempty"`
	InlineData *blob  `json:"inlineData,omitempty"`
}

type blob struct {
	Data     string `json:"data"`
	MimeType string `json:"mimeType"`
}

type generateContentResponse struct {
	Candidates []candidate `json:"candidates"`
}

type candidate struct {
	Content content `json:"content"`
}
