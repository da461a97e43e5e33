package gemini

import "fmt"

type ImageInput struct {
	DataBase64 string
	MimeType   string
}

type Request struct {
	Model  string
	Prompt string
	Images []ImageInput
	// WantImage asks the model for IMAGE output alongside text.
	WantImage bool
}

type InlineImage struct {
	MimeType string
	Data     string
}

type Response struct {
	Text   string
	Images []InlineImage
}

type APIError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gemini API %s: %s", e.Status, e.Body)
}
