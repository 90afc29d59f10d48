package api

// Wire types for OpenAI-compatible chat completions as spoken by OpenRouter.

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ImageURL is the nested url holder used by image-capable models. URL is
// normally a data URI ("data:image/png;base64,....").
type ImageURL struct {
	URL string `json:"url"`
}

type ImageOutput struct {
	Type     string   `json:"type,omitempty"`
	ImageURL ImageURL `json:"image_url"`
}

type Choice struct {
	Index   int `json:"index"`
	Message struct {
		Role    string        `json:"role"`
		Content string        `json:"content"`
		Images  []ImageOutput `json:"images,omitempty"`
	} `json:"message"`
	FinishReason string `json:"finish_reason"`
}

// APIError is the top-level error payload a provider returns instead of choices.
type APIError struct {
	Message string `json:"message"`
	Code    any    `json:"code,omitempty"`
}

type ChatResponse struct {
	ID      string    `json:"id"`
	Model   string    `json:"model"`
	Choices []Choice  `json:"choices"`
	Error   *APIError `json:"error,omitempty"`
	Usage   struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// HasError reports whether the response carries an error payload.
func (r *ChatResponse) HasError() bool {
	return r != nil && r.Error != nil
}

// FirstContent returns the message content of the first choice.
func (r *ChatResponse) FirstContent() (string, bool) {
	if r == nil || len(r.Choices) == 0 {
		return "", false
	}
	return r.Choices[0].Message.Content, true
}

type ResponseFormat struct {
	Type string `json:"type"`
}

// JSONObjectFormat asks the model for a JSON-only reply.
var JSONObjectFormat = &ResponseFormat{Type: "json_object"}

type ChatRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Temperature    *float64        `json:"temperature,omitempty"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}
