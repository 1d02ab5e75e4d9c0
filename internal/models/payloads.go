package models

import "errors"

// These structs define the JSON payloads exchanged with the vision model.

// ErrMalformedModelResponse marks a model reply whose envelope could not be read.
// It is a response problem, not an invocation failure.
var ErrMalformedModelResponse = errors.New("malformed model response")

// ModelRequest is the provider-neutral input of one extraction call.
type ModelRequest struct {
	Prompt      string
	MediaType   string
	ImageBase64 string
}

// MessagesRequest is the Anthropic messages request body.
type MessagesRequest struct {
	AnthropicVersion string    `json:"anthropic_version"`
	MaxTokens        int       `json:"max_tokens"`
	Messages         []Message `json:"messages"`
}

type Message struct {
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
}

// ContentBlock is a text or image block. Source is set only for images.
type ContentBlock struct {
	Type   string       `json:"type"`
	Text   string       `json:"text,omitempty"`
	Source *ImageSource `json:"source,omitempty"`
}

type ImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

// MessagesResponse is the part of the Anthropic messages response we read.
type MessagesResponse struct {
	ID         string         `json:"id"`
	Content    []ContentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
}
