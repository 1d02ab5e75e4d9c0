package gcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	aiplatform "cloud.google.com/go/aiplatform/apiv1"
	"cloud.google.com/go/aiplatform/apiv1/aiplatformpb"
	"cloud.google.com/go/vertexai/genai"
	"github.com/Lllllllleong/receiptflow/internal/models"
	"google.golang.org/api/option"
	"google.golang.org/genproto/googleapis/api/httpbody"
)

// AnthropicVersion is the protocol tag Vertex AI expects on Anthropic messages requests.
const AnthropicVersion = "vertex-2023-10-16"

// DefaultMaxTokens is the output token budget of one extraction call.
const DefaultMaxTokens = 2048

// --- Receipt Extraction Prompt ---
const ReceiptExtractionPrompt = `You are given a photo or scan of a medical bill receipt. Extract the following information from it.

1. Receipt details: receipt number, receipt date, name of the medical institution, practitioner name, license number, and the full address split into address, state, zip code and city.
2. Patient information: patient name and patient address split into address, city, state and zip code.
3. Official receipt: total price in Ringgit Malaysia written out in words, total price in RM as a number, consultation charge, and cash charger.

Rules:
- Be as accurate as possible.
- If a field is missing or unreadable, use an empty string.
- If the image is not a medical bill receipt, return an empty JSON object: {}
- All currency values are in RM (Ringgit Malaysia).
- Return only JSON, with no text before or after it.

Use exactly this JSON structure:
{
  "receiptDetails": {
    "receiptNumber": "",
    "receiptDate": "",
    "medicalInstitution": "",
    "practitionerName": "",
    "licenseNumber": "",
    "address": "",
    "state": "",
    "zipCode": "",
    "city": ""
  },
  "patientInformation": {
    "patientName": "",
    "patientAddress": "",
    "patientCity": "",
    "patientState": "",
    "patientZipCode": ""
  },
  "officialReceipt": {
    "priceInRinggit": "",
    "priceInRM": "",
    "consultation": "",
    "cashCharger": ""
  }
}`

// ModelInvoker sends one multimodal request and returns the model's text answer.
type ModelInvoker interface {
	Invoke(ctx context.Context, req models.ModelRequest) (string, error)
	Close() error
}

// NewModelInvoker picks the backend from the model ID: Gemini models go through genai,
// anything else is treated as an Anthropic publisher model on Vertex AI.
func NewModelInvoker(ctx context.Context, projectID, region, modelID string, maxTokens int) (ModelInvoker, error) {
	if strings.HasPrefix(modelID, "gemini") {
		return NewGeminiInvoker(ctx, projectID, region, modelID, maxTokens)
	}
	return NewAnthropicInvoker(ctx, projectID, region, modelID, maxTokens)
}

// AnthropicInvoker calls a Claude model on Vertex AI through RawPredict.
type AnthropicInvoker struct {
	client    *aiplatform.PredictionClient
	endpoint  string
	maxTokens int
}

func NewAnthropicInvoker(ctx context.Context, projectID, region, modelID string, maxTokens int) (*AnthropicInvoker, error) {
	if projectID == "" || region == "" || modelID == "" {
		return nil, fmt.Errorf("NewAnthropicInvoker: projectID, region and modelID cannot be empty")
	}

	client, err := aiplatform.NewPredictionClient(ctx, option.WithEndpoint(fmt.Sprintf("%s-aiplatform.googleapis.com:443", region)))
	if err != nil {
		return nil, fmt.Errorf("aiplatform.NewPredictionClient: %w", err)
	}

	return &AnthropicInvoker{
		client:    client,
		endpoint:  fmt.Sprintf("projects/%s/locations/%s/publishers/anthropic/models/%s", projectID, region, modelID),
		maxTokens: maxTokens,
	}, nil
}

func (a *AnthropicInvoker) Invoke(ctx context.Context, req models.ModelRequest) (string, error) {
	body, err := json.Marshal(BuildMessagesRequest(req, a.maxTokens))
	if err != nil {
		return "", fmt.Errorf("failed to marshal messages request: %w", err)
	}

	resp, err := a.client.RawPredict(ctx, &aiplatformpb.RawPredictRequest{
		Endpoint: a.endpoint,
		HttpBody: &httpbody.HttpBody{
			ContentType: "application/json",
			Data:        body,
		},
	})
	if err != nil {
		return "", fmt.Errorf("vertex raw predict on %s: %w", a.endpoint, err)
	}
	return ParseMessagesResponse(resp.GetData())
}

func (a *AnthropicInvoker) Close() error {
	return a.client.Close()
}

// BuildMessagesRequest builds a single user turn: the prompt text followed by the inline image.
func BuildMessagesRequest(req models.ModelRequest, maxTokens int) models.MessagesRequest {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return models.MessagesRequest{
		AnthropicVersion: AnthropicVersion,
		MaxTokens:        maxTokens,
		Messages: []models.Message{{
			Role: "user",
			Content: []models.ContentBlock{
				{Type: "text", Text: req.Prompt},
				{
					Type: "image",
					Source: &models.ImageSource{
						Type:      "base64",
						MediaType: req.MediaType,
						Data:      req.ImageBase64,
					},
				},
			},
		}},
	}
}

// ParseMessagesResponse returns the text of the first content block.
// The text itself is JSON and is parsed by the caller.
func ParseMessagesResponse(body []byte) (string, error) {
	var resp models.MessagesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrMalformedModelResponse, err)
	}
	if len(resp.Content) == 0 {
		return "", fmt.Errorf("%w: no content blocks", models.ErrMalformedModelResponse)
	}
	return resp.Content[0].Text, nil
}

// GeminiInvoker calls a Gemini model through the Vertex AI genai client.
type GeminiInvoker struct {
	model      *genai.GenerativeModel
	baseClient *genai.Client
}

func NewGeminiInvoker(ctx context.Context, projectID, region, modelID string, maxTokens int) (*GeminiInvoker, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("NewGeminiInvoker: projectID and region cannot be empty")
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	baseClient, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	model := baseClient.GenerativeModel(modelID)
	model.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.0),
		MaxOutputTokens:  genai.Ptr(int32(maxTokens)),
	}

	return &GeminiInvoker{model: model, baseClient: baseClient}, nil
}

func (g *GeminiInvoker) Invoke(ctx context.Context, req models.ModelRequest) (string, error) {
	image, err := base64.StdEncoding.DecodeString(req.ImageBase64)
	if err != nil {
		return "", fmt.Errorf("failed to decode image payload: %w", err)
	}

	resp, err := g.model.GenerateContent(ctx, genai.Text(req.Prompt), genai.Blob{MIMEType: req.MediaType, Data: image})
	if err != nil {
		return "", fmt.Errorf("failed to generate content from gemini: %w", err)
	}

	text, ok := geminiText(resp)
	if !ok {
		return "", fmt.Errorf("%w: no text candidates", models.ErrMalformedModelResponse)
	}
	return text, nil
}

func (g *GeminiInvoker) Close() error {
	if g.baseClient != nil {
		return g.baseClient.Close()
	}
	return nil
}

// geminiText concatenates the text parts of the first candidate.
func geminiText(resp *genai.GenerateContentResponse) (string, bool) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", false
	}

	var sb strings.Builder
	var found bool
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
			found = true
		}
	}
	return sb.String(), found
}
