package vision

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/neuroti/Psi/internal/detection"
)

//go:embed fallback_prompt.md
var fallbackPrompt string

// contentGenerator is satisfied by *genai.GenerativeModel.
type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Gemini is the fallback classifier backed by a multimodal Gemini model.
type Gemini struct {
	client *genai.Client
	model  contentGenerator
}

// NewGemini creates a Gemini vision client for modelName.
func NewGemini(ctx context.Context, apiKey, modelName string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	model := client.GenerativeModel(modelName)
	model.ResponseMIMEType = "application/json"
	return &Gemini{client: client, model: model}, nil
}

type geminiFoods struct {
	Foods []struct {
		Name        string  `json:"name"`
		WeightGrams float64 `json:"weight_grams"`
		Confidence  float64 `json:"confidence"`
	} `json:"foods"`
}

func (g *Gemini) Detect(ctx context.Context, image []byte) ([]detection.FallbackItem, error) {
	resp, err := g.model.GenerateContent(ctx, genai.ImageData(imageFormat(image), image), genai.Text(fallbackPrompt))
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("no content generated")
	}

	text, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return nil, fmt.Errorf("generated content is not text")
	}

	return parseFoods(string(text))
}

func parseFoods(raw string) ([]detection.FallbackItem, error) {
	var parsed geminiFoods
	if err := json.Unmarshal([]byte(stripFences(raw)), &parsed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal fallback response: %w", err)
	}

	items := make([]detection.FallbackItem, 0, len(parsed.Foods))
	for _, f := range parsed.Foods {
		items = append(items, detection.FallbackItem{
			Label:              strings.ToLower(strings.TrimSpace(f.Name)),
			Confidence:         f.Confidence,
			EstimatedMassGrams: f.WeightGrams,
		})
	}
	return items, nil
}

// stripFences removes a markdown code fence around a JSON payload.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func imageFormat(image []byte) string {
	if len(image) >= 8 && string(image[1:4]) == "PNG" {
		return "png"
	}
	return "jpeg"
}

// Close closes the underlying Gemini client.
func (g *Gemini) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}
