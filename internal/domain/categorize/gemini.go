package categorize

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const geminiPrompt = `You are a personal-finance transaction classifier.
Assign each transaction exactly one category from the allowed list.
Respond with a JSON array only, no prose and no markdown fences, where each
element is {"id": "...", "category": "...", "confidence": 0.0-1.0}.
Use an empty category string when none of the allowed categories fits.

Allowed categories: %s
%s
Transactions:
%s`

// GeminiClassifier implements Classifier on top of the Gemini API.
type GeminiClassifier struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGeminiClassifier builds a Gemini-backed classifier.
func NewGeminiClassifier(ctx context.Context, apiKey, modelName string) (*GeminiClassifier, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &GeminiClassifier{
		client: client,
		model:  client.GenerativeModel(modelName),
	}, nil
}

// Classify sends one batch as a prompt and parses the JSON answer.
func (g *GeminiClassifier) Classify(ctx context.Context, batch Batch) ([]ClassificationResult, error) {
	items, err := json.Marshal(batch.Items)
	if err != nil {
		return nil, fmt.Errorf("encoding batch: %w", err)
	}

	hint := ""
	if batch.Context != "" {
		hint = "Context: " + batch.Context + "\n"
	}
	prompt := fmt.Sprintf(geminiPrompt, strings.Join(batch.Categories, ", "), hint, items)

	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("generating classification: %w", err)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("empty response from gemini")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}

	text := strings.TrimSpace(sb.String())
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var results []ClassificationResult
	if err := json.Unmarshal([]byte(text), &results); err != nil {
		return nil, fmt.Errorf("parsing gemini response: %w", err)
	}
	return alignResults(batch, results), nil
}

// Close releases the underlying client.
func (g *GeminiClassifier) Close() error {
	return g.client.Close()
}
