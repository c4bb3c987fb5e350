package gemini

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gitlab.com/yelinaung/expense-claims/internal/logger"
	"gitlab.com/yelinaung/expense-claims/internal/models"
	"google.golang.org/genai"
)

// MaxNotesLength is the longest notes text sent to the model.
const MaxNotesLength = 200

// SuggestTimeout bounds a single suggestion request.
const SuggestTimeout = 10 * time.Second

// ErrEmptyNotes is returned when there is nothing to categorize.
var ErrEmptyNotes = errors.New("notes are required")

// CategorySuggestion is an advisory category for an expense's notes.
type CategorySuggestion struct {
	Category   models.Category `json:"category"`
	Confidence float64         `json:"confidence"`
	Reasoning  string          `json:"reasoning"`
}

// SuggestCategory asks Gemini which of the fixed categories fits notes best.
// The suggestion is advisory; expense creation still validates the category.
func (c *Client) SuggestCategory(ctx context.Context, notes string) (*CategorySuggestion, error) {
	if c == nil || c.generator == nil {
		return nil, ErrNotConfigured
	}

	sanitized := SanitizeForPrompt(notes, MaxNotesLength)
	if sanitized == "" {
		return nil, ErrEmptyNotes
	}
	notesHash := hashNotes(notes)
	categories := models.CategoryNames()

	timeoutCtx, cancel := context.WithTimeout(ctx, SuggestTimeout)
	defer cancel()

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: buildCategorySuggestionPrompt(sanitized, categories)}},
		},
	}

	temp := float32(0.3)
	config := &genai.GenerateContentConfig{
		Temperature:     &temp,
		MaxOutputTokens: int32(300),
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{
				{Text: "You are a JSON API. You MUST respond with ONLY valid JSON, no preamble or explanation. Output a single JSON object."},
			},
		},
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"category": {
					Type:        genai.TypeString,
					Enum:        categories,
					Description: "The most appropriate expense category from the provided list",
				},
				"confidence": {
					Type:        genai.TypeNumber,
					Description: "Confidence score between 0 and 1",
				},
				"reasoning": {
					Type:        genai.TypeString,
					Description: "Brief explanation for the categorization",
				},
			},
			Required: []string{"category", "confidence", "reasoning"},
		},
	}

	resp, err := c.generator.GenerateContent(timeoutCtx, c.model, contents, config)
	if err != nil {
		logger.Log.Error().Err(err).Str("notes_hash", notesHash).Msg("SuggestCategory: Gemini API call failed")
		return nil, fmt.Errorf("gemini API call failed: %w", err)
	}
	if resp == nil {
		return nil, fmt.Errorf("no response from Gemini")
	}

	suggestion, err := parseSuggestion(resp.Text())
	if err != nil {
		logger.Log.Warn().Err(err).Str("notes_hash", notesHash).Msg("SuggestCategory: unusable Gemini response")
		return nil, err
	}

	logger.Log.Debug().
		Str("notes_hash", notesHash).
		Str("category", string(suggestion.Category)).
		Float64("confidence", suggestion.Confidence).
		Msg("SuggestCategory: matched category")
	return suggestion, nil
}

// parseSuggestion validates a model reply against the fixed category set.
func parseSuggestion(text string) (*CategorySuggestion, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("no text content in response")
	}
	jsonText := extractJSON(text)
	if jsonText == "" {
		return nil, fmt.Errorf("no JSON found in response")
	}

	var raw struct {
		Category   string  `json:"category"`
		Confidence float64 `json:"confidence"`
		Reasoning  string  `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(jsonText), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse JSON response: %w", err)
	}

	category, ok := matchCategory(raw.Category)
	if !ok {
		return nil, fmt.Errorf("suggested category '%s' not in available categories", raw.Category)
	}
	if raw.Confidence < 0.0 || raw.Confidence > 1.0 {
		return nil, fmt.Errorf("confidence out of range: %f", raw.Confidence)
	}

	return &CategorySuggestion{
		Category:   category,
		Confidence: raw.Confidence,
		Reasoning:  sanitizeReasoning(raw.Reasoning),
	}, nil
}

// matchCategory maps a case-insensitive name to the canonical category.
func matchCategory(name string) (models.Category, bool) {
	name = strings.TrimSpace(name)
	for _, c := range models.Categories {
		if strings.EqualFold(string(c), name) {
			return c, true
		}
	}
	return "", false
}

func buildCategorySuggestionPrompt(notes string, categories []string) string {
	return fmt.Sprintf(`Categorize this business expense claim: "%s"

Available categories:
- %s

Rules:
- Choose the MOST appropriate category from the list
- "Travel" for flights, hotels, taxis, trains and mileage
- "Food" for meals and client entertainment
- "Software" for licences and subscriptions, "Equipment" for hardware
- "Training" for courses, books and conference tickets
- Use "Other" only when nothing else fits
- Higher confidence (0.8-1.0) for obvious categories, lower (0.5-0.7) for ambiguous ones

Return JSON only:
{"category": "exact category name", "confidence": 0.0-1.0, "reasoning": "brief explanation"}`,
		notes, strings.Join(categories, "\n- "))
}

// extractJSON extracts a JSON object from text that may contain preamble.
// Gemini sometimes returns responses like "Here is the JSON:\n{...}" even
// when ResponseMIMEType is set to application/json.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	if start == -1 {
		return ""
	}
	end := strings.LastIndex(text, "}")
	if end == -1 || end <= start {
		return ""
	}
	return text[start : end+1]
}

// SanitizeForPrompt strips characters that could break the prompt structure,
// collapses whitespace and truncates to maxLength runes.
func SanitizeForPrompt(input string, maxLength int) string {
	input = strings.ReplaceAll(input, `"`, `'`)
	input = strings.ReplaceAll(input, "`", "'")
	input = strings.ReplaceAll(input, "\x00", "")
	input = strings.Join(strings.Fields(input), " ")

	if r := []rune(input); len(r) > maxLength {
		input = strings.TrimSpace(string(r[:maxLength]))
	}
	return input
}

// sanitizeReasoning normalizes the model's reasoning before it is returned to clients.
func sanitizeReasoning(reasoning string) string {
	reasoning = strings.Join(strings.Fields(reasoning), " ")

	const maxReasoningLength = 500
	if r := []rune(reasoning); len(r) > maxReasoningLength {
		reasoning = strings.TrimSpace(string(r[:maxReasoningLength]))
	}
	return reasoning
}

// hashNotes creates a short SHA256 fingerprint of notes for logging.
func hashNotes(notes string) string {
	hash := sha256.Sum256([]byte(notes))
	return hex.EncodeToString(hash[:8])
}
