package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog"

	"chronik.fyi/monitor/internal/incident"
)

// OpenAIClient implements both oracles against the OpenAI chat
// completions API. Temperature is pinned to zero so criteria
// enforcement stays stable across runs.
type OpenAIClient struct {
	client     openai.Client
	model      openai.ChatModel
	city       string
	cutoffDate string
	logger     zerolog.Logger
}

var (
	_ IncidentJudge = (*OpenAIClient)(nil)
	_ MatchOracle   = (*OpenAIClient)(nil)
)

// NewOpenAIClient builds a client for the given model. city and
// cutoffDate are embedded into the extraction prompt.
func NewOpenAIClient(apiKey, model, city, cutoffDate string, logger zerolog.Logger) *OpenAIClient {
	return &OpenAIClient{
		client:     openai.NewClient(option.WithAPIKey(apiKey)),
		model:      openai.ChatModel(model),
		city:       city,
		cutoffDate: cutoffDate,
		logger:     logger,
	}
}

// ExtractIncident asks the model to apply the qualification checklist to
// articleText. A literal "null" answer, or any unparseable answer, means
// no qualifying incident.
func (c *OpenAIClient) ExtractIncident(ctx context.Context, articleText string) (*incident.Incident, error) {
	prompt := fmt.Sprintf(extractionPromptTemplate, c.city, c.cutoffDate, articleText)

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       c.model,
		Temperature: openai.Float(0),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(extractionSystemPrompt),
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openai extraction call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai extraction call returned no choices")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if isNullAnswer(content) {
		return nil, nil
	}

	cleaned := cleanJSONResponse(content)
	var inc incident.Incident
	if err := json.Unmarshal([]byte(cleaned), &inc); err != nil {
		// Malformed structured output is "no incident", not a crash.
		c.logger.Warn().Str("content", clip(content, 300)).Msg("unparseable extraction response, treating as no incident")
		return nil, nil
	}
	return &inc, nil
}

// SameIncident compares the candidate against each existing record and
// returns one boolean per record. Answers that cannot be parsed count
// as "not a match" for every record.
func (c *OpenAIClient) SameIncident(ctx context.Context, candidate *incident.Incident, existing []*incident.Incident) ([]bool, error) {
	if len(existing) == 0 {
		return nil, nil
	}

	known := make([]map[string]string, 0, len(existing))
	for _, inc := range existing {
		known = append(known, map[string]string{
			"location":    inc.Location,
			"description": inc.Description,
			"type":        inc.Type,
		})
	}
	knownJSON, err := json.MarshalIndent(known, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal known incidents: %w", err)
	}

	prompt := fmt.Sprintf(comparisonPromptTemplate,
		candidate.Location, candidate.Description, candidate.Type, knownJSON)

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       c.model,
		Temperature: openai.Float(0),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openai comparison call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai comparison call returned no choices")
	}

	answers, err := parseBooleanAnswers(resp.Choices[0].Message.Content, len(existing))
	if err != nil {
		c.logger.Warn().Err(err).Msg("unparseable comparison response, treating as no match")
		return make([]bool, len(existing)), nil
	}
	return answers, nil
}

func isNullAnswer(content string) bool {
	return strings.EqualFold(strings.Trim(content, "\"`. "), "null")
}

// parseBooleanAnswers accepts a JSON array of booleans; a bare
// true/false literal is accepted for single-record comparisons.
func parseBooleanAnswers(content string, want int) ([]bool, error) {
	cleaned := cleanBooleanResponse(content)

	var answers []bool
	if err := json.Unmarshal([]byte(cleaned), &answers); err != nil {
		if want == 1 {
			switch strings.ToLower(strings.TrimSpace(cleaned)) {
			case "true":
				return []bool{true}, nil
			case "false":
				return []bool{false}, nil
			}
		}
		return nil, fmt.Errorf("parse comparison answers: %w", err)
	}
	if len(answers) != want {
		return nil, fmt.Errorf("got %d comparison answers, want %d", len(answers), want)
	}
	return answers, nil
}

// cleanJSONResponse strips markdown fences and surrounding prose from an
// object answer.
func cleanJSONResponse(content string) string {
	content = stripFences(content)

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		content = content[start : end+1]
	}
	return content
}

func cleanBooleanResponse(content string) string {
	content = stripFences(content)

	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start >= 0 && end > start {
		content = content[start : end+1]
	}
	return content
}

func stripFences(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}

// clip truncates s to at most n bytes without splitting a rune.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
