package detector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/sashabaranov/go-openai"

	"NetGauntlet/internal/config"
)

// FlowAnalyzer implements model.Analyzer against an OpenAI-compatible
// chat-completions endpoint (Ollama exposes one), asking the model to grade a
// flow batch for SYN-flood likelihood.
type FlowAnalyzer struct {
	cfg    *config.AIConfig
	client *openai.Client
}

// NewFlowAnalyzer creates a new instance of FlowAnalyzer.
func NewFlowAnalyzer(cfg *config.AIConfig) (*FlowAnalyzer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("AI API key is not configured")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	client := openai.NewClientWithConfig(clientConfig)

	return &FlowAnalyzer{cfg: cfg, client: client}, nil
}

const analyzerSystemPrompt = "You are a network security analyst specialized in detecting " +
	"SYN TCP flooding DDoS attacks. Always respond only with valid JSON matching the schema."

// AnalyzeFlows sends the flow payload to the model and returns its raw text
// answer.
func (a *FlowAnalyzer) AnalyzeFlows(ctx context.Context, payload string) (string, error) {
	prompt := fmt.Sprintf(
		"Analyze the following network flow and determine the probability (0-100) of a SYN TCP Flooding DoS attack.\n"+
			"Return STRICTLY a single JSON object matching the schema:\n\n"+
			"{\n"+
			"    \"dos_attack_probability\": 0,\n"+
			"    \"justification\": \"string\"\n"+
			"}\n\n"+
			"<flow>\n%s\n</flow>", payload,
	)

	resp, err := a.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: a.cfg.Model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: analyzerSystemPrompt,
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
		},
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("AI request timeout: %w", err)
		}
		if errors.Is(err, context.Canceled) {
			return "", fmt.Errorf("AI request canceled: %w", err)
		}
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("OpenAI API returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Verdict is the detector's structured answer.
type Verdict struct {
	DosAttackProbability int      `json:"dos_attack_probability"`
	Justification        string   `json:"justification"`
	IPOrigin             []string `json:"ip_origin,omitempty"`
}

var jsonObjectRe = regexp.MustCompile(`\{[\s\S]*\}`)

// ParseVerdict extracts the verdict from a raw model answer: a strict parse
// first, then a fallback to the first JSON object embedded in surrounding
// prose, since smaller models tend to wrap their answer in commentary.
func ParseVerdict(raw string) (Verdict, error) {
	var v Verdict
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v, nil
	}
	match := jsonObjectRe.FindString(raw)
	if match == "" {
		return v, fmt.Errorf("no JSON object in model answer")
	}
	if err := json.Unmarshal([]byte(match), &v); err != nil {
		return v, fmt.Errorf("failed to parse model answer: %w", err)
	}
	return v, nil
}
