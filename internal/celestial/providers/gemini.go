package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sony/gobreaker"

	"github.com/skycal/celestial-data-aggregation/internal/celestial"
)

// GeminiProvider implements celestial.GenerativeProvider against the
// Google generative language API. Responses are freeform text; structured
// shapes are the caller's problem, via the extract package.
type GeminiProvider struct {
	name    string
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
	circuit *gobreaker.CircuitBreaker
}

func NewGeminiProvider(client *http.Client, apiKey, model string) *GeminiProvider {
	if model == "" {
		model = "gemini-2.0-flash-lite"
	}
	return &GeminiProvider{
		name:    "gemini",
		apiKey:  apiKey,
		model:   model,
		baseURL: "https://generativelanguage.googleapis.com/v1beta/models",
		client:  client,
		circuit: newCircuit("gemini"),
	}
}

func (p *GeminiProvider) Name() string {
	return p.name
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Generate sends a single prompt and returns the raw reply text.
func (p *GeminiProvider) Generate(ctx context.Context, prompt string) (string, error) {
	return p.generate(ctx, geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
	})
}

// Chat sends a role-tagged turn history, optionally prefixed by a system
// preamble folded into the first user turn (the API has no system role on
// this endpoint).
func (p *GeminiProvider) Chat(ctx context.Context, system string, turns []celestial.ChatTurn) (string, error) {
	contents := make([]geminiContent, 0, len(turns)+1)
	if system != "" {
		contents = append(contents, geminiContent{
			Role:  "user",
			Parts: []geminiPart{{Text: system}},
		})
	}
	for _, turn := range turns {
		role := "user"
		if turn.Author == celestial.TurnAssistant {
			role = "model"
		}
		contents = append(contents, geminiContent{
			Role:  role,
			Parts: []geminiPart{{Text: turn.Text}},
		})
	}
	return p.generate(ctx, geminiRequest{Contents: contents})
}

func (p *GeminiProvider) generate(ctx context.Context, reqBody geminiRequest) (string, error) {
	if p.apiKey == "" {
		return "", fmt.Errorf("gemini api key is not configured")
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	buildRequest := func() (*http.Request, error) {
		u := fmt.Sprintf("%s/%s:generateContent?key=%s", p.baseURL, p.model, p.apiKey)
		req, err := http.NewRequest(http.MethodPost, u, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}

	resp, err := doRequest(ctx, p.client, p.circuit, buildRequest)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var payload geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("%w: %v", celestial.ErrSchemaMismatch, err)
	}
	if len(payload.Candidates) == 0 || len(payload.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("%w: no candidates in response", celestial.ErrSchemaMismatch)
	}

	return payload.Candidates[0].Content.Parts[0].Text, nil
}
