package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/vkarpekin/mebelbot/internal/config"
	"github.com/vkarpekin/mebelbot/internal/domain"
)

// OpenRouterService asks an external language model to parse the
// messages the rule classifier gave up on. It fails soft everywhere:
// any trouble (no key, timeout, bad JSON) comes back as an unknown
// parse and the dialog shows its regular fallback.
type OpenRouterService struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

func NewOpenRouterService(apiKey, model string) *OpenRouterService {
	return &OpenRouterService{
		apiKey:     apiKey,
		model:      model,
		baseURL:    "https://openrouter.ai/api/v1",
		httpClient: &http.Client{Timeout: config.LLMRequestTimeout},
	}
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
}

type ChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

const parsePrompt = `Ты разбираешь сообщения менеджера мебельной фабрики.
Верни ТОЛЬКО JSON без пояснений:
{"type":"deal|search_client|search_product|unknown","client_name":"","client_phone":"","product_name":"","quantity":0,"note":""}

type=deal — менеджер хочет создать сделку (заказ).
type=search_client — ищет сделки по клиенту, client_name обязателен.
type=search_product — ищет сделки по изделию, product_name обязателен.
type=unknown — всё остальное.
Имена возвращай в именительном падеже с большой буквы.`

func (s *OpenRouterService) Parse(ctx context.Context, text string) domain.LLMParse {
	unknown := domain.LLMParse{Type: domain.LLMParseUnknown}
	if s.apiKey == "" {
		return unknown
	}

	temp := 0.0
	payload, err := json.Marshal(ChatRequest{
		Model: s.model,
		Messages: []ChatMessage{
			{Role: "system", Content: parsePrompt},
			{Role: "user", Content: text},
		},
		Temperature: &temp,
	})
	if err != nil {
		slog.Error("marshal parse request", "error", err)
		return unknown
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		slog.Error("create parse request", "error", err)
		return unknown
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		slog.Warn("language-model request failed", "error", err)
		return unknown
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		slog.Warn("read language-model response", "error", err)
		return unknown
	}
	if resp.StatusCode != http.StatusOK {
		slog.Warn("language-model error status", "status", resp.StatusCode, "body", truncateBody(body))
		return unknown
	}

	var chat ChatResponse
	if err := json.Unmarshal(body, &chat); err != nil || len(chat.Choices) == 0 {
		slog.Warn("parse language-model envelope", "error", err)
		return unknown
	}

	parsed, err := decodeParse(chat.Choices[0].Message.Content)
	if err != nil {
		slog.Warn("language-model returned unparseable content", "error", err)
		return unknown
	}
	return parsed
}

// decodeParse pulls the JSON object out of the model reply, tolerating
// markdown fences and prose around it.
func decodeParse(content string) (domain.LLMParse, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return domain.LLMParse{}, fmt.Errorf("no JSON object in %q", truncateBody([]byte(content)))
	}

	var p domain.LLMParse
	if err := json.Unmarshal([]byte(content[start:end+1]), &p); err != nil {
		return domain.LLMParse{}, fmt.Errorf("decode parse: %w", err)
	}
	switch p.Type {
	case domain.LLMParseDeal, domain.LLMParseSearchClient, domain.LLMParseSearchProduct:
	default:
		p = domain.LLMParse{Type: domain.LLMParseUnknown}
	}
	return p, nil
}

func truncateBody(b []byte) string {
	const max = 200
	if len(b) <= max {
		return string(b)
	}
	return string(b[:max]) + "..."
}
