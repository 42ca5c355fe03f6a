// Package oracle asks a language model to rule on price counter-offers over
// an OpenAI-compatible chat completions API.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/ingredient-market/internal/core/domain"
)

const (
	DefaultModel   = "gpt-4o-mini"
	maxErrorSample = 800
)

const systemPrompt = `You are the pricing desk of an ingredient wholesaler.
A buyer has made a counter-offer on a quote. Decide whether to accept it.
Never sell below the base price. Small discounts for good reasons are fine;
large or unjustified ones are not. You may also settle on a price between the
offer and the quoted price.
Reply with a single JSON object and nothing else:
{"accepted": true|false, "final_price_per_unit": number, "rationale": "one or two sentences"}`

type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	body := e.Body
	if len(body) > maxErrorSample {
		body = body[:maxErrorSample]
	}
	return fmt.Sprintf("oracle status=%d body=%s", e.Status, body)
}

// LLMOracle implements port.NegotiationOracle. It holds no state between
// calls; the caller bounds each call with a deadline on ctx.
type LLMOracle struct {
	endpoint string
	apiKey   string
	model    string
	client   *http.Client
	logger   *zap.Logger
}

// NewLLMOracle targets baseURL + "/chat/completions" unless baseURL already
// names the completions endpoint.
func NewLLMOracle(baseURL, apiKey, model string, client *http.Client, logger *zap.Logger) *LLMOracle {
	endpoint := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if !strings.HasSuffix(endpoint, "/chat/completions") {
		endpoint += "/chat/completions"
	}
	if model == "" {
		model = DefaultModel
	}
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMOracle{
		endpoint: endpoint,
		apiKey:   strings.TrimSpace(apiKey),
		model:    model,
		client:   client,
		logger:   logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type verdict struct {
	Accepted          bool     `json:"accepted"`
	FinalPricePerUnit *float64 `json:"final_price_per_unit"`
	Rationale         string   `json:"rationale"`
}

func (o *LLMOracle) Decide(ctx context.Context, nctx domain.NegotiationContext) (domain.Decision, error) {
	payload := chatRequest{
		Model: o.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt(nctx)},
		},
		Temperature:    0.2,
		ResponseFormat: map[string]string{"type": "json_object"},
	}
	rawBody, err := json.Marshal(payload)
	if err != nil {
		return domain.Decision{}, fmt.Errorf("marshal request payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewReader(rawBody))
	if err != nil {
		return domain.Decision{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if o.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.apiKey)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return domain.Decision{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Decision{}, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.Decision{}, &UpstreamError{Status: resp.StatusCode, Body: string(body)}
	}

	content, err := parseChatCompletionContent(body)
	if err != nil {
		return domain.Decision{}, err
	}
	d, err := parseVerdict(content, nctx.ProposedPrice)
	if err != nil {
		return domain.Decision{}, err
	}

	o.logger.Debug("Oracle decided",
		zap.String("quote_id", nctx.Quote.ID),
		zap.Bool("accepted", d.Accepted),
		zap.String("final_price", d.FinalUnitPrice.String()),
	)
	return d, nil
}

func userPrompt(nctx domain.NegotiationContext) string {
	q := nctx.Quote
	var b strings.Builder
	fmt.Fprintf(&b, "Ingredient: %s (%s)\n", q.Name, q.IngredientID)
	fmt.Fprintf(&b, "Quantity: %s %s\n", q.Quantity.String(), q.UnitOfMeasure)
	fmt.Fprintf(&b, "Base price per unit: %s %s\n", nctx.BasePrice.StringFixed(domain.CurrencyPlaces), q.Currency)
	fmt.Fprintf(&b, "Quoted price per unit: %s %s\n", q.UnitPrice.StringFixed(domain.CurrencyPlaces), q.Currency)
	fmt.Fprintf(&b, "Offered price per unit: %s %s\n", nctx.ProposedPrice.StringFixed(domain.CurrencyPlaces), q.Currency)
	fmt.Fprintf(&b, "Quote valid until t=%d, current time t=%d\n", q.ValidUntil, nctx.Now)
	fmt.Fprintf(&b, "Buyer's rationale: %s\n", nctx.Rationale)
	return b.String()
}

func parseChatCompletionContent(raw []byte) (string, error) {
	var resp struct {
		Choices []struct {
			Message struct {
				Content any `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("decode chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	content := extractMessageContent(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("chat completion content is empty")
	}
	return content, nil
}

func extractMessageContent(content any) string {
	switch value := content.(type) {
	case string:
		return strings.TrimSpace(value)
	case []any:
		var builder strings.Builder
		for _, item := range value {
			segment, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if text, ok := segment["text"].(string); ok {
				builder.WriteString(text)
			}
		}
		return strings.TrimSpace(builder.String())
	default:
		return ""
	}
}

// parseVerdict reads the model's JSON object, tolerating code fences and
// prose around it. An acceptance without a price means the offer as made.
func parseVerdict(content string, proposed decimal.Decimal) (domain.Decision, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return domain.Decision{}, fmt.Errorf("oracle reply has no JSON object")
	}

	var v verdict
	if err := json.Unmarshal([]byte(content[start:end+1]), &v); err != nil {
		return domain.Decision{}, fmt.Errorf("decode oracle verdict: %w", err)
	}

	d := domain.Decision{Accepted: v.Accepted, Rationale: strings.TrimSpace(v.Rationale)}
	switch {
	case v.FinalPricePerUnit != nil:
		d.FinalUnitPrice = decimal.NewFromFloat(*v.FinalPricePerUnit)
	case v.Accepted:
		d.FinalUnitPrice = proposed
	}
	return d, nil
}
