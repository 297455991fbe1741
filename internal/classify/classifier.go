// Package classify assigns intent and sentiment labels to inbound
// text-bearing messages. The interface is the integration point for an
// LLM-backed implementation; the keyword classifier shipped here is a
// deterministic default that keeps the gateway self-contained.
package classify

import (
	"context"
	"reflect"
	"strings"

	"github.com/rs/zerolog"

	"github.com/example/whatsapp-gateway/internal/models"
)

// Result carries the labels produced for one message.
type Result struct {
	Intent     string  `json:"intent"`
	Sentiment  string  `json:"sentiment"`
	Confidence float64 `json:"confidence"`
}

// Classifier labels a normalized message. Implementations must treat the
// message as read-only.
type Classifier interface {
	Classify(ctx context.Context, msg *models.NormalizedMessage) (*Result, error)
}

// intentRules are probed in order; the first intent with a keyword hit wins.
var intentRules = []struct {
	intent   string
	keywords []string
}{
	{"cancel", []string{"cancel", "refund", "cancelar", "reembolso"}},
	{"support", []string{"help", "problem", "issue", "broken", "ajuda", "problema"}},
	{"purchase", []string{"buy", "price", "quote", "order", "comprar", "preço"}},
	{"greeting", []string{"hello", "hey", "olá", "bom dia", "boa tarde"}},
}

var sentimentRules = []struct {
	sentiment string
	keywords  []string
}{
	{"negative", []string{"terrible", "angry", "worst", "awful", "péssimo", "horrível"}},
	{"positive", []string{"thanks", "great", "love", "perfect", "obrigado", "ótimo"}},
}

// KeywordClassifier is a table-driven Classifier.
type KeywordClassifier struct {
	logger zerolog.Logger
}

// NewKeywordClassifier constructs the default classifier.
func NewKeywordClassifier(logger zerolog.Logger) *KeywordClassifier {
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	return &KeywordClassifier{logger: logger}
}

// Classify scans the message text for intent and sentiment keywords. Messages
// without text yield the neutral fallback.
func (c *KeywordClassifier) Classify(_ context.Context, msg *models.NormalizedMessage) (*Result, error) {
	text := ""
	if msg != nil {
		text = strings.ToLower(msg.Content.Text)
	}
	if strings.TrimSpace(text) == "" {
		return &Result{Intent: "other", Sentiment: "neutral", Confidence: 0}, nil
	}

	result := &Result{Intent: "other", Sentiment: "neutral", Confidence: 0.5}
	for _, rule := range intentRules {
		if containsAny(text, rule.keywords) {
			result.Intent = rule.intent
			result.Confidence = 0.8
			break
		}
	}
	for _, rule := range sentimentRules {
		if containsAny(text, rule.keywords) {
			result.Sentiment = rule.sentiment
			break
		}
	}
	return result, nil
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
