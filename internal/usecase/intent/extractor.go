// Package intent turns free-form natural language into a structured
// discovery query using a chat model.
package intent

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/cinedex/internal/domain"
)

const systemPrompt = `You extract structured movie search queries from natural language.

Respond with a single JSON object and nothing else. Fields:
  positive_query  string, required. What the user wants, as a short descriptive phrase.
  negative_query  string, optional. What the user wants to avoid, if they said so.
  filter          object, optional. Only include constraints the user stated:
    min_year, max_year            integers
    min_rating, max_rating        numbers (0-10 scale)
    min_duration, max_duration    integers, minutes
    required_genres, excluded_genres        arrays of lowercase genre names
    required_languages, excluded_languages  arrays of lowercase language names
  top_k           integer, optional. Only if the user asked for a specific count.

Do not invent constraints. If the request is vague, return just positive_query.

Example request: "a feel-good space movie from the 90s, nothing scary, rated at least 7"
Example response: {"positive_query":"feel-good space adventure","filter":{"min_year":1990,"max_year":1999,"min_rating":7,"excluded_genres":["horror"]}}`

// ChatCompleter is the chat surface the extractor needs.
type ChatCompleter interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Extractor maps free text to a QuerySpec via a chat model.
type Extractor struct {
	chat   ChatCompleter
	logger *zap.Logger
}

// New creates an extractor.
func New(chat ChatCompleter, logger *zap.Logger) *Extractor {
	return &Extractor{chat: chat, logger: logger}
}

// Extract asks the model for a structured query. It never fails the request:
// any model or parse problem degrades to a plain positive-query search so
// the user still gets results.
func (e *Extractor) Extract(ctx context.Context, text string) *domain.QuerySpec {
	raw, err := e.chat.Complete(ctx, systemPrompt, text)
	if err != nil {
		e.logger.Warn("Intent extraction failed, using raw text", zap.Error(err))
		return Fallback(text)
	}

	payload := extractJSON(raw)
	if payload == "" {
		e.logger.Warn("Intent response carried no JSON object",
			zap.String("response", truncate(raw, 200)))
		return Fallback(text)
	}

	var q domain.QuerySpec
	if err := json.Unmarshal([]byte(payload), &q); err != nil {
		e.logger.Warn("Intent response JSON did not parse", zap.Error(err))
		return Fallback(text)
	}
	if strings.TrimSpace(q.PositiveQuery) == "" {
		q.PositiveQuery = text
	}

	return &q
}

// Fallback wraps raw text as a plain semantic query.
func Fallback(text string) *domain.QuerySpec {
	return &domain.QuerySpec{PositiveQuery: text, Alpha: 1.0, Beta: 1.0}
}

// extractJSON returns the first balanced top-level JSON object in s. Models
// sometimes wrap the object in code fences or prose.
func extractJSON(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}

	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
