package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/cinedex/internal/db"
	"github.com/kailas-cloud/cinedex/internal/domain"
)

// scoreField is the synthetic field FT.SEARCH attaches the KNN distance to
// for a vector field named "embedding".
const scoreField = "__" + domain.FieldEmbedding + "_score"

// SearchKNN runs a KNN vector similarity search via FT.SEARCH, with the
// attribute filter pushed down as a pre-filter in the same query.
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if q.IndexName == "" {
		return nil, fmt.Errorf("index name is required")
	}
	if len(q.Vector) == 0 {
		return nil, fmt.Errorf("vector is required")
	}
	if q.K <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}

	filterStr := buildFilter(q.Filter)

	knnPart := fmt.Sprintf("[KNN %d @%s $BLOB]", q.K, domain.FieldEmbedding)
	var queryStr string
	if filterStr != "" {
		queryStr = fmt.Sprintf("(%s)=>%s", filterStr, knnPart)
	} else {
		queryStr = fmt.Sprintf("*=>%s", knnPart)
	}

	args := []string{q.IndexName, queryStr}

	if len(q.ReturnFields) > 0 {
		ret := append([]string{scoreField}, q.ReturnFields...)
		args = append(args, "RETURN", strconv.Itoa(len(ret)))
		args = append(args, ret...)
	}

	args = append(args,
		"LIMIT", "0", strconv.Itoa(q.K),
		"PARAMS", "2", "BLOB", db.VectorToBytes(q.Vector),
		"DIALECT", "2",
	)

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}

	return parseSearchResult(raw, true)
}

// SearchLexical runs a keyword search via FT.SEARCH: an OR-union of the
// query tokens over the text and tag fields, combined with the pushed-down
// attribute filter. Result order is server-defined and carries no score.
func (s *Store) SearchLexical(ctx context.Context, q *db.LexicalQuery) (*db.SearchResult, error) {
	if q.IndexName == "" {
		return nil, fmt.Errorf("index name is required")
	}
	if len(q.Tokens) == 0 {
		return nil, fmt.Errorf("at least one token is required")
	}
	if q.TopK <= 0 {
		return nil, fmt.Errorf("topK must be positive")
	}

	matchStr := buildLexicalMatch(q.Tokens)

	var queryStr string
	if filterStr := buildFilter(q.Filter); filterStr != "" {
		queryStr = fmt.Sprintf("%s (%s)", filterStr, matchStr)
	} else {
		queryStr = matchStr
	}

	args := []string{q.IndexName, queryStr}

	if len(q.ReturnFields) > 0 {
		args = append(args, "RETURN", strconv.Itoa(len(q.ReturnFields)))
		args = append(args, q.ReturnFields...)
	}

	args = append(args,
		"LIMIT", "0", strconv.Itoa(q.TopK),
		"DIALECT", "2",
	)

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}

	return parseSearchResult(raw, false)
}

// --- Result parsing ---

// parseSearchResult parses the RESP2 FT.SEARCH reply: a 2-stride array
// [total, key1, fields1, key2, fields2, ...]. When knn is true, the
// cosine distance field is converted to a similarity score (1 - distance,
// which on unit vectors is the inner product, conceptually in [-1, 1]).
func parseSearchResult(raw []rueidis.RedisMessage, knn bool) (*db.SearchResult, error) {
	if len(raw) == 0 {
		return &db.SearchResult{}, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	if total == 0 {
		return &db.SearchResult{}, nil
	}

	entries := make([]db.SearchEntry, 0, total)
	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}

		fields, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}

		entry := db.SearchEntry{
			Key:    key,
			Fields: parseFieldPairs(fields),
		}

		if knn {
			if distStr, ok := entry.Fields[scoreField]; ok {
				if d, err := strconv.ParseFloat(distStr, 64); err == nil {
					entry.Score = 1.0 - d
				}
				delete(entry.Fields, scoreField)
			}
		}

		entries = append(entries, entry)
	}

	return &db.SearchResult{Total: int(total), Entries: entries}, nil
}

func parseFieldPairs(pairs []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		name, err := pairs[i].ToString()
		if err != nil {
			continue
		}
		value, err := pairs[i+1].ToString()
		if err != nil {
			continue
		}
		m[name] = value
	}
	return m
}

// --- Filter building ---

// buildFilter translates a FilterSpec into the native FT.SEARCH pre-filter
// syntax: numeric ranges with inclusive bounds defaulting to ±inf, tag
// unions for required sets (OR semantics), negated tag unions for excluded
// sets. Clauses are implicitly ANDed.
func buildFilter(f *domain.FilterSpec) string {
	if f.IsEmpty() {
		return ""
	}

	var parts []string

	if f.MinYear != nil || f.MaxYear != nil {
		parts = append(parts, buildNumericFilter(domain.FieldYear, intBound(f.MinYear), intBound(f.MaxYear)))
	}
	if f.MinRating != nil || f.MaxRating != nil {
		parts = append(parts, buildNumericFilter(domain.FieldRating, floatBound(f.MinRating), floatBound(f.MaxRating)))
	}
	if f.MinDuration != nil || f.MaxDuration != nil {
		parts = append(parts, buildNumericFilter(domain.FieldDuration, intBound(f.MinDuration), intBound(f.MaxDuration)))
	}

	if len(f.RequiredGenres) > 0 {
		parts = append(parts, buildTagFilter(domain.FieldGenres, f.RequiredGenres))
	}
	if len(f.ExcludedGenres) > 0 {
		parts = append(parts, "-"+buildTagFilter(domain.FieldGenres, f.ExcludedGenres))
	}
	if len(f.RequiredLanguages) > 0 {
		parts = append(parts, buildTagFilter(domain.FieldLanguages, f.RequiredLanguages))
	}
	if len(f.ExcludedLanguages) > 0 {
		parts = append(parts, "-"+buildTagFilter(domain.FieldLanguages, f.ExcludedLanguages))
	}

	return strings.Join(parts, " ")
}

func intBound(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}

func floatBound(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'g', -1, 64)
}

func buildNumericFilter(key, minBound, maxBound string) string {
	if minBound == "" {
		minBound = "-inf"
	}
	if maxBound == "" {
		maxBound = "+inf"
	}
	return fmt.Sprintf("@%s:[%s %s]", key, minBound, maxBound)
}

func buildTagFilter(key string, values domain.StringSet) string {
	sorted := values.Values()
	escaped := make([]string, len(sorted))
	for i, v := range sorted {
		escaped[i] = tagEscaper.Replace(v)
	}
	return fmt.Sprintf("@%s:{%s}", key, strings.Join(escaped, "|"))
}

// buildLexicalMatch builds the OR-union of tokens: prefix match over the
// text fields plus exact tag membership over the set fields.
func buildLexicalMatch(tokens []string) string {
	textTerms := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		escaped := queryEscaper.Replace(tok)
		if escaped != "" {
			textTerms = append(textTerms, escaped+"*")
		}
	}

	clauses := []string{
		fmt.Sprintf("@%s|%s:(%s)",
			domain.FieldTitle, domain.FieldDescription, strings.Join(textTerms, "|")),
		buildTagFilter(domain.FieldGenres, domain.NewStringSet(tokens...)),
		buildTagFilter(domain.FieldLanguages, domain.NewStringSet(tokens...)),
	}

	return strings.Join(clauses, " | ")
}

// --- Query escaping ---

var tagEscaper = strings.NewReplacer(
	",", "\\,",
	".", "\\.",
	"<", "\\<",
	">", "\\>",
	"{", "\\{",
	"}", "\\}",
	"\"", "\\\"",
	"'", "\\'",
	":", "\\:",
	";", "\\;",
	"!", "\\!",
	"@", "\\@",
	"#", "\\#",
	"$", "\\$",
	"%", "\\%",
	"^", "\\^",
	"&", "\\&",
	"*", "\\*",
	"(", "\\(",
	")", "\\)",
	"-", "\\-",
	"+", "\\+",
	"=", "\\=",
	"~", "\\~",
	" ", "\\ ",
)

var queryEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	`"`, `\"`,
	`@`, `\@`,
	`{`, `\{`,
	`}`, `\}`,
	`(`, `\(`,
	`)`, `\)`,
	`|`, `\|`,
	`-`, `\-`,
	`*`, `\*`,
	`:`, `\:`,
)
