package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/talk2shop/internal/db"
	"github.com/kailas-cloud/talk2shop/internal/domain/search/filter"
)

const vectorScoreField = "vector_score"

// SearchKNN runs a KNN vector similarity search via FT.SEARCH.
// Scores are cosine similarities: 1 - distance, clamped at 0.
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if q.IndexName == "" {
		return nil, fmt.Errorf("index name is required")
	}
	if q.VectorField == "" {
		return nil, fmt.Errorf("vector field is required")
	}
	if len(q.Vector) == 0 {
		return nil, fmt.Errorf("vector is required")
	}
	if q.K <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}

	pre := buildFilter(q.Filters)
	if pre == "" {
		pre = "*"
	} else {
		pre = "(" + pre + ")"
	}
	queryStr := fmt.Sprintf("%s=>[KNN %d @%s $BLOB AS %s]", pre, q.K, q.VectorField, vectorScoreField)

	args := []string{q.IndexName, queryStr}
	args = appendReturn(args, q.ReturnFields, vectorScoreField)
	args = append(args,
		"SORTBY", vectorScoreField,
		"LIMIT", "0", strconv.Itoa(q.K),
		"PARAMS", "2", "BLOB", db.EncodeVector(q.Vector),
		"DIALECT", "2",
	)

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		if isUnknownIndex(err) {
			return nil, db.ErrIndexNotFound
		}
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}

	res, err := parseListResult(raw)
	if err != nil {
		return nil, err
	}
	for i := range res.Entries {
		e := &res.Entries[i]
		if d, err := strconv.ParseFloat(e.Fields[vectorScoreField], 64); err == nil {
			e.Score = max(0, 1.0-d)
		}
		delete(e.Fields, vectorScoreField)
	}
	return res, nil
}

// SearchText runs a weighted full-text search via FT.SEARCH with BM25 scoring.
func (s *Store) SearchText(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error) {
	if q.IndexName == "" {
		return nil, fmt.Errorf("index name is required")
	}
	if len(q.Terms) == 0 {
		return nil, fmt.Errorf("at least one term is required")
	}
	if len(q.Fields) == 0 {
		return nil, fmt.Errorf("at least one text field is required")
	}
	if q.Limit <= 0 {
		return nil, fmt.Errorf("limit must be positive")
	}

	queryStr := buildTextQuery(q.Fields, q.Terms)
	if pre := buildFilter(q.Filters); pre != "" {
		queryStr = pre + " " + queryStr
	}

	args := []string{q.IndexName, queryStr}
	args = appendReturn(args, q.ReturnFields)
	args = append(args,
		"WITHSCORES",
		"SCORER", "BM25STD",
		"LIMIT", strconv.Itoa(max(q.Offset, 0)), strconv.Itoa(q.Limit),
		"DIALECT", "2",
	)

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		if isUnknownIndex(err) {
			return nil, db.ErrIndexNotFound
		}
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}

	return parseScoredResult(raw)
}

// SearchList performs a filtered, sorted, paginated FT.SEARCH without relevance scoring.
func (s *Store) SearchList(ctx context.Context, q *db.ListQuery) (*db.SearchResult, error) {
	if q.IndexName == "" {
		return nil, fmt.Errorf("index name is required")
	}
	if q.Limit <= 0 {
		return nil, fmt.Errorf("limit must be positive")
	}

	queryStr := strings.TrimSpace(buildFilter(q.Filters) + " " + q.Where)
	if queryStr == "" {
		queryStr = "*"
	}

	args := []string{q.IndexName, queryStr}
	args = appendReturn(args, q.ReturnFields)
	if q.SortBy != "" {
		dir := "ASC"
		if q.Descending {
			dir = "DESC"
		}
		args = append(args, "SORTBY", q.SortBy, dir)
	}
	args = append(args,
		"LIMIT", strconv.Itoa(max(q.Offset, 0)), strconv.Itoa(q.Limit),
		"DIALECT", "2",
	)

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		if isUnknownIndex(err) {
			return nil, db.ErrIndexNotFound
		}
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}

	return parseListResult(raw)
}

func appendReturn(args, fields []string, extra ...string) []string {
	if len(fields) == 0 {
		return args
	}
	all := append(append([]string{}, fields...), extra...)
	args = append(args, "RETURN", strconv.Itoa(len(all)))
	return append(args, all...)
}

// --- Result parsing ---

func parseTotal(raw []rueidis.RedisMessage) (int, error) {
	if len(raw) == 0 {
		return 0, nil
	}
	total, err := raw[0].AsInt64()
	if err != nil {
		return 0, fmt.Errorf("parse total: %w", err)
	}
	return int(total), nil
}

// parseListResult handles the 2-stride reply: [total, key1, fields1, key2, fields2, ...].
func parseListResult(raw []rueidis.RedisMessage) (*db.SearchResult, error) {
	total, err := parseTotal(raw)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return &db.SearchResult{}, nil
	}

	entries := make([]db.SearchEntry, 0, (len(raw)-1)/2)
	for i := 1; i+1 < len(raw); i += 2 {
		key, ok := msgString(&raw[i])
		if !ok {
			continue
		}
		fields, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}
		entries = append(entries, db.SearchEntry{Key: key, Fields: parseFieldPairs(fields)})
	}

	return &db.SearchResult{Total: total, Entries: entries}, nil
}

// parseScoredResult handles the WITHSCORES 3-stride reply: [total, key1, score1, fields1, ...].
func parseScoredResult(raw []rueidis.RedisMessage) (*db.SearchResult, error) {
	total, err := parseTotal(raw)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return &db.SearchResult{}, nil
	}

	entries := make([]db.SearchEntry, 0, (len(raw)-1)/3)
	for i := 1; i+2 < len(raw); i += 3 {
		key, ok := msgString(&raw[i])
		if !ok {
			continue
		}
		scoreStr, ok := msgString(&raw[i+1])
		if !ok {
			continue
		}
		score, err := strconv.ParseFloat(scoreStr, 64)
		if err != nil {
			continue
		}
		fields, err := raw[i+2].ToArray()
		if err != nil {
			continue
		}
		entries = append(entries, db.SearchEntry{Key: key, Score: score, Fields: parseFieldPairs(fields)})
	}

	return &db.SearchResult{Total: total, Entries: entries}, nil
}

func parseFieldPairs(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		name, ok := msgString(&fields[j])
		if !ok {
			continue
		}
		value, ok := msgString(&fields[j+1])
		if !ok {
			continue
		}
		m[name] = value
	}
	return m
}

// --- Query building ---

// buildFilter translates a filter.Expression into an FT.SEARCH pre-filter.
// Exact matches hit the TAG alias of the field, ranges hit the NUMERIC field itself.
func buildFilter(expr filter.Expression) string {
	if expr.IsEmpty() {
		return ""
	}

	parts := make([]string, 0, len(expr.Must()))
	for _, cond := range expr.Must() {
		switch {
		case cond.IsMatch():
			parts = append(parts, buildTagFilter(db.TagAlias(cond.Key()), cond.Match()))
		case cond.IsRange():
			parts = append(parts, buildNumericFilter(cond.Key(), *cond.Range()))
		}
	}
	return strings.Join(parts, " ")
}

func buildTagFilter(field, value string) string {
	return fmt.Sprintf("@%s:{%s}", field, tagEscaper.Replace(value))
}

func buildNumericFilter(key string, r filter.Range) string {
	minBound := "-inf"
	maxBound := "+inf"

	if r.GT() != nil {
		minBound = fmt.Sprintf("(%g", *r.GT())
	} else if r.GTE() != nil {
		minBound = fmt.Sprintf("%g", *r.GTE())
	}

	if r.LT() != nil {
		maxBound = fmt.Sprintf("(%g", *r.LT())
	} else if r.LTE() != nil {
		maxBound = fmt.Sprintf("%g", *r.LTE())
	}

	return fmt.Sprintf("@%s:[%s %s]", key, minBound, maxBound)
}

// buildTextQuery ORs the terms across the given TEXT fields: @a|b:(t1 | t2).
func buildTextQuery(fields, terms []string) string {
	escaped := make([]string, len(terms))
	for i, t := range terms {
		escaped[i] = escapeQuery(t)
	}
	return fmt.Sprintf("@%s:(%s)", strings.Join(fields, "|"), strings.Join(escaped, " | "))
}

// --- Query helpers ---

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

func escapeQuery(s string) string {
	return queryEscaper.Replace(s)
}

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
	`~`, `\~`,
	`*`, `\*`,
	`[`, `\[`,
	`]`, `\]`,
	`!`, `\!`,
	`%`, `\%`,
	`^`, `\^`,
	`$`, `\$`,
	`<`, `\<`,
	`>`, `\>`,
	`=`, `\=`,
	`;`, `\;`,
	`+`, `\+`,
)
