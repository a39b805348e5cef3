package product

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
	"unicode"

	domprod "github.com/kailas-cloud/talk2shop/internal/domain/product"
)

// Hash field names.
const (
	fieldID            = "id"
	fieldTitle         = "title"
	fieldDescription   = "description"
	fieldCategory      = "category"
	fieldSubcategory   = "subcategory"
	fieldPrice         = "price"
	fieldStock         = "stock"
	fieldImages        = "images"
	fieldCreatedAt     = "created_at"
	fieldUpdatedAt     = "updated_at"
	fieldReindexNeeded = "reindex_needed"
)

// buildHashFields flattens a product into HSET field/value pairs.
// Timestamps are unix milliseconds so created_at can back a NUMERIC SORTABLE field.
func buildHashFields(p *domprod.Product) map[string]string {
	images, _ := json.Marshal(nonNil(p.Images()))
	return map[string]string{
		fieldID:            p.ID(),
		fieldTitle:         p.Title(),
		fieldDescription:   p.Description(),
		fieldCategory:      p.Category(),
		fieldSubcategory:   p.Subcategory(),
		fieldPrice:         strconv.FormatFloat(p.Price(), 'f', -1, 64),
		fieldStock:         strconv.Itoa(p.Stock()),
		fieldImages:        string(images),
		fieldCreatedAt:     strconv.FormatInt(p.CreatedAt().UnixMilli(), 10),
		fieldUpdatedAt:     strconv.FormatInt(p.UpdatedAt().UnixMilli(), 10),
		fieldReindexNeeded: boolFlag(p.ReindexNeeded()),
	}
}

// parseHashFields rebuilds a product from a hash. ok is false for an empty (missing) hash.
func parseHashFields(id string, m map[string]string) (domprod.Product, bool) {
	if len(m) == 0 {
		return domprod.Product{}, false
	}
	if v := m[fieldID]; v != "" {
		id = v
	}

	price, _ := strconv.ParseFloat(m[fieldPrice], 64)
	stock, _ := strconv.Atoi(m[fieldStock])

	var images []string
	if raw := m[fieldImages]; raw != "" {
		_ = json.Unmarshal([]byte(raw), &images)
	}

	f := domprod.Fields{
		Title:       m[fieldTitle],
		Description: m[fieldDescription],
		Category:    m[fieldCategory],
		Subcategory: m[fieldSubcategory],
		Price:       price,
		Stock:       stock,
		Images:      images,
	}
	return domprod.Restore(id, f, parseMillis(m[fieldCreatedAt]), parseMillis(m[fieldUpdatedAt]),
		m[fieldReindexNeeded] == "1"), true
}

func parseMillis(s string) time.Time {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func boolFlag(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

const maxTerms = 16

// queryTerms splits free text into lowercase, deduplicated search terms on the same
// boundaries the engine tokenizes indexed text on.
func queryTerms(query string) []string {
	words := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !isWordRune(r)
	})

	seen := make(map[string]bool, len(words))
	terms := make([]string, 0, len(words))
	for _, w := range words {
		if seen[w] {
			continue
		}
		seen[w] = true
		terms = append(terms, w)
		if len(terms) == maxTerms {
			break
		}
	}
	return terms
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
