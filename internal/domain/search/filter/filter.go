package filter

import "fmt"

// Filterable product fields.
const (
	KeyCategory    = "category"
	KeySubcategory = "subcategory"
	KeyPrice       = "price"
	KeyStock       = "stock"
)

// MaxConditions is the maximum number of conditions in one expression.
const MaxConditions = 16

var (
	matchKeys = map[string]bool{KeyCategory: true, KeySubcategory: true}
	rangeKeys = map[string]bool{KeyPrice: true, KeyStock: true}
)

// Expression is a conjunction of conditions. The zero value matches everything.
type Expression struct {
	must []Condition
}

// NewExpression validates and creates a filter Expression.
func NewExpression(must ...Condition) (Expression, error) {
	if len(must) > MaxConditions {
		return Expression{}, fmt.Errorf("too many filter conditions (max %d)", MaxConditions)
	}
	return Expression{must: must}, nil
}

// ByCategory builds the exact-match expression used by search requests. Blank values are skipped.
func ByCategory(category, subcategory string) Expression {
	var must []Condition
	if category != "" {
		must = append(must, Condition{key: KeyCategory, match: category})
	}
	if subcategory != "" {
		must = append(must, Condition{key: KeySubcategory, match: subcategory})
	}
	return Expression{must: must}
}

// Must returns the conditions.
func (e Expression) Must() []Condition { return e.must }

// IsEmpty reports whether the expression has no conditions.
func (e Expression) IsEmpty() bool { return len(e.must) == 0 }

// MatchOnly reports whether every condition is an exact match (no ranges).
func (e Expression) MatchOnly() bool {
	for _, c := range e.must {
		if !c.IsMatch() {
			return false
		}
	}
	return true
}

// MatchValue returns the exact match value for key, if any.
func (e Expression) MatchValue(key string) (string, bool) {
	for _, c := range e.must {
		if c.key == key && c.IsMatch() {
			return c.match, true
		}
	}
	return "", false
}

// Matches reports whether a record with the given attributes satisfies the expression.
func (e Expression) Matches(tags map[string]string, numerics map[string]float64) bool {
	for _, c := range e.must {
		if c.IsMatch() {
			if tags[c.key] != c.match {
				return false
			}
			continue
		}
		v, ok := numerics[c.key]
		if !ok || !c.rangeExpr.Contains(v) {
			return false
		}
	}
	return true
}

// Condition is a single filter clause: either an exact match or a numeric range.
type Condition struct {
	key       string
	match     string
	rangeExpr *Range
}

// NewMatch creates an exact match condition on category or subcategory.
func NewMatch(key, match string) (Condition, error) {
	if !matchKeys[key] {
		return Condition{}, fmt.Errorf("field %q does not support match filters", key)
	}
	if match == "" {
		return Condition{}, fmt.Errorf("match value is required for key %q", key)
	}
	return Condition{key: key, match: match}, nil
}

// NewRange creates a numeric range condition on price or stock.
func NewRange(key string, r Range) (Condition, error) {
	if !rangeKeys[key] {
		return Condition{}, fmt.Errorf("field %q does not support range filters", key)
	}
	return Condition{key: key, rangeExpr: &r}, nil
}

// Key returns the field name.
func (c Condition) Key() string { return c.key }

// Match returns the exact match value.
func (c Condition) Match() string { return c.match }

// Range returns the numeric range expression.
func (c Condition) Range() *Range { return c.rangeExpr }

// IsMatch reports whether this is a match condition.
func (c Condition) IsMatch() bool { return c.match != "" }

// IsRange reports whether this is a range condition.
func (c Condition) IsRange() bool { return c.rangeExpr != nil }

// Range is a numeric range with gt/gte/lt/lte boundaries.
type Range struct {
	gt  *float64
	gte *float64
	lt  *float64
	lte *float64
}

// NewRangeFilter validates and creates a Range.
// At least one boundary required. gt/gte and lt/lte are mutually exclusive.
func NewRangeFilter(gt, gte, lt, lte *float64) (Range, error) {
	if gt == nil && gte == nil && lt == nil && lte == nil {
		return Range{}, fmt.Errorf("at least one range boundary is required")
	}
	if gt != nil && gte != nil {
		return Range{}, fmt.Errorf("cannot specify both gt and gte")
	}
	if lt != nil && lte != nil {
		return Range{}, fmt.Errorf("cannot specify both lt and lte")
	}
	return Range{gt: gt, gte: gte, lt: lt, lte: lte}, nil
}

// GT returns the lower exclusive bound.
func (r Range) GT() *float64 { return r.gt }

// GTE returns the lower inclusive bound.
func (r Range) GTE() *float64 { return r.gte }

// LT returns the upper exclusive bound.
func (r Range) LT() *float64 { return r.lt }

// LTE returns the upper inclusive bound.
func (r Range) LTE() *float64 { return r.lte }

// Contains reports whether v lies within the range.
func (r Range) Contains(v float64) bool {
	switch {
	case r.gt != nil && v <= *r.gt:
		return false
	case r.gte != nil && v < *r.gte:
		return false
	case r.lt != nil && v >= *r.lt:
		return false
	case r.lte != nil && v > *r.lte:
		return false
	}
	return true
}
