package chat

import (
	"context"
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"

	domprod "github.com/kailas-cloud/talk2shop/internal/domain/product"
	"github.com/kailas-cloud/talk2shop/internal/domain/search/filter"
	"github.com/kailas-cloud/talk2shop/internal/domain/search/request"
)

// Tool names exposed to the model.
const (
	ToolSearchProducts = "search_products"
	ToolQueryProducts  = "query_products"
	ToolListInventory  = "list_inventory"
	ToolListCategories = "list_categories"
)

const (
	searchLimit       = 5
	defaultQueryLimit = 5
	maxQueryLimit     = 25
	maxDescription    = 200
)

var categoryProps = map[string]jsonschema.Definition{
	"category":    {Type: jsonschema.String, Description: "Exact category name, see list_categories"},
	"subcategory": {Type: jsonschema.String, Description: "Exact subcategory name"},
}

func toolDefinitions() []openai.Tool {
	searchProps := map[string]jsonschema.Definition{
		"query": {Type: jsonschema.String, Description: "Natural language description of what the shopper wants"},
	}
	queryProps := map[string]jsonschema.Definition{
		"min_price": {Type: jsonschema.Number, Description: "Inclusive lower price bound"},
		"max_price": {Type: jsonschema.Number, Description: "Inclusive upper price bound"},
		"in_stock":  {Type: jsonschema.Boolean, Description: "Only products with stock > 0"},
		"limit":     {Type: jsonschema.Integer, Description: fmt.Sprintf("Max results (1-%d)", maxQueryLimit)},
	}
	for k, v := range categoryProps {
		searchProps[k] = v
		queryProps[k] = v
	}

	return []openai.Tool{
		function(ToolSearchProducts,
			"Find products by meaning: vague needs, use cases, descriptions (\"quiet keyboard for the office\").",
			jsonschema.Definition{Type: jsonschema.Object, Properties: searchProps, Required: []string{"query"}}),
		function(ToolQueryProducts,
			"Filter products by exact category, price range or stock when the criteria are precise.",
			jsonschema.Definition{Type: jsonschema.Object, Properties: queryProps}),
		function(ToolListInventory,
			"List the whole inventory (title, price, category, stock). Call this first for build or bundle requests.",
			jsonschema.Definition{Type: jsonschema.Object, Properties: map[string]jsonschema.Definition{}}),
		function(ToolListCategories,
			"List all product categories.",
			jsonschema.Definition{Type: jsonschema.Object, Properties: map[string]jsonschema.Definition{}}),
	}
}

func function(name, description string, params jsonschema.Definition) openai.Tool {
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        name,
			Description: description,
			Parameters:  params,
		},
	}
}

type searchArgs struct {
	Query       string `json:"query"`
	Category    string `json:"category"`
	Subcategory string `json:"subcategory"`
}

type queryArgs struct {
	Category    string   `json:"category"`
	Subcategory string   `json:"subcategory"`
	MinPrice    *float64 `json:"min_price"`
	MaxPrice    *float64 `json:"max_price"`
	InStock     bool     `json:"in_stock"`
	Limit       int      `json:"limit"`
}

// productView is the compact product shape handed to the model.
type productView struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Category    string   `json:"category,omitempty"`
	Subcategory string   `json:"subcategory,omitempty"`
	Price       float64  `json:"price"`
	Stock       int      `json:"stock"`
	Score       *float64 `json:"score,omitempty"`
}

func viewOf(p domprod.Product, withDescription bool) productView {
	v := productView{
		ID:          p.ID(),
		Title:       p.Title(),
		Category:    p.Category(),
		Subcategory: p.Subcategory(),
		Price:       p.Price(),
		Stock:       p.Stock(),
	}
	if withDescription {
		v.Description = truncate(p.Description(), maxDescription)
	}
	return v
}

func (a *Agent) searchProducts(ctx context.Context, raw string) (any, error) {
	var args searchArgs
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("%w: %w", errInvalidArguments, err)
	}

	page, err := a.search.Search(ctx, request.New(args.Query, filter.ByCategory(args.Category, args.Subcategory),
		1, searchLimit, request.Limits{}))
	if err != nil {
		return nil, err
	}

	out := make([]productView, len(page.Hits))
	for i, h := range page.Hits {
		out[i] = viewOf(h.Product(), true)
		out[i].Score = h.Score()
	}
	return out, nil
}

func (a *Agent) queryProducts(ctx context.Context, raw string) (any, error) {
	var args queryArgs
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			return nil, fmt.Errorf("%w: %w", errInvalidArguments, err)
		}
	}

	f, err := args.expression()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errInvalidArguments, err)
	}
	limit := args.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	limit = min(limit, maxQueryLimit)

	products, err := a.catalog.FindPage(ctx, f, 0, limit)
	if err != nil {
		return nil, err
	}

	out := make([]productView, len(products))
	for i, p := range products {
		out[i] = viewOf(p, true)
	}
	return out, nil
}

func (q queryArgs) expression() (filter.Expression, error) {
	var must []filter.Condition
	add := func(c filter.Condition, err error) error {
		if err != nil {
			return err
		}
		must = append(must, c)
		return nil
	}

	if q.Category != "" {
		if err := add(filter.NewMatch(filter.KeyCategory, q.Category)); err != nil {
			return filter.Expression{}, err
		}
	}
	if q.Subcategory != "" {
		if err := add(filter.NewMatch(filter.KeySubcategory, q.Subcategory)); err != nil {
			return filter.Expression{}, err
		}
	}
	if q.MinPrice != nil || q.MaxPrice != nil {
		r, err := filter.NewRangeFilter(nil, q.MinPrice, nil, q.MaxPrice)
		if err != nil {
			return filter.Expression{}, err
		}
		if err := add(filter.NewRange(filter.KeyPrice, r)); err != nil {
			return filter.Expression{}, err
		}
	}
	if q.InStock {
		one := 1.0
		r, err := filter.NewRangeFilter(nil, &one, nil, nil)
		if err != nil {
			return filter.Expression{}, err
		}
		if err := add(filter.NewRange(filter.KeyStock, r)); err != nil {
			return filter.Expression{}, err
		}
	}
	return filter.NewExpression(must...)
}

func (a *Agent) listInventory(ctx context.Context, _ string) (any, error) {
	products, err := a.catalog.FindPage(ctx, filter.Expression{}, 0, a.opts.InventoryLimit)
	if err != nil {
		return nil, err
	}
	out := make([]productView, len(products))
	for i, p := range products {
		out[i] = viewOf(p, false)
	}
	return out, nil
}

func (a *Agent) listCategories(ctx context.Context, _ string) (any, error) {
	return a.catalog.DistinctCategories(ctx)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
