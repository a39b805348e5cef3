// Package mcp exposes catalog search as Model Context Protocol tools over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/kailas-cloud/talk2shop/internal/domain"
	domprod "github.com/kailas-cloud/talk2shop/internal/domain/product"
	"github.com/kailas-cloud/talk2shop/internal/domain/search/filter"
	"github.com/kailas-cloud/talk2shop/internal/domain/search/request"
	"github.com/kailas-cloud/talk2shop/internal/domain/search/result"
)

// Tool names.
const (
	ToolSearchProducts = "search_products"
	ToolGetProduct     = "get_product"
	ToolListCategories = "list_categories"
)

const (
	serverName   = "talk2shop"
	defaultLimit = 5
	maxLimit     = 25
)

// Searcher runs catalog search with the text fallback.
type Searcher interface {
	Search(ctx context.Context, req request.Request) (result.Page, error)
}

// Catalog reads products.
type Catalog interface {
	Get(ctx context.Context, id string) (domprod.Product, error)
	Categories(ctx context.Context) ([]string, error)
}

// Server is the MCP tool server.
type Server struct {
	search  Searcher
	catalog Catalog
	logger  *zap.Logger
	mcp     *mcpserver.MCPServer
}

// New registers the catalog tools.
func New(search Searcher, catalog Catalog, version string, logger *zap.Logger) *Server {
	s := &Server{search: search, catalog: catalog, logger: logger}

	s.mcp = mcpserver.NewMCPServer(serverName, version,
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithRecovery(),
		mcpserver.WithInstructions("Search and browse the store catalog. Prices are in the store currency."),
	)

	s.mcp.AddTool(mcplib.NewTool(ToolSearchProducts,
		mcplib.WithDescription("Search the catalog by meaning. Falls back to keyword search when semantic search is unavailable."),
		mcplib.WithString("query", mcplib.Required(), mcplib.Description("What the shopper is looking for")),
		mcplib.WithString("category", mcplib.Description("Exact category to restrict to")),
		mcplib.WithString("subcategory", mcplib.Description("Exact subcategory to restrict to")),
		mcplib.WithNumber("limit", mcplib.Description("Maximum number of products (default 5, max 25)")),
	), s.handleSearch)

	s.mcp.AddTool(mcplib.NewTool(ToolGetProduct,
		mcplib.WithDescription("Fetch one product by id"),
		mcplib.WithString("id", mcplib.Required(), mcplib.Description("Product id")),
	), s.handleGetProduct)

	s.mcp.AddTool(mcplib.NewTool(ToolListCategories,
		mcplib.WithDescription("List every product category in the catalog"),
	), s.handleListCategories)

	return s
}

// Serve speaks MCP over the given streams until ctx is done or in closes.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := mcpserver.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(zap.NewStdLog(s.logger))
	if err := stdio.Listen(ctx, in, out); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (s *Server) handleSearch(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcplib.NewToolResultError(err.Error()), nil
	}
	limit := req.GetInt("limit", defaultLimit)
	if limit <= 0 {
		limit = defaultLimit
	}

	f := filter.ByCategory(req.GetString("category", ""), req.GetString("subcategory", ""))
	page, err := s.search.Search(ctx, request.New(query, f, 1, limit, request.Limits{
		DefaultLimit: defaultLimit,
		MaxLimit:     maxLimit,
	}))
	if err != nil {
		s.logger.Warn("mcp search failed", zap.Error(err))
		return mcplib.NewToolResultError("search is unavailable right now"), nil
	}

	views := make([]productView, len(page.Hits))
	for i, h := range page.Hits {
		views[i] = toView(h.Product(), h.Score())
	}
	return jsonResult(searchView{Source: string(page.Source), Products: views})
}

func (s *Server) handleGetProduct(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcplib.NewToolResultError(err.Error()), nil
	}

	p, err := s.catalog.Get(ctx, id)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return mcplib.NewToolResultError("product " + id + " not found"), nil
	case err != nil:
		s.logger.Warn("mcp get product failed", zap.String("id", id), zap.Error(err))
		return mcplib.NewToolResultError("catalog is unavailable right now"), nil
	}
	return jsonResult(toView(p, nil))
}

func (s *Server) handleListCategories(ctx context.Context, _ mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	cats, err := s.catalog.Categories(ctx)
	if err != nil {
		s.logger.Warn("mcp list categories failed", zap.Error(err))
		return mcplib.NewToolResultError("catalog is unavailable right now"), nil
	}
	if cats == nil {
		cats = []string{}
	}
	return jsonResult(cats)
}

type productView struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Category    string   `json:"category,omitempty"`
	Subcategory string   `json:"subcategory,omitempty"`
	Price       float64  `json:"price"`
	Stock       int      `json:"stock"`
	Images      []string `json:"images,omitempty"`
	Score       *float64 `json:"score,omitempty"`
}

type searchView struct {
	Source   string        `json:"source"`
	Products []productView `json:"products"`
}

func toView(p domprod.Product, score *float64) productView {
	return productView{
		ID:          p.ID(),
		Title:       p.Title(),
		Description: p.Description(),
		Category:    p.Category(),
		Subcategory: p.Subcategory(),
		Price:       p.Price(),
		Stock:       p.Stock(),
		Images:      p.Images(),
		Score:       score,
	}
}

func jsonResult(v any) (*mcplib.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcplib.NewToolResultText(string(b)), nil
}
