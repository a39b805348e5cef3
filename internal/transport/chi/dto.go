package chi

import (
	"time"

	domprod "github.com/kailas-cloud/talk2shop/internal/domain/product"
	"github.com/kailas-cloud/talk2shop/internal/domain/search/result"
)

// Error codes returned in the error body.
const (
	codeBadRequest        = "bad_request"
	codeUnauthorized      = "unauthorized"
	codeNotFound          = "not_found"
	codeValidationFailed  = "validation_failed"
	codeQueryRequired     = "query_required"
	codeIndexUnavailable  = "index_unavailable"
	codeEmbeddingError    = "embedding_provider_error"
	codeEmbeddingTimeout  = "embedding_timeout"
	codeChatUnavailable   = "chat_unavailable"
	codeDimensionMismatch = "dimension_mismatch"
	codeInternalError     = "internal_error"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type productResponse struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Category      string    `json:"category"`
	Subcategory   string    `json:"subcategory"`
	Price         float64   `json:"price"`
	Stock         int       `json:"stock"`
	Images        []string  `json:"images"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	ReindexNeeded bool      `json:"reindex_needed,omitempty"`
}

// hitResponse is a product with its relevance score. Listings carry no score.
type hitResponse struct {
	productResponse
	Score *float64 `json:"score,omitempty"`
}

type searchResponse struct {
	Items  []hitResponse `json:"items"`
	Page   int           `json:"page"`
	Limit  int           `json:"limit"`
	Source string        `json:"source"`
}

type semanticResponse struct {
	Query   string        `json:"query"`
	Count   int           `json:"count"`
	Results []hitResponse `json:"results"`
}

type listResponse struct {
	Items []productResponse `json:"items"`
	Page  int               `json:"page"`
	Limit int               `json:"limit"`
}

type categoriesResponse struct {
	Categories []string `json:"categories"`
}

type chatRequest struct {
	Query string `json:"query"`
}

type chatResponse struct {
	Output string `json:"output"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// productRequest is the body of POST /api/products. An id is optional.
type productRequest struct {
	ID          string   `json:"id,omitempty"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Subcategory string   `json:"subcategory"`
	Price       float64  `json:"price"`
	Stock       int      `json:"stock"`
	Images      []string `json:"images"`
}

func (r productRequest) fields() domprod.Fields {
	return domprod.Fields{
		Title:       r.Title,
		Description: r.Description,
		Category:    r.Category,
		Subcategory: r.Subcategory,
		Price:       r.Price,
		Stock:       r.Stock,
		Images:      r.Images,
	}
}

// patchRequest is the body of PUT /api/products/{id}. Absent fields stay unchanged.
type patchRequest struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Category    *string   `json:"category"`
	Subcategory *string   `json:"subcategory"`
	Price       *float64  `json:"price"`
	Stock       *int      `json:"stock"`
	Images      *[]string `json:"images"`
}

func (r patchRequest) patch() domprod.Patch {
	return domprod.Patch{
		Title:       r.Title,
		Description: r.Description,
		Category:    r.Category,
		Subcategory: r.Subcategory,
		Price:       r.Price,
		Stock:       r.Stock,
		Images:      r.Images,
	}
}

func productToResponse(p domprod.Product) productResponse {
	images := p.Images()
	if images == nil {
		images = []string{}
	}
	return productResponse{
		ID:            p.ID(),
		Title:         p.Title(),
		Description:   p.Description(),
		Category:      p.Category(),
		Subcategory:   p.Subcategory(),
		Price:         p.Price(),
		Stock:         p.Stock(),
		Images:        images,
		CreatedAt:     p.CreatedAt(),
		UpdatedAt:     p.UpdatedAt(),
		ReindexNeeded: p.ReindexNeeded(),
	}
}

func hitsToResponse(hits []result.Hit) []hitResponse {
	out := make([]hitResponse, len(hits))
	for i, h := range hits {
		out[i] = hitResponse{productResponse: productToResponse(h.Product()), Score: h.Score()}
	}
	return out
}

func productsToResponse(products []domprod.Product) []productResponse {
	out := make([]productResponse, len(products))
	for i, p := range products {
		out[i] = productToResponse(p)
	}
	return out
}
