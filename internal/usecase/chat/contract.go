package chat

import (
	"context"

	openai "github.com/sashabaranov/go-openai"

	domprod "github.com/kailas-cloud/talk2shop/internal/domain/product"
	"github.com/kailas-cloud/talk2shop/internal/domain/search/filter"
	"github.com/kailas-cloud/talk2shop/internal/domain/search/request"
	"github.com/kailas-cloud/talk2shop/internal/domain/search/result"
)

// Completer is the chat completions endpoint (*openai.Client).
type Completer interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Searcher answers catalog searches.
type Searcher interface {
	Search(ctx context.Context, req request.Request) (result.Page, error)
}

// Catalog lists products and categories.
type Catalog interface {
	FindPage(ctx context.Context, f filter.Expression, offset, limit int) ([]domprod.Product, error)
	DistinctCategories(ctx context.Context) ([]string, error)
}
