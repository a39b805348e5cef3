package chat

import (
	"context"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"

	domprod "github.com/kailas-cloud/talk2shop/internal/domain/product"
	"github.com/kailas-cloud/talk2shop/internal/domain/search/filter"
	"github.com/kailas-cloud/talk2shop/internal/domain/search/request"
	"github.com/kailas-cloud/talk2shop/internal/domain/search/result"
)

const testID = "0b7f2c7e-3f4a-4d8e-9a51-2c1d3e4f5a6b"

// scriptedCompleter replays canned responses and records every request.
type scriptedCompleter struct {
	responses []openai.ChatCompletionResponse
	err       error
	requests  []openai.ChatCompletionRequest
}

func (s *scriptedCompleter) CreateChatCompletion(
	_ context.Context, req openai.ChatCompletionRequest,
) (openai.ChatCompletionResponse, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return openai.ChatCompletionResponse{}, s.err
	}
	if len(s.requests) > len(s.responses) {
		return s.responses[len(s.responses)-1], nil
	}
	return s.responses[len(s.requests)-1], nil
}

func reply(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{{
		Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content},
	}}}
}

func toolCall(id, name, args string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{{
		Message: openai.ChatCompletionMessage{
			Role: openai.ChatMessageRoleAssistant,
			ToolCalls: []openai.ToolCall{{
				ID:       id,
				Type:     openai.ToolTypeFunction,
				Function: openai.FunctionCall{Name: name, Arguments: args},
			}},
		},
	}}}
}

type mockSearcher struct {
	searchFn func(ctx context.Context, req request.Request) (result.Page, error)
	last     request.Request
}

func (m *mockSearcher) Search(ctx context.Context, req request.Request) (result.Page, error) {
	m.last = req
	if m.searchFn != nil {
		return m.searchFn(ctx, req)
	}
	return result.Page{}, nil
}

type mockCatalog struct {
	findPageFn   func(ctx context.Context, f filter.Expression, offset, limit int) ([]domprod.Product, error)
	categoriesFn func(ctx context.Context) ([]string, error)
}

func (m *mockCatalog) FindPage(ctx context.Context, f filter.Expression, offset, limit int) ([]domprod.Product, error) {
	if m.findPageFn != nil {
		return m.findPageFn(ctx, f, offset, limit)
	}
	return nil, nil
}

func (m *mockCatalog) DistinctCategories(ctx context.Context) ([]string, error) {
	if m.categoriesFn != nil {
		return m.categoriesFn(ctx)
	}
	return nil, nil
}

func testProduct(t *testing.T) domprod.Product {
	t.Helper()
	p, err := domprod.New(testID, domprod.Fields{
		Title:       "Quiet Keyboard",
		Description: "Low-profile switches",
		Category:    "Peripherals",
		Price:       59,
		Stock:       7,
	}, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("product: %v", err)
	}
	return p
}

// lastToolMessage returns the content of the most recent tool message sent to the model.
func lastToolMessage(t *testing.T, c *scriptedCompleter) string {
	t.Helper()
	req := c.requests[len(c.requests)-1]
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == openai.ChatMessageRoleTool {
			return req.Messages[i].Content
		}
	}
	t.Fatal("no tool message sent")
	return ""
}
