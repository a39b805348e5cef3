// Package chat is the shopping assistant: a tool-calling loop over a chat completions model
// that may only recommend what the catalog actually holds.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/kailas-cloud/talk2shop/internal/domain"
	"github.com/kailas-cloud/talk2shop/internal/logger"
	"github.com/kailas-cloud/talk2shop/internal/metrics"
	"github.com/kailas-cloud/talk2shop/internal/tracing"
)

// Apology is the answer when the model ran out of steps without a reply.
const Apology = "Sorry, I couldn't put an answer together. Please try rephrasing your question."

const systemPrompt = `You are the shopping assistant of an online store.
Only recommend products returned by your tools; never invent products, prices or stock.
For build, bundle or "list everything" requests call list_inventory first.
Use search_products for vague needs and query_products for exact category, price or stock criteria.
If nothing in the catalog fits, say so plainly.
Mention price and availability when you recommend a product.`

var (
	errInvalidArguments = errors.New("invalid arguments")
	errUnknownTool      = errors.New("unknown tool")
)

// Options tunes the agent.
type Options struct {
	Model          string
	MaxSteps       int
	MaxTokens      int
	Temperature    float32
	InventoryLimit int
}

// Answer is the final reply of the agent.
type Answer struct {
	Output string
	// Steps is the number of completion rounds used.
	Steps int
}

type toolFunc func(ctx context.Context, args string) (any, error)

// Agent runs the tool-calling loop.
type Agent struct {
	client  Completer
	search  Searcher
	catalog Catalog
	opts    Options
	tools   []openai.Tool
	funcs   map[string]toolFunc
}

// New creates a chat agent.
func New(client Completer, search Searcher, catalog Catalog, opts Options) *Agent {
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = 6
	}
	if opts.InventoryLimit <= 0 {
		opts.InventoryLimit = 200
	}
	if opts.Model == "" {
		opts.Model = openai.GPT4oMini
	}

	a := &Agent{
		client:  client,
		search:  search,
		catalog: catalog,
		opts:    opts,
		tools:   toolDefinitions(),
	}
	a.funcs = map[string]toolFunc{
		ToolSearchProducts: a.searchProducts,
		ToolQueryProducts:  a.queryProducts,
		ToolListInventory:  a.listInventory,
		ToolListCategories: a.listCategories,
	}
	return a
}

// Ask answers one shopper question. Tool failures are reported back to the model as text;
// only a failing completion call aborts the loop.
func (a *Agent) Ask(ctx context.Context, query string) (ans Answer, err error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Answer{}, domain.ErrQueryRequired
	}

	ctx, span := tracing.Start(ctx, "chat.ask", attribute.String("chat.model", a.opts.Model))
	defer func() {
		span.SetAttributes(attribute.Int("chat.steps", ans.Steps))
		tracing.End(span, err)
	}()

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: query},
	}

	var last string
	for step := 1; step <= a.opts.MaxSteps; step++ {
		resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       a.opts.Model,
			Messages:    messages,
			Tools:       a.tools,
			MaxTokens:   a.opts.MaxTokens,
			Temperature: a.opts.Temperature,
		})
		if err != nil {
			return Answer{Steps: step}, fmt.Errorf("%w: %w", domain.ErrChatUnavailable, err)
		}
		if len(resp.Choices) == 0 {
			return Answer{Steps: step}, fmt.Errorf("%w: empty completion", domain.ErrChatUnavailable)
		}

		msg := resp.Choices[0].Message
		if msg.Content != "" {
			last = msg.Content
		}
		if len(msg.ToolCalls) == 0 {
			return Answer{Output: msg.Content, Steps: step}, nil
		}

		messages = append(messages, msg)
		for _, call := range msg.ToolCalls {
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				ToolCallID: call.ID,
				Content:    a.runTool(ctx, call),
			})
		}
	}

	logger.FromContext(ctx).Warn("Chat agent ran out of steps", zap.Int("max_steps", a.opts.MaxSteps))
	if last == "" {
		last = Apology
	}
	return Answer{Output: last, Steps: a.opts.MaxSteps}, nil
}

func (a *Agent) runTool(ctx context.Context, call openai.ToolCall) string {
	name := call.Function.Name
	ctx, span := tracing.Start(ctx, "chat.tool", attribute.String("chat.tool", name))

	out, err := a.callTool(ctx, name, call.Function.Arguments)
	tracing.End(span, err)

	status := "ok"
	if err != nil {
		status = "error"
		logger.FromContext(ctx).Warn("Chat tool failed", zap.String("tool", name), zap.Error(err))
		out = toolFailure(name, err)
	}
	label := name
	if _, known := a.funcs[name]; !known {
		label = "unknown"
	}
	metrics.ChatStepsTotal.WithLabelValues(label, status).Inc()
	return out
}

// toolFailure is the tool message the model sees for a failed call. Only mistakes the model
// can correct are spelled out; backend errors stay in the log.
func toolFailure(name string, err error) string {
	switch {
	case errors.Is(err, errInvalidArguments):
		return "error: invalid arguments for " + name
	case errors.Is(err, errUnknownTool):
		return fmt.Sprintf("error: unknown tool %q", name)
	default:
		return "error: " + name + " is unavailable right now"
	}
}

func (a *Agent) callTool(ctx context.Context, name, args string) (string, error) {
	fn, ok := a.funcs[name]
	if !ok {
		return "", fmt.Errorf("%w %q", errUnknownTool, name)
	}

	v, err := fn(ctx, args)
	if err != nil {
		return "", err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode tool result: %w", err)
	}
	return string(b), nil
}
