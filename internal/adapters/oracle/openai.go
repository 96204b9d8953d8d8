// Package oracle adapts an OpenAI-compatible chat completion API to the
// core Oracle port. Transport failures are encoded as status tags so the
// classifier can map them; tool calls for the step-control primitives
// become structured completion/rejection signals.
package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/dantiel/aethercodex/internal/core"
	"github.com/dantiel/aethercodex/internal/logging"
)

// maxToolRounds bounds the inner tool-execution loop of one invocation.
// Hitting the bound yields a plain success so the engine stops quiescently.
const maxToolRounds = 8

// chatClient is the slice of the OpenAI client the adapter needs.
type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIOracle implements core.Oracle against a chat completion endpoint.
type OpenAIOracle struct {
	client chatClient
	model  string
	logger *logging.Logger
}

// Options configures the oracle adapter.
type Options struct {
	BaseURL string
	APIKey  string
	Model   string
}

// New creates an oracle backed by an OpenAI-compatible endpoint.
func New(opts Options, logger *logging.Logger) *OpenAIOracle {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = strings.TrimSuffix(opts.BaseURL, "/")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &OpenAIOracle{
		client: openai.NewClientWithConfig(cfg),
		model:  opts.Model,
		logger: logger,
	}
}

// newWithClient is the test seam.
func newWithClient(client chatClient, model string, logger *logging.Logger) *OpenAIOracle {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &OpenAIOracle{client: client, model: model, logger: logger}
}

// Invoke runs one phase prompt. The deadline hint becomes a context
// timeout; a control-signal tool call ends the loop immediately with the
// corresponding structured signal.
func (o *OpenAIOracle) Invoke(ctx context.Context, req core.InvokeRequest) (*core.RawOutcome, error) {
	if req.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Deadline)
		defer cancel()
	}

	byName := make(map[string]core.Tool, len(req.Tools))
	for _, t := range req.Tools {
		byName[t.Name] = t
	}

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
	}
	chatReq := openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: float32(req.Temperature),
		Messages:    messages,
		Tools:       toOpenAITools(req.Tools),
	}

	log := o.logger.WithTask(string(req.TaskID)).WithStep(req.Step)

	var lastContent string
	for round := 0; round < maxToolRounds; round++ {
		resp, err := o.client.CreateChatCompletion(ctx, chatReq)
		if err != nil {
			return failureOutcome(err), nil
		}
		if len(resp.Choices) == 0 {
			return &core.RawOutcome{Status: string(core.CategoryEmptyResponse)}, nil
		}

		msg := resp.Choices[0].Message
		if msg.Content != "" {
			lastContent = msg.Content
		}
		if len(msg.ToolCalls) == 0 {
			if strings.TrimSpace(lastContent) == "" {
				return &core.RawOutcome{Status: string(core.CategoryEmptyResponse)}, nil
			}
			return &core.RawOutcome{
				Status:   string(core.CategorySuccess),
				Response: core.Response{Answer: lastContent},
			}, nil
		}

		chatReq.Messages = append(chatReq.Messages, msg)
		for _, call := range msg.ToolCalls {
			if signal := controlSignal(call, lastContent); signal != nil {
				return signal, nil
			}

			result, err := o.dispatch(ctx, byName, call)
			if err != nil {
				result = fmt.Sprintf("tool error: %v", err)
			}
			log.Debug("tool call", "tool", call.Function.Name, "round", round)
			chatReq.Messages = append(chatReq.Messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				ToolCallID: call.ID,
				Content:    result,
			})
		}
	}

	log.Warn("tool round limit reached without control signal")
	return &core.RawOutcome{
		Status:   string(core.CategorySuccess),
		Response: core.Response{Answer: lastContent},
	}, nil
}

// controlSignal converts a complete_step or reject_step tool call into
// its structured signal, nil for ordinary tools.
func controlSignal(call openai.ToolCall, fallback string) *core.RawOutcome {
	switch call.Function.Name {
	case "complete_step":
		var args struct {
			Result string `json:"result"`
		}
		_ = json.Unmarshal([]byte(call.Function.Arguments), &args)
		if args.Result == "" {
			args.Result = fallback
		}
		return &core.RawOutcome{
			Completion: &core.CompletionSignal{Result: args.Result},
			Response:   core.Response{Answer: fallback},
		}
	case "reject_step":
		var args struct {
			Reason      string `json:"reason"`
			RestartStep int    `json:"restart_step"`
		}
		_ = json.Unmarshal([]byte(call.Function.Arguments), &args)
		return &core.RawOutcome{
			Rejection: &core.RejectionSignal{Reason: args.Reason, RestartStep: args.RestartStep},
			Response:  core.Response{Answer: fallback},
		}
	default:
		return nil
	}
}

func (o *OpenAIOracle) dispatch(ctx context.Context, byName map[string]core.Tool, call openai.ToolCall) (string, error) {
	tool, ok := byName[call.Function.Name]
	if !ok {
		return "", fmt.Errorf("unknown tool %q", call.Function.Name)
	}
	var args map[string]interface{}
	if call.Function.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			return "", fmt.Errorf("decoding arguments for %q: %w", call.Function.Name, err)
		}
	}
	return tool.Call(ctx, args)
}

// failureOutcome maps a client error to a classifiable status tag.
func failureOutcome(err error) *core.RawOutcome {
	cat := core.CategoryNetworkError
	detail := err.Error()

	var apiErr *openai.APIError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		cat = core.CategoryTimeout
	case errors.As(err, &apiErr):
		switch {
		case apiErr.HTTPStatusCode == 429:
			cat = core.CategoryRateLimitError
		case isContextLength(apiErr):
			cat = core.CategoryContextLengthError
		case apiErr.HTTPStatusCode >= 500:
			cat = core.CategoryNetworkError
		default:
			cat = core.CategoryFailure
		}
	default:
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			cat = core.CategoryTimeout
		}
	}

	return &core.RawOutcome{
		Status:   string(cat),
		Response: core.Response{Answer: detail},
	}
}

func isContextLength(apiErr *openai.APIError) bool {
	if code, ok := apiErr.Code.(string); ok && code == "context_length_exceeded" {
		return true
	}
	return strings.Contains(strings.ToLower(apiErr.Message), "context length")
}

// toOpenAITools converts the tool bindings to function definitions.
func toOpenAITools(toolSet []core.Tool) []openai.Tool {
	out := make([]openai.Tool, 0, len(toolSet))
	for _, t := range toolSet {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  paramsToSchema(t.Params),
			},
		})
	}
	return out
}

func paramsToSchema(params core.ParamSchema) map[string]interface{} {
	properties := make(map[string]interface{}, len(params))
	required := make([]string, 0, len(params))
	for name, spec := range params {
		properties[name] = map[string]interface{}{
			"type":        spec.Type,
			"description": spec.Description,
		}
		if spec.Required {
			required = append(required, name)
		}
	}
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		sort.Strings(required)
		schema["required"] = required
	}
	return schema
}
