package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/statement-agent/internal/common"
	"github.com/ternarybob/statement-agent/internal/interfaces"
)

// ClaudeService implements interfaces.ChatService using the Anthropic
// Claude API's native tool-calling contract: the orchestrator drives an
// abstract chat/tool-calling interface and this adapter translates to
// and from Anthropic's wire protocol.
type ClaudeService struct {
	config    *common.ClaudeConfig
	logger    arbor.ILogger
	client    *anthropic.Client
	timeout   time.Duration
	maxTokens int
}

// NewClaudeService creates a new Claude-backed ChatService.
func NewClaudeService(claudeConfig *common.ClaudeConfig, logger arbor.ILogger) (*ClaudeService, error) {
	if claudeConfig.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required (set ANTHROPIC_API_KEY or claude.api_key in config)")
	}

	if claudeConfig.Model == "" {
		claudeConfig.Model = "claude-sonnet-4-20250514"
	}

	timeout, err := time.ParseDuration(claudeConfig.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid timeout duration '%s': %w", claudeConfig.Timeout, err)
	}

	maxTokens := claudeConfig.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 8192
	}

	client := anthropic.NewClient(option.WithAPIKey(claudeConfig.APIKey))

	service := &ClaudeService{
		config:    claudeConfig,
		logger:    logger,
		client:    &client,
		timeout:   timeout,
		maxTokens: maxTokens,
	}

	logger.Debug().
		Str("model", claudeConfig.Model).
		Dur("timeout", timeout).
		Int("max_tokens", maxTokens).
		Msg("Claude chat service initialized")

	return service, nil
}

// Chat drives one turn of the tool-calling contract. Opaque content
// blocks on assistant messages (e.g. a "thinking" block) are re-sent
// byte-for-byte, per the opaque-field
// note, since some models reject the next request without them.
func (s *ClaudeService) Chat(ctx context.Context, req interfaces.ChatRequest) (interfaces.ChatResponse, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	messages, systemText, err := toClaudeMessages(req.Messages)
	if err != nil {
		return interfaces.ChatResponse{}, fmt.Errorf("convert messages: %w", err)
	}

	maxTokens := int64(s.maxTokens)
	if req.MaxOutputTokens > 0 {
		maxTokens = int64(req.MaxOutputTokens)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(s.config.Model),
		MaxTokens: maxTokens,
		Messages:  messages,
	}
	if systemText != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemText}}
	}
	if s.config.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(s.config.Temperature))
	}
	if len(req.Tools) > 0 {
		params.Tools = toClaudeTools(req.Tools)
	}
	if req.Thinking && s.config.Thinking {
		params.Thinking = anthropic.ThinkingConfigParamUnion{
			OfEnabled: &anthropic.ThinkingConfigEnabledParam{BudgetTokens: 4096},
		}
	}

	resp, err := s.client.Messages.New(timeoutCtx, params)
	if err != nil {
		return interfaces.ChatResponse{}, fmt.Errorf("claude API call failed: %w", err)
	}

	return fromClaudeResponse(resp), nil
}

// HealthCheck performs a minimal, low-cost probe of the Claude API.
func (s *ClaudeService) HealthCheck(ctx context.Context) error {
	if s.client == nil {
		return fmt.Errorf("claude client is not initialized")
	}

	healthCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	resp, err := s.Chat(healthCtx, interfaces.ChatRequest{
		Messages:        []interfaces.ChatMessage{{Role: interfaces.RoleUser, Text: "ping"}},
		MaxOutputTokens: 16,
	})
	if err != nil {
		return fmt.Errorf("claude health check failed: %w", err)
	}
	if len(resp.TextBlocks) == 0 {
		return fmt.Errorf("claude health check returned no text")
	}
	return nil
}

func (s *ClaudeService) GetMode() interfaces.LLMMode {
	return interfaces.LLMModeCloud
}

func (s *ClaudeService) Close() error {
	s.client = nil
	return nil
}

// toClaudeTools translates the canonical tool list into Anthropic's
// tool-union params, carrying each tool's JSON schema through as the
// input_schema the model validates calls against.
func toClaudeTools(tools []interfaces.ToolDefinition) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		var schema anthropic.ToolInputSchemaParam
		if len(t.InputSchema) > 0 {
			var raw map[string]interface{}
			if err := json.Unmarshal(t.InputSchema, &raw); err == nil {
				if props, ok := raw["properties"]; ok {
					schema.Properties = props
				}
				if req, ok := raw["required"]; ok {
					if reqSlice, ok := req.([]interface{}); ok {
						strs := make([]string, 0, len(reqSlice))
						for _, r := range reqSlice {
							if s, ok := r.(string); ok {
								strs = append(strs, s)
							}
						}
						schema.Required = strs
					}
				}
			}
		}
		out = append(out, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: schema,
			},
		})
	}
	return out
}

// toClaudeMessages converts the canonical history to Anthropic message
// params, pulling out the (first) system message for the System
// parameter, and reconstructing tool_use/tool_result blocks from
// ToolCalls/ToolResults. Opaque bytes, when present, are decoded back
// into their original raw content-block JSON and spliced in verbatim.
func toClaudeMessages(messages []interfaces.ChatMessage) ([]anthropic.MessageParam, string, error) {
	var systemText string
	out := make([]anthropic.MessageParam, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case interfaces.RoleSystem:
			if systemText == "" {
				systemText = msg.Text
			}

		case interfaces.RoleUser:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Text)))

		case interfaces.RoleTool:
			blocks := make([]anthropic.ContentBlockParamUnion, 0, len(msg.ToolResults))
			for _, r := range msg.ToolResults {
				blocks = append(blocks, anthropic.NewToolResultBlock(r.ToolCallID, r.Content, r.IsError))
			}
			out = append(out, anthropic.MessageParam{
				Role:    anthropic.MessageParamRoleUser,
				Content: blocks,
			})

		case interfaces.RoleAssistant:
			if len(msg.Opaque) > 0 {
				var rawBlocks []json.RawMessage
				if err := json.Unmarshal(msg.Opaque, &rawBlocks); err == nil {
					blocks := make([]anthropic.ContentBlockParamUnion, 0, len(rawBlocks))
					for _, rb := range rawBlocks {
						var block anthropic.ContentBlockParamUnion
						if err := json.Unmarshal(rb, &block); err == nil {
							blocks = append(blocks, block)
						}
					}
					out = append(out, anthropic.MessageParam{
						Role:    anthropic.MessageParamRoleAssistant,
						Content: blocks,
					})
					continue
				}
			}

			blocks := make([]anthropic.ContentBlockParamUnion, 0, 1+len(msg.ToolCalls))
			if msg.Text != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Text))
			}
			for _, tc := range msg.ToolCalls {
				var input interface{}
				_ = json.Unmarshal(tc.Input, &input)
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
			}
			out = append(out, anthropic.MessageParam{
				Role:    anthropic.MessageParamRoleAssistant,
				Content: blocks,
			})
		}
	}

	return out, systemText, nil
}

// fromClaudeResponse translates Anthropic's wire response into the
// canonical {text_blocks, tool_calls, finish_reason} shape, preserving
// the full raw content-block array as the Opaque passthrough for the
// next request.
func fromClaudeResponse(resp *anthropic.Message) interfaces.ChatResponse {
	out := interfaces.ChatResponse{
		FinishReason: string(resp.StopReason),
	}

	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			out.TextBlocks = append(out.TextBlocks, block.Text)
		case "tool_use":
			input, _ := json.Marshal(block.Input)
			out.ToolCalls = append(out.ToolCalls, interfaces.ToolCall{
				ID:    block.ID,
				Name:  block.Name,
				Input: input,
			})
		}
	}

	if raw, err := json.Marshal(resp.Content); err == nil {
		out.Opaque = raw
	}

	return out
}

// GetClient returns the underlying Anthropic client for advanced,
// vendor-specific call shapes the canonical interface does not expose.
func (s *ClaudeService) GetClient() *anthropic.Client {
	return s.client
}

// GetConfig returns the Claude configuration.
func (s *ClaudeService) GetConfig() *common.ClaudeConfig {
	return s.config
}
