package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"
	"go.opentelemetry.io/otel/trace"

	"wanderbot/internal/domain"
	"wanderbot/internal/infra/config"
	"wanderbot/internal/infra/tracer"
)

// bedrockConverseAPI abstracts the Bedrock runtime methods for testability.
type bedrockConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockProvider implements domain.LLMProvider via the AWS Bedrock Converse API.
type BedrockProvider struct {
	name    string
	model   string
	timeout time.Duration
	client  bedrockConverseAPI
	logger  *slog.Logger
}

// NewBedrockProvider creates a Bedrock provider using the default AWS credential chain.
func NewBedrockProvider(cfg config.ModelConfig, logger *slog.Logger) (*BedrockProvider, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := bedrockruntime.NewFromConfig(awsCfg)

	return &BedrockProvider{
		name:    "bedrock",
		model:   cfg.ID,
		timeout: cfg.Timeout,
		client:  client,
		logger:  logger,
	}, nil
}

// newBedrockProviderWithClient creates a BedrockProvider with an injected client (for testing).
func newBedrockProviderWithClient(name, model string, client bedrockConverseAPI, logger *slog.Logger) *BedrockProvider {
	return &BedrockProvider{
		name:    name,
		model:   model,
		timeout: 60 * time.Second,
		client:  client,
		logger:  logger,
	}
}

// Chat implements domain.LLMProvider. Each call is bounded by the configured
// model timeout.
func (p *BedrockProvider) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	ctx, span := tracer.StartSpan(ctx, "llm.chat",
		trace.WithAttributes(
			tracer.StringAttr("llm.provider", p.name),
			tracer.StringAttr("llm.model", req.Model),
		),
	)
	defer span.End()

	if req.Model == "" {
		req.Model = p.model
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	input := toBedrockConverseInput(req)

	output, err := p.client.Converse(ctx, input)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, mapBedrockError(err)
	}

	result := fromBedrockConverseOutput(output, req.Model)
	setUsageAttrs(span, result.Usage)
	tracer.SetOK(span)
	logChatCompleted(p.logger, p.name, result)

	return result, nil
}

// Name implements domain.LLMProvider.
func (p *BedrockProvider) Name() string { return p.name }

// --- Bedrock request/response conversion ---

func toBedrockConverseInput(req domain.ChatRequest) *bedrockruntime.ConverseInput {
	input := &bedrockruntime.ConverseInput{
		ModelId: aws.String(req.Model),
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	input.InferenceConfig = &types.InferenceConfiguration{
		MaxTokens: aws.Int32(int32(maxTokens)),
	}
	if req.Temperature > 0 {
		input.InferenceConfig.Temperature = aws.Float32(float32(req.Temperature))
	}

	// Convert messages (extract system prompt)
	for _, m := range req.Messages {
		if m.Role == domain.RoleSystem {
			input.System = []types.SystemContentBlock{
				&types.SystemContentBlockMemberText{Value: m.Content},
			}
			continue
		}

		msg := toBedrockMessage(m)
		if msg != nil {
			input.Messages = append(input.Messages, *msg)
		}
	}

	// Convert tools
	if len(req.Tools) > 0 {
		input.ToolConfig = toBedrockToolConfig(req.Tools)
	}

	return input
}

func toBedrockMessage(m domain.Message) *types.Message {
	msg := &types.Message{}

	switch m.Role {
	case domain.RoleTool:
		msg.Role = types.ConversationRoleUser
		toolUseID := ""
		if len(m.ToolCalls) > 0 {
			toolUseID = m.ToolCalls[0].ID
		}
		msg.Content = []types.ContentBlock{
			&types.ContentBlockMemberToolResult{
				Value: types.ToolResultBlock{
					ToolUseId: aws.String(toolUseID),
					Content: []types.ToolResultContentBlock{
						&types.ToolResultContentBlockMemberText{Value: m.Content},
					},
				},
			},
		}

	case domain.RoleAgent:
		msg.Role = types.ConversationRoleAssistant
		if m.Content != "" {
			msg.Content = append(msg.Content, &types.ContentBlockMemberText{Value: m.Content})
		}
		for _, tc := range m.ToolCalls {
			var inputDoc map[string]interface{}
			if len(tc.Arguments) > 0 {
				json.Unmarshal(tc.Arguments, &inputDoc)
			}
			if inputDoc == nil {
				inputDoc = map[string]interface{}{}
			}
			toolUseBlock := types.ToolUseBlock{
				ToolUseId: aws.String(tc.ID),
				Name:      aws.String(tc.Name),
				Input:     document.NewLazyDocument(inputDoc),
			}
			msg.Content = append(msg.Content, &types.ContentBlockMemberToolUse{Value: toolUseBlock})
		}

	case domain.RoleUser:
		msg.Role = types.ConversationRoleUser
		msg.Content = []types.ContentBlock{
			&types.ContentBlockMemberText{Value: m.Content},
		}

	default:
		return nil
	}

	return msg
}

func toBedrockToolConfig(tools []domain.ToolSchema) *types.ToolConfiguration {
	var bedrockTools []types.Tool
	for _, t := range tools {
		var schema map[string]interface{}
		if len(t.Parameters) > 0 {
			json.Unmarshal(t.Parameters, &schema)
		}
		if schema == nil {
			schema = map[string]interface{}{"type": "object"}
		}

		bedrockTools = append(bedrockTools, &types.ToolMemberToolSpec{
			Value: types.ToolSpecification{
				Name:        aws.String(t.Name),
				Description: aws.String(t.Description),
				InputSchema: &types.ToolInputSchemaMemberJson{
					Value: document.NewLazyDocument(schema),
				},
			},
		})
	}
	return &types.ToolConfiguration{Tools: bedrockTools}
}

func fromBedrockConverseOutput(output *bedrockruntime.ConverseOutput, model string) *domain.ChatResponse {
	now := time.Now()
	result := &domain.ChatResponse{
		Model:     model,
		CreatedAt: now,
	}

	if output.Usage != nil {
		result.Usage = domain.Usage{
			PromptTokens:     int(aws.ToInt32(output.Usage.InputTokens)),
			CompletionTokens: int(aws.ToInt32(output.Usage.OutputTokens)),
			TotalTokens:      int(aws.ToInt32(output.Usage.InputTokens)) + int(aws.ToInt32(output.Usage.OutputTokens)),
		}
	}

	msg := domain.Message{
		Role:      domain.RoleAgent,
		Timestamp: now,
	}

	if outMsg, ok := output.Output.(*types.ConverseOutputMemberMessage); ok {
		for _, block := range outMsg.Value.Content {
			switch b := block.(type) {
			case *types.ContentBlockMemberText:
				msg.Content = b.Value
			case *types.ContentBlockMemberToolUse:
				args := marshalDocument(b.Value.Input)
				msg.ToolCalls = append(msg.ToolCalls, domain.ToolCall{
					ID:        aws.ToString(b.Value.ToolUseId),
					Name:      aws.ToString(b.Value.Name),
					Arguments: args,
				})
			}
		}
	}

	result.Message = msg
	return result
}

// marshalDocument converts a Bedrock document.Interface to json.RawMessage.
func marshalDocument(doc document.Interface) json.RawMessage {
	if doc == nil {
		return json.RawMessage("{}")
	}
	var v interface{}
	if err := doc.UnmarshalSmithyDocument(&v); err != nil {
		return json.RawMessage("{}")
	}
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("{}")
	}
	return data
}

// --- Error mapping ---

// mapBedrockError classifies AWS failures into domain sentinels. Anything not
// recognized as throttling, auth, or context overflow counts as an inference
// failure.
func mapBedrockError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", domain.ErrTimeout, err.Error())
	}

	msg := err.Error()

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		switch {
		case code == "ThrottlingException" || code == "TooManyRequestsException":
			return fmt.Errorf("%w: %s", domain.ErrRateLimit, msg)
		case code == "AccessDeniedException" || code == "UnrecognizedClientException":
			return fmt.Errorf("%w: %s", domain.ErrAuthInvalid, msg)
		case code == "ValidationException" && strings.Contains(msg, "too long"):
			return fmt.Errorf("%w: %s", domain.ErrContextOverflow, msg)
		}
	}

	return fmt.Errorf("%w: %s", domain.ErrInference, msg)
}
