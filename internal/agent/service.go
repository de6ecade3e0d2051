// Package agent wraps the hosted reasoning engine and its retrieval tools
// behind blocking and streaming invocation calls.
package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"chatrelay/internal/config"
	"chatrelay/internal/models"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/flow/agent/react"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"
)

// ErrEmptyOutput reports that the engine finished without producing any
// usable text. An empty result is a failure, never an empty success.
var ErrEmptyOutput = errors.New("engine produced no output")

// Service drives the reasoning engine. The engine decides internally, per
// turn, whether to invoke the bound retrieval tools; that dispatch is not
// modeled here.
type Service struct {
	chatModel model.ToolCallingChatModel
	agent     *react.Agent
	tools     []tool.BaseTool
}

// NewService builds the invoker once at startup from explicit configuration;
// handlers receive it by injection rather than through package state.
func NewService(ctx context.Context, provider string, cfg *config.Config, tools []tool.BaseTool) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("config required")
	}
	provCfg, ok := cfg.Providers[provider]
	if !ok {
		return nil, fmt.Errorf("provider %s not configured", provider)
	}

	var (
		chatModel model.ToolCallingChatModel
		err       error
	)
	switch provider {
	case "openai":
		chatModel, err = openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL: provCfg.BaseURL,
			Model:   provCfg.Model,
			APIKey:  provCfg.APIKey,
		})
	case "gemini":
		var client *genai.Client
		client, err = genai.NewClient(ctx, &genai.ClientConfig{APIKey: provCfg.APIKey})
		if err != nil {
			return nil, fmt.Errorf("init gemini client: %w", err)
		}
		chatModel, err = gemini.NewChatModel(ctx, &gemini.Config{
			Client: client,
			Model:  provCfg.Model,
		})
	case "claude":
		var baseURLPtr *string
		if provCfg.BaseURL != "" {
			baseURLPtr = &provCfg.BaseURL
		}
		chatModel, err = claude.NewChatModel(ctx, &claude.Config{
			APIKey:    provCfg.APIKey,
			Model:     provCfg.Model,
			BaseURL:   baseURLPtr,
			MaxTokens: 3000,
		})
	default:
		return nil, fmt.Errorf("invalid provider: %s", provider)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s chat model: %w", provider, err)
	}

	var reactAgent *react.Agent
	if len(tools) > 0 {
		reactAgent, err = react.NewAgent(ctx, &react.AgentConfig{
			ToolCallingModel: chatModel,
			ToolsConfig: compose.ToolsNodeConfig{
				Tools: tools,
			},
		})
		if err != nil {
			return nil, fmt.Errorf("init react agent: %w", err)
		}
	}

	return &Service{chatModel: chatModel, agent: reactAgent, tools: tools}, nil
}

// Run invokes the engine and blocks until the complete answer is available.
func (s *Service) Run(ctx context.Context, messages []models.Message) (string, error) {
	input := convertMessages(messages)

	var (
		out *schema.Message
		err error
	)
	if s.agent != nil {
		out, err = s.agent.Generate(ctx, input)
	} else {
		out, err = s.chatModel.Generate(ctx, input)
	}
	if err != nil {
		return "", fmt.Errorf("engine generate failed: %w", err)
	}
	final := strings.TrimSpace(out.Content)
	if final == "" {
		return "", ErrEmptyOutput
	}
	return final, nil
}

// Stream invokes the engine in streaming mode. onChunk receives each text
// delta in production order; a chunk callback error aborts the stream. The
// returned string is the authoritative final text, assembled after the
// increment sequence is exhausted.
func (s *Service) Stream(ctx context.Context, messages []models.Message, onChunk func(string) error) (string, error) {
	input := convertMessages(messages)

	var (
		reader *schema.StreamReader[*schema.Message]
		err    error
	)
	if s.agent != nil {
		reader, err = s.agent.Stream(ctx, input)
	} else {
		reader, err = s.chatModel.Stream(ctx, input)
	}
	if err != nil {
		return "", fmt.Errorf("engine stream failed: %w", err)
	}
	defer reader.Close()

	var full strings.Builder
	for {
		chunk, err := reader.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return "", fmt.Errorf("engine stream failed: %w", err)
		}
		if chunk.Content == "" {
			continue
		}
		full.WriteString(chunk.Content)
		if onChunk != nil {
			if err := onChunk(chunk.Content); err != nil {
				return "", err
			}
		}
	}

	final := strings.TrimSpace(full.String())
	if final == "" {
		return "", ErrEmptyOutput
	}
	return final, nil
}

// ToolCount reports how many retrieval tools are bound; used for startup
// logging only.
func (s *Service) ToolCount() int {
	return len(s.tools)
}

func convertMessages(history []models.Message) []*schema.Message {
	messages := make([]*schema.Message, 0, len(history))
	for _, msg := range history {
		var role schema.RoleType
		switch msg.Role {
		case models.RoleUser:
			role = schema.User
		case models.RoleAssistant:
			role = schema.Assistant
		case models.RoleSystem:
			role = schema.System
		default:
			role = schema.User
		}
		messages = append(messages, &schema.Message{
			Role:    role,
			Content: msg.Content,
		})
	}
	return messages
}
