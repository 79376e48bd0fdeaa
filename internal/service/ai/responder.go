package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/zhouzirui/pulse-hr/backend/internal/analysis/emotion"
	"github.com/zhouzirui/pulse-hr/backend/internal/model/chat"
	"github.com/zhouzirui/pulse-hr/backend/internal/model/companion"
)

var errEmptyReply = errors.New("model returned empty reply")

// Config controls the LLM responder.
type Config struct {
	HistoryLimit int
	Timeout      time.Duration
}

type invoker interface {
	Invoke(ctx context.Context, input map[string]any, opts ...compose.Option) (*schema.Message, error)
}

// Responder generates companion replies with an eino chat chain. It satisfies
// simulator.Responder; callers fall back to canned replies when it errors.
type Responder struct {
	chain        invoker
	profile      companion.Companion
	historyLimit int
	timeout      time.Duration
	log          *zap.Logger
}

// NewResponder compiles the prompt chain around chatModel.
func NewResponder(ctx context.Context, chatModel model.ChatModel, profile companion.Companion, cfg Config, logger *zap.Logger) (*Responder, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile companion chain: %w", err)
	}

	return newResponder(runnable, profile, cfg, logger), nil
}

func newResponder(chain invoker, profile companion.Companion, cfg Config, logger *zap.Logger) *Responder {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 10
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Responder{
		chain:        chain,
		profile:      profile,
		historyLimit: cfg.HistoryLimit,
		timeout:      cfg.Timeout,
		log:          logger,
	}
}

// Reply implements simulator.Responder.
func (r *Responder) Reply(ctx context.Context, history []chat.Message, promptMsg chat.Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	started := time.Now()
	response, err := r.chain.Invoke(ctx, r.buildChainInput(history, promptMsg))
	if err != nil {
		return "", fmt.Errorf("failed to run companion chain: %w", err)
	}
	if response == nil || strings.TrimSpace(response.Content) == "" {
		return "", errEmptyReply
	}

	r.log.Debug("companion reply generated",
		zap.String("session", promptMsg.SessionID),
		zap.Int("length", len(response.Content)),
		zap.Duration("took", time.Since(started)))
	return strings.TrimSpace(response.Content), nil
}

func (r *Responder) buildChainInput(history []chat.Message, promptMsg chat.Message) map[string]any {
	return map[string]any{
		"system":  BuildSystemPrompt(r.profile, emotion.Label(promptMsg.Mood)),
		"history": r.buildHistoryMessages(history, promptMsg.ID),
		"query":   promptMsg.Content,
	}
}

// buildHistoryMessages keeps the turns preceding promptID, capped at historyLimit.
func (r *Responder) buildHistoryMessages(messages []chat.Message, promptID string) []*schema.Message {
	end := len(messages)
	for i, msg := range messages {
		if msg.ID == promptID {
			end = i
			break
		}
	}
	start := 0
	if end > r.historyLimit {
		start = end - r.historyLimit
	}

	out := make([]*schema.Message, 0, end-start)
	for _, msg := range messages[start:end] {
		switch msg.Role {
		case chat.RoleUser:
			out = append(out, schema.UserMessage(msg.Content))
		case chat.RoleAssistant:
			out = append(out, schema.AssistantMessage(msg.Content, nil))
		}
	}
	return out
}
