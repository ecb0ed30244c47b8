// Package anthropic is a narrow extraction client over the Anthropic
// messages API: one cached system prompt, one user turn and an optional
// assistant prefill, returning the reply as plain text.
package anthropic

import (
	"context"
	"errors"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"

	"github.com/sells-group/nip-resolver/internal/resilience"
)

// Client runs single-turn extraction prompts.
type Client interface {
	Complete(ctx context.Context, p Prompt) (*Reply, error)
}

// Prompt is one extraction request.
type Prompt struct {
	Model     string
	MaxTokens int64
	// System is sent with a one-hour cache breakpoint when CacheSystem is set.
	System      string
	CacheSystem bool
	User        string
	// Prefill starts the assistant turn, e.g. "{" to force a JSON object.
	// It is prepended to Reply.Text.
	Prefill     string
	Temperature float64
}

// Reply is the text answer to a Prompt.
type Reply struct {
	ID         string
	Model      string
	Text       string
	StopReason string
	Usage      Usage
}

// Truncated reports whether the model stopped on the token limit.
func (r *Reply) Truncated() bool {
	return r.StopReason == string(sdk.StopReasonMaxTokens)
}

type sdkClient struct {
	client sdk.Client
}

// NewClient creates a Client backed by anthropic-sdk-go. Extra options such
// as a base URL or retry count pass through to the SDK.
func NewClient(apiKey string, opts ...option.RequestOption) Client {
	return &sdkClient{
		client: sdk.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...),
	}
}

func (c *sdkClient) Complete(ctx context.Context, p Prompt) (*Reply, error) {
	if strings.TrimSpace(p.User) == "" {
		return nil, eris.New("anthropic: empty prompt")
	}

	msg, err := c.client.Messages.New(ctx, toParams(p))
	if err != nil {
		var apiErr *sdk.Error
		if errors.As(err, &apiErr) && resilience.TransientStatus(apiErr.StatusCode) {
			return nil, resilience.Transient(eris.Wrap(err, "anthropic: complete"), apiErr.StatusCode)
		}
		return nil, eris.Wrap(err, "anthropic: complete")
	}
	return fromMessage(msg, p.Prefill), nil
}

func toParams(p Prompt) sdk.MessageNewParams {
	msgs := []sdk.MessageParam{sdk.NewUserMessage(sdk.NewTextBlock(p.User))}
	if p.Prefill != "" {
		msgs = append(msgs, sdk.NewAssistantMessage(sdk.NewTextBlock(p.Prefill)))
	}

	params := sdk.MessageNewParams{
		Model:       sdk.Model(p.Model),
		MaxTokens:   p.MaxTokens,
		Messages:    msgs,
		Temperature: sdk.Float(p.Temperature),
	}
	if p.System != "" {
		block := sdk.TextBlockParam{Text: p.System}
		if p.CacheSystem {
			cc := sdk.NewCacheControlEphemeralParam()
			cc.TTL = sdk.CacheControlEphemeralTTL("1h")
			block.CacheControl = cc
		}
		params.System = []sdk.TextBlockParam{block}
	}
	return params
}

func fromMessage(msg *sdk.Message, prefill string) *Reply {
	var b strings.Builder
	b.WriteString(prefill)
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return &Reply{
		ID:         msg.ID,
		Model:      string(msg.Model),
		Text:       b.String(),
		StopReason: string(msg.StopReason),
		Usage: Usage{
			InputTokens:      msg.Usage.InputTokens,
			OutputTokens:     msg.Usage.OutputTokens,
			CacheWriteTokens: msg.Usage.CacheCreationInputTokens,
			CacheReadTokens:  msg.Usage.CacheReadInputTokens,
		},
	}
}
