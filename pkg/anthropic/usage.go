package anthropic

import "go.uber.org/zap"

// Usage is the token count of one reply.
type Usage struct {
	InputTokens      int64
	OutputTokens     int64
	CacheWriteTokens int64
	CacheReadTokens  int64
}

// price is USD per million tokens: input, output.
var price = map[string][2]float64{
	"claude-haiku-4-5-20251001":  {1.00, 5.00},
	"claude-sonnet-4-5-20250929": {3.00, 15.00},
}

// Cost estimates the USD cost of u for model. Unknown models cost 0.
// Cache writes bill at 2x input for the one-hour TTL, reads at 0.1x.
func (u Usage) Cost(model string) float64 {
	p, ok := price[model]
	if !ok {
		return 0
	}
	in := float64(u.InputTokens) + 2*float64(u.CacheWriteTokens) + 0.1*float64(u.CacheReadTokens)
	return (in*p[0] + float64(u.OutputTokens)*p[1]) / 1e6
}

// Log records usage and estimated cost for one call.
func (u Usage) Log(model, step string) {
	zap.L().Debug("anthropic: usage",
		zap.String("model", model),
		zap.String("step", step),
		zap.Int64("input_tokens", u.InputTokens),
		zap.Int64("output_tokens", u.OutputTokens),
		zap.Int64("cache_write_tokens", u.CacheWriteTokens),
		zap.Int64("cache_read_tokens", u.CacheReadTokens),
		zap.Float64("cost_usd", u.Cost(model)),
	)
}
