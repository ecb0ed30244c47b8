// Package perplexity asks the Perplexity answer engine short factual
// questions and returns the answer with the URLs it cited.
package perplexity

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/nip-resolver/internal/resilience"
)

const (
	defaultBaseURL = "https://api.perplexity.ai"
	defaultModel   = "sonar"

	// MaxDomainFilter is the most entries the API accepts in a domain filter.
	MaxDomainFilter = 10
)

// Client answers questions with cited sources.
type Client interface {
	Ask(ctx context.Context, q Question) (*Answer, error)
}

// Question is one lookup.
type Question struct {
	Prompt string
	System string
	// Exclude lists domains the engine must not cite.
	Exclude []string
	// Recency limits sources to "day", "week", "month" or "year".
	Recency string
}

// Answer is the engine's reply.
type Answer struct {
	Text      string
	Citations []string
	Tokens    int
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model        string    `json:"model"`
	Messages     []message `json:"messages"`
	Temperature  float64   `json:"temperature"`
	DomainFilter []string  `json:"search_domain_filter,omitempty"`
	Recency      string    `json:"search_recency_filter,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
	Citations     []string `json:"citations"`
	SearchResults []struct {
		URL string `json:"url"`
	} `json:"search_results"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the API base URL. Empty keeps the default.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		if url != "" {
			c.baseURL = strings.TrimRight(url, "/")
		}
	}
}

// WithModel overrides the default model. Empty keeps the default.
func WithModel(model string) Option {
	return func(c *httpClient) {
		if model != "" {
			c.model = model
		}
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

// WithRateLimit caps requests per second. Zero disables the limiter.
func WithRateLimit(perSec float64) Option {
	return func(c *httpClient) {
		if perSec > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSec), 1)
		}
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	model   string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a Perplexity client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		model:   defaultModel,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Ask(ctx context.Context, q Question) (*Answer, error) {
	if strings.TrimSpace(q.Prompt) == "" {
		return nil, eris.New("perplexity: empty question")
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "perplexity: rate limit")
		}
	}

	body, err := json.Marshal(c.request(q))
	if err != nil {
		return nil, eris.Wrap(err, "perplexity: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "perplexity: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "perplexity: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, eris.Wrap(err, "perplexity: read response")
	}
	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("perplexity: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
		if resilience.TransientStatus(resp.StatusCode) {
			return nil, resilience.Transient(err, resp.StatusCode)
		}
		return nil, err
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, eris.Wrap(err, "perplexity: decode response")
	}
	return out.answer(), nil
}

func (c *httpClient) request(q Question) chatRequest {
	r := chatRequest{Model: c.model, Recency: q.Recency}
	if q.System != "" {
		r.Messages = append(r.Messages, message{Role: "system", Content: q.System})
	}
	r.Messages = append(r.Messages, message{Role: "user", Content: q.Prompt})
	for _, d := range q.Exclude {
		if len(r.DomainFilter) == MaxDomainFilter {
			break
		}
		if d = strings.TrimSpace(d); d != "" {
			r.DomainFilter = append(r.DomainFilter, "-"+d)
		}
	}
	return r
}

// answer prefers the citations list and falls back to search result URLs.
func (r *chatResponse) answer() *Answer {
	a := &Answer{Citations: r.Citations, Tokens: r.Usage.TotalTokens}
	if len(r.Choices) > 0 {
		a.Text = strings.TrimSpace(r.Choices[0].Message.Content)
	}
	if len(a.Citations) == 0 {
		for _, s := range r.SearchResults {
			a.Citations = append(a.Citations, s.URL)
		}
	}
	return a
}
