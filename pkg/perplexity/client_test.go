package perplexity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/nip-resolver/internal/resilience"
)

const okBody = `{"choices":[{"message":{"role":"assistant","content":"BRAK"}}],"usage":{"total_tokens":12}}`

func TestAsk(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		wantErr       string
		wantTransient bool
		wantText      string
		wantCitations []string
	}{
		{
			name:   "citations",
			status: http.StatusOK,
			body: `{
				"choices": [{"message": {"role": "assistant", "content": " NIP: 8941864949 "}}],
				"citations": ["https://rejestr.io/krs/1/aldent", "https://aldent.pl/kontakt"],
				"usage": {"total_tokens": 48}
			}`,
			wantText:      "NIP: 8941864949",
			wantCitations: []string{"https://rejestr.io/krs/1/aldent", "https://aldent.pl/kontakt"},
		},
		{
			name:   "search results fallback",
			status: http.StatusOK,
			body: `{
				"choices": [{"message": {"content": "5223210470"}}],
				"search_results": [{"url": "https://aleo.com/fabskin"}]
			}`,
			wantText:      "5223210470",
			wantCitations: []string{"https://aleo.com/fabskin"},
		},
		{
			name:          "rate limited",
			status:        http.StatusTooManyRequests,
			body:          `{"error": "rate limit exceeded"}`,
			wantErr:       "status 429",
			wantTransient: true,
		},
		{
			name:          "server error",
			status:        http.StatusBadGateway,
			body:          `bad gateway`,
			wantErr:       "status 502",
			wantTransient: true,
		},
		{
			name:    "bad key",
			status:  http.StatusUnauthorized,
			body:    `{"error":"invalid api key"}`,
			wantErr: "invalid api key",
		},
		{
			name:    "malformed",
			status:  http.StatusOK,
			body:    `{invalid`,
			wantErr: "decode response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/chat/completions", r.URL.Path)
				assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			ans, err := NewClient("test-key", WithBaseURL(srv.URL+"/")).Ask(context.Background(), Question{
				Prompt: "Podaj numer NIP firmy Aldent z Wrocławia",
			})
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Equal(t, tt.wantTransient, resilience.IsTransient(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantText, ans.Text)
			assert.Equal(t, tt.wantCitations, ans.Citations)
		})
	}
}

func TestAsk_RequestShape(t *testing.T) {
	exclude := []string{"allegro.pl", " ", "olx.pl"}
	for i := range 12 {
		exclude = append(exclude, string(rune('a'+i))+".pl")
	}

	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(okBody))
	}))
	defer srv.Close()

	ans, err := NewClient("k", WithBaseURL(srv.URL), WithModel("sonar-pro")).Ask(context.Background(), Question{
		Prompt:  "Podaj numer NIP firmy ProBody",
		System:  "Odpowiadaj krótko.",
		Exclude: exclude,
		Recency: "year",
	})
	require.NoError(t, err)
	assert.Equal(t, 12, ans.Tokens)

	assert.Equal(t, "sonar-pro", got.Model)
	assert.Zero(t, got.Temperature)
	assert.Equal(t, "year", got.Recency)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "user", got.Messages[1].Role)
	require.Len(t, got.DomainFilter, MaxDomainFilter)
	assert.Equal(t, "-allegro.pl", got.DomainFilter[0])
	assert.Equal(t, "-olx.pl", got.DomainFilter[1])
}

func TestAsk_EmptyQuestion(t *testing.T) {
	_, err := NewClient("k").Ask(context.Background(), Question{Prompt: " "})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty question")
}

func TestAsk_Cancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(okBody))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewClient("k", WithBaseURL(srv.URL), WithRateLimit(5)).Ask(ctx, Question{Prompt: "q"})
	require.Error(t, err)
}

func TestNewClient_Defaults(t *testing.T) {
	custom := &http.Client{}
	hc := NewClient("my-key", WithHTTPClient(custom), WithModel(""), WithBaseURL(""), WithRateLimit(0)).(*httpClient)
	assert.Equal(t, "my-key", hc.apiKey)
	assert.Equal(t, defaultBaseURL, hc.baseURL)
	assert.Equal(t, defaultModel, hc.model)
	assert.Same(t, custom, hc.http)
	assert.Nil(t, hc.limiter)
}
