package scrape

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubFetcher serves fixed pages by URL.
type stubFetcher struct {
	name     string
	supports bool
	pages    map[string]Page
	err      error

	mu    sync.Mutex
	calls []string
}

func (s *stubFetcher) Name() string           { return s.name }
func (s *stubFetcher) Supports(_ string) bool { return s.supports }

func (s *stubFetcher) Fetch(_ context.Context, u string) (*Result, error) {
	s.mu.Lock()
	s.calls = append(s.calls, u)
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	p, ok := s.pages[u]
	if !ok {
		return nil, errors.New("404")
	}
	if p.URL == "" {
		p.URL = u
	}
	return &Result{Page: p, Source: s.name}, nil
}

func (s *stubFetcher) called() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func TestChain_Fetch_FirstSuccess(t *testing.T) {
	f1 := &stubFetcher{name: "primary", supports: true, pages: map[string]Page{"https://aldent.pl/": {Title: "Home"}}}
	f2 := &stubFetcher{name: "fallback", supports: true}

	result, err := NewChain(nil, f1, f2).Fetch(context.Background(), "https://aldent.pl/")
	require.NoError(t, err)
	assert.Equal(t, "primary", result.Source)
	assert.Empty(t, f2.called())
}

func TestChain_Fetch_FallbackOnError(t *testing.T) {
	f1 := &stubFetcher{name: "primary", supports: true, err: errors.New("blocked")}
	f2 := &stubFetcher{name: "fallback", supports: true, pages: map[string]Page{"https://aldent.pl/": {}}}

	result, err := NewChain(nil, f1, f2).Fetch(context.Background(), "https://aldent.pl/")
	require.NoError(t, err)
	assert.Equal(t, "fallback", result.Source)
}

func TestChain_Fetch_SkipsUnsupported(t *testing.T) {
	f1 := &stubFetcher{name: "open-breaker", supports: false}
	f2 := &stubFetcher{name: "local", supports: true, pages: map[string]Page{"https://aldent.pl/": {}}}

	result, err := NewChain(nil, f1, f2).Fetch(context.Background(), "https://aldent.pl/")
	require.NoError(t, err)
	assert.Equal(t, "local", result.Source)
	assert.Empty(t, f1.called())
}

func TestChain_Fetch_AllFail(t *testing.T) {
	f1 := &stubFetcher{name: "a", supports: true, err: errors.New("e1")}
	f2 := &stubFetcher{name: "b", supports: true, err: errors.New("e2")}

	_, err := NewChain(nil, f1, f2).Fetch(context.Background(), "https://aldent.pl/")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all fetchers failed")
	assert.Contains(t, err.Error(), "e2")
}

func TestChain_Fetch_NoSuitableFetcher(t *testing.T) {
	_, err := NewChain(nil, &stubFetcher{name: "a"}).Fetch(context.Background(), "https://aldent.pl/")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no suitable fetcher")
}

func TestChain_Fetch_Excluded(t *testing.T) {
	f := &stubFetcher{name: "a", supports: true}
	_, err := NewChain(NewPathMatcher([]string{"/blog/*"}), f).Fetch(context.Background(), "https://aldent.pl/blog/post")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "excluded")
	assert.Empty(t, f.called())
}

func TestChain_FetchAll_IndexAligned(t *testing.T) {
	f := &stubFetcher{name: "a", supports: true, pages: map[string]Page{
		"https://aldent.pl/kontakt": {Title: "Kontakt"},
		"https://aldent.pl/o-nas":   {Title: "O nas"},
	}}
	urls := []string{"https://aldent.pl/kontakt", "https://aldent.pl/missing", "https://aldent.pl/o-nas"}

	got := NewChain(nil, f).FetchAll(context.Background(), urls, 2)
	require.Len(t, got, 3)
	assert.Equal(t, "Kontakt", got[0].Page.Title)
	assert.Nil(t, got[1])
	assert.Equal(t, "O nas", got[2].Page.Title)
	assert.Len(t, f.called(), 3)
}
