package scrape

import (
	"net/http"
	"strings"
)

// BlockType describes the kind of block detected.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockCloudflare BlockType = "cloudflare"
	BlockDDoSGuard  BlockType = "ddos_guard"
	BlockCaptcha    BlockType = "captcha"
	BlockJSShell    BlockType = "js_shell"
)

// bodyMarkers are checked in order against the lowercased body.
var bodyMarkers = []struct {
	all  []string
	kind BlockType
}{
	{[]string{"checking your browser"}, BlockCloudflare},
	{[]string{"cf-browser-verification"}, BlockCloudflare},
	{[]string{"cloudflare", "challenge"}, BlockCloudflare},
	{[]string{"ddos-guard"}, BlockDDoSGuard},
	{[]string{"recaptcha"}, BlockCaptcha},
	{[]string{"hcaptcha"}, BlockCaptcha},
	{[]string{"captcha"}, BlockCaptcha},
}

// DetectBlock checks an HTTP response for signs of anti-bot protection.
func DetectBlock(resp *http.Response, body []byte) (bool, BlockType) {
	if resp == nil {
		return false, BlockNone
	}

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusServiceUnavailable {
		if resp.Header.Get("cf-ray") != "" || resp.Header.Get("cf-cache-status") != "" ||
			strings.EqualFold(resp.Header.Get("server"), "cloudflare") {
			return true, BlockCloudflare
		}
		if strings.EqualFold(resp.Header.Get("server"), "ddos-guard") {
			return true, BlockDDoSGuard
		}
	}

	lower := strings.ToLower(string(body))
	for _, m := range bodyMarkers {
		if containsAll(lower, m.all) {
			return true, m.kind
		}
	}

	// JS-only shell: very small body with noscript or meta refresh.
	if len(body) < 2000 {
		if strings.Contains(lower, "<noscript") && strings.Contains(lower, "javascript") {
			return true, BlockJSShell
		}
		if strings.Contains(lower, `meta http-equiv="refresh"`) {
			return true, BlockJSShell
		}
	}

	return false, BlockNone
}

func containsAll(s string, subs []string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}
