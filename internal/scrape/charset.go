package scrape

import (
	"mime"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"
)

var metaCharsetRe = regexp.MustCompile(`(?i)<meta[^>]+charset\s*=\s*["']?([a-z0-9_\-]+)`)

// declaredCharset returns the charset named by the Content-Type header or,
// failing that, by a meta tag near the top of the document.
func declaredCharset(contentType string, body []byte) string {
	if _, params, err := mime.ParseMediaType(contentType); err == nil {
		if cs := params["charset"]; cs != "" {
			return strings.ToLower(cs)
		}
	}
	head := body
	if len(head) > 2048 {
		head = head[:2048]
	}
	if m := metaCharsetRe.FindSubmatch(head); m != nil {
		return strings.ToLower(string(m[1]))
	}
	return ""
}

// toUTF8 decodes body from its declared charset. Many older Polish sites
// are still served as windows-1250 or iso-8859-2. Unknown or missing
// charsets leave the body untouched.
func toUTF8(contentType string, body []byte) []byte {
	cs := declaredCharset(contentType, body)
	if cs == "" || cs == "utf-8" || cs == "utf8" {
		return body
	}
	enc, err := htmlindex.Get(cs)
	if err != nil {
		zap.L().Debug("scrape: unknown charset", zap.String("charset", cs))
		return body
	}
	out, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		zap.L().Debug("scrape: charset decode failed", zap.String("charset", cs), zap.Error(err))
		return body
	}
	return out
}
