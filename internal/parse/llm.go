package parse

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/nip-resolver/internal/model"
	"github.com/sells-group/nip-resolver/internal/nip"
	"github.com/sells-group/nip-resolver/pkg/anthropic"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "claude-haiku-4-5-20251001"

const systemPrompt = `You extract identifiers of a Polish business from one messy lead line.
Reply with a single JSON object and nothing else, using these keys:
nip, regon, krs, name, short_name, city, street, phone, email, website, keywords, confidence, strongest_signal.
Rules:
- Omit a key (or use null) when the value is not present. Never invent values.
- nip: the 10 digits only, even if the checksum looks wrong.
- name: the registered company name if visible, else the business name as written.
- short_name: the brand or common name when it differs from name.
- city: nominative Polish spelling with diacritics ("Wrocław", not "Wrocławiu").
- street: with the "ul." prefix and the building number when present.
- phone: as written. website: the domain with any path.
- keywords: industry words such as "stomatolog" or "klinika".
- confidence: 0..1, how sure you are the extraction identifies one business.
- strongest_signal: one of nip, website, email, phone, name_city, name_only.`

// llmLead is the JSON shape the model is asked to produce.
type llmLead struct {
	NIP        *string  `json:"nip"`
	REGON      *string  `json:"regon"`
	KRS        *string  `json:"krs"`
	Name       *string  `json:"name"`
	ShortName  *string  `json:"short_name"`
	City       *string  `json:"city"`
	Street     *string  `json:"street"`
	Phone      *string  `json:"phone"`
	Email      *string  `json:"email"`
	Website    *string  `json:"website"`
	Keywords   []string `json:"keywords"`
	Confidence *float64 `json:"confidence"`
	Strongest  *string  `json:"strongest_signal"`
}

// LLM parses leads with a language model.
type LLM struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewLLM creates an LLM parser. Empty model and zero maxTokens use defaults.
func NewLLM(client anthropic.Client, model string, maxTokens int64) *LLM {
	if model == "" {
		model = DefaultModel
	}
	if maxTokens <= 0 {
		maxTokens = 512
	}
	return &LLM{client: client, model: model, maxTokens: maxTokens}
}

// Parse implements Parser.
func (p *LLM) Parse(ctx context.Context, raw string) model.Outcome[Result] {
	if strings.TrimSpace(raw) == "" {
		return model.Ok(Result{Lead: model.Lead{Raw: raw}, Method: MethodLLM})
	}

	reply, err := p.client.Complete(ctx, anthropic.Prompt{
		Model:       p.model,
		MaxTokens:   p.maxTokens,
		System:      systemPrompt,
		CacheSystem: true,
		User:        raw,
		Prefill:     "{",
	})
	if err != nil {
		zap.L().Warn("parse: llm call failed", zap.Error(err))
		return model.Unavailable[Result](err.Error())
	}
	reply.Usage.Log(p.model, "parse")
	if reply.Truncated() {
		zap.L().Warn("parse: llm reply truncated", zap.Int64("max_tokens", p.maxTokens))
	}

	lead, err := decodeLead(raw, reply.Text)
	if err != nil {
		zap.L().Warn("parse: llm reply not usable", zap.Error(err))
		return model.Unavailable[Result](err.Error())
	}
	return model.Ok(Result{Lead: lead, Method: MethodLLM})
}

// decodeLead reads the model's JSON reply. Fences and prose around the
// object are tolerated; absent or blank fields stay empty.
func decodeLead(raw, text string) (model.Lead, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return model.Lead{}, eris.New("parse: no JSON object in llm reply")
	}
	var l llmLead
	if err := json.Unmarshal([]byte(text[start:end+1]), &l); err != nil {
		return model.Lead{}, eris.Wrap(err, "parse: decode llm reply")
	}

	lead := model.Lead{
		Raw:       raw,
		REGON:     digits(str(l.REGON)),
		KRS:       digits(str(l.KRS)),
		Name:      str(l.Name),
		ShortName: str(l.ShortName),
		City:      str(l.City),
		Street:    str(l.Street),
		Phone:     nip.NormalizePhone(str(l.Phone)),
		Email:     nip.NormalizeEmail(str(l.Email)),
		Website:   strings.ToLower(str(l.Website)),
	}
	if id := digits(str(l.NIP)); len(id) == nip.Length {
		lead.NIP = id
	}
	if lead.ShortName == lead.Name {
		lead.ShortName = ""
	}
	for _, k := range l.Keywords {
		if k = strings.TrimSpace(k); k != "" {
			lead.Keywords = append(lead.Keywords, strings.ToLower(k))
		}
	}

	if l.Strongest != nil && model.Signal(*l.Strongest).Valid() {
		lead.Strongest = model.Signal(*l.Strongest)
	} else {
		lead.Strongest = Strongest(&lead)
	}
	if l.Confidence != nil {
		lead.Confidence = min(max(*l.Confidence, 0), 1)
	} else {
		lead.Confidence = confidence(&lead)
	}
	return lead, nil
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	s := strings.TrimSpace(*p)
	if strings.EqualFold(s, "null") || strings.EqualFold(s, "none") {
		return ""
	}
	return s
}

func digits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}
