// Package gus is a client for the Polish national business registry search
// service (GUS BIR 1.1, SOAP 1.2 with WS-Addressing).
package gus

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/nip-resolver/internal/resilience"
)

// Service endpoints and the public test key.
const (
	ProductionURL = "https://wyszukiwarkaregon.stat.gov.pl/wsBIR/UslugaBIRzewnPubl.svc"
	TestURL       = "https://wyszukiwarkaregontest.stat.gov.pl/wsBIR/UslugaBIRzewnPubl.svc"
	TestKey       = "abcde12345abcde12345"

	actionBase = "http://CIS/BIR/PUBL/2014/07/IUslugaBIRzewnPubl/"
	// sessionTTL stays below the service's one-hour session lifetime.
	sessionTTL = 50 * time.Minute
)

// ErrNoKey is returned when no API key is configured.
var ErrNoKey = eris.New("gus: api key not configured")

// Entity is one registry entry returned by a search.
type Entity struct {
	REGON       string `xml:"Regon"`
	NIP         string `xml:"Nip"`
	Name        string `xml:"Nazwa"`
	Voivodeship string `xml:"Wojewodztwo"`
	County      string `xml:"Powiat"`
	Commune     string `xml:"Gmina"`
	City        string `xml:"Miejscowosc"`
	PostalCode  string `xml:"KodPocztowy"`
	Street      string `xml:"Ulica"`
	Building    string `xml:"NrNieruchomosci"`
	Apartment   string `xml:"NrLokalu"`
	Type        string `xml:"Typ"`
	SilosID     string `xml:"SilosID"`
	PostCity    string `xml:"MiejscowoscPoczty"`

	ErrorCode    string `xml:"ErrorCode"`
	ErrorMessage string `xml:"ErrorMessagePl"`
}

// Client searches the registry.
type Client interface {
	// SearchNIP returns the entities registered under nip. An empty slice
	// with a nil error means the registry has no such entity.
	SearchNIP(ctx context.Context, nip string) ([]Entity, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the service URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) { c.url = url }
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

// WithRateLimit caps requests per second. The service throttles bursts.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

type httpClient struct {
	key     string
	url     string
	http    *http.Client
	limiter *rate.Limiter

	mu      sync.Mutex
	sid     string
	sidTime time.Time
	now     func() time.Time
}

// NewClient creates a registry client. The test key selects the test
// endpoint unless a base URL is given.
func NewClient(key string, opts ...Option) Client {
	c := &httpClient{
		key:  key,
		url:  ProductionURL,
		http: &http.Client{Timeout: 15 * time.Second},
		now:  time.Now,
	}
	if key == TestKey {
		c.url = TestURL
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) SearchNIP(ctx context.Context, nip string) ([]Entity, error) {
	if c.key == "" {
		return nil, ErrNoKey
	}
	sid, err := c.session(ctx)
	if err != nil {
		return nil, err
	}

	body, err := c.call(ctx, "DaneSzukajPodmioty", searchBody(nip), sid)
	if err != nil {
		return nil, err
	}
	var env struct {
		Result string `xml:"Body>DaneSzukajPodmiotyResponse>DaneSzukajPodmiotyResult"`
	}
	if err := xml.Unmarshal(body, &env); err != nil {
		return nil, eris.Wrap(err, "gus: decode search envelope")
	}
	entities, err := parseEntities(env.Result)
	if err != nil {
		return nil, err
	}

	var found []Entity
	for _, e := range entities {
		switch {
		case e.ErrorCode == "4":
			// not found
		case e.ErrorCode == "7":
			c.dropSession()
			return nil, resilience.Transient(eris.New("gus: session expired"), 0)
		case e.ErrorCode != "":
			zap.L().Warn("gus: search error",
				zap.String("nip", nip),
				zap.String("code", e.ErrorCode),
				zap.String("message", e.ErrorMessage),
			)
		case e.Name != "":
			found = append(found, e)
		}
	}
	return found, nil
}

// parseEntities decodes the escaped inner document of a search result.
func parseEntities(inner string) ([]Entity, error) {
	inner = strings.TrimSpace(strings.TrimPrefix(inner, "\ufeff"))
	if inner == "" {
		return nil, nil
	}
	var doc struct {
		Entities []Entity `xml:"dane"`
	}
	if err := xml.Unmarshal([]byte(inner), &doc); err != nil {
		return nil, eris.Wrap(err, "gus: decode search result")
	}
	return doc.Entities, nil
}

func (c *httpClient) session(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.sid != "" && c.now().Sub(c.sidTime) < sessionTTL {
		sid := c.sid
		c.mu.Unlock()
		return sid, nil
	}
	c.mu.Unlock()

	body, err := c.call(ctx, "Zaloguj", "<ns:Zaloguj><ns:pKluczUzytkownika>"+escape(c.key)+"</ns:pKluczUzytkownika></ns:Zaloguj>", "")
	if err != nil {
		return "", err
	}
	var env struct {
		SID string `xml:"Body>ZalogujResponse>ZalogujResult"`
	}
	if err := xml.Unmarshal(body, &env); err != nil {
		return "", eris.Wrap(err, "gus: decode login envelope")
	}
	sid := strings.TrimSpace(env.SID)
	if sid == "" {
		return "", eris.New("gus: login returned no session")
	}

	c.mu.Lock()
	c.sid, c.sidTime = sid, c.now()
	c.mu.Unlock()
	zap.L().Debug("gus: session opened")
	return sid, nil
}

func (c *httpClient) dropSession() {
	c.mu.Lock()
	c.sid = ""
	c.mu.Unlock()
}

func (c *httpClient) call(ctx context.Context, action, body, sid string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "gus: rate limit")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, strings.NewReader(envelope(c.url, action, body)))
	if err != nil {
		return nil, eris.Wrap(err, "gus: create request")
	}
	req.Header.Set("Content-Type", "application/soap+xml; charset=utf-8")
	if sid != "" {
		req.Header.Set("sid", sid)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "gus: %s", action)
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "gus: read response")
	}
	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("gus: %s unexpected status %d", action, resp.StatusCode)
		if resilience.TransientStatus(resp.StatusCode) {
			return nil, resilience.Transient(err, resp.StatusCode)
		}
		return nil, err
	}
	return soapPart(resp.Header.Get("Content-Type"), raw)
}

// soapPart returns the SOAP envelope, unwrapping an MTOM multipart body.
func soapPart(contentType string, raw []byte) ([]byte, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		return raw, nil
	}
	mr := multipart.NewReader(bytes.NewReader(raw), params["boundary"])
	part, err := mr.NextPart()
	if err != nil {
		return nil, eris.Wrap(err, "gus: read multipart response")
	}
	defer part.Close() //nolint:errcheck
	data, err := io.ReadAll(part)
	if err != nil {
		return nil, eris.Wrap(err, "gus: read soap part")
	}
	return data, nil
}

func envelope(to, action, body string) string {
	return `<?xml version="1.0" encoding="utf-8"?>` +
		`<soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope" xmlns:ns="http://CIS/BIR/PUBL/2014/07" ` +
		`xmlns:dat="http://CIS/BIR/PUBL/2014/07/DataContract">` +
		`<soap:Header xmlns:wsa="http://www.w3.org/2005/08/addressing">` +
		`<wsa:To>` + escape(to) + `</wsa:To>` +
		`<wsa:Action>` + actionBase + action + `</wsa:Action>` +
		`</soap:Header><soap:Body>` + body + `</soap:Body></soap:Envelope>`
}

func searchBody(nip string) string {
	return fmt.Sprintf("<ns:DaneSzukajPodmioty><ns:pParametryWyszukiwania><dat:Nip>%s</dat:Nip>"+
		"</ns:pParametryWyszukiwania></ns:DaneSzukajPodmioty>", escape(nip))
}

func escape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
