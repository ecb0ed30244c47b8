// Package cost estimates the external spend of each resolution step.
package cost

// Rates holds flat per-step estimates in USD. Hits and misses are priced
// separately because a miss usually stops earlier.
type Rates struct {
	Parse       float64 `yaml:"parse" mapstructure:"parse"`
	RegistryHit float64 `yaml:"registry_hit" mapstructure:"registry_hit"`
	CRM         float64 `yaml:"crm" mapstructure:"crm"`
	Validate    float64 `yaml:"validate" mapstructure:"validate"`
	ScrapeHit   float64 `yaml:"scrape_hit" mapstructure:"scrape_hit"`
	ScrapeMiss  float64 `yaml:"scrape_miss" mapstructure:"scrape_miss"`
	SearchHit   float64 `yaml:"search_hit" mapstructure:"search_hit"`
	SearchMiss  float64 `yaml:"search_miss" mapstructure:"search_miss"`
}

// DefaultRates returns the default estimates.
func DefaultRates() Rates {
	return Rates{
		Parse:       0.001,
		RegistryHit: 0.001,
		CRM:         0,
		Validate:    0.001,
		ScrapeHit:   0.005,
		ScrapeMiss:  0.002,
		SearchHit:   0.01,
		SearchMiss:  0.005,
	}
}

// Calculator prices steps.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Rates returns the rates in use.
func (c *Calculator) Rates() Rates {
	return c.rates
}

// Parse prices one parse, whichever parser ran.
func (c *Calculator) Parse() float64 {
	return c.rates.Parse
}

// Registry prices a registry lookup. Lookups that find nothing are free.
func (c *Calculator) Registry(found bool) float64 {
	if found {
		return c.rates.RegistryHit
	}
	return 0
}

// CRM prices a CRM lookup.
func (c *Calculator) CRM() float64 {
	return c.rates.CRM
}

// Validate prices the registry check of a NIP found by the CRM or a scrape.
func (c *Calculator) Validate() float64 {
	return c.rates.Validate
}

// Scrape prices one site scrape.
func (c *Calculator) Scrape(hit bool) float64 {
	if hit {
		return c.rates.ScrapeHit
	}
	return c.rates.ScrapeMiss
}

// Search prices one search cascade run.
func (c *Calculator) Search(hit bool) float64 {
	if hit {
		return c.rates.SearchHit
	}
	return c.rates.SearchMiss
}
