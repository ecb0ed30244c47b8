package model

import (
	"github.com/twpayne/go-geom"
)

// ContactKind labels a contact value.
type ContactKind string

const (
	ContactPhone   ContactKind = "phone"
	ContactEmail   ContactKind = "email"
	ContactWebsite ContactKind = "website"
)

// Contact is one contact value attached to a location.
type Contact struct {
	Kind   ContactKind `json:"kind"`
	Value  string      `json:"value"`
	Source string      `json:"source,omitempty"`
}

// Address is a postal address as reported by a geo source.
type Address struct {
	Street     string `json:"street,omitempty"`
	Number     string `json:"number,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	City       string `json:"city,omitempty"`
	Formatted  string `json:"formatted,omitempty"`
}

// Empty reports whether no address information is present.
func (a Address) Empty() bool {
	return a.Street == "" && a.City == "" && a.Formatted == ""
}

// Coordinates is a WGS84 position.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Point returns the position as a go-geom point (lng, lat order).
func (c Coordinates) Point() *geom.Point {
	return geom.NewPointFlat(geom.XY, []float64{c.Lng, c.Lat}).SetSRID(4326)
}

// Location is one physical place of business discovered from a geo source.
type Location struct {
	PlaceID     string       `json:"place_id,omitempty"`
	Name        string       `json:"name"`
	Address     Address      `json:"address"`
	Contacts    []Contact    `json:"contacts,omitempty"`
	Hours       []string     `json:"hours,omitempty"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
	Rating      float64      `json:"rating"`
	Reviews     int          `json:"reviews"`
	// Merged counts records folded into this one by deduplication.
	Merged int `json:"merged,omitempty"`
}

// ContactValues returns the values of contacts of the given kind.
func (l *Location) ContactValues(kind ContactKind) []string {
	var out []string
	for _, c := range l.Contacts {
		if c.Kind == kind {
			out = append(out, c.Value)
		}
	}
	return out
}

// Validation carries non-fatal data-quality warnings from comparing
// independently gathered location sources.
type Validation struct {
	CommonPhones []string `json:"common_phones,omitempty"`
	CommonEmails []string `json:"common_emails,omitempty"`
	Warnings     []string `json:"warnings,omitempty"`
}

// OK reports whether no warnings were raised.
func (v Validation) OK() bool {
	return len(v.Warnings) == 0
}
