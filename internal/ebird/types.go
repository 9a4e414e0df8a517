// Package ebird provides a client for the eBird API v2 taxonomy endpoints and
// an importer that turns taxonomy entries into bird records.
package ebird

import (
	"time"

	"github.com/hellobirdie/hellobirdie/internal/conf"
)

// Taxonomy categories used by eBird
const (
	CategorySpecies = "species"
	CategoryISSF    = "issf" // identifiable subspecies or group
	CategoryForm    = "form"
	CategorySpuh    = "spuh"
	CategorySlash   = "slash"
	CategoryHybrid  = "hybrid"
)

// TaxonomyEntry represents a single entry from the eBird taxonomy
type TaxonomyEntry struct {
	ScientificName string   `json:"sciName"`
	CommonName     string   `json:"comName"`
	SpeciesCode    string   `json:"speciesCode"`
	Category       string   `json:"category"`   // species, issf, spuh, slash, hybrid, etc.
	TaxonOrder     float64  `json:"taxonOrder"` // for sorting in taxonomic order
	BandingCodes   []string `json:"bandingCodes"`
	Order          string   `json:"order"`
	FamilyCode     string   `json:"familyCode"`
	FamilyComName  string   `json:"familyComName"`
	FamilySciName  string   `json:"familySciName"`
	ReportAs       string   `json:"reportAs,omitempty"` // species to report as (for subspecies)
	Extinct        bool     `json:"extinct,omitempty"`
}

// Config holds configuration for the eBird client
type Config struct {
	APIKey       string
	BaseURL      string
	Timeout      time.Duration
	CacheTTL     time.Duration
	RateLimit    float64       // requests per second
	RetryBackoff time.Duration // delay before the first retry, grows linearly
}

// Error represents an eBird API error response
type Error struct {
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail"`
}

func (e *Error) Error() string {
	return e.Detail
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		BaseURL:      "https://api.ebird.org/v2",
		Timeout:      30 * time.Second,
		CacheTTL:     24 * time.Hour, // taxonomy rarely changes
		RateLimit:    2,
		RetryBackoff: 500 * time.Millisecond,
	}
}

// ConfigFromSettings maps the ebird section of the settings onto Config.
func ConfigFromSettings(s *conf.EBirdSettings) Config {
	return Config{
		APIKey:    s.APIKey,
		BaseURL:   s.BaseURL,
		Timeout:   s.Timeout,
		CacheTTL:  s.CacheTTL,
		RateLimit: s.RateLimit,
	}
}
