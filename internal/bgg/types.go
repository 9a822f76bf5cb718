// Package bgg provides a client for the BoardGameGeek XML API v2 and the
// catalog operations built on it: name search with coarse previews, detail
// fetch by id and expansion discovery.
package bgg

import (
	"encoding/xml"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/MrGangrene/bgg-flashcards/internal/conf"
)

// Link and category values used by the catalog
const (
	linkTypeCategory   = "boardgamecategory"
	linkTypeExpansion  = "boardgameexpansion"
	categoryExpansion  = "Expansion for Base-game"
	nameTypePrimary    = "primary"
	itemTypeBoardGame  = "boardgame"
	defaultPlayerCount = 1
)

// Config holds configuration for the catalog client
type Config struct {
	BaseURL              string
	Timeout              time.Duration // per request, including the body read
	RateLimitMS          int           // minimum milliseconds between requests, 0 disables
	CacheTTL             time.Duration
	MaxRetries           int
	RetryBackoff         time.Duration // linear backoff step between attempts
	UserAgent            string
	SecondarySearchDelay time.Duration
}

// DefaultConfig returns a Config with the public BoardGameGeek defaults
func DefaultConfig() Config {
	return Config{
		BaseURL:              "https://boardgamegeek.com/xmlapi2",
		Timeout:              10 * time.Second,
		RateLimitMS:          1000,
		CacheTTL:             10 * time.Minute,
		MaxRetries:           3,
		RetryBackoff:         500 * time.Millisecond,
		UserAgent:            "bgg-flashcards/1.0",
		SecondarySearchDelay: time.Second,
	}
}

// ConfigFromSettings maps the catalog settings onto a client Config.
func ConfigFromSettings(s *conf.CatalogSettings) Config {
	cfg := DefaultConfig()
	cfg.BaseURL = strings.TrimRight(s.BaseURL, "/")
	cfg.Timeout = s.Timeout
	cfg.RateLimitMS = s.RateLimitMS
	cfg.CacheTTL = s.CacheTTL
	cfg.MaxRetries = s.MaxRetries
	cfg.UserAgent = s.UserAgent
	cfg.SecondarySearchDelay = s.SecondarySearchDelay
	return cfg
}

// ValueAttr is the recurring <element value="..."/> shape of the API.
type ValueAttr struct {
	Value string `xml:"value,attr"`
}

// Name is a primary or alternate game name.
type Name struct {
	Type  string `xml:"type,attr"`
	Value string `xml:"value,attr"`
}

// Link connects an item to a category, mechanic, expansion and so on.
type Link struct {
	Type    string `xml:"type,attr"`
	ID      string `xml:"id,attr"`
	Value   string `xml:"value,attr"`
	Inbound string `xml:"inbound,attr"`
}

// SearchResponse is the body of /search.
type SearchResponse struct {
	XMLName xml.Name     `xml:"items"`
	Total   int          `xml:"total,attr"`
	Items   []SearchItem `xml:"item"`
}

// SearchItem is one search candidate. It carries no rating, player counts or image.
type SearchItem struct {
	ID            string     `xml:"id,attr"`
	Type          string     `xml:"type,attr"`
	Names         []Name     `xml:"name"`
	YearPublished *ValueAttr `xml:"yearpublished"`
}

// ThingResponse is the body of /thing.
type ThingResponse struct {
	XMLName xml.Name    `xml:"items"`
	Items   []ThingItem `xml:"item"`
}

// ThingItem is the detail record of a game.
type ThingItem struct {
	ID            string      `xml:"id,attr"`
	Type          string      `xml:"type,attr"`
	Image         string      `xml:"image"`
	Thumbnail     string      `xml:"thumbnail"`
	Names         []Name      `xml:"name"`
	YearPublished *ValueAttr  `xml:"yearpublished"`
	MinPlayers    *ValueAttr  `xml:"minplayers"`
	MaxPlayers    *ValueAttr  `xml:"maxplayers"`
	Links         []Link      `xml:"link"`
	Statistics    *Statistics `xml:"statistics"`
}

// Statistics holds the rating block returned with stats=1.
type Statistics struct {
	Ratings struct {
		Average ValueAttr `xml:"average"`
	} `xml:"ratings"`
}

// primaryName returns the primary name, falling back to the first name when
// allowFallback is set.
func primaryName(names []Name, allowFallback bool) string {
	for _, n := range names {
		if n.Type == nameTypePrimary && n.Value != "" {
			return n.Value
		}
	}
	if allowFallback {
		for _, n := range names {
			if n.Value != "" {
				return n.Value
			}
		}
	}
	return ""
}

// parseYear returns nil for absent or malformed years.
func parseYear(v *ValueAttr) *int {
	if v == nil {
		return nil
	}
	year, err := strconv.Atoi(strings.TrimSpace(v.Value))
	if err != nil {
		return nil
	}
	return &year
}

// parsePlayers defaults to one player when the element is absent or malformed.
func parsePlayers(v *ValueAttr) int {
	if v == nil {
		return defaultPlayerCount
	}
	n, err := strconv.Atoi(strings.TrimSpace(v.Value))
	if err != nil {
		return defaultPlayerCount
	}
	return n
}

// AverageRating returns the average rating rounded to one decimal, or 0.
func (t *ThingItem) AverageRating() float64 {
	if t.Statistics == nil {
		return 0
	}
	avg, err := strconv.ParseFloat(strings.TrimSpace(t.Statistics.Ratings.Average.Value), 64)
	if err != nil || math.IsNaN(avg) || math.IsInf(avg, 0) {
		return 0
	}
	return math.Round(avg*10) / 10
}

// IsExpansion reports whether the item is categorized as an expansion.
func (t *ThingItem) IsExpansion() bool {
	for _, l := range t.Links {
		if l.Type == linkTypeCategory && l.Value == categoryExpansion {
			return true
		}
	}
	return false
}

// ExpansionIDs returns the ids of expansions linked from this item. Inbound
// links point from an expansion back to its base game and are skipped.
func (t *ThingItem) ExpansionIDs() []int {
	var ids []int
	for _, l := range t.Links {
		if l.Type != linkTypeExpansion || l.Inbound == "true" {
			continue
		}
		id, err := strconv.Atoi(l.ID)
		if err != nil || id <= 0 {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
