package tvmaze

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Episode is one episode record as returned by the upstream API. Fields not
// needed by the importer pass through as raw JSON.
type Episode struct {
	ID       int             `json:"id"`
	URL      string          `json:"url"`
	Name     string          `json:"name"`
	Season   int             `json:"season"`
	Number   *int            `json:"number"`
	Type     string          `json:"type"`
	Airdate  string          `json:"airdate"`
	Airtime  string          `json:"airtime"`
	Airstamp string          `json:"airstamp"`
	Runtime  *int            `json:"runtime"`
	Rating   json.RawMessage `json:"rating,omitempty"`
	Image    json.RawMessage `json:"image,omitempty"`
	Summary  string          `json:"summary"`

	// Show is embedded on schedule-style payloads only.
	Show *ShowRef `json:"show,omitempty"`

	Links json.RawMessage `json:"_links,omitempty"`
}

// ShowRef is an embedded show reference.
type ShowRef struct {
	ID int `json:"id"`
}

// IsZero reports whether the record carries no usable data, as happens
// with null entries in an upstream episode array.
func (e *Episode) IsZero() bool {
	return e.ID == 0 && e.URL == "" && e.Name == ""
}

// episodeLinks is the subset of _links the importer inspects.
type episodeLinks struct {
	Show struct {
		Href string `json:"href"`
	} `json:"show"`
}

// ResolveShowID resolves the episode's owning show id: the embedded show
// reference first, then the show link URL. Returns 0 when neither yields
// one; callers fall back to the show id they queried with.
func (e *Episode) ResolveShowID() int {
	if e.Show != nil && e.Show.ID != 0 {
		return e.Show.ID
	}

	if len(e.Links) > 0 {
		var links episodeLinks
		if err := json.Unmarshal(e.Links, &links); err == nil {
			if id := parseShowHref(links.Show.Href); id != 0 {
				return id
			}
		}
	}

	return 0
}

// parseShowHref extracts the show id from a link like
// "https://api.tvmaze.com/shows/123". Returns 0 when the link does not
// carry one.
func parseShowHref(href string) int {
	_, tail, found := strings.Cut(href, "/shows/")
	if !found {
		return 0
	}
	tail = strings.TrimSuffix(tail, "/")
	id, err := strconv.Atoi(tail)
	if err != nil {
		return 0
	}
	return id
}

// Period is an upstream updates window.
type Period string

const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

// ParsePeriod validates an updates window name. The match is exact; the
// upstream API rejects other values.
func ParsePeriod(s string) (Period, bool) {
	switch Period(s) {
	case PeriodDay, PeriodWeek, PeriodMonth:
		return Period(s), true
	}
	return "", false
}
