// Package catalog fetches the current season's TV titles from the upstream
// anime catalog and memoizes the response in a single-slot cache.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUpstreamUnavailable marks catalog fetch failures: network/HTTP errors,
// timeouts, and malformed payloads. Callers recover locally (stale cache or
// empty list); it is never fatal to the process.
var ErrUpstreamUnavailable = errors.New("catalog upstream unavailable")

// Title is one catalog entry for the tracked season.
type Title struct {
	ID        int64
	Name      string
	LocalName string // localized display name; falls back to Name when empty
	Score     float64
	Episodes  int // total planned; 0 means unknown ("?")
	Aired     int // episodes aired so far
	Status    string
	Image     string // image path relative to the catalog base URL
	URL       string // detail-page path relative to the catalog base URL
}

// DisplayName prefers the localized name.
func (t Title) DisplayName() string {
	if strings.TrimSpace(t.LocalName) != "" {
		return t.LocalName
	}
	return t.Name
}

// EpisodesTotal renders the planned episode count, "?" when unknown.
func (t Title) EpisodesTotal() string {
	if t.Episodes > 0 {
		return strconv.Itoa(t.Episodes)
	}
	return "?"
}

const StatusAnnounced = "anons"

// Airable reports whether the title can produce release notifications:
// announced-only titles and titles with nothing aired never diff.
func (t Title) Airable() bool {
	return t.Aired > 0 && t.Status != StatusAnnounced
}

// titlePayload mirrors the upstream list response. The upstream serializes
// score sometimes as a number and sometimes as a string, hence the custom
// decoding.
type titlePayload struct {
	ID       int64      `json:"id"`
	Name     string     `json:"name"`
	Russian  string     `json:"russian"`
	Score    scoreField `json:"score"`
	Episodes int        `json:"episodes"`
	Aired    int        `json:"episodes_aired"`
	Status   string     `json:"status"`
	Image    imageField `json:"image"`
	URL      string     `json:"url"`
}

type imageField struct {
	Original string `json:"original"`
}

type scoreField float64

func (s *scoreField) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		*s = 0
		return nil
	}
	if b[0] == '"' {
		var raw string
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
		if strings.TrimSpace(raw) == "" {
			*s = 0
			return nil
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("score: %w", err)
		}
		*s = scoreField(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*s = scoreField(v)
	return nil
}

func (p titlePayload) title() Title {
	return Title{
		ID:        p.ID,
		Name:      p.Name,
		LocalName: p.Russian,
		Score:     float64(p.Score),
		Episodes:  p.Episodes,
		Aired:     p.Aired,
		Status:    p.Status,
		Image:     p.Image.Original,
		URL:       p.URL,
	}
}
