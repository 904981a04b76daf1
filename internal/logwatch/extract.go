package logwatch

import (
	"strings"
)

// drawMarker is the fixed substring the client writes when a divination
// card is drawn from a stacked deck. Lines without it are ignored.
const drawMarker = "Card drawn from the deck: <divination>{"

// CardDrops aggregates the draws of one card within a single extraction.
type CardDrops struct {
	Count     int      `json:"count"`
	UniqueIDs []string `json:"uniqueIds"`
}

// ExtractResult is the outcome of one extraction pass over tailed text.
type ExtractResult struct {
	TotalCount int                   `json:"totalCount"`
	Cards      map[string]*CardDrops `json:"cards"`
}

// ExtractDrops scans raw log text for card draw events. It is a pure
// function of its inputs: the same text and known-id set always produce
// the same result, and no store is consulted.
//
// Per matching line, the card name is the first {...} delimited token
// and the unique id is the third whitespace-delimited field (the client
// writes date and time as the first two fields). Lines failing either
// extraction are skipped. A unique id occurring more than once within
// one call, or present in known, counts at most once; known may be nil
// or empty when the caller is the real de-duplication authority.
func ExtractDrops(text string, known map[string]struct{}) *ExtractResult {
	result := &ExtractResult{Cards: make(map[string]*CardDrops)}
	seen := make(map[string]struct{})

	for _, line := range strings.Split(text, "\n") {
		if !strings.Contains(line, drawMarker) {
			continue
		}

		name, ok := firstBracedToken(line)
		if !ok {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		uniqueID := fields[2]

		if _, dup := seen[uniqueID]; dup {
			continue
		}
		if known != nil {
			if _, dup := known[uniqueID]; dup {
				continue
			}
		}
		seen[uniqueID] = struct{}{}

		drops := result.Cards[name]
		if drops == nil {
			drops = &CardDrops{}
			result.Cards[name] = drops
		}
		drops.Count++
		drops.UniqueIDs = append(drops.UniqueIDs, uniqueID)
		result.TotalCount++
	}

	return result
}

// firstBracedToken returns the content of the first {...} token in line.
func firstBracedToken(line string) (string, bool) {
	start := strings.Index(line, "{")
	if start == -1 {
		return "", false
	}
	end := strings.Index(line[start+1:], "}")
	if end == -1 {
		return "", false
	}
	return line[start+1 : start+1+end], true
}
