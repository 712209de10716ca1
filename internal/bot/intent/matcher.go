// Package intent resolves a raw inbound reply to one of the options a
// dialogue step presented.  Structured replies (button or list-row IDs) are
// authoritative; free text falls back to normalized label scoring so short,
// approximate replies like "domain" still land on "Domain Registration & Web
// Hosting".
package intent

import (
	"errors"
	"strings"

	"github.com/contessasoft/nyati/internal/bot/catalog"
)

// ErrNoMatch is returned when the reply resolves to none of the step's
// options.  Callers should re-prompt the same step rather than treating this
// as a failure.
var ErrNoMatch = errors.New("reply matches no option")

// Match resolves a reply against an option set.  optionID is the structured
// reply identifier when the channel provided one ("" otherwise); text is the
// raw message body or the selected label.
func Match(set catalog.Set, optionID, text string) (catalog.Option, error) {
	if optionID != "" {
		if opt, ok := set.ByID(optionID); ok {
			return opt, nil
		}
		// A structured reply for a different step's option (stale button tap)
		// falls through to text scoring against the label.
	}

	reply := normalize(text)
	if reply == "" {
		return catalog.Option{}, ErrNoMatch
	}

	best := catalog.Option{}
	bestScore := 0.0
	for _, opt := range set.Options {
		label := normalize(opt.Label)
		if reply == label {
			return opt, nil
		}
		score := scoreAgainst(reply, label)
		// Strictly greater keeps the first-declared option on ties.
		if score > bestScore {
			best, bestScore = opt, score
		}
	}

	if bestScore == 0 {
		return catalog.Option{}, ErrNoMatch
	}
	return best, nil
}

// scoreAgainst rates how well a normalized reply fits a normalized label.
// Substring containment is scored by relative length so longer, more specific
// replies win; a mere shared word scores a flat 0.5.
func scoreAgainst(reply, label string) float64 {
	if strings.Contains(label, reply) {
		return float64(len(reply)) / float64(len(label))
	}
	for _, token := range strings.Fields(reply) {
		if strings.Contains(label, token) {
			return 0.5
		}
	}
	return 0
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
