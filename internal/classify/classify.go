// Package classify scores story titles and comment text against the
// configured outcomes.
package classify

import (
	"strings"

	"github.com/nvictor/jiraiya/internal/domain"
)

// Title matches count double so that a keyword in the summary beats
// the same keyword buried in discussion.
const (
	titleWeight   = 2
	commentWeight = 1
)

// Classify picks the outcome whose keywords best match the title and
// comment blob. Outcomes are scanned in configured order; ties keep the
// first. When nothing scores above zero the default outcome is returned.
// The function is deterministic and has no side effects.
func Classify(title, comments string, outcomes []domain.Outcome) domain.Outcome {
	title = strings.ToLower(title)
	comments = strings.ToLower(comments)

	best := domain.DefaultOutcome()
	bestScore := 0
	for _, o := range outcomes {
		score := 0
		for _, kw := range o.Keywords {
			kw = strings.ToLower(kw)
			if kw == "" {
				continue
			}
			if strings.Contains(title, kw) {
				score += titleWeight
			} else if strings.Contains(comments, kw) {
				score += commentWeight
			}
		}
		if score > bestScore {
			best, bestScore = o, score
		}
	}
	return best
}
