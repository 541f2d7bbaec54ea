package domain

// Palette is the fixed set of colors an outcome may carry.
var Palette = []string{
	"green", "orange", "blue", "purple", "red", "gray", "yellow", "cyan", "indigo",
}

func ValidColor(c string) bool {
	for _, p := range Palette {
		if p == c {
			return true
		}
	}
	return false
}

// DefaultOutcome labels stories that match no configured keyword.
// It exists independently of user configuration and is never stored.
func DefaultOutcome() Outcome {
	return Outcome{Name: "Uncategorized", Keywords: nil, Color: "gray"}
}

// SeedOutcomes is the starter configuration installed when none exists.
func SeedOutcomes() []Outcome {
	return []Outcome{
		{Name: "Onboarding", Keywords: []string{"onboarding", "signup", "welcome"}, Color: "blue"},
		{Name: "UX Improvement", Keywords: []string{"ux", "ui", "design", "usability"}, Color: "orange"},
		{Name: "Sync", Keywords: []string{"sync", "performance", "background"}, Color: "purple"},
	}
}
