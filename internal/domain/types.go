package domain

import "time"

// Story is one completed work item synced from Jira.
// ID is the Jira issue key and is the primary key in the store.
type Story struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	CompletedAt time.Time `json:"completedAt"`
	Outcome     string    `json:"outcome"`
	EpicTitle   string    `json:"epicTitle"`
	IsResolved  bool      `json:"isResolved"`
}

// Outcome is a user-defined category: stories matching one of its
// keywords are labeled with its name.
type Outcome struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Keywords []string `json:"keywords"`
	Color    string   `json:"color"`
}

// Epic groups stories sharing a parent epic title. Not persisted.
type Epic struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Stories     []Story `json:"stories"`
}

// Quarter is a fiscal quarter bucket of epics. Not persisted.
type Quarter struct {
	Name  string `json:"name"`
	Year  int    `json:"year"`
	Epics []Epic `json:"epics"`
}

// Month is a fiscal month bucket of stories within an epic. Not persisted.
type Month struct {
	Name    string    `json:"name"`
	Date    time.Time `json:"date"`
	Year    int       `json:"year"`
	Stories []Story   `json:"stories"`
}

// Progress is one sync/reclassify progress event. Fraction is in [0,1].
type Progress struct {
	Fraction float64 `json:"progress"`
	Message  string  `json:"message"`
}

// NoEpicTitle is the synthetic bucket for stories without a qualifying parent.
const NoEpicTitle = "No Epic"

func (q Quarter) TotalEpics() int { return len(q.Epics) }

func (q Quarter) TotalStories() int {
	n := 0
	for _, e := range q.Epics {
		n += len(e.Stories)
	}
	return n
}

func (q Quarter) AllStories() []Story {
	var out []Story
	for _, e := range q.Epics {
		out = append(out, e.Stories...)
	}
	return out
}

// OutcomeCounts tallies stories by outcome name.
func OutcomeCounts(stories []Story) map[string]int {
	out := map[string]int{}
	for _, s := range stories {
		out[s.Outcome]++
	}
	return out
}
