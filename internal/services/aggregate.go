package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/nvictor/jiraiya/internal/domain"
	"github.com/nvictor/jiraiya/internal/fiscal"
)

// Quarters builds the Quarter → Epic → story hierarchy from the
// current store contents.
func (s *Service) Quarters(ctx context.Context) ([]domain.Quarter, error) {
	stories, err := s.store.FetchStories(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch stories: %w", err)
	}
	descriptions, err := s.store.ListEpicDescriptions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list epic descriptions: %w", err)
	}
	return buildQuarters(stories, descriptions), nil
}

// buildQuarters groups stories into epics, places each epic in the
// fiscal quarter of its most recently completed story, and drops empty
// quarters. The fiscal year is taken from the earliest story.
func buildQuarters(stories []domain.Story, descriptions map[string]string) []domain.Quarter {
	if len(stories) == 0 {
		return nil
	}
	first := stories[0].CompletedAt
	for _, s := range stories {
		if s.CompletedAt.Before(first) {
			first = s.CompletedAt
		}
	}
	year := fiscal.Year(first)

	byEpic := map[string][]domain.Story{}
	for _, s := range stories {
		byEpic[s.EpicTitle] = append(byEpic[s.EpicTitle], s)
	}

	byQuarter := map[int][]domain.Epic{}
	for title, group := range byEpic {
		sort.Slice(group, func(i, j int) bool {
			if group[i].CompletedAt.Equal(group[j].CompletedAt) {
				return group[i].ID < group[j].ID
			}
			return group[i].CompletedAt.Before(group[j].CompletedAt)
		})
		latest := group[len(group)-1].CompletedAt
		epic := domain.Epic{
			Title:       title,
			Description: epicDescription(title, group, descriptions),
			Stories:     group,
		}
		q := fiscal.Quarter(latest)
		byQuarter[q] = append(byQuarter[q], epic)
	}

	var quarters []domain.Quarter
	for q := 1; q <= 4; q++ {
		epics := byQuarter[q]
		if len(epics) == 0 {
			continue
		}
		sort.Slice(epics, func(i, j int) bool { return epics[i].Title < epics[j].Title })
		quarters = append(quarters, domain.Quarter{Name: fmt.Sprintf("Q%d", q), Year: year, Epics: epics})
	}
	return quarters
}

// epicDescription prefers the cached text, then a latest-activity
// fallback, then the bare title.
func epicDescription(title string, stories []domain.Story, descriptions map[string]string) string {
	if d, ok := descriptions[title]; ok {
		return d
	}
	if len(stories) == 0 {
		return title
	}
	latest := stories[0]
	for _, s := range stories[1:] {
		if s.CompletedAt.After(latest.CompletedAt) {
			latest = s
		}
	}
	return fmt.Sprintf("Latest activity: %s — %s", latest.CompletedAt.Format("Jan 2, 2006"), title)
}

// StoryMonths returns the month breakdown of persisted stories,
// optionally filtered to a single epic title.
func (s *Service) StoryMonths(ctx context.Context, epicTitle string) ([]domain.Month, error) {
	stories, err := s.store.FetchStories(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch stories: %w", err)
	}
	if epicTitle != "" {
		filtered := stories[:0]
		for _, st := range stories {
			if st.EpicTitle == epicTitle {
				filtered = append(filtered, st)
			}
		}
		stories = filtered
	}
	return Months(stories), nil
}

// Months groups stories by fiscal month bucket, ascending.
func Months(stories []domain.Story) []domain.Month {
	byBucket := map[time.Time][]domain.Story{}
	for _, s := range stories {
		b := fiscal.MonthBucket(s.CompletedAt)
		byBucket[b] = append(byBucket[b], s)
	}
	var months []domain.Month
	for bucket, group := range byBucket {
		months = append(months, domain.Month{
			Name:    fiscal.MonthName(bucket),
			Date:    bucket,
			Year:    fiscal.Year(bucket),
			Stories: group,
		})
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Date.Before(months[j].Date) })
	return months
}
