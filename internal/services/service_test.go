package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/nvictor/jiraiya/internal/adapters/jira"
	"github.com/nvictor/jiraiya/internal/adf"
	"github.com/nvictor/jiraiya/internal/config"
	"github.com/nvictor/jiraiya/internal/domain"
)

// fakeJira serves canned issues and comments.
type fakeJira struct {
	issues       []jira.Issue
	searchErr    error
	comments     map[string][]jira.Comment
	commentErr   map[string]error
	descriptions map[string]string
	descErr      map[string]error
}

func (f *fakeJira) SearchIssues(ctx context.Context) ([]jira.Issue, error) {
	return f.issues, f.searchErr
}

func (f *fakeJira) Comments(ctx context.Context, key string) ([]jira.Comment, error) {
	if err := f.commentErr[key]; err != nil {
		return nil, err
	}
	return f.comments[key], nil
}

func (f *fakeJira) IssueDescription(ctx context.Context, key string) (string, error) {
	if err := f.descErr[key]; err != nil {
		return "", err
	}
	return f.descriptions[key], nil
}

// memStore implements Store in memory with replace-all semantics.
type memStore struct {
	stories    []domain.Story
	outcomes   []domain.Outcome
	descs      map[string]string
	replaceErr error
	replaces   int
}

func newMemStore(outcomes []domain.Outcome) *memStore {
	return &memStore{outcomes: outcomes, descs: map[string]string{}}
}

func (m *memStore) FetchStories(ctx context.Context) ([]domain.Story, error) {
	out := make([]domain.Story, len(m.stories))
	copy(out, m.stories)
	return out, nil
}

func (m *memStore) ReplaceStories(ctx context.Context, stories []domain.Story) error {
	if m.replaceErr != nil {
		return m.replaceErr
	}
	m.replaces++
	m.stories = make([]domain.Story, len(stories))
	copy(m.stories, stories)
	return nil
}

func (m *memStore) Reset(ctx context.Context) error {
	m.stories = nil
	return nil
}

func (m *memStore) ListOutcomes(ctx context.Context) ([]domain.Outcome, error) {
	return m.outcomes, nil
}

func (m *memStore) ReplaceOutcomes(ctx context.Context, outcomes []domain.Outcome) error {
	m.outcomes = outcomes
	return nil
}

func (m *memStore) GetEpicDescription(ctx context.Context, title string) (string, bool, error) {
	d, ok := m.descs[title]
	return d, ok, nil
}

func (m *memStore) SetEpicDescription(ctx context.Context, title, description string) error {
	m.descs[title] = description
	return nil
}

func (m *memStore) ListEpicDescriptions(ctx context.Context) (map[string]string, error) {
	out := map[string]string{}
	for k, v := range m.descs {
		out[k] = v
	}
	return out, nil
}

func adfComment(text string) jira.Comment {
	return jira.Comment{Body: &adf.Body{Content: []adf.Node{{Text: text}}}}
}

func testOutcomes() []domain.Outcome {
	return []domain.Outcome{
		{Name: "Onboarding", Keywords: []string{"onboarding", "signup"}, Color: "blue"},
		{Name: "Sync", Keywords: []string{"sync"}, Color: "purple"},
	}
}

func testService(store Store, jc JiraClient) *Service {
	return New(config.Config{}, zerolog.Nop(), store, jc, NewSyncLog(100))
}

func makeIssue(key, summary, resolved string, parent *jira.Parent) jira.Issue {
	return jira.Issue{Key: key, Fields: jira.IssueFields{
		Summary:        summary,
		ResolutionDate: resolved,
		Parent:         parent,
	}}
}

func epicParent(key, title string) *jira.Parent {
	return &jira.Parent{Key: key, Fields: jira.ParentFields{
		Summary:   title,
		IssueType: jira.IssueType{Name: "Epic"},
	}}
}

func TestSync_EndToEnd(t *testing.T) {
	fj := &fakeJira{
		issues: []jira.Issue{
			makeIssue("JIR-1", "Improve onboarding flow", "2025-06-10T12:00:00.000+0000", epicParent("JIR-100", "Growth")),
			makeIssue("JIR-2", "Fix billing rounding", "2025-06-11T12:00:00.000+0000", nil),
		},
		comments:     map[string][]jira.Comment{"JIR-2": {adfComment("broke sync for a day")}},
		descriptions: map[string]string{"JIR-100": "Grow signups in EMEA"},
	}
	store := newMemStore(testOutcomes())
	svc := testService(store, fj)

	var events []domain.Progress
	require.NoError(t, svc.Sync(context.Background(), func(p domain.Progress) { events = append(events, p) }))

	require.Len(t, store.stories, 2)
	byID := map[string]domain.Story{}
	for _, s := range store.stories {
		byID[s.ID] = s
	}
	require.Equal(t, "Onboarding", byID["JIR-1"].Outcome)
	require.Equal(t, "Growth", byID["JIR-1"].EpicTitle)
	require.True(t, byID["JIR-1"].IsResolved)
	require.Equal(t, "Sync", byID["JIR-2"].Outcome) // comment-only match
	require.Equal(t, domain.NoEpicTitle, byID["JIR-2"].EpicTitle)

	require.Equal(t, "Grow signups in EMEA", store.descs["Growth"])

	// Progress is monotone and ends at 1.0.
	require.NotEmpty(t, events)
	for i := 1; i < len(events); i++ {
		require.GreaterOrEqual(t, events[i].Fraction, events[i-1].Fraction)
	}
	require.Equal(t, 1.0, events[len(events)-1].Fraction)
	require.Equal(t, "Sync complete.", events[len(events)-1].Message)
}

func TestSync_FallsBackToUpdatedDate(t *testing.T) {
	iss := makeIssue("JIR-1", "Story", "", nil)
	iss.Fields.Updated = "2025-03-01T09:30:00.000+0000"
	fj := &fakeJira{issues: []jira.Issue{iss}}
	store := newMemStore(testOutcomes())

	require.NoError(t, testService(store, fj).Sync(context.Background(), nil))
	require.Len(t, store.stories, 1)
	require.False(t, store.stories[0].IsResolved)
	require.Equal(t, time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC), store.stories[0].CompletedAt)
}

func TestSync_SkipsUnparseableIssues(t *testing.T) {
	fj := &fakeJira{issues: []jira.Issue{
		makeIssue("JIR-1", "No dates at all", "", nil),
		makeIssue("JIR-2", "Bad date", "yesterday-ish", nil),
		makeIssue("JIR-3", "Good", "2025-06-10T12:00:00.000+0000", nil),
	}}
	store := newMemStore(testOutcomes())
	svc := testService(store, fj)

	require.NoError(t, svc.Sync(context.Background(), nil))
	require.Len(t, store.stories, 1)
	require.Equal(t, "JIR-3", store.stories[0].ID)

	warnings := 0
	for _, e := range svc.synclog.Entries() {
		if e.Level == LevelWarning {
			warnings++
		}
	}
	require.Equal(t, 2, warnings)
}

func TestSync_ParentMustBeEpic(t *testing.T) {
	parent := &jira.Parent{Key: "JIR-50", Fields: jira.ParentFields{
		Summary:   "Some Task",
		IssueType: jira.IssueType{Name: "Task"},
	}}
	fj := &fakeJira{issues: []jira.Issue{
		makeIssue("JIR-1", "Child of task", "2025-06-10T12:00:00.000+0000", parent),
	}}
	store := newMemStore(testOutcomes())

	require.NoError(t, testService(store, fj).Sync(context.Background(), nil))
	require.Equal(t, domain.NoEpicTitle, store.stories[0].EpicTitle)
	require.Empty(t, store.descs)
}

func TestSync_EmptyResultShortCircuits(t *testing.T) {
	store := newMemStore(testOutcomes())
	store.stories = []domain.Story{{ID: "OLD-1"}}
	svc := testService(store, &fakeJira{})

	var last domain.Progress
	require.NoError(t, svc.Sync(context.Background(), func(p domain.Progress) { last = p }))
	require.Equal(t, 1.0, last.Fraction)
	require.Equal(t, "No stories to update.", last.Message)
	// The store keeps its previous contents.
	require.Len(t, store.stories, 1)
	require.Zero(t, store.replaces)
}

func TestSync_FetchFailureAborts(t *testing.T) {
	cause := &jira.HTTPError{Status: 502, Body: "gateway"}
	svc := testService(newMemStore(testOutcomes()), &fakeJira{searchErr: cause})

	err := svc.Sync(context.Background(), nil)
	var httpErr *jira.HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, 502, httpErr.Status)
}

func TestSync_EnrichmentFailureIsNotFatal(t *testing.T) {
	fj := &fakeJira{
		issues: []jira.Issue{
			makeIssue("JIR-1", "A", "2025-06-10T12:00:00.000+0000", epicParent("JIR-100", "Broken Epic")),
			makeIssue("JIR-2", "B", "2025-06-11T12:00:00.000+0000", epicParent("JIR-200", "Fine Epic")),
		},
		descriptions: map[string]string{"JIR-200": "All good"},
		descErr:      map[string]error{"JIR-100": errors.New("boom")},
	}
	store := newMemStore(testOutcomes())

	require.NoError(t, testService(store, fj).Sync(context.Background(), nil))
	require.Equal(t, "All good", store.descs["Fine Epic"])
	_, ok := store.descs["Broken Epic"]
	require.False(t, ok)
}

func TestSync_BlankDescriptionNotCached(t *testing.T) {
	fj := &fakeJira{
		issues: []jira.Issue{
			makeIssue("JIR-1", "A", "2025-06-10T12:00:00.000+0000", epicParent("JIR-100", "Quiet Epic")),
		},
		descriptions: map[string]string{"JIR-100": "   \n "},
	}
	store := newMemStore(testOutcomes())

	require.NoError(t, testService(store, fj).Sync(context.Background(), nil))
	require.Empty(t, store.descs)
}

func TestReclassify_ProgressAndReplace(t *testing.T) {
	const k = 4
	store := newMemStore(testOutcomes())
	fj := &fakeJira{comments: map[string][]jira.Comment{}}
	base := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < k; i++ {
		id := fmt.Sprintf("JIR-%d", i)
		store.stories = append(store.stories, domain.Story{
			ID: id, Title: "Untitled", CompletedAt: base.AddDate(0, 0, i),
			Outcome: "Uncategorized", EpicTitle: domain.NoEpicTitle,
		})
		fj.comments[id] = []jira.Comment{adfComment("sync work")}
	}
	svc := testService(store, fj)

	var fractions []float64
	require.NoError(t, svc.Reclassify(context.Background(), func(p domain.Progress) {
		fractions = append(fractions, p.Fraction)
	}))

	require.Len(t, fractions, k)
	for i, f := range fractions {
		require.InDelta(t, float64(i+1)/float64(k), f, 1e-9)
		if i > 0 {
			require.Greater(t, f, fractions[i-1])
		}
	}
	for _, s := range store.stories {
		require.Equal(t, "Sync", s.Outcome)
	}
	require.Equal(t, 1, store.replaces)
}

func TestReclassify_FailureAbortsBeforeWrite(t *testing.T) {
	store := newMemStore(testOutcomes())
	store.stories = []domain.Story{
		{ID: "JIR-0", Outcome: "Onboarding"},
		{ID: "JIR-1", Outcome: "Onboarding"},
	}
	before, _ := store.FetchStories(context.Background())
	fj := &fakeJira{commentErr: map[string]error{"JIR-1": errors.New("rate limited")}}

	err := testService(store, fj).Reclassify(context.Background(), nil)
	require.Error(t, err)
	after, _ := store.FetchStories(context.Background())
	require.Equal(t, before, after)
	require.Zero(t, store.replaces)
}

func TestReclassify_EmptyStoreIsNoop(t *testing.T) {
	store := newMemStore(testOutcomes())
	called := false
	require.NoError(t, testService(store, &fakeJira{}).Reclassify(context.Background(), func(domain.Progress) { called = true }))
	require.False(t, called)
}

func TestUpdateOutcomes_Validation(t *testing.T) {
	svc := testService(newMemStore(nil), &fakeJira{})
	ctx := context.Background()

	err := svc.UpdateOutcomes(ctx, []domain.Outcome{{Name: "", Color: "blue"}})
	require.Error(t, err)
	err = svc.UpdateOutcomes(ctx, []domain.Outcome{{Name: "A", Color: "magenta"}})
	require.Error(t, err)
	err = svc.UpdateOutcomes(ctx, []domain.Outcome{
		{Name: "A", Color: "blue"}, {Name: "A", Color: "red"},
	})
	require.Error(t, err)
	require.NoError(t, svc.UpdateOutcomes(ctx, []domain.Outcome{
		{Name: "A", Color: "blue"}, {Name: "B", Color: "red"},
	}))
}
