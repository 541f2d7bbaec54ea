/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/nvictor/jiraiya/internal/adapters/jira"
	"github.com/nvictor/jiraiya/internal/adf"
	"github.com/nvictor/jiraiya/internal/classify"
	"github.com/nvictor/jiraiya/internal/config"
	"github.com/nvictor/jiraiya/internal/domain"
)

type JiraClient interface {
	SearchIssues(ctx context.Context) ([]jira.Issue, error)
	Comments(ctx context.Context, key string) ([]jira.Comment, error)
	IssueDescription(ctx context.Context, key string) (string, error)
}

type Store interface {
	FetchStories(ctx context.Context) ([]domain.Story, error)
	ReplaceStories(ctx context.Context, stories []domain.Story) error
	Reset(ctx context.Context) error
	ListOutcomes(ctx context.Context) ([]domain.Outcome, error)
	ReplaceOutcomes(ctx context.Context, outcomes []domain.Outcome) error
	GetEpicDescription(ctx context.Context, title string) (string, bool, error)
	SetEpicDescription(ctx context.Context, title, description string) error
	ListEpicDescriptions(ctx context.Context) (map[string]string, error)
}

// ProgressFunc receives sync/reclassify progress events. Emission order
// is preserved; only the latest value matters to consumers.
type ProgressFunc func(domain.Progress)

type Service struct {
	cfg     config.Config
	log     zerolog.Logger
	store   Store
	jira    JiraClient
	synclog *SyncLog
}

func New(cfg config.Config, log zerolog.Logger, store Store, jc JiraClient, sl *SyncLog) *Service {
	return &Service{cfg: cfg, log: log, store: store, jira: jc, synclog: sl}
}

func (s *Service) emit(onProgress ProgressFunc, fraction float64, message string) {
	if onProgress != nil {
		onProgress(domain.Progress{Fraction: fraction, Message: message})
	}
}

func (s *Service) warn(msg string) {
	s.log.Warn().Msg(msg)
	if s.synclog != nil {
		s.synclog.Append(LevelWarning, msg)
	}
}

func (s *Service) info(msg string) {
	s.log.Info().Msg(msg)
	if s.synclog != nil {
		s.synclog.Append(LevelInfo, msg)
	}
}

// Sync runs the whole pipeline: fetch done issues, turn them into
// classified stories, replace the store, then best-effort cache epic
// descriptions. Fetch and persist failures abort; a bad single issue
// is skipped with a warning.
func (s *Service) Sync(ctx context.Context, onProgress ProgressFunc) error {
	s.emit(onProgress, 0.05, "Fetching issues...")
	issues, err := s.jira.SearchIssues(ctx)
	if err != nil {
		return fmt.Errorf("fetch issues: %w", err)
	}

	s.emit(onProgress, 0.35, "Processing issues...")
	stories, epicKeyByTitle, err := s.processIssues(ctx, issues)
	if err != nil {
		return err
	}
	s.info(fmt.Sprintf("Successfully processed %d stories.", len(stories)))

	if len(stories) == 0 {
		s.emit(onProgress, 1.0, "No stories to update.")
		return nil
	}

	s.emit(onProgress, 0.7, "Saving to database...")
	if err := s.store.ReplaceStories(ctx, stories); err != nil {
		return fmt.Errorf("replace stories: %w", err)
	}

	s.emit(onProgress, 0.85, "Fetching epic descriptions...")
	s.cacheEpicDescriptions(ctx, epicKeyByTitle)

	s.emit(onProgress, 1.0, "Sync complete.")
	return nil
}

func (s *Service) processIssues(ctx context.Context, issues []jira.Issue) ([]domain.Story, map[string]string, error) {
	outcomes, err := s.store.ListOutcomes(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list outcomes: %w", err)
	}

	s.info(fmt.Sprintf("Fetched %d issues from Jira. Processing...", len(issues)))
	var stories []domain.Story
	epicKeyByTitle := map[string]string{}
	for _, issue := range issues {
		completedRaw := issue.Fields.ResolutionDate
		if completedRaw == "" {
			completedRaw = issue.Fields.Updated
		}
		if completedRaw == "" {
			s.warn(fmt.Sprintf("Skipping issue %s: missing resolutiondate and updated fields.", issue.Key))
			continue
		}
		completedAt := parseTimeUTC(completedRaw)
		if completedAt == nil {
			s.warn(fmt.Sprintf("Skipping issue %s: failed to parse date '%s'.", issue.Key, completedRaw))
			continue
		}

		epicTitle := domain.NoEpicTitle
		if p := issue.Fields.Parent; p != nil && p.Fields.IssueType.Name == "Epic" {
			epicTitle = p.Fields.Summary
			if p.Key != "" {
				epicKeyByTitle[epicTitle] = p.Key
			}
		}

		comments, err := s.jira.Comments(ctx, issue.Key)
		if err != nil {
			return nil, nil, fmt.Errorf("fetch comments for %s: %w", issue.Key, err)
		}
		outcome := classify.Classify(issue.Fields.Summary, commentBlob(comments), outcomes)

		stories = append(stories, domain.Story{
			ID:          issue.Key,
			Title:       issue.Fields.Summary,
			CompletedAt: *completedAt,
			Outcome:     outcome.Name,
			EpicTitle:   epicTitle,
			IsResolved:  issue.Fields.ResolutionDate != "",
		})
	}
	return stories, epicKeyByTitle, nil
}

// cacheEpicDescriptions is best-effort: a failed epic is logged and
// skipped, never aborting the sync.
func (s *Service) cacheEpicDescriptions(ctx context.Context, epicKeyByTitle map[string]string) {
	for title, key := range epicKeyByTitle {
		desc, err := s.jira.IssueDescription(ctx, key)
		if err != nil {
			s.warn(fmt.Sprintf("Failed fetching description for epic %s: %v", title, err))
			continue
		}
		if strings.TrimSpace(desc) == "" {
			continue
		}
		if err := s.store.SetEpicDescription(ctx, title, desc); err != nil {
			s.warn(fmt.Sprintf("Failed caching description for epic %s: %v", title, err))
		}
	}
}

// Reclassify recomputes the outcome of every persisted story using the
// current outcome configuration, re-fetching only comments. The store
// is replaced once at the end; any failure before that leaves it
// untouched.
func (s *Service) Reclassify(ctx context.Context, onProgress ProgressFunc) error {
	stories, err := s.store.FetchStories(ctx)
	if err != nil {
		return fmt.Errorf("fetch stories: %w", err)
	}
	if len(stories) == 0 {
		return nil
	}
	outcomes, err := s.store.ListOutcomes(ctx)
	if err != nil {
		return fmt.Errorf("list outcomes: %w", err)
	}

	updated := make([]domain.Story, 0, len(stories))
	for i, story := range stories {
		comments, err := s.jira.Comments(ctx, story.ID)
		if err != nil {
			return fmt.Errorf("fetch comments for %s: %w", story.ID, err)
		}
		outcome := classify.Classify(story.Title, commentBlob(comments), outcomes)
		story.Outcome = outcome.Name
		updated = append(updated, story)
		s.emit(onProgress, float64(i+1)/float64(len(stories)),
			fmt.Sprintf("Reclassified %d/%d", i+1, len(stories)))
	}
	if err := s.store.ReplaceStories(ctx, updated); err != nil {
		return fmt.Errorf("replace stories: %w", err)
	}
	return nil
}

// Reset drops and recreates the story table.
func (s *Service) Reset(ctx context.Context) error { return s.store.Reset(ctx) }

func (s *Service) Outcomes(ctx context.Context) ([]domain.Outcome, error) {
	return s.store.ListOutcomes(ctx)
}

// UpdateOutcomes replaces the outcome configuration, validating colors
// against the fixed palette.
func (s *Service) UpdateOutcomes(ctx context.Context, outcomes []domain.Outcome) error {
	seen := map[string]bool{}
	for _, o := range outcomes {
		if strings.TrimSpace(o.Name) == "" {
			return fmt.Errorf("outcome name must not be empty")
		}
		if seen[o.Name] {
			return fmt.Errorf("duplicate outcome name %q", o.Name)
		}
		seen[o.Name] = true
		if !domain.ValidColor(o.Color) {
			return fmt.Errorf("unknown color %q for outcome %q", o.Color, o.Name)
		}
	}
	return s.store.ReplaceOutcomes(ctx, outcomes)
}

func commentBlob(comments []jira.Comment) string {
	var parts []string
	for _, c := range comments {
		if t := adf.Text(c.Body); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

func parseTimeUTC(s string) *time.Time {
	if s == "" {
		return nil
	}
	layouts := []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.000-0700", "2006-01-02T15:04:05-0700"}
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			tt := t.UTC()
			return &tt
		}
	}
	return nil
}
