/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package jira

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/nvictor/jiraiya/internal/adf"
	"github.com/nvictor/jiraiya/internal/config"
)

const (
	searchPageSize  = 100
	commentPageSize = 50
)

// Issue is one search hit with the fields the sync pipeline needs.
type Issue struct {
	Key    string      `json:"key"`
	Fields IssueFields `json:"fields"`
}

type IssueFields struct {
	Summary        string  `json:"summary"`
	ResolutionDate string  `json:"resolutiondate"`
	Updated        string  `json:"updated"`
	Parent         *Parent `json:"parent"`
}

type Parent struct {
	Key    string       `json:"key"`
	Fields ParentFields `json:"fields"`
}

type ParentFields struct {
	Summary   string    `json:"summary"`
	IssueType IssueType `json:"issuetype"`
}

type IssueType struct {
	Name string `json:"name"`
}

// Comment carries the rich-text body of one issue comment.
type Comment struct {
	Body *adf.Body `json:"body"`
}

type searchResult struct {
	Issues        []Issue `json:"issues"`
	NextPageToken *string `json:"nextPageToken"`
	StartAt       int     `json:"startAt"`
	MaxResults    int     `json:"maxResults"`
	Total         int     `json:"total"`
}

type commentPage struct {
	Comments   []Comment `json:"comments"`
	StartAt    int       `json:"startAt"`
	MaxResults int       `json:"maxResults"`
	Total      int       `json:"total"`
}

type Client struct {
	baseURL   string
	email     string
	token     string
	project   string
	startDate string
	jql       string
	apiVer    string
	http      *http.Client
	log       zerolog.Logger
}

func NewClient(cfg config.Config, log zerolog.Logger) *Client {
	return &Client{
		baseURL:   strings.TrimRight(cfg.JiraBaseURL, "/"),
		email:     cfg.JiraEmail,
		token:     cfg.JiraAPIToken,
		project:   cfg.JiraProject,
		startDate: cfg.JiraStartDate,
		jql:       cfg.JiraJQL,
		apiVer:    cfg.JiraAPIVersion,
		http:      &http.Client{Timeout: cfg.HTTPTimeout},
		log:       log,
	}
}

// JQL returns the configured custom query, or one built from project,
// done status, and the resolution-date lower bound.
func (c *Client) JQL() string {
	if strings.TrimSpace(c.jql) != "" {
		return c.jql
	}
	parts := []string{}
	if c.project != "" {
		parts = append(parts, fmt.Sprintf("project = %q", c.project))
	}
	parts = append(parts, "status = Done")
	if c.startDate != "" {
		parts = append(parts, fmt.Sprintf("resolutiondate >= %q", c.startDate))
	}
	return strings.Join(parts, " AND ") + " order by updated DESC"
}

// SearchIssues pages through every matching issue before returning.
// API v3 uses the token cursor on /search/jql; v2 uses startAt/total
// on /search. Either way an empty page ends the sequence, so a
// misbehaving server cannot loop us.
func (c *Client) SearchIssues(ctx context.Context) ([]Issue, error) {
	if c.apiVer == "2" {
		return c.searchOffset(ctx)
	}
	return c.searchToken(ctx)
}

func (c *Client) searchToken(ctx context.Context) ([]Issue, error) {
	var all []Issue
	var token *string
	for {
		body := map[string]any{
			"jql":        c.JQL(),
			"maxResults": searchPageSize,
			"fields":     []string{"summary", "updated", "resolutiondate", "parent", "issuetype"},
		}
		if token != nil {
			body["nextPageToken"] = *token
		}
		data, err := c.do(ctx, http.MethodPost, "/rest/api/3/search/jql", nil, body)
		if err != nil {
			return nil, err
		}
		var page searchResult
		if err := json.Unmarshal(data, &page); err != nil {
			return nil, &DecodeError{Err: err}
		}
		all = append(all, page.Issues...)
		if page.NextPageToken == nil || *page.NextPageToken == "" || len(page.Issues) == 0 {
			return all, nil
		}
		token = page.NextPageToken
	}
}

func (c *Client) searchOffset(ctx context.Context) ([]Issue, error) {
	var all []Issue
	startAt := 0
	for {
		q := url.Values{}
		q.Set("jql", c.JQL())
		q.Set("startAt", fmt.Sprint(startAt))
		q.Set("maxResults", fmt.Sprint(searchPageSize))
		q.Set("fields", "summary,updated,resolutiondate,parent,issuetype")
		data, err := c.do(ctx, http.MethodGet, "/rest/api/2/search", q, nil)
		if err != nil {
			return nil, err
		}
		var page searchResult
		if err := json.Unmarshal(data, &page); err != nil {
			return nil, &DecodeError{Err: err}
		}
		all = append(all, page.Issues...)
		if len(page.Issues) == 0 || len(all) >= page.Total {
			return all, nil
		}
		startAt = len(all)
	}
}

// Comments pages through all comments of an issue (startAt/total).
func (c *Client) Comments(ctx context.Context, key string) ([]Comment, error) {
	if key == "" {
		return nil, fmt.Errorf("jira: empty issue key")
	}
	path := "/rest/api/" + c.apiPathVer() + "/issue/" + url.PathEscape(key) + "/comment"
	var all []Comment
	startAt := 0
	for {
		q := url.Values{}
		q.Set("startAt", fmt.Sprint(startAt))
		q.Set("maxResults", fmt.Sprint(commentPageSize))
		data, err := c.do(ctx, http.MethodGet, path, q, nil)
		if err != nil {
			return nil, err
		}
		var page commentPage
		if err := json.Unmarshal(data, &page); err != nil {
			return nil, &DecodeError{Err: err}
		}
		all = append(all, page.Comments...)
		if len(page.Comments) == 0 || len(all) >= page.Total {
			return all, nil
		}
		startAt = len(all)
	}
}

// IssueDescription fetches the description field of one issue and
// flattens it to plain text.
func (c *Client) IssueDescription(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("jira: empty issue key")
	}
	q := url.Values{}
	q.Set("fields", "description")
	path := "/rest/api/" + c.apiPathVer() + "/issue/" + url.PathEscape(key)
	data, err := c.do(ctx, http.MethodGet, path, q, nil)
	if err != nil {
		return "", err
	}
	var out struct {
		Fields struct {
			Description *adf.Body `json:"description"`
		} `json:"fields"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return "", &DecodeError{Err: err}
	}
	return adf.Text(out.Fields.Description), nil
}

func (c *Client) apiPathVer() string {
	if c.apiVer == "2" {
		return "2"
	}
	return "3"
}

// basicAuth builds the base64(email:token) credential. A colon in the
// email would corrupt the pair, which is a local configuration error.
func (c *Client) basicAuth() (string, error) {
	if strings.Contains(c.email, ":") {
		return "", ErrCredentialEncoding
	}
	return base64.StdEncoding.EncodeToString([]byte(c.email + ":" + c.token)), nil
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, body any) ([]byte, error) {
	if c.baseURL == "" || c.email == "" || c.token == "" {
		return nil, ErrConfigurationMissing
	}
	u, err := url.Parse(c.baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, ErrInvalidURL
	}
	u.Path = path
	if len(q) > 0 {
		u.RawQuery = q.Encode()
	}
	basic, err := c.basicAuth()
	if err != nil {
		return nil, err
	}
	var payload []byte
	if body != nil {
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, err
		}
	}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(300*(1<<(attempt-1))) * time.Millisecond)
		}
		var r io.Reader
		if payload != nil {
			r = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, u.String(), r)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Authorization", "Basic "+basic)

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = &NetworkError{Err: err}
			continue
		}
		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = &NetworkError{Err: err}
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			httpErr := &HTTPError{Status: resp.StatusCode, Body: string(data)}
			// retry on 429/5xx
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				lastErr = httpErr
				continue
			}
			return nil, httpErr
		}
		return data, nil
	}
	return nil, lastErr
}
