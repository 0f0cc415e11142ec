package selfoss

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"
)

type Client struct {
	baseURL  string
	username string
	password string
	http     *http.Client
}

func NewClient(baseURL, username, password string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if httpClient.Jar == nil {
		// The selfoss session lives in a cookie set by /login.
		jar, _ := cookiejar.New(nil)
		httpClient.Jar = jar
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
		http:     httpClient,
	}
}

// HasCredentials reports whether Login can do anything useful.
func (c *Client) HasCredentials() bool {
	return c.username != ""
}

func (c *Client) Login(ctx context.Context) error {
	if !c.HasCredentials() {
		return nil
	}
	form := url.Values{}
	form.Set("username", c.username)
	form.Set("password", c.password)

	var result struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := c.doForm(ctx, "login", "/login", form, &result); err != nil {
		return err
	}
	if !result.Success {
		if result.Error != "" {
			return &HTTPError{Op: "login", StatusCode: http.StatusForbidden, Body: result.Error}
		}
		return &HTTPError{Op: "login", StatusCode: http.StatusForbidden, Body: "invalid credentials"}
	}
	return nil
}

func (c *Client) GetEntries(ctx context.Context, q ItemsQuery) (EntriesPage, error) {
	params := make(url.Values)
	if q.Type == "" {
		q.Type = TypeNewest
	}
	params.Set("type", string(q.Type))
	if q.Tag != "" {
		params.Set("tag", q.Tag)
	}
	if q.Source != 0 {
		params.Set("source", strconv.FormatInt(q.Source, 10))
	}
	if q.Search != "" {
		params.Set("search", q.Search)
	}
	if !q.FromDatetime.IsZero() {
		params.Set("fromDatetime", q.FromDatetime.UTC().Format(time.RFC3339))
		params.Set("fromId", strconv.FormatInt(q.FromID, 10))
	}
	if q.Limit > 0 {
		params.Set("items", strconv.Itoa(q.Limit))
	}
	for _, id := range q.ExtraIDs {
		params.Add("extraIds[]", strconv.FormatInt(id, 10))
	}
	if q.SourcesNav {
		params.Set("sourcesNav", "true")
	}

	var page EntriesPage
	if err := c.getJSON(ctx, "list entries", "/items?"+params.Encode(), &page); err != nil {
		return EntriesPage{}, err
	}
	if page.Entries == nil {
		page.Entries = []Entry{}
	}
	return page, nil
}

// Mark sets the unread flag of a single entry.
func (c *Client) Mark(ctx context.Context, id int64, unread bool) error {
	path := "/mark/"
	op := "mark entry read"
	if unread {
		path = "/unmark/"
		op = "mark entry unread"
	}
	return c.doForm(ctx, op, path+strconv.FormatInt(id, 10), nil, nil)
}

// MarkAll marks the given entries read.
func (c *Client) MarkAll(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	form := make(url.Values)
	for _, id := range ids {
		form.Add("ids[]", strconv.FormatInt(id, 10))
	}
	return c.doForm(ctx, "mark entries read", "/mark", form, nil)
}

func (c *Client) Starr(ctx context.Context, id int64, starred bool) error {
	path := "/unstarr/"
	op := "unstar entry"
	if starred {
		path = "/starr/"
		op = "star entry"
	}
	return c.doForm(ctx, op, path+strconv.FormatInt(id, 10), nil, nil)
}

func (c *Client) GetStats(ctx context.Context) (Stats, error) {
	var stats Stats
	if err := c.getJSON(ctx, "get stats", "/stats", &stats); err != nil {
		return Stats{}, err
	}
	return stats, nil
}

func (c *Client) ListSourceStats(ctx context.Context) ([]SourceStats, error) {
	var sources []SourceStats
	if err := c.getJSON(ctx, "list source stats", "/sources/stats", &sources); err != nil {
		return nil, err
	}
	return sources, nil
}

func (c *Client) ListTags(ctx context.Context) ([]TagStats, error) {
	var tags []TagStats
	if err := c.getJSON(ctx, "list tags", "/tags", &tags); err != nil {
		return nil, err
	}
	return tags, nil
}

func (c *Client) RefreshSingle(ctx context.Context, sourceID int64) error {
	return c.doForm(ctx, "refresh source", "/source/"+strconv.FormatInt(sourceID, 10)+"/update", nil, nil)
}

func (c *Client) RefreshAll(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/update", nil)
	if err != nil {
		return err
	}
	return c.do(req, "refresh sources", nil)
}

func (c *Client) getJSON(ctx context.Context, op, path string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return c.do(req, op, out)
}

func (c *Client) doForm(ctx context.Context, op, path string, form url.Values, out any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, body)
	if err != nil {
		return err
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	return c.do(req, op, out)
}

func (c *Client) do(req *http.Request, op string, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return fmt.Errorf("%s request failed: %w", op, ctxErr)
		}
		return &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &HTTPError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	fullURL := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}
