package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pressline/feedsync/pkg/config"
	"github.com/pressline/feedsync/pkg/logging"
	"github.com/pressline/feedsync/pkg/telemetry"
)

// PageSize is the fixed page size of the post listing endpoint
const PageSize = 20

// Post is a post as returned by the remote content API
type Post struct {
	ID          int64     `json:"id"`
	DateUTC     time.Time `json:"date_utc"`
	AuthorID    int64     `json:"author"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Excerpt     string    `json:"excerpt"`
	Content     string    `json:"content"`
	CategoryIDs []int64   `json:"categories"`
	TagIDs      []int64   `json:"tags"`
}

// Category is a category as returned by the remote content API
type Category struct {
	ID       int64  `json:"id"`
	Slug     string `json:"slug"`
	Name     string `json:"name"`
	ParentID int64  `json:"parent"`
	Count    int64  `json:"count"`
}

// Tag is a tag as returned by the remote content API
type Tag struct {
	ID    int64  `json:"id"`
	Slug  string `json:"slug"`
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// User is a post author as returned by the remote content API
type User struct {
	ID          int64  `json:"id"`
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Description string `json:"description"`
	AvatarURL   string `json:"avatar_url"`
}

// PostListing describes one page-worth of the post listing endpoint
type PostListing struct {
	Page        int
	Search      string
	CategoryIDs []int64
	TagIDs      []int64
	PostIDs     []int64
	Before      time.Time
}

// Client talks to the remote content API
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// New creates a new remote content API client
func New(cfg *config.RemoteConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("api_url is required")
	}

	logger := logging.GetLogger().With(zap.String("component", "remote-client"))

	client := &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		// No client-level timeout: the retry wrapper owns the deadline,
		// point lookups rely on the caller's context.
		http:   &http.Client{},
		logger: logger,
	}

	logger.Info("Remote content client initialized", zap.String("url", cfg.URL))

	return client, nil
}

// ListPosts fetches one page of the post listing
func (c *Client) ListPosts(ctx context.Context, listing PostListing) ([]Post, error) {
	ctx, span := telemetry.StartSpan(ctx, "remote.list_posts")
	defer span.End()

	page := listing.Page
	if page <= 0 {
		page = 1
	}

	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("per_page", strconv.Itoa(PageSize))
	if listing.Search != "" {
		params.Set("search", listing.Search)
	}
	if len(listing.CategoryIDs) > 0 {
		params.Set("categories", joinIDs(listing.CategoryIDs))
	}
	if len(listing.TagIDs) > 0 {
		params.Set("tags", joinIDs(listing.TagIDs))
	}
	if len(listing.PostIDs) > 0 {
		params.Set("include", joinIDs(listing.PostIDs))
	}
	if !listing.Before.IsZero() {
		params.Set("before", listing.Before.UTC().Format(time.RFC3339))
	}

	var posts []Post
	if err := c.get(ctx, "list_posts", "/posts", params, &posts); err != nil {
		return nil, err
	}

	c.logger.Debug("Fetched post listing",
		zap.Int("page", page),
		zap.Int("count", len(posts)))

	return posts, nil
}

// ListCategories fetches categories by id; a nil or empty ids slice fetches
// the complete listing
func (c *Client) ListCategories(ctx context.Context, ids []int64) ([]Category, error) {
	ctx, span := telemetry.StartSpan(ctx, "remote.list_categories")
	defer span.End()

	params := url.Values{}
	if len(ids) > 0 {
		params.Set("include", joinIDs(ids))
	}

	var categories []Category
	if err := c.get(ctx, "list_categories", "/categories", params, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

// ListTags fetches tags by id
func (c *Client) ListTags(ctx context.Context, ids []int64) ([]Tag, error) {
	ctx, span := telemetry.StartSpan(ctx, "remote.list_tags")
	defer span.End()

	if len(ids) == 0 {
		return nil, fmt.Errorf("no tag ids provided")
	}

	params := url.Values{}
	params.Set("include", joinIDs(ids))

	var tags []Tag
	if err := c.get(ctx, "list_tags", "/tags", params, &tags); err != nil {
		return nil, err
	}
	return tags, nil
}

// ListUsers fetches users by id
func (c *Client) ListUsers(ctx context.Context, ids []int64) ([]User, error) {
	ctx, span := telemetry.StartSpan(ctx, "remote.list_users")
	defer span.End()

	if len(ids) == 0 {
		return nil, fmt.Errorf("no user ids provided")
	}

	params := url.Values{}
	params.Set("include", joinIDs(ids))

	var users []User
	if err := c.get(ctx, "list_users", "/users", params, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// get performs one GET request and decodes the JSON response into out
func (c *Client) get(ctx context.Context, op, path string, params url.Values, out interface{}) error {
	target := c.baseURL + path
	if encoded := params.Encode(); encoded != "" {
		target += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return &Error{Kind: KindTransport, Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Kind: KindTransport, Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{Kind: KindHTTP, Op: op, Status: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Kind: KindDecode, Op: op, Err: err}
	}

	return nil
}

func joinIDs(ids []int64) string {
	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(strs, ",")
}
