package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cppla/cohort/content"
	"github.com/cppla/cohort/errs"
	"github.com/cppla/cohort/uploads"
)

const apiPrefix = "/api/v1"

// Client calls the community HTTP API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	cache   *QueryCache
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }
func WithToken(token string) Option        { return func(c *Client) { c.token = token } }
func WithCache(cache *QueryCache) Option   { return func(c *Client) { c.cache = cache } }

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) Cache() *QueryCache { return c.cache }

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// statusError turns an error response back into the error kind the server raised.
func statusError(status int, message string) error {
	switch status {
	case http.StatusBadRequest:
		return &errs.ValidationError{Message: message}
	case http.StatusUnauthorized, http.StatusForbidden:
		return &errs.AuthorizationError{Action: strings.TrimPrefix(message, "not allowed to ")}
	case http.StatusNotFound:
		return &errs.NotFoundError{Resource: strings.TrimSuffix(message, " not found")}
	case http.StatusConflict:
		return &errs.ConflictError{Message: message}
	}
	return &errs.TransportError{Status: status, Err: errors.New(message)}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+apiPrefix+path, body)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// decode reads an envelope and unmarshals its data into out when the call succeeded.
func decode(resp *http.Response, out interface{}) error {
	defer resp.Body.Close()
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if resp.StatusCode >= 400 {
			return statusError(resp.StatusCode, http.StatusText(resp.StatusCode))
		}
		return &errs.TransportError{Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	if resp.StatusCode >= 400 || env.Code != 0 {
		return statusError(resp.StatusCode, env.Message)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &errs.TransportError{Status: resp.StatusCode, Err: fmt.Errorf("decode data: %w", err)}
	}
	return nil
}

func (c *Client) call(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return &errs.TransportError{Err: err}
	}
	return decode(resp, out)
}

// cached serves key from the query cache or loads it with fetch.
func cached[T any](c *Client, key Key, fetch func() (T, error)) (T, error) {
	if c.cache != nil {
		if v, ok := c.cache.Get(key); ok {
			if typed, ok := v.(T); ok {
				return typed, nil
			}
		}
	}
	v, err := fetch()
	if err != nil {
		return v, err
	}
	if c.cache != nil {
		c.cache.Add(key, v)
	}
	return v, nil
}

// SaveRequest is the body of a create or edit call.
type SaveRequest struct {
	Kind        content.Kind               `json:"kind,omitempty"`
	Title       *string                    `json:"title,omitempty"`
	Body        *string                    `json:"body,omitempty"`
	Category    *string                    `json:"category,omitempty"`
	PostID      string                     `json:"postId,omitempty"`
	ParentID    string                     `json:"parentId,omitempty"`
	Attachments *content.AttachmentChanges `json:"attachments,omitempty"`
}

// SaveResponse is what create and edit calls return.
type SaveResponse struct {
	Entity      content.Entity       `json:"entity"`
	Attachments []content.Attachment `json:"attachments"`
}

func (c *Client) CreateContent(ctx context.Context, req SaveRequest) (SaveResponse, error) {
	var out SaveResponse
	err := c.call(ctx, http.MethodPost, "/content", req, &out)
	return out, err
}

func (c *Client) UpdateContent(ctx context.Context, kind content.Kind, id string, req SaveRequest) (SaveResponse, error) {
	var out SaveResponse
	err := c.call(ctx, http.MethodPost, "/content/"+string(kind)+"/"+url.PathEscape(id), req, &out)
	return out, err
}

func (c *Client) DeleteContent(ctx context.Context, kind content.Kind, id string) (content.Entity, error) {
	var out content.Entity
	if err := c.call(ctx, http.MethodPost, "/content/"+string(kind)+"/"+url.PathEscape(id)+"/delete", nil, &out); err != nil {
		return out, err
	}
	c.cache.InvalidateAfterSave(out)
	return out, nil
}

func (c *Client) SetPinned(ctx context.Context, postID string, pinned bool) (content.Entity, error) {
	var out content.Entity
	body := map[string]bool{"pinned": pinned}
	if err := c.call(ctx, http.MethodPost, "/content/post/"+url.PathEscape(postID)+"/pin", body, &out); err != nil {
		return out, err
	}
	c.cache.InvalidateAfterSave(out)
	return out, nil
}

func (c *Client) GetContent(ctx context.Context, kind content.Kind, id string) (content.Entity, error) {
	return cached(c, DetailKey(kind, id), func() (content.Entity, error) {
		var out content.Entity
		err := c.call(ctx, http.MethodGet, "/content/"+string(kind)+"/"+url.PathEscape(id), nil, &out)
		return out, err
	})
}

// CommitRequest is the body of an attachment commit.
type CommitRequest struct {
	ParentType content.Kind            `json:"parentType"`
	ParentID   string                  `json:"parentId"`
	NewRefs    []uploads.AttachmentRef `json:"newRefs"`
	DeletedIDs []string                `json:"deletedIds"`
}

func (c *Client) CommitAttachments(ctx context.Context, parent content.ParentRef, changes content.AttachmentChanges) ([]content.Attachment, error) {
	var out []content.Attachment
	err := c.call(ctx, http.MethodPost, "/attachments/commit", CommitRequest{
		ParentType: parent.Kind,
		ParentID:   parent.ID,
		NewRefs:    changes.NewRefs,
		DeletedIDs: changes.DeletedIDs,
	}, &out)
	return out, err
}

func (c *Client) ListAttachments(ctx context.Context, parent content.ParentRef) ([]content.Attachment, error) {
	return cached(c, AttachmentsKey(parent), func() ([]content.Attachment, error) {
		var out []content.Attachment
		err := c.call(ctx, http.MethodGet, "/attachments/"+string(parent.Kind)+"/"+url.PathEscape(parent.ID), nil, &out)
		return out, err
	})
}

// SignURLs returns a readable URL for each storage key.
func (c *Client) SignURLs(ctx context.Context, keys []string) (map[string]string, error) {
	var out map[string]string
	err := c.call(ctx, http.MethodPost, "/attachments/urls", map[string][]string{"keys": keys}, &out)
	return out, err
}

func listQuery(opts content.ListOptions) url.Values {
	q := url.Values{}
	if opts.Category != "" {
		q.Set("category", opts.Category)
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		q.Set("offset", strconv.Itoa(opts.Offset))
	}
	return q
}

// ListPosts lists posts, optionally of one user (userID 0 lists everyone's).
func (c *Client) ListPosts(ctx context.Context, userID uint, opts content.ListOptions) (content.Page, error) {
	values := listQuery(opts)
	if userID != 0 {
		values.Set("user_id", strconv.FormatUint(uint64(userID), 10))
	}
	q := values.Encode()
	return cached(c, ListingKey("posts", "", q), func() (content.Page, error) {
		var out content.Page
		err := c.call(ctx, http.MethodGet, "/posts?"+q, nil, &out)
		return out, err
	})
}

func (c *Client) ListComments(ctx context.Context, postID string, opts content.ListOptions) (content.Page, error) {
	q := listQuery(opts).Encode()
	return cached(c, ListingKey("comments", postID, q), func() (content.Page, error) {
		var out content.Page
		err := c.call(ctx, http.MethodGet, "/posts/"+url.PathEscape(postID)+"/comments?"+q, nil, &out)
		return out, err
	})
}

func (c *Client) ListReplies(ctx context.Context, commentID string) ([]content.Entity, error) {
	return cached(c, ListingKey("replies", commentID, ""), func() ([]content.Entity, error) {
		var out []content.Entity
		err := c.call(ctx, http.MethodGet, "/comments/"+url.PathEscape(commentID)+"/replies", nil, &out)
		return out, err
	})
}

// UploadConfig mirrors the server's upload limits.
type UploadConfig struct {
	MaxImageBytes    int64    `json:"maxImageBytes"`
	MaxVideoBytes    int64    `json:"maxVideoBytes"`
	MaxFiles         int      `json:"maxFiles"`
	AllowedMIMETypes []string `json:"allowedMimeTypes"`
}

func (u UploadConfig) Limits() uploads.Limits {
	return uploads.Limits{MaxImageBytes: u.MaxImageBytes, MaxVideoBytes: u.MaxVideoBytes, MaxFiles: u.MaxFiles}
}

func (c *Client) UploadConfig(ctx context.Context) (UploadConfig, error) {
	var out UploadConfig
	err := c.call(ctx, http.MethodGet, "/config/uploads", nil, &out)
	return out, err
}
