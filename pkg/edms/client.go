package edms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/phuslu/log"
	"github.com/xhad/edms-dedupe/internal/models"
	"github.com/xhad/edms-dedupe/internal/types"
	"github.com/xhad/edms-dedupe/pkg/logging"
	"golang.org/x/time/rate"
)

const (
	documentsPath = "/api/documents/documents"
	storageDir    = "document_storage"
)

type ClientConfig struct {
	BaseURL   string
	Username  string
	Password  string
	MediaRoot string
	Timeout   time.Duration
	RateLimit float64 // requests per second
	OnPage    func(fetched int)
	Logger    *log.Logger
}

type Client struct {
	config  ClientConfig
	client  *http.Client
	limiter *rate.Limiter
	logger  *log.Logger
}

var (
	_ types.DocumentLister  = (*Client)(nil)
	_ types.DocumentDeleter = (*Client)(nil)
)

// Page is one listing response. Next is the opaque continuation token to
// pass back into FetchPage; it is empty once the catalog is exhausted.
type Page struct {
	Documents []models.Document
	Next      string
}

type listResponse struct {
	Count   int               `json:"count"`
	Next    json.RawMessage   `json:"next"`
	Results *[]remoteDocument `json:"results"`
}

type remoteDocument struct {
	ID                int            `json:"id"`
	LatestVersion     *remoteVersion `json:"latest_version"`
	DateAdded         string         `json:"date_added"`
	Description       string         `json:"description"`
	DocumentTypeLabel string         `json:"document_type_label"`
	Label             string         `json:"label"`
}

type remoteVersion struct {
	File string `json:"file"`
}

func NewWithConfig(config ClientConfig) (*Client, error) {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 10
	}

	parsedURL, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("invalid base URL: %q", config.BaseURL)
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	return &Client{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		logger:  logging.OrDiscard(config.Logger),
	}, nil
}

func (c *Client) listURL() string {
	return c.config.BaseURL + documentsPath + "?json"
}

func (c *Client) documentURL(id int) string {
	return fmt.Sprintf("%s%s/%d?json", c.config.BaseURL, documentsPath, id)
}

// ListDocuments walks every page of the listing endpoint. Any failing page
// aborts the walk; no partial catalog is returned.
func (c *Client) ListDocuments(ctx context.Context) ([]models.Document, error) {
	var documents []models.Document
	visited := make(map[string]bool)

	token := ""
	for {
		page, err := c.FetchPage(ctx, token)
		if err != nil {
			return nil, err
		}
		documents = append(documents, page.Documents...)

		if c.config.OnPage != nil {
			c.config.OnPage(len(documents))
		}

		if page.Next == "" {
			break
		}
		if visited[page.Next] {
			return nil, &FetchError{URL: page.Next, Err: errors.New("pagination loop detected")}
		}
		visited[page.Next] = true
		token = page.Next
	}

	c.logger.Info().Int("documents", len(documents)).Msg("catalog fetched")
	return documents, nil
}

// FetchPage requests one listing page. An empty token requests the first
// page; otherwise token is the Next value of the previous page.
func (c *Client) FetchPage(ctx context.Context, token string) (Page, error) {
	pageURL := token
	if pageURL == "" {
		pageURL = c.listURL()
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return Page{}, &TransportError{Method: http.MethodGet, URL: pageURL, Err: err}
	}

	req, err := c.newRequest(ctx, http.MethodGet, pageURL)
	if err != nil {
		return Page{}, &FetchError{URL: pageURL, Err: err}
	}

	c.logger.Debug().Str("url", pageURL).Msg("fetching page")

	resp, err := c.client.Do(req)
	if err != nil {
		return Page{}, &TransportError{Method: http.MethodGet, URL: pageURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Page{}, &FetchError{URL: pageURL, StatusCode: resp.StatusCode}
	}

	var body listResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Page{}, &FetchError{URL: pageURL, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode payload: %w", err)}
	}

	if body.Results == nil {
		return Page{}, &FetchError{URL: pageURL, StatusCode: resp.StatusCode, Err: errors.New("payload has no results array")}
	}

	page := Page{Documents: make([]models.Document, 0, len(*body.Results))}
	for _, item := range *body.Results {
		if item.LatestVersion == nil || item.LatestVersion.File == "" {
			return Page{}, &FetchError{
				URL:        pageURL,
				StatusCode: resp.StatusCode,
				Err:        fmt.Errorf("document %d has no latest version file", item.ID),
			}
		}
		page.Documents = append(page.Documents, c.project(item))
	}

	next, err := nextToken(pageURL, body.Next)
	if err != nil {
		return Page{}, &FetchError{URL: pageURL, StatusCode: resp.StatusCode, Err: err}
	}
	page.Next = next

	return page, nil
}

func (c *Client) project(item remoteDocument) models.Document {
	return models.Document{
		ID:                item.ID,
		FilePath:          filepath.Join(c.config.MediaRoot, storageDir, item.LatestVersion.File),
		DateAdded:         item.DateAdded,
		Description:       item.Description,
		DocumentTypeLabel: item.DocumentTypeLabel,
		Label:             item.Label,
	}
}

// nextToken turns the raw "next" field into a continuation token. The
// server signals the last page with null, false, an empty string or by
// leaving the field out.
func nextToken(current string, raw json.RawMessage) (string, error) {
	trimmed := strings.TrimSpace(string(raw))
	switch trimmed {
	case "", "null", "false", `""`:
		return "", nil
	}

	var next string
	if err := json.Unmarshal(raw, &next); err != nil {
		return "", fmt.Errorf("invalid next page reference %s", trimmed)
	}

	// Resolve relative references against the page that returned them.
	base, err := url.Parse(current)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(next)
	if err != nil {
		return "", fmt.Errorf("invalid next page reference %q: %w", next, err)
	}
	return base.ResolveReference(ref).String(), nil
}

// DeleteDocument asks the server to delete the document. It reports true
// only when the server answers 204 No Content; any other status is false
// with a nil error. Network failures come back as *TransportError.
func (c *Client) DeleteDocument(ctx context.Context, id int) (bool, error) {
	deleteURL := c.documentURL(id)

	if err := c.limiter.Wait(ctx); err != nil {
		return false, &TransportError{Method: http.MethodDelete, URL: deleteURL, Err: err}
	}

	req, err := c.newRequest(ctx, http.MethodDelete, deleteURL)
	if err != nil {
		return false, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return false, &TransportError{Method: http.MethodDelete, URL: deleteURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		c.logger.Warn().Int("id", id).Int("status", resp.StatusCode).Msg("delete rejected")
		return false, nil
	}

	c.logger.Debug().Int("id", id).Msg("document deleted")
	return true, nil
}

func (c *Client) newRequest(ctx context.Context, method, target string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.config.Username, c.config.Password)
	req.Header.Set("Accept", "application/json")
	return req, nil
}
