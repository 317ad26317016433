package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"catalogd/internal/catalog"
	appLog "catalogd/internal/log"
	"catalogd/internal/model"
)

const maxBodyBytes = 8 << 20

// Options configures a Client.
type Options struct {
	// BaseURL is the remote API root, e.g. "https://api.example.org/v1".
	BaseURL string

	// CatalogPaths / RegistrationPaths map a kind to its endpoint path.
	// Missing kinds fall back to "/events", "/events/registered" etc.
	CatalogPaths      map[model.Kind]string
	RegistrationPaths map[model.Kind]string

	// Timeout applies per request. Zero means 15s.
	Timeout time.Duration

	// HTTPClient replaces the default client (tests).
	HTTPClient *http.Client
}

// Client talks to the remote catalog and registration API.
type Client struct {
	http              *http.Client
	baseURL           string
	catalogPaths      map[model.Kind]string
	registrationPaths map[model.Kind]string
}

// NewClient creates a new Client.
func NewClient(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{
		http:              hc,
		baseURL:           strings.TrimSuffix(opts.BaseURL, "/"),
		catalogPaths:      opts.CatalogPaths,
		registrationPaths: opts.RegistrationPaths,
	}
}

func (c *Client) catalogPath(kind model.Kind) string {
	if p, ok := c.catalogPaths[kind]; ok && p != "" {
		return p
	}
	return "/" + kind.Plural()
}

func (c *Client) registrationPath(kind model.Kind) string {
	if p, ok := c.registrationPaths[kind]; ok && p != "" {
		return p
	}
	return "/" + kind.Plural() + "/registered"
}

// FetchCatalog fetches the raw records of one catalog kind.
func (c *Client) FetchCatalog(ctx context.Context, kind model.Kind) ([]catalog.RawRecord, error) {
	var objs []map[string]any
	if err := c.getList(ctx, c.catalogPath(kind), "", kind, &objs); err != nil {
		return nil, err
	}
	out := make([]catalog.RawRecord, 0, len(objs))
	for _, o := range objs {
		out = append(out, catalog.RawRecord(o))
	}
	return out, nil
}

// ForUser returns a registration source that authenticates with the given
// bearer token.
func (c *Client) ForUser(token string) *UserClient {
	return &UserClient{client: c, token: token}
}

// UserClient fetches registrations on behalf of one authenticated user.
type UserClient struct {
	client *Client
	token  string
}

// FetchRegistrations implements catalog.RegistrationSource.
func (u *UserClient) FetchRegistrations(ctx context.Context, kind model.Kind) ([]catalog.RawRegistration, error) {
	var objs []map[string]any
	if err := u.client.getList(ctx, u.client.registrationPath(kind), u.token, kind, &objs); err != nil {
		return nil, err
	}
	out := make([]catalog.RawRegistration, 0, len(objs))
	for _, o := range objs {
		out = append(out, catalog.RawRegistration(o))
	}
	return out, nil
}

func (c *Client) getList(ctx context.Context, path, token string, kind model.Kind, out *[]map[string]any) error {
	if c.baseURL == "" {
		return errors.New("source: base URL is empty")
	}
	url := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	appLog.Debug("source fetch start", "kind", kind, "url", redactURL(url))

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("http do: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}

	list, err := decodeList(body, kind)
	if err != nil {
		return fmt.Errorf("decode %s: %w", redactURL(url), err)
	}
	*out = list

	appLog.Debug("source fetch success", "kind", kind, "url", redactURL(url), "count", len(list))
	return nil
}

// StatusError is returned for non-200 upstream answers.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return "upstream status " + e.Status
}

// decodeList accepts a bare JSON array or an envelope object carrying the
// array under "data", "items", or the kind's plural name.
func decodeList(body []byte, kind model.Kind) ([]map[string]any, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return []map[string]any{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	if body[0] == '[' {
		var list []map[string]any
		if err := dec.Decode(&list); err != nil {
			return nil, err
		}
		return list, nil
	}

	var env map[string]json.RawMessage
	if err := dec.Decode(&env); err != nil {
		return nil, err
	}
	for _, key := range []string{"data", "items", kind.Plural(), "registrations"} {
		raw, ok := env[key]
		if !ok {
			continue
		}
		sub := json.NewDecoder(bytes.NewReader(raw))
		sub.UseNumber()
		var list []map[string]any
		if err := sub.Decode(&list); err != nil {
			return nil, fmt.Errorf("envelope %q: %w", key, err)
		}
		return list, nil
	}
	return nil, errors.New("response has no list payload")
}

// redactURL hides paths and query strings of upstream URLs for logging.
//
//	https://api.example.org/v1/events?token=abcd
//	-> https://api.example.org/...(redacted)
func redactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	i := strings.Index(u, "://")
	if i == -1 {
		return "api://...(redacted)"
	}
	rest := u[i+3:]
	if j := strings.IndexByte(rest, '/'); j != -1 {
		rest = rest[:j]
	}
	return u[:i+3] + rest + redactedSuffix
}
