// Package geckoterminal fetches pool listings from the GeckoTerminal public
// API (https://api.geckoterminal.com/api/v2).
package geckoterminal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/gemscan/internal/net/client"
	"github.com/sawpanic/gemscan/internal/pools"
)

const (
	// ProviderName labels errors, logs and metrics.
	ProviderName = "geckoterminal"
	// DefaultBaseURL is the public v2 API root.
	DefaultBaseURL = "https://api.geckoterminal.com/api/v2"
	// DefaultPageSize is the provider's fixed listing page size.
	DefaultPageSize = 100
	// SortNewest orders listings by creation time, newest first.
	SortNewest = "created_at_desc"
)

// Source selects which pools to list. Category sources list the category's
// pools and keep only those on Network; Dex narrows any source to pools of
// that exchange.
type Source struct {
	Network  string `json:"network"`
	Category string `json:"category,omitempty"`
	Dex      string `json:"dex,omitempty"`
}

// String is the stable log and breaker key of the source.
func (s Source) String() string {
	var b strings.Builder
	if s.Category != "" {
		b.WriteString("category:" + s.Category + "/")
	}
	b.WriteString("network:" + s.Network)
	if s.Dex != "" {
		b.WriteString("/dex:" + s.Dex)
	}
	return b.String()
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	PageSize   int // a shorter page ends pagination
	MaxPages   int // 1 means single-page fetch
	Observer   PageObserver
}

// PageObserver is told about every page a client fetches successfully.
type PageObserver interface {
	ObservePage(source string, fetched, kept int)
}

// Client lists pools for a Source.
type Client struct {
	baseURL  string
	http     *http.Client
	pageSize int
	maxPages int
	observer PageObserver
}

// NewClient creates a client, filling unset options with defaults.
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if opts.PageSize < 1 {
		opts.PageSize = DefaultPageSize
	}
	if opts.MaxPages < 1 {
		opts.MaxPages = 1
	}
	return &Client{
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		http:     opts.HTTPClient,
		pageSize: opts.PageSize,
		maxPages: opts.MaxPages,
		observer: opts.Observer,
	}
}

// listResponse is the JSON:API envelope of a listing.
type listResponse[T any] struct {
	Data []T `json:"data"`
}

// FetchError reports the fault that ended a source's pagination.
type FetchError struct {
	Source Source
	Page   int
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s page %d: %v", e.Source, e.Page, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// fetchState is the accumulator threaded through pagination.
type fetchState struct {
	page  int
	pools []pools.RawPool
}

// FetchPools lists the pools of src, newest first, for up to the configured
// number of pages. Pagination stops early at the first short page. A fault
// ends the fetch: the pools gathered so far are returned together with a
// *FetchError, which callers log and otherwise ignore.
func (c *Client) FetchPools(ctx context.Context, src Source) ([]pools.RawPool, error) {
	ctx = client.WithBreakerKey(ctx, src.String())

	state := fetchState{pools: []pools.RawPool{}}
	for {
		next, more, err := c.step(ctx, src, state)
		if err != nil {
			log.Warn().
				Err(err).
				Str("source", src.String()).
				Str("network", src.Network).
				Str("category", src.Category).
				Str("dex", src.Dex).
				Int("page", state.page+1).
				Int("accumulated", len(state.pools)).
				Msg("Pool fetch failed, keeping partial results")
			return state.pools, &FetchError{Source: src, Page: state.page + 1, Err: err}
		}
		state = next
		if !more {
			return state.pools, nil
		}
	}
}

// step fetches the page after st and reports whether another page may follow.
func (c *Client) step(ctx context.Context, src Source, st fetchState) (fetchState, bool, error) {
	page := st.page + 1

	start := time.Now()
	raw, err := c.fetchPage(ctx, src, page)
	if err != nil {
		return st, false, err
	}

	kept := st.pools
	for _, p := range raw {
		if !src.matches(p) {
			continue
		}
		if p.Relationships.Network.ID() == "" {
			p.Relationships.Network = pools.Link(src.Network, "network")
		}
		kept = append(kept, p)
	}

	log.Debug().
		Str("source", src.String()).
		Int("page", page).
		Int("fetched", len(raw)).
		Int("kept", len(kept)-len(st.pools)).
		Dur("duration", time.Since(start)).
		Msg("Pool page fetched")
	if c.observer != nil {
		c.observer.ObservePage(src.String(), len(raw), len(kept)-len(st.pools))
	}

	more := len(raw) >= c.pageSize && page < c.maxPages
	return fetchState{page: page, pools: kept}, more, nil
}

// matches applies the source's network and exchange constraints. Category
// listings span networks, so a pool from one must name the target network
// itself.
func (s Source) matches(p pools.RawPool) bool {
	if s.Category != "" && p.Relationships.Network.ID() != s.Network {
		return false
	}
	if s.Dex != "" && !strings.EqualFold(p.Relationships.Dex.ID(), s.Dex) {
		return false
	}
	return true
}

func (c *Client) poolsURL(src Source, page int) (string, error) {
	var (
		path    string
		include string
	)
	if src.Category != "" {
		path = "/categories/" + url.PathEscape(src.Category) + "/pools"
		include = "network"
	} else {
		path = "/networks/" + url.PathEscape(src.Network) + "/pools"
		include = "dex"
	}

	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return "", fmt.Errorf("build pools url: %w", err)
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("sort", SortNewest)
	q.Set("include", include)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) fetchPage(ctx context.Context, src Source, page int) ([]pools.RawPool, error) {
	u, err := c.poolsURL(src, page)
	if err != nil {
		return nil, err
	}
	var body listResponse[pools.RawPool]
	if err := c.getJSON(ctx, u, &body); err != nil {
		return nil, err
	}
	return body.Data, nil
}

func (c *Client) getJSON(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &client.ProviderError{
			Provider:   ProviderName,
			Type:       client.TypeHTTP,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return client.NewDecodeError(ProviderName, err)
	}
	return nil
}
