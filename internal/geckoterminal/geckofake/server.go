// Package geckofake serves canned GeckoTerminal listings for tests.
package geckofake

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
)

// Pool describes one listing entry. Numeric fields are any so tests can send
// numbers, numeric strings, garbage or nil exactly as the provider might.
type Pool struct {
	Name      string
	Address   string
	Network   string // omitted from relationships when empty
	Dex       string
	FDV       any
	Reserve   any
	Volume    any
	Change    any
	Buys      any
	Sells     any
	CreatedAt string // omitted when empty
}

// Item renders the pool as a JSON:API resource.
func (p Pool) Item() map[string]any {
	attrs := map[string]any{
		"name":                    p.Name,
		"address":                 p.Address,
		"fdv_usd":                 p.FDV,
		"reserve_in_usd":          p.Reserve,
		"volume_usd":              map[string]any{"h24": p.Volume},
		"price_change_percentage": map[string]any{"h24": p.Change},
		"txns":                    map[string]any{"h24": map[string]any{"buys": p.Buys, "sells": p.Sells}},
	}
	if p.CreatedAt != "" {
		attrs["created_at"] = p.CreatedAt
	}

	rels := map[string]any{}
	if p.Network != "" {
		rels["network"] = map[string]any{"data": map[string]any{"id": p.Network, "type": "network"}}
	}
	if p.Dex != "" {
		rels["dex"] = map[string]any{"data": map[string]any{"id": p.Dex, "type": "dex"}}
	}

	return map[string]any{
		"id":            p.Network + "_" + p.Address,
		"type":          "pool",
		"attributes":    attrs,
		"relationships": rels,
	}
}

// Qualifying returns a pool passing the default low-cap thresholds at now.
func Qualifying(name, address string, change float64, now time.Time) Pool {
	return Pool{
		Name:      name,
		Address:   address,
		Network:   "solana",
		Dex:       "pumpswap",
		FDV:       "20000",
		Reserve:   "10000",
		Volume:    "5000",
		Change:    change,
		Buys:      20,
		Sells:     5,
		CreatedAt: now.Add(-48 * time.Hour).UTC().Format(time.RFC3339),
	}
}

// Request records one call the server received.
type Request struct {
	Path  string
	Page  int
	Sort  string
	Query string
}

// Server is an httptest server routing GeckoTerminal paths.
type Server struct {
	*httptest.Server

	mu         sync.Mutex
	networks   map[string][][]Pool
	categories map[string][][]Pool
	catalogue  []map[string]any
	failures   map[string]int
	raw        map[string]string
	requests   []Request
}

// New starts a server; callers Close it.
func New() *Server {
	s := &Server{
		networks:   make(map[string][][]Pool),
		categories: make(map[string][][]Pool),
		failures:   make(map[string]int),
		raw:        make(map[string]string),
	}

	r := mux.NewRouter()
	r.HandleFunc("/networks/{network}/pools", s.handlePools(s.networks, "network")).Methods(http.MethodGet)
	r.HandleFunc("/categories/{category}/pools", s.handlePools(s.categories, "category")).Methods(http.MethodGet)
	r.HandleFunc("/categories", s.handleCategories).Methods(http.MethodGet)

	s.Server = httptest.NewServer(r)
	return s
}

// NetworkPages sets the listing pages of a network, page 1 first.
func (s *Server) NetworkPages(network string, pages ...[]Pool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.networks[network] = pages
}

// CategoryPages sets the listing pages of a category, page 1 first.
func (s *Server) CategoryPages(category string, pages ...[]Pool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories[category] = pages
}

// Categories sets the catalogue served at /categories as id -> name pairs.
func (s *Server) Categories(pairs ...[2]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalogue = nil
	for _, p := range pairs {
		s.catalogue = append(s.catalogue, map[string]any{
			"id":         p[0],
			"type":       "category",
			"attributes": map[string]any{"name": p[1]},
		})
	}
}

// FailPage makes page of the given listing ("network/solana",
// "category/pump-swap" or "categories") answer with status.
func (s *Server) FailPage(listing string, page, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[listing+"#"+strconv.Itoa(page)] = status
}

// RawPage makes page of the given listing answer 200 with body verbatim.
func (s *Server) RawPage(listing string, page int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw[listing+"#"+strconv.Itoa(page)] = body
}

// Requests returns the calls received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

func (s *Server) record(r *http.Request, page int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, Request{
		Path:  r.URL.Path,
		Page:  page,
		Sort:  r.URL.Query().Get("sort"),
		Query: r.URL.RawQuery,
	})
}

// intercept answers a configured failure or raw body; it reports whether it did.
func (s *Server) intercept(w http.ResponseWriter, key string) bool {
	s.mu.Lock()
	status, failing := s.failures[key]
	body, raw := s.raw[key]
	s.mu.Unlock()

	switch {
	case failing:
		http.Error(w, http.StatusText(status), status)
		return true
	case raw:
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
		return true
	}
	return false
}

func (s *Server) handlePools(listings map[string][][]Pool, kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)[kind]
		page, err := strconv.Atoi(r.URL.Query().Get("page"))
		if err != nil || page < 1 {
			page = 1
		}
		s.record(r, page)

		if s.intercept(w, kind+"/"+id+"#"+strconv.Itoa(page)) {
			return
		}

		s.mu.Lock()
		pages, ok := listings[id]
		s.mu.Unlock()
		if !ok {
			http.Error(w, `{"errors":[{"status":"404","title":"Not Found"}]}`, http.StatusNotFound)
			return
		}

		items := []map[string]any{}
		if page <= len(pages) {
			for _, p := range pages[page-1] {
				items = append(items, p.Item())
			}
		}
		writeJSON(w, map[string]any{"data": items})
	}
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	s.record(r, 1)
	if s.intercept(w, "categories#1") {
		return
	}

	s.mu.Lock()
	items := append([]map[string]any{}, s.catalogue...)
	s.mu.Unlock()
	writeJSON(w, map[string]any{"data": items})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
