package geckoterminal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/gemscan/internal/geckoterminal/geckofake"
	"github.com/sawpanic/gemscan/internal/net/client"
	"github.com/sawpanic/gemscan/internal/pools"
)

var now = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func page(prefix string, n int) []geckofake.Pool {
	out := make([]geckofake.Pool, n)
	for i := range out {
		out[i] = geckofake.Qualifying(fmt.Sprintf("%s%d", prefix, i), fmt.Sprintf("%s-addr-%d", prefix, i), 10, now)
	}
	return out
}

func newTestClient(srv *geckofake.Server, pageSize, maxPages int) *Client {
	return NewClient(Options{
		BaseURL:    srv.URL,
		HTTPClient: client.New(client.Config{Provider: ProviderName}, 5*time.Second),
		PageSize:   pageSize,
		MaxPages:   maxPages,
	})
}

func addresses(ps []pools.RawPool) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Attributes.Address
	}
	return out
}

func TestFetchPools_SinglePage(t *testing.T) {
	srv := geckofake.New()
	defer srv.Close()
	srv.NetworkPages("solana", page("a", 3), page("b", 3))

	got, err := newTestClient(srv, 3, 1).FetchPools(context.Background(), Source{Network: "solana"})
	require.NoError(t, err)
	assert.Len(t, got, 3)

	reqs := srv.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "/networks/solana/pools", reqs[0].Path)
	assert.Equal(t, 1, reqs[0].Page)
	assert.Equal(t, SortNewest, reqs[0].Sort)
}

func TestFetchPools_StopsAtShortPage(t *testing.T) {
	srv := geckofake.New()
	defer srv.Close()
	srv.NetworkPages("solana", page("a", 3), page("b", 2), page("c", 3))

	got, err := newTestClient(srv, 3, 5).FetchPools(context.Background(), Source{Network: "solana"})
	require.NoError(t, err)
	assert.Len(t, got, 5)
	assert.Len(t, srv.Requests(), 2)
}

func TestFetchPools_StopsAtPageCap(t *testing.T) {
	srv := geckofake.New()
	defer srv.Close()

	pages := make([][]geckofake.Pool, 7)
	for i := range pages {
		pages[i] = page(fmt.Sprintf("p%d-", i), 3)
	}
	srv.NetworkPages("solana", pages...)

	got, err := newTestClient(srv, 3, 5).FetchPools(context.Background(), Source{Network: "solana"})
	require.NoError(t, err)
	assert.Len(t, got, 15)

	reqs := srv.Requests()
	require.Len(t, reqs, 5)
	for i, r := range reqs {
		assert.Equal(t, i+1, r.Page)
	}
}

func TestFetchPools_DexFilterIsCaseInsensitiveAndDoesNotShortenPagination(t *testing.T) {
	srv := geckofake.New()
	defer srv.Close()

	first := page("a", 3)
	first[0].Dex = "raydium"
	first[1].Dex = "PumpSwap"
	second := page("b", 3)
	for i := range second {
		second[i].Dex = "orca"
	}
	srv.NetworkPages("solana", first, second, page("c", 1))

	got, err := newTestClient(srv, 3, 5).FetchPools(context.Background(), Source{Network: "solana", Dex: "pumpswap"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a-addr-1", "a-addr-2", "c-addr-0"}, addresses(got))
	assert.Len(t, srv.Requests(), 3)
}

func TestFetchPools_CategoryKeepsTargetNetwork(t *testing.T) {
	srv := geckofake.New()
	defer srv.Close()

	listing := page("a", 4)
	listing[1].Network = "base"
	listing[3].Network = ""
	srv.CategoryPages("pump-swap", listing)

	got, err := newTestClient(srv, 100, 1).FetchPools(context.Background(), Source{Network: "solana", Category: "pump-swap"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a-addr-0", "a-addr-2"}, addresses(got))

	reqs := srv.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "/categories/pump-swap/pools", reqs[0].Path)
	assert.Contains(t, reqs[0].Query, "include=network")
}

func TestFetchPools_StampsSourceNetwork(t *testing.T) {
	srv := geckofake.New()
	defer srv.Close()

	listing := page("a", 1)
	listing[0].Network = ""
	srv.NetworkPages("base", listing)

	got, err := newTestClient(srv, 100, 1).FetchPools(context.Background(), Source{Network: "base"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "base", got[0].Relationships.Network.ID())
}

func TestFetchPools_FaultKeepsPartialResults(t *testing.T) {
	srv := geckofake.New()
	defer srv.Close()
	srv.NetworkPages("solana", page("a", 3), page("b", 3), page("c", 3))
	srv.FailPage("network/solana", 2, http.StatusInternalServerError)

	got, err := newTestClient(srv, 3, 5).FetchPools(context.Background(), Source{Network: "solana"})
	require.Error(t, err)
	assert.Len(t, got, 3)
	assert.Len(t, srv.Requests(), 2, "no retry and no further pages after a fault")

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, 2, fe.Page)
	assert.Equal(t, "solana", fe.Source.Network)
	assert.Equal(t, client.TypeHTTP, client.TypeOf(err))
}

func TestFetchPools_MalformedJSONIsDecodeFault(t *testing.T) {
	srv := geckofake.New()
	defer srv.Close()
	srv.NetworkPages("solana", page("a", 3))
	srv.RawPage("network/solana", 1, `{"data": [ {"attributes": `)

	got, err := newTestClient(srv, 3, 5).FetchPools(context.Background(), Source{Network: "solana"})
	require.Error(t, err)
	assert.Empty(t, got)
	assert.Equal(t, client.TypeDecode, client.TypeOf(err))
}

func TestFetchPools_LenientNumbers(t *testing.T) {
	srv := geckofake.New()
	defer srv.Close()

	p := geckofake.Qualifying("odd", "odd-addr", 5, now)
	p.FDV = nil
	p.Reserve = "not-a-number"
	p.Buys = "12"
	srv.NetworkPages("solana", []geckofake.Pool{p})

	got, err := newTestClient(srv, 100, 1).FetchPools(context.Background(), Source{Network: "solana"})
	require.NoError(t, err)
	require.Len(t, got, 1)

	attr := got[0].Attributes
	assert.False(t, attr.FDVUSD.Valid)
	assert.False(t, attr.ReserveInUSD.Valid)
	assert.Equal(t, int64(12), attr.Txns.H24.Buys.Value)
}

func TestFetchPools_UnknownNetwork(t *testing.T) {
	srv := geckofake.New()
	defer srv.Close()

	got, err := newTestClient(srv, 100, 1).FetchPools(context.Background(), Source{Network: "nowhere"})
	require.Error(t, err)
	assert.Empty(t, got)
}

func TestSource_String(t *testing.T) {
	assert.Equal(t, "network:solana", Source{Network: "solana"}.String())
	assert.Equal(t, "network:solana/dex:pumpswap", Source{Network: "solana", Dex: "pumpswap"}.String())
	assert.Equal(t, "category:pump-swap/network:solana", Source{Network: "solana", Category: "pump-swap"}.String())
}

type pageRecorder struct {
	pages []string
	kept  int
}

func (r *pageRecorder) ObservePage(source string, fetched, kept int) {
	r.pages = append(r.pages, fmt.Sprintf("%s:%d", source, fetched))
	r.kept += kept
}

func TestFetchPools_ObservesPages(t *testing.T) {
	srv := geckofake.New()
	defer srv.Close()

	first := page("a", 3)
	first[0].Dex = "orca"
	srv.NetworkPages("solana", first, page("b", 1))

	rec := &pageRecorder{}
	c := NewClient(Options{
		BaseURL:  srv.URL,
		PageSize: 3,
		MaxPages: 5,
		Observer: rec,
	})

	_, err := c.FetchPools(context.Background(), Source{Network: "solana", Dex: "pumpswap"})
	require.NoError(t, err)
	assert.Equal(t, []string{"network:solana/dex:pumpswap:3", "network:solana/dex:pumpswap:1"}, rec.pages)
	assert.Equal(t, 3, rec.kept)
}
