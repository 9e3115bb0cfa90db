package geckoterminal

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/gemscan/internal/geckoterminal/geckofake"
)

func TestListCategories(t *testing.T) {
	srv := geckofake.New()
	defer srv.Close()
	srv.Categories([2]string{"meme", "Meme"}, [2]string{"pump-fun", "Pump Fun"})

	cats, err := newTestClient(srv, 100, 1).ListCategories(context.Background())
	require.NoError(t, err)
	require.Len(t, cats, 2)
	assert.Equal(t, "pump-fun", cats[1].ID)
	assert.Equal(t, "Pump Fun", cats[1].Name())
}

func TestFindCategory(t *testing.T) {
	srv := geckofake.New()
	defer srv.Close()
	srv.Categories([2]string{"meme", "Meme"}, [2]string{"pumpswap-pools", "PumpSwap Pools"}, [2]string{"pump-swap-2", "Pump Swap Legacy"})

	c := newTestClient(srv, 100, 1)
	assert.Equal(t, "pumpswap-pools", c.FindCategory(context.Background(), "pumpswap", "pump-swap"))
	assert.Equal(t, "pump-swap-2", c.FindCategory(context.Background(), "pump swap", "pump-swap"))
	assert.Equal(t, "pump-swap", c.FindCategory(context.Background(), "does not exist", "pump-swap"))
}

func TestMatchCategory(t *testing.T) {
	var cats []Category
	for _, c := range [][2]string{{"meme", "Meme"}, {"pumpswap-pools", "PumpSwap Pools"}} {
		var cat Category
		cat.ID = c[0]
		cat.Attributes.Name = c[1]
		cats = append(cats, cat)
	}

	got, ok := MatchCategory(cats, "PUMPSWAP")
	require.True(t, ok)
	assert.Equal(t, "pumpswap-pools", got.ID)

	_, ok = MatchCategory(cats, "solana")
	assert.False(t, ok)

	_, ok = MatchCategory(nil, "meme")
	assert.False(t, ok)
}

func TestFindCategory_FallbackOnFault(t *testing.T) {
	srv := geckofake.New()
	defer srv.Close()
	srv.FailPage("categories", 1, http.StatusServiceUnavailable)

	got := newTestClient(srv, 100, 1).FindCategory(context.Background(), "Pump Swap", "pump-swap")
	assert.Equal(t, "pump-swap", got)
}
