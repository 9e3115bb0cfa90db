package geckoterminal

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"
)

// Category is an entry of the provider's category catalogue.
type Category struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Attributes struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	} `json:"attributes"`
}

// Name returns the display name of the category.
func (c Category) Name() string {
	return c.Attributes.Name
}

// ListCategories returns the first page of the category catalogue.
func (c *Client) ListCategories(ctx context.Context) ([]Category, error) {
	var body listResponse[Category]
	if err := c.getJSON(ctx, c.baseURL+"/categories", &body); err != nil {
		return nil, err
	}
	return body.Data, nil
}

// FindCategory returns the id of the first category whose name contains
// name, case-insensitively. Any fault, or no match, yields fallback.
func (c *Client) FindCategory(ctx context.Context, name, fallback string) string {
	categories, err := c.ListCategories(ctx)
	if err != nil {
		log.Warn().Err(err).Str("category_name", name).Str("fallback", fallback).
			Msg("Category lookup failed, using fallback id")
		return fallback
	}

	if cat, ok := MatchCategory(categories, name); ok {
		log.Debug().Str("category_name", name).Str("category", cat.ID).Msg("Category resolved")
		return cat.ID
	}

	log.Warn().Str("category_name", name).Str("fallback", fallback).
		Msg("Category not found, using fallback id")
	return fallback
}

// MatchCategory returns the first category whose name contains name,
// case-insensitively.
func MatchCategory(categories []Category, name string) (Category, bool) {
	needle := strings.ToLower(name)
	for _, cat := range categories {
		if strings.Contains(strings.ToLower(cat.Name()), needle) {
			return cat, true
		}
	}
	return Category{}, false
}
