package controllers

import (
	"context"

	"minima/minima/services/search"
	"minima/minima/utils/types"
)

type SearchController struct {
	searcher *search.Searcher
}

func NewSearchController(searcher *search.Searcher) *SearchController {
	return &SearchController{searcher: searcher}
}

func (c *SearchController) Query(ctx context.Context, query string, maxResults int) ([]types.SearchResult, error) {
	return c.searcher.QueryWeb(ctx, query, maxResults)
}
