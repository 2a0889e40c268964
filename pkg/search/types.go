// Package search defines the code search result model and the
// consumer-side deduplication of result items.
package search

import (
	"errors"
	"fmt"
)

// ErrMalformedItem indicates a result item lacks a field required to identify it.
var ErrMalformedItem = errors.New("malformed search item")

// PageRequest identifies one page of a search. It is the cache key for the
// page's raw response, so the same query, page size and page number always
// map to the same cache slot.
type PageRequest struct {
	Page    int    `json:"page"`
	PerPage int    `json:"per_page"`
	Query   string `json:"query"`
}

// Response is the decoded body of a code search page.
type Response struct {
	TotalCount        int    `json:"total_count"`
	IncompleteResults bool   `json:"incomplete_results"`
	Items             []Item `json:"items"`
}

// Item is a single code search hit.
type Item struct {
	Name       string     `json:"name"`
	Path       string     `json:"path"`
	SHA        string     `json:"sha"`
	GitURL     string     `json:"git_url"`
	HTMLURL    string     `json:"html_url"`
	Repository Repository `json:"repository"`
}

// Repository is the parent repository of an Item.
type Repository struct {
	FullName string `json:"full_name"`
}

// Identity is the (repository, path) pair used to deduplicate items across pages.
type Identity struct {
	Repository string
	Path       string
}

func (id Identity) String() string {
	return id.Repository + "/" + id.Path
}

// Identity returns the item's identity.
// Returns ErrMalformedItem if the path or the repository name is missing.
func (it Item) Identity() (Identity, error) {
	if it.Path == "" {
		return Identity{}, fmt.Errorf("%w: item missing path", ErrMalformedItem)
	}
	if it.Repository.FullName == "" {
		return Identity{}, fmt.Errorf("%w: item missing repository.full_name", ErrMalformedItem)
	}
	return Identity{Repository: it.Repository.FullName, Path: it.Path}, nil
}
