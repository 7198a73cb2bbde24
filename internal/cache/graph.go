package cache

import (
	"errors"
	"fmt"
	"slices"
)

// Category names a kind of mutation. Every write path in the system maps to one
// category, and the invalidation graph maps each category to the keys holding
// data derived from it.
type Category string

const (
	CategoryTechnician   Category = "technician"
	CategoryCompany      Category = "company"
	CategoryCredential   Category = "credential"
	CategoryBranch       Category = "branch"
	CategoryDocumentType Category = "document-type"
	CategoryAll          Category = "all"
)

// AllCategories lists every mutation category. A graph missing any of them is rejected.
var AllCategories = []Category{
	CategoryTechnician,
	CategoryCompany,
	CategoryCredential,
	CategoryBranch,
	CategoryDocumentType,
	CategoryAll,
}

// ParseCategory validates a category name.
func ParseCategory(v string) (Category, error) {
	c := Category(v)
	if !slices.Contains(AllCategories, c) {
		return "", fmt.Errorf("unknown invalidation category %q", v)
	}
	return c, nil
}

// Graph maps a mutation category to the key patterns it evicts.
type Graph map[Category][]string

// ErrIncompleteGraph is returned when a graph has no entry for some category.
var ErrIncompleteGraph = errors.New("invalidation graph is incomplete")

// DefaultGraph is the static dependency graph between mutations and cached reads.
//
// Technician state feeds the technician collection, branch statistics and the
// per-technician keys; it never feeds the company collection. Company
// requirement lists feed per-technician requirement keys. Credentials belong to
// either entity kind, so they evict both sides.
var DefaultGraph = Graph{
	CategoryTechnician: {KeyTechnicians, KeyBranchStats, PrefixTechnician + "*"},
	CategoryCompany:    {KeyCompanies, PrefixCompany + "*", PrefixTechnician + "*"},
	CategoryCredential: {
		KeyTechnicians, KeyCompanies, KeyBranchStats,
		PrefixTechnician + "*", PrefixCompany + "*",
	},
	CategoryBranch:       {KeyBranchStats, KeyTechnicians},
	CategoryDocumentType: {KeyDocumentTypes, PrefixTechnician + "*", PrefixCompany + "*"},
	CategoryAll:          {matchAll},
}

// Validate checks that every category has at least one pattern.
func (g Graph) Validate() error {
	for _, c := range AllCategories {
		if len(g[c]) == 0 {
			return fmt.Errorf("%w: no entry for %q", ErrIncompleteGraph, c)
		}
	}
	return nil
}
