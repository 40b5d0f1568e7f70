package services

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/custodia-labs/dkansync/internal/core/domain"
	"github.com/custodia-labs/dkansync/internal/core/ports/driven"
	"github.com/custodia-labs/dkansync/internal/logger"
)

// UnknownName is shown for term ids missing from their vocabulary.
const UnknownName = "?"

// VocabularyCache holds vocabularies fetched during one run.
// Each vocabulary is fetched at most once until Clear is called.
type VocabularyCache struct {
	mu      sync.Mutex
	fetcher driven.VocabularyFetcher
	terms   map[string]map[string]string
}

// NewVocabularyCache creates an empty cache. fetcher may be nil when
// every vocabulary is seeded.
func NewVocabularyCache(fetcher driven.VocabularyFetcher) *VocabularyCache {
	return &VocabularyCache{
		fetcher: fetcher,
		terms:   make(map[string]map[string]string),
	}
}

// Terms returns id → name for a vocabulary, fetching it on first use.
func (c *VocabularyCache) Terms(ctx context.Context, name string) (map[string]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if terms, ok := c.terms[name]; ok {
		return terms, nil
	}
	if c.fetcher == nil {
		return nil, fmt.Errorf("vocabulary %q: %w", name, domain.ErrNotFound)
	}

	logger.Debug("fetching vocabulary %q", name)
	terms, err := c.fetcher.FetchVocabulary(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("fetch vocabulary %q: %w", name, err)
	}
	if terms == nil {
		terms = make(map[string]string)
	}
	c.terms[name] = terms
	return terms, nil
}

// Seed installs a vocabulary without fetching it.
func (c *VocabularyCache) Seed(name string, terms map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.terms[name] = terms
}

// Clear drops every cached vocabulary.
func (c *VocabularyCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.terms = make(map[string]map[string]string)
}

// ReferenceResolver converts between display names and vocabulary ids.
type ReferenceResolver struct {
	vocab *VocabularyCache
}

// NewReferenceResolver creates a resolver over a vocabulary cache.
func NewReferenceResolver(vocab *VocabularyCache) *ReferenceResolver {
	return &ReferenceResolver{vocab: vocab}
}

// ResolveToIDs maps references to ids. An explicit id is trusted without
// a lookup; names match case-insensitively. Unmatched names are dropped
// and returned so callers can report them.
func (r *ReferenceResolver) ResolveToIDs(
	ctx context.Context,
	vocabulary string,
	refs []domain.Reference,
) (ids, dropped []string, err error) {
	var index map[string]string
	for _, ref := range refs {
		if ref.ID != "" {
			ids = append(ids, ref.ID)
			continue
		}
		if index == nil {
			terms, err := r.vocab.Terms(ctx, vocabulary)
			if err != nil {
				return nil, nil, err
			}
			index = nameIndex(terms)
		}
		id, ok := index[strings.ToLower(strings.TrimSpace(ref.Name))]
		if !ok {
			logger.Warn("vocabulary %q has no term %q, dropped", vocabulary, ref.Name)
			dropped = append(dropped, ref.Name)
			continue
		}
		ids = append(ids, id)
	}
	return ids, dropped, nil
}

// ResolveIDsToNames maps ids to references. Unknown ids get UnknownName.
func (r *ReferenceResolver) ResolveIDsToNames(ctx context.Context, vocabulary string, ids []string) ([]domain.Reference, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	terms, err := r.vocab.Terms(ctx, vocabulary)
	if err != nil {
		return nil, err
	}
	refs := make([]domain.Reference, 0, len(ids))
	for _, id := range ids {
		name, ok := terms[id]
		if !ok {
			logger.Debug("vocabulary %q has no id %s", vocabulary, id)
			name = UnknownName
		}
		refs = append(refs, domain.Reference{Name: name, ID: id})
	}
	return refs, nil
}

// LookupFormat returns the format term id for a format name.
func (r *ReferenceResolver) LookupFormat(ctx context.Context, format string) (string, bool, error) {
	terms, err := r.vocab.Terms(ctx, domain.VocabularyFormat)
	if err != nil {
		return "", false, err
	}
	id, ok := nameIndex(terms)[strings.ToLower(strings.TrimSpace(format))]
	return id, ok, nil
}

// nameIndex builds lower-cased name → id. When names repeat, the lowest
// id wins so the result does not depend on map order.
func nameIndex(terms map[string]string) map[string]string {
	ids := make([]string, 0, len(terms))
	for id := range terms {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return lessID(ids[i], ids[j]) })

	index := make(map[string]string, len(terms))
	for _, id := range ids {
		key := strings.ToLower(strings.TrimSpace(terms[id]))
		if _, exists := index[key]; !exists {
			index[key] = id
		}
	}
	return index
}

func lessID(a, b string) bool {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	if errA == nil && errB == nil {
		return na < nb
	}
	return a < b
}
