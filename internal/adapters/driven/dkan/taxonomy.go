package dkan

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/custodia-labs/dkansync/internal/core/domain"
	"github.com/custodia-labs/dkansync/internal/logger"
)

// termPattern matches the term links of a taxonomy overview page.
var termPattern = regexp.MustCompile(`id="edit-tid(\d+)0-view">([^<]+)</a><`)

// groupPageSize is the page size of the node index.
const groupPageSize = 100

// FetchVocabulary loads a vocabulary as id → display name. Group names
// come from the group nodes, everything else from the taxonomy admin page.
func (c *Client) FetchVocabulary(ctx context.Context, name string) (map[string]string, error) {
	if name == domain.VocabularyGroups {
		return c.fetchGroups(ctx)
	}
	if c.cfg.Username != "" {
		if err := c.ensureSession(ctx); err != nil {
			return nil, err
		}
	}

	body, err := c.get(ctx, c.endpoint(pathTaxonomy+url.PathEscape(name), nil))
	if err != nil {
		return nil, fmt.Errorf("vocabulary %s: %w", name, err)
	}
	terms := parseTerms(string(body))
	if len(terms) == 0 {
		logger.Warn("Vocabulary %s has no terms; is the account allowed to see %s?", name, pathTaxonomy+name)
	}
	logger.Debug("Vocabulary %s: %d terms", name, len(terms))
	return terms, nil
}

func parseTerms(page string) map[string]string {
	terms := make(map[string]string)
	for _, m := range termPattern.FindAllStringSubmatch(page, -1) {
		terms[m[1]] = html.UnescapeString(strings.TrimSpace(m[2]))
	}
	return terms
}

func (c *Client) fetchGroups(ctx context.Context) (map[string]string, error) {
	groups := make(map[string]string)
	for page := 0; ; page++ {
		nodes, err := c.listNodes(ctx, url.Values{
			"parameters[type]": {"group"},
			"pagesize":         {strconv.Itoa(groupPageSize)},
			"page":             {strconv.Itoa(page)},
		})
		if err != nil {
			return nil, fmt.Errorf("list groups: %w", err)
		}
		for _, node := range nodes {
			if nid := domain.ScalarString(node["nid"]); nid != "" {
				groups[nid] = domain.ScalarString(node["title"])
			}
		}
		if len(nodes) < groupPageSize {
			return groups, nil
		}
	}
}
