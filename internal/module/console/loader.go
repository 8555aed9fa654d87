package console

import (
	"context"
	"fmt"

	"github.com/simp-lee/layover/internal/route"
)

// ManifestSource supplies the addon manifest the table is built from.
type ManifestSource interface {
	Manifest(ctx context.Context) (*route.Addons, error)
}

// LoadTable builds the sealed route table from the source's manifest.
// A nil source builds the table without addons.
func LoadTable(ctx context.Context, src ManifestSource) (*route.Table, error) {
	if src == nil {
		return route.NewTable(nil), nil
	}
	addons, err := src.Manifest(ctx)
	if err != nil {
		return nil, fmt.Errorf("load addon manifest: %w", err)
	}
	return route.NewTable(addons), nil
}

// SourceCounts returns the number of rules per source.
func SourceCounts(table *route.Table) map[string]int {
	counts := make(map[string]int)
	for _, r := range table.Rules() {
		counts[r.Source]++
	}
	return counts
}
