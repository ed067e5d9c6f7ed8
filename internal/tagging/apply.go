package tagging

import (
	"fmt"

	"github.com/tmnance/insightarium/internal/store"
)

// Apply persists scored matches as auto-tagged associations. Merge rules
// live in the store: manual associations are never downgraded and auto
// confidences are only ever raised.
func Apply(st store.ItemStore, itemID string, matches []Match) error {
	for _, m := range matches {
		if err := st.MergeAutoAssociation(itemID, m.Slug, m.Name, m.Confidence); err != nil {
			return fmt.Errorf("apply tag %s: %w", m.Slug, err)
		}
	}
	return nil
}
