package model

// Category is a no-receipt classification such as bank fees or interest.
// It carries the same pattern and negative-signal shape as Partner, plus
// the partners habitually assigned to it.
type Category struct {
	ID                string
	Name              string
	Description       string
	LearnedPatterns   []LearnedPattern
	ManualRemovals    []ManualRemoval
	MatchedPartnerIDs []string
}

// HasPartner reports whether the partner was previously mapped to this
// category.
func (c *Category) HasPartner(partnerID string) bool {
	for _, id := range c.MatchedPartnerIDs {
		if id == partnerID {
			return true
		}
	}
	return false
}

// RecordRemoval appends a manual removal, evicting the oldest entry once
// the ring buffer reaches ManualRemovalCap.
func (c *Category) RecordRemoval(r ManualRemoval) {
	c.ManualRemovals = append(c.ManualRemovals, r)
	if len(c.ManualRemovals) > ManualRemovalCap {
		c.ManualRemovals = c.ManualRemovals[len(c.ManualRemovals)-ManualRemovalCap:]
	}
}
