package progress

import "slices"

// Badge is an achievement unlocked once points reach Threshold.
type Badge struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Threshold   int    `json:"threshold"`
}

// DefaultCatalog is the badge catalog in authored order.
var DefaultCatalog = []Badge{
	{ID: "beginner", Name: "Stats Novice", Description: "Completed your first topic!", Threshold: 50},
	{ID: "adept", Name: "Stats Adept", Description: "Mastered 3 topics!", Threshold: 200},
	{ID: "expert", Name: "Stats Expert", Description: "Reached 500 points!", Threshold: 500},
}

// newlyEligible scans the whole catalog and returns every badge with
// threshold <= points that is not yet earned, in catalog order.
func newlyEligible(catalog []Badge, points int, earned []string) []Badge {
	var out []Badge
	for _, b := range catalog {
		if b.Threshold <= points && !slices.Contains(earned, b.ID) {
			out = append(out, b)
		}
	}
	return out
}

// nextBadge returns the first unearned badge in catalog order, or nil.
func nextBadge(catalog []Badge, earned []string) *Badge {
	for _, b := range catalog {
		if !slices.Contains(earned, b.ID) {
			next := b
			return &next
		}
	}
	return nil
}
