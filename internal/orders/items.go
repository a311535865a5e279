package orders

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/joao-fontenele/partsmarket/internal/domain"
)

type ItemRequest struct {
	PartID   string `json:"part_id" validate:"required,uuid"`
	Quantity int    `json:"quantity" validate:"gte=1,lte=2147483647"`
}

// normalizeItems validates the requested lines, merges repeated parts and
// sorts by part id so row locks are always taken in the same order.
func normalizeItems(items []ItemRequest) ([]ItemRequest, error) {
	if len(items) == 0 {
		return nil, domain.Invalid("items", "must contain at least one item")
	}

	merged := make(map[string]int, len(items))
	for _, item := range items {
		id, err := uuid.Parse(item.PartID)
		if err != nil {
			return nil, domain.Invalid("part_id", "must be a UUID")
		}
		if item.Quantity <= 0 {
			return nil, domain.Invalid("quantity", "must be positive")
		}
		// Compare before adding so the running sum cannot wrap.
		if item.Quantity > domain.MaxQuantity-merged[id.String()] {
			return nil, domain.Invalid("quantity", fmt.Sprintf("must total at most %d per part", domain.MaxQuantity))
		}
		merged[id.String()] += item.Quantity
	}

	out := make([]ItemRequest, 0, len(merged))
	for id, qty := range merged {
		out = append(out, ItemRequest{PartID: id, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PartID < out[j].PartID })
	return out, nil
}

func partIDs(items []ItemRequest) []string {
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.PartID
	}
	return ids
}
