package ordering

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// maxQuantity keeps quantities within a 32-bit integer column.
const maxQuantity = math.MaxInt32

// RequestedItem is an order line as sent by a client. Both fields are kept raw:
// numbers and numeric strings are accepted, everything else is dropped.
type RequestedItem struct {
	ProductID json.RawMessage `json:"productId"`
	Quantity  json.RawMessage `json:"quantity"`
}

// LineItem is a validated order line.
type LineItem struct {
	ProductID uint
	Quantity  int
}

// ParseRequestedItems keeps the entries whose product id and quantity are both
// positive integers and silently discards the rest. Input order is preserved.
func ParseRequestedItems(items []RequestedItem) []LineItem {
	out := make([]LineItem, 0, len(items))
	for _, item := range items {
		productID, ok := positiveInt(item.ProductID)
		if !ok {
			continue
		}
		quantity, ok := positiveInt(item.Quantity)
		if !ok || quantity > maxQuantity {
			continue
		}
		out = append(out, LineItem{ProductID: uint(productID), Quantity: int(quantity)})
	}
	return out
}

// positiveInt accepts a JSON number or a JSON string holding a number, and
// requires an integral value greater than zero.
func positiveInt(raw json.RawMessage) (int64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0, false
	}

	var text string
	switch raw[0] {
	case '"':
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, false
		}
		text = strings.TrimSpace(text)
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		text = string(raw)
	default:
		return 0, false
	}

	if n, err := strconv.ParseInt(text, 10, 64); err == nil {
		return n, n > 0
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) || f != math.Trunc(f) || f <= 0 || f > math.MaxInt64/2 {
		return 0, false
	}
	return int64(f), true
}

// distinctProductIDs returns each product id once, in first-seen order.
func distinctProductIDs(items []LineItem) []uint {
	seen := make(map[uint]struct{}, len(items))
	ids := make([]uint, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	return ids
}

// ParseID reads a positive integer id from a JSON number or numeric string.
func ParseID(raw json.RawMessage) (uint, bool) {
	n, ok := positiveInt(raw)
	if !ok || n > math.MaxUint32 {
		return 0, false
	}
	return uint(n), true
}
