package api

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/weekorder/weekorder/ordering"
)

func (a *API) storeProducts(w http.ResponseWriter, r *http.Request) error {
	grouped, err := a.ordering.VisibleProducts(r.Context(), principal(r))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, grouped)
	return nil
}

type itemsRequest struct {
	Items json.RawMessage `json:"items"`
}

// requestedItems decodes the items array. A missing or non-array value yields
// no items; elements that are not objects yield empty entries that the order
// engine drops.
func requestedItems(raw json.RawMessage) []ordering.RequestedItem {
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil
	}
	items := make([]ordering.RequestedItem, len(elems))
	for i, elem := range elems {
		_ = json.Unmarshal(elem, &items[i])
	}
	return items
}

func (a *API) submitOrder(w http.ResponseWriter, r *http.Request) error {
	var in itemsRequest
	if err := decodeJSON(r, &in); err != nil {
		return err
	}
	order, err := a.ordering.SubmitOrder(r.Context(), principal(r), requestedItems(in.Items))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, order)
	return nil
}

func (a *API) listOrders(w http.ResponseWriter, r *http.Request) error {
	orders, err := a.ordering.ListOrders(r.Context(), principal(r))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, orders)
	return nil
}

func (a *API) getOrder(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r, "id", "Order")
	if err != nil {
		return err
	}
	order, err := a.ordering.GetOrder(r.Context(), principal(r), id)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, order)
	return nil
}

type availabilityItem struct {
	ProductID   json.RawMessage `json:"productId"`
	IsAvailable json.RawMessage `json:"isAvailable"`
}

// truthy treats false, null, 0, "" and a missing value as false.
func truthy(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	switch string(raw) {
	case "", "false", "null", "0", `""`:
		return false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f != 0
	}
	return true
}

func (a *API) listAvailability(w http.ResponseWriter, r *http.Request) error {
	storeID, err := pathID(r, "id", "Store")
	if err != nil {
		return err
	}
	rows, err := a.ordering.ListAvailability(r.Context(), storeID)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, rows)
	return nil
}

func (a *API) setAvailability(w http.ResponseWriter, r *http.Request) error {
	storeID, err := pathID(r, "id", "Store")
	if err != nil {
		return err
	}

	var in itemsRequest
	if err := decodeJSON(r, &in); err != nil {
		return err
	}
	var items []availabilityItem
	if len(bytes.TrimSpace(in.Items)) == 0 || in.Items[0] != '[' {
		return badRequest("api.setAvailability", "items[] is required.")
	}
	if err := json.Unmarshal(in.Items, &items); err != nil {
		return badRequest("api.setAvailability", "Every item needs a positive productId.")
	}

	entries := make([]ordering.AvailabilityEntry, 0, len(items))
	for _, item := range items {
		productID, _ := ordering.ParseID(item.ProductID)
		entries = append(entries, ordering.AvailabilityEntry{ProductID: productID, IsAvailable: truthy(item.IsAvailable)})
	}

	rows, err := a.ordering.SetAvailability(r.Context(), storeID, entries)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, rows)
	return nil
}
