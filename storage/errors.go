package storage

import (
	"fmt"

	"github.com/weekorder/weekorder/core"
)

// Client-facing messages shared by every backend
const (
	msgCategoryExists  = "Category already exists."
	msgProductExists   = "This product name/size combination already exists."
	msgEmailInUse      = "Email is already in use."
	msgStoreInUse      = "Cannot delete store with users or orders."
	msgCategoryInUse   = "Cannot delete category with products."
	msgProductInUse    = "Cannot delete product used in orders. Set it inactive instead."
	msgDuplicateWeekly = "This store has already submitted an order this week."
)

func notFound(entity string, id interface{}) error {
	return &core.Error{
		Op:      "storage.Find" + entity,
		Kind:    entity,
		ID:      fmt.Sprint(id),
		Message: entity + " not found.",
		Err:     core.ErrNotFound,
	}
}

func conflict(op, msg string) error {
	return &core.Error{Op: op, Kind: "storage", Message: msg, Err: core.ErrConflictingUniqueValue}
}

func inUse(op string, id uint, msg string) error {
	return &core.Error{Op: op, Kind: "storage", ID: fmt.Sprint(id), Message: msg, Err: core.ErrForeignKeyInUse}
}

func duplicateWeek(storeID uint, week string) error {
	return &core.Error{
		Op:      "storage.CreateOrder",
		Kind:    "order",
		ID:      fmt.Sprintf("%d/%s", storeID, week),
		Message: msgDuplicateWeekly,
		Err:     core.ErrDuplicateWeeklyOrder,
	}
}

func sizeKey(size *string) string {
	if size == nil {
		return ""
	}
	return *size
}
