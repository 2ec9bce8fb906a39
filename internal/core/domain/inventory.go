package domain

import "errors"

type Inventory struct {
	SkuCode  string
	Quantity int
}

func (i Inventory) InStock() bool {
	return i.Quantity > 0
}

type InventoryAvailability struct {
	SkuCode string
	InStock bool
}

type StockReservationItem struct {
	SkuCode  string
	Quantity int
}

// ErrStockConflict reports that a conditional stock decrement matched no row.
var ErrStockConflict = errors.New("stock conflict")
