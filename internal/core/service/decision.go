package service

// AllInStock accepts an order only when every referenced SKU is reported in
// stock. A SKU missing from availability counts as out of stock.
func AllInStock(skus []string, availability map[string]bool) bool {
	for _, sku := range skus {
		if !availability[sku] {
			return false
		}
	}
	return true
}
