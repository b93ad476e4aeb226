package cart

// MergeSameSKUs folds repeated product SKUs into their first occurrence so the
// quote carries one line per SKU. Quantities and totals are summed; the first
// line keeps its identity and unit price.
func MergeSameSKUs(c *Cart) {
	first := map[string]*LineItem{}
	kept := c.LineItems[:0]
	for _, li := range c.LineItems {
		sku := li.SKU()
		if li.Type != TypeProduct || sku == "" {
			kept = append(kept, li)
			continue
		}
		head, ok := first[sku]
		if !ok {
			first[sku] = li
			kept = append(kept, li)
			continue
		}
		head.Quantity += li.Quantity
		if head.Price != nil {
			merged := head.Price.Clone()
			merged.TotalPrice = merged.TotalPrice.Add(li.TotalPrice())
			merged.Quantity = head.Quantity
			head.Price = &merged
		}
	}
	for i := len(kept); i < len(c.LineItems); i++ {
		c.LineItems[i] = nil
	}
	c.LineItems = kept
}
