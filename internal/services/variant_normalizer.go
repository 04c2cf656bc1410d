package services

// ExtraSelection pairs a resolved extra product with the requested quantity.
type ExtraSelection struct {
	Product  Product
	Quantity int
}

// NormalizeVariant upgrades the selected variant when structural modifier
// extras are requested. Adding a patty to a single burger converts the line
// into a double and absorbs the patty extra.
//
// The function is pure and idempotent. It returns the product to use, the
// surviving extras and whether a conversion happened.
func NormalizeVariant(selected Product, extras []ExtraSelection, siblings []Product, structuralIDs map[string]bool) (Product, []ExtraSelection, bool, error) {
	if selected.VariantGroupID == nil {
		return selected, extras, false, nil
	}

	structuralUnits := 0
	for _, extra := range extras {
		if structuralIDs[extra.Product.ID] {
			structuralUnits += extra.Quantity
		}
	}
	if structuralUnits == 0 {
		return selected, extras, false, nil
	}

	if selected.StructuralCount == nil {
		return Product{}, nil, false, StructuralExtraError{ProductName: selected.Name}
	}

	target := *selected.StructuralCount + structuralUnits

	var chosen *Product
	for i := range siblings {
		sibling := &siblings[i]
		if sibling.StructuralCount == nil {
			continue
		}
		switch {
		case *sibling.StructuralCount == target:
			chosen = sibling
		case chosen == nil || (*chosen.StructuralCount != target && *sibling.StructuralCount > *chosen.StructuralCount):
			chosen = sibling
		}
		if chosen != nil && *chosen.StructuralCount == target {
			break
		}
	}

	if chosen == nil {
		return Product{}, nil, false, StructuralExtraError{ProductName: selected.Name}
	}

	absorbed := *chosen.StructuralCount - *selected.StructuralCount
	if absorbed <= 0 {
		// The selected variant is already the largest; the structural extras
		// stay attached as plain extras.
		return selected, extras, false, nil
	}

	remaining, err := consumeStructuralExtras(extras, structuralIDs, absorbed, selected.Name)
	if err != nil {
		return Product{}, nil, false, err
	}

	return *chosen, remaining, chosen.ID != selected.ID, nil
}

// consumeStructuralExtras removes the first absorbed structural units from
// the request, preserving non-structural extras and any leftover structural
// ones.
func consumeStructuralExtras(extras []ExtraSelection, structuralIDs map[string]bool, absorbed int, productName string) ([]ExtraSelection, error) {
	remaining := make([]ExtraSelection, 0, len(extras))
	for _, extra := range extras {
		if absorbed == 0 || !structuralIDs[extra.Product.ID] {
			remaining = append(remaining, extra)
			continue
		}
		if extra.Quantity > absorbed {
			extra.Quantity -= absorbed
			absorbed = 0
			remaining = append(remaining, extra)
			continue
		}
		absorbed -= extra.Quantity
	}
	if absorbed > 0 {
		return nil, StructuralExtraError{ProductName: productName}
	}
	return remaining, nil
}
