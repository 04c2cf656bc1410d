package services

import (
	"errors"
	"testing"

	domain "github.com/comandas/api/internal/domain"
)

func variantProduct(id string, count int, group string) domain.Product {
	return domain.Product{
		ID:              id,
		Name:            id,
		VariantGroupID:  &group,
		StructuralCount: &count,
	}
}

func burgerFamily() (simple, double, triple domain.Product) {
	return variantProduct("simple", 1, "burger"),
		variantProduct("doble", 2, "burger"),
		variantProduct("triple", 3, "burger")
}

func TestNormalizeVariantUpgradesToExactSibling(t *testing.T) {
	simple, double, triple := burgerFamily()
	patty := domain.Product{ID: "medallon", Name: "Medallón extra", IsExtra: true, IsStructuralModifier: true}

	got, extras, converted, err := NormalizeVariant(
		simple,
		[]ExtraSelection{{Product: patty, Quantity: 1}},
		[]domain.Product{simple, double, triple},
		map[string]bool{"medallon": true},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !converted {
		t.Fatal("expected a conversion")
	}
	if got.ID != "doble" {
		t.Fatalf("converted to %q, want doble", got.ID)
	}
	if len(extras) != 0 {
		t.Fatalf("extras = %+v, want all absorbed", extras)
	}
}

func TestNormalizeVariantKeepsNonStructuralExtras(t *testing.T) {
	simple, double, triple := burgerFamily()
	patty := domain.Product{ID: "medallon", IsExtra: true, IsStructuralModifier: true}
	bacon := domain.Product{ID: "panceta", IsExtra: true}

	got, extras, converted, err := NormalizeVariant(
		simple,
		[]ExtraSelection{
			{Product: bacon, Quantity: 1},
			{Product: patty, Quantity: 2},
		},
		[]domain.Product{simple, double, triple},
		map[string]bool{"medallon": true},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !converted || got.ID != "triple" {
		t.Fatalf("converted=%v to %q, want triple", converted, got.ID)
	}
	if len(extras) != 1 || extras[0].Product.ID != "panceta" {
		t.Fatalf("extras = %+v, want panceta only", extras)
	}
}

func TestNormalizeVariantFallsBackToLargestSibling(t *testing.T) {
	simple, double, _ := burgerFamily()
	patty := domain.Product{ID: "medallon", IsExtra: true, IsStructuralModifier: true}

	// Asking for three patties on a simple targets a quadruple that does not
	// exist; the largest sibling absorbs what it can.
	got, extras, converted, err := NormalizeVariant(
		simple,
		[]ExtraSelection{{Product: patty, Quantity: 3}},
		[]domain.Product{simple, double},
		map[string]bool{"medallon": true},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !converted || got.ID != "doble" {
		t.Fatalf("converted=%v to %q, want doble", converted, got.ID)
	}
	if len(extras) != 1 || extras[0].Quantity != 2 {
		t.Fatalf("extras = %+v, want 2 leftover patties", extras)
	}
}

func TestNormalizeVariantIdempotentOnLargest(t *testing.T) {
	simple, double, _ := burgerFamily()
	patty := domain.Product{ID: "medallon", IsExtra: true, IsStructuralModifier: true}

	// The double is already the largest variant; the patty stays attached as a
	// plain extra and nothing converts.
	got, extras, converted, err := NormalizeVariant(
		double,
		[]ExtraSelection{{Product: patty, Quantity: 1}},
		[]domain.Product{simple, double},
		map[string]bool{"medallon": true},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if converted {
		t.Fatal("largest variant should not convert")
	}
	if got.ID != "doble" {
		t.Fatalf("product = %q, want doble", got.ID)
	}
	if len(extras) != 1 || extras[0].Quantity != 1 {
		t.Fatalf("extras = %+v, want the patty kept", extras)
	}
}

func TestNormalizeVariantNoopWithoutStructuralExtras(t *testing.T) {
	simple, double, _ := burgerFamily()
	bacon := domain.Product{ID: "panceta", IsExtra: true}

	got, extras, converted, err := NormalizeVariant(
		simple,
		[]ExtraSelection{{Product: bacon, Quantity: 2}},
		[]domain.Product{simple, double},
		map[string]bool{"medallon": true},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if converted {
		t.Fatal("nothing structural requested, no conversion expected")
	}
	if got.ID != "simple" || len(extras) != 1 {
		t.Fatalf("got %q with extras %+v, want simple with bacon", got.ID, extras)
	}
}

func TestNormalizeVariantNoopWithoutVariantGroup(t *testing.T) {
	plain := domain.Product{ID: "pizza", Name: "Pizza"}
	patty := domain.Product{ID: "medallon", IsExtra: true, IsStructuralModifier: true}

	got, _, converted, err := NormalizeVariant(
		plain,
		[]ExtraSelection{{Product: patty, Quantity: 1}},
		nil,
		map[string]bool{"medallon": true},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if converted || got.ID != "pizza" {
		t.Fatalf("converted=%v product=%q, want untouched pizza", converted, got.ID)
	}
}

func TestNormalizeVariantErrorsWithoutStructuralCount(t *testing.T) {
	group := "burger"
	selected := domain.Product{ID: "rara", Name: "Rara", VariantGroupID: &group}
	patty := domain.Product{ID: "medallon", IsExtra: true, IsStructuralModifier: true}

	_, _, _, err := NormalizeVariant(
		selected,
		[]ExtraSelection{{Product: patty, Quantity: 1}},
		nil,
		map[string]bool{"medallon": true},
	)
	if !errors.Is(err, ErrStructuralExtraNotAllowed) {
		t.Fatalf("error = %v, want ErrStructuralExtraNotAllowed", err)
	}
}

func TestNormalizeVariantErrorsWithoutCountedSiblings(t *testing.T) {
	group := "burger"
	count := 1
	selected := domain.Product{ID: "simple", Name: "Simple", VariantGroupID: &group, StructuralCount: &count}
	uncounted := domain.Product{ID: "otra", VariantGroupID: &group}
	patty := domain.Product{ID: "medallon", IsExtra: true, IsStructuralModifier: true}

	_, _, _, err := NormalizeVariant(
		selected,
		[]ExtraSelection{{Product: patty, Quantity: 1}},
		[]domain.Product{uncounted},
		map[string]bool{"medallon": true},
	)
	if !errors.Is(err, ErrStructuralExtraNotAllowed) {
		t.Fatalf("error = %v, want ErrStructuralExtraNotAllowed", err)
	}
}
