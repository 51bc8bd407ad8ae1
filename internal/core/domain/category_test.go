package domain_test

import (
	"testing"

	"github.com/Auphere/places/internal/core/domain"
)

func TestParseCategory(t *testing.T) {
	if c, ok := domain.ParseCategory(" Restaurant "); !ok || c != domain.CategoryRestaurant {
		t.Errorf("expected restaurant, got %q ok=%v", c, ok)
	}
	if _, ok := domain.ParseCategory("petting_zoo"); ok {
		t.Error("unknown category should not parse")
	}
}

func TestPrimaryCategoryForTypes(t *testing.T) {
	cases := []struct {
		types []string
		want  domain.Category
	}{
		// restaurant outranks bar regardless of tag order
		{[]string{"bar", "restaurant", "point_of_interest"}, domain.CategoryRestaurant},
		{[]string{"establishment", "night_club"}, domain.CategoryNightclub},
		{[]string{"bakery"}, domain.CategoryCafe},
		{[]string{"meal_takeaway", "store"}, domain.CategoryRestaurant},
		{[]string{"point_of_interest", "establishment"}, domain.CategoryOther},
		{nil, domain.CategoryOther},
	}
	for _, tc := range cases {
		if got := domain.PrimaryCategoryForTypes(tc.types); got != tc.want {
			t.Errorf("PrimaryCategoryForTypes(%v) = %s, want %s", tc.types, got, tc.want)
		}
	}
}

func TestCategorySetForTypes(t *testing.T) {
	set := domain.CategorySetForTypes([]string{"restaurant", "bar", "meal_takeaway", "point_of_interest"})
	want := []domain.Category{domain.CategoryRestaurant, domain.CategoryBar}
	if len(set) != len(want) {
		t.Fatalf("expected %v, got %v", want, set)
	}
	for i := range want {
		if set[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, set)
		}
	}

	// Generic-only tag lists fall through to other.
	fallback := domain.CategorySetForTypes([]string{"establishment"})
	if len(fallback) != 1 || fallback[0] != domain.CategoryOther {
		t.Errorf("expected [other], got %v", fallback)
	}
}

func TestCuisinesFor(t *testing.T) {
	// Type tag and name keyword pointing at the same cuisine dedupe.
	cuisines := domain.CuisinesFor([]string{"italian_restaurant"}, "Pizzeria Napoli")
	if len(cuisines) != 1 || cuisines[0] != domain.CuisineItalian {
		t.Errorf("expected [italian], got %v", cuisines)
	}

	cuisines = domain.CuisinesFor(nil, "Casa de Tapas y Paella")
	if len(cuisines) != 1 || cuisines[0] != domain.CuisineSpanish {
		t.Errorf("expected [spanish], got %v", cuisines)
	}

	if got := domain.CuisinesFor([]string{"restaurant"}, "The Corner"); got != nil {
		t.Errorf("expected no cuisines, got %v", got)
	}
}
