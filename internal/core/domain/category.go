package domain

import "strings"

// Category is a closed enumeration of place categories. Upstream type
// strings are mapped onto it through fixed lookup tables so the mapping
// coverage stays exhaustively checkable.
type Category string

const (
	CategoryRestaurant Category = "restaurant"
	CategoryBar        Category = "bar"
	CategoryCafe       Category = "cafe"
	CategoryNightclub  Category = "nightclub"
	CategoryMuseum     Category = "museum"
	CategoryPark       Category = "park"
	CategoryShopping   Category = "shopping"
	CategoryLodging    Category = "lodging"
	CategoryAttraction Category = "attraction"
	CategoryOther      Category = "other"
)

// Categories lists every valid category.
var Categories = []Category{
	CategoryRestaurant, CategoryBar, CategoryCafe, CategoryNightclub,
	CategoryMuseum, CategoryPark, CategoryShopping, CategoryLodging,
	CategoryAttraction, CategoryOther,
}

// ParseCategory maps a string onto the closed enumeration. The second return
// value is false for unknown values.
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Categories {
		if c == known {
			return c, true
		}
	}
	return "", false
}

// categoryPriority maps upstream type tags onto categories, in priority
// order: the first matching entry wins when deriving the primary category.
var categoryPriority = []struct {
	upstream string
	category Category
}{
	{"restaurant", CategoryRestaurant},
	{"bar", CategoryBar},
	{"night_club", CategoryNightclub},
	{"cafe", CategoryCafe},
	{"museum", CategoryMuseum},
	{"park", CategoryPark},
	{"shopping_mall", CategoryShopping},
	{"lodging", CategoryLodging},
	{"tourist_attraction", CategoryAttraction},
	{"food", CategoryRestaurant},
	{"meal_takeaway", CategoryRestaurant},
	{"meal_delivery", CategoryRestaurant},
	{"bakery", CategoryCafe},
	{"store", CategoryShopping},
}

// PrimaryCategoryForTypes derives the single primary category from an
// upstream type list. Upstream tags not in the table fall through to Other.
func PrimaryCategoryForTypes(types []string) Category {
	for _, entry := range categoryPriority {
		for _, t := range types {
			if t == entry.upstream {
				return entry.category
			}
		}
	}
	return CategoryOther
}

// CategorySetForTypes maps an upstream type list onto the distinct set of
// matching categories, preserving the priority-table order. Generic tags
// (point_of_interest, establishment, geocode) carry no category information
// and are ignored.
func CategorySetForTypes(types []string) []Category {
	seen := make(map[Category]bool)
	var set []Category
	for _, entry := range categoryPriority {
		if seen[entry.category] {
			continue
		}
		for _, t := range types {
			if t == entry.upstream {
				seen[entry.category] = true
				set = append(set, entry.category)
				break
			}
		}
	}
	if len(set) == 0 {
		set = append(set, CategoryOther)
	}
	return set
}

// Cuisine is a closed enumeration of cuisine tags inferred for restaurants
// and cafes.
type Cuisine string

const (
	CuisineItalian       Cuisine = "italian"
	CuisineChinese       Cuisine = "chinese"
	CuisineJapanese      Cuisine = "japanese"
	CuisineMexican       Cuisine = "mexican"
	CuisineIndian        Cuisine = "indian"
	CuisineSpanish       Cuisine = "spanish"
	CuisineFrench        Cuisine = "french"
	CuisineThai          Cuisine = "thai"
	CuisineVietnamese    Cuisine = "vietnamese"
	CuisineKorean        Cuisine = "korean"
	CuisineAmerican      Cuisine = "american"
	CuisineMediterranean Cuisine = "mediterranean"
)

// cuisineByType maps upstream cuisine-qualified type tags onto cuisines.
var cuisineByType = map[string]Cuisine{
	"italian_restaurant":       CuisineItalian,
	"chinese_restaurant":       CuisineChinese,
	"japanese_restaurant":      CuisineJapanese,
	"mexican_restaurant":       CuisineMexican,
	"indian_restaurant":        CuisineIndian,
	"spanish_restaurant":       CuisineSpanish,
	"french_restaurant":        CuisineFrench,
	"thai_restaurant":          CuisineThai,
	"american_restaurant":      CuisineAmerican,
	"mediterranean_restaurant": CuisineMediterranean,
}

// cuisineKeywords maps name substrings onto cuisines, checked in order.
var cuisineKeywords = []struct {
	keyword string
	cuisine Cuisine
}{
	{"italian", CuisineItalian},
	{"pizza", CuisineItalian},
	{"sushi", CuisineJapanese},
	{"ramen", CuisineJapanese},
	{"taco", CuisineMexican},
	{"burrito", CuisineMexican},
	{"curry", CuisineIndian},
	{"tapas", CuisineSpanish},
	{"paella", CuisineSpanish},
	{"burger", CuisineAmerican},
	{"bbq", CuisineAmerican},
	{"thai", CuisineThai},
	{"vietnamese", CuisineVietnamese},
	{"korean", CuisineKorean},
	{"mediterranean", CuisineMediterranean},
	{"chinese", CuisineChinese},
}

// CuisinesFor infers cuisine tags from the upstream type list and the place
// name. Only meaningful for restaurants and cafes; callers gate on the
// primary category.
func CuisinesFor(types []string, name string) []Cuisine {
	seen := make(map[Cuisine]bool)
	var cuisines []Cuisine

	for _, t := range types {
		if c, ok := cuisineByType[t]; ok && !seen[c] {
			seen[c] = true
			cuisines = append(cuisines, c)
		}
	}

	lower := strings.ToLower(name)
	for _, entry := range cuisineKeywords {
		if strings.Contains(lower, entry.keyword) && !seen[entry.cuisine] {
			seen[entry.cuisine] = true
			cuisines = append(cuisines, entry.cuisine)
		}
	}
	return cuisines
}
