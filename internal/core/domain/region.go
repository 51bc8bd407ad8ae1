package domain

import "strings"

// Region is a named area with an associated bounding box. The registry of
// known regions is owned by configuration; built-in defaults live there too.
type Region struct {
	Name   string `json:"name"`
	Bounds Bounds `json:"bounds"`
}

// RegionRegistry resolves region names to bounding boxes, case-insensitively.
type RegionRegistry map[string]Bounds

// Resolve looks up a region by name. The second return value is false when
// the region is unknown.
func (r RegionRegistry) Resolve(name string) (Region, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	for n, b := range r {
		if strings.ToLower(n) == key {
			return Region{Name: n, Bounds: b}, true
		}
	}
	return Region{}, false
}

// Names returns the registered region names in no particular order.
func (r RegionRegistry) Names() []string {
	names := make([]string, 0, len(r))
	for n := range r {
		names = append(names, n)
	}
	return names
}
