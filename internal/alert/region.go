package alert

import (
	"sort"
	"strings"
)

// RegionAll is the region key that imposes no area restriction.
const RegionAll = "ALL"

// Region is a named grouping of US state area codes used to scope feed
// queries. Center and Zoom describe the default map view for the region.
type Region struct {
	Key       string     `json:"key"`
	Name      string     `json:"name"`
	Center    [2]float64 `json:"center"`
	Zoom      int        `json:"zoom"`
	AreaCodes []string   `json:"areaCodes"`
}

var regions = map[string]Region{
	RegionAll:   {Key: RegionAll, Name: "All USA", Center: [2]float64{39.8283, -98.5795}, Zoom: 4},
	"NORTHEAST": {Key: "NORTHEAST", Name: "Northeast", Center: [2]float64{42.5, -73.5}, Zoom: 6, AreaCodes: []string{"ME", "VT", "NH", "MA", "RI", "CT", "NY", "PA", "NJ", "DE", "MD", "DC"}},
	"SOUTHEAST": {Key: "SOUTHEAST", Name: "Southeast", Center: [2]float64{34.0, -85.0}, Zoom: 6, AreaCodes: []string{"WV", "VA", "KY", "TN", "NC", "SC", "GA", "FL", "AL", "MS", "AR", "LA"}},
	"MIDWEST":   {Key: "MIDWEST", Name: "Midwest", Center: [2]float64{41.5, -93.0}, Zoom: 5, AreaCodes: []string{"OH", "MI", "IN", "IL", "WI", "MN", "IA", "MO", "ND", "SD", "NE", "KS"}},
	"SOUTHWEST": {Key: "SOUTHWEST", Name: "Southwest", Center: [2]float64{34.5, -106.0}, Zoom: 6, AreaCodes: []string{"OK", "TX", "NM", "AZ", "CO", "UT"}},
	"WEST":      {Key: "WEST", Name: "West (CA, NV, HI)", Center: [2]float64{37.0, -119.0}, Zoom: 5, AreaCodes: []string{"CA", "NV", "HI"}},
	"NORTHWEST": {Key: "NORTHWEST", Name: "Pacific Northwest", Center: [2]float64{45.5, -120.0}, Zoom: 6, AreaCodes: []string{"OR", "WA", "ID", "MT", "WY"}},
	"ALASKA":    {Key: "ALASKA", Name: "Alaska", Center: [2]float64{64.0, -152.0}, Zoom: 4, AreaCodes: []string{"AK"}},
}

// regionOrder is the display order, ALL first.
var regionOrder = []string{RegionAll, "NORTHEAST", "SOUTHEAST", "MIDWEST", "SOUTHWEST", "WEST", "NORTHWEST", "ALASKA"}

// LookupRegion returns the region for key. Keys are case-insensitive.
func LookupRegion(key string) (Region, bool) {
	r, ok := regions[strings.ToUpper(strings.TrimSpace(key))]
	if !ok {
		return Region{}, false
	}
	return r.clone(), true
}

// Regions returns every configured region in display order.
func Regions() []Region {
	out := make([]Region, 0, len(regionOrder))
	for _, k := range regionOrder {
		out = append(out, regions[k].clone())
	}
	return out
}

// RegionKeys returns the configured region keys sorted alphabetically.
func RegionKeys() []string {
	keys := make([]string, 0, len(regions))
	for k := range regions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Unrestricted reports whether queries for this region carry no area filter.
func (r Region) Unrestricted() bool {
	return r.Key == RegionAll || len(r.AreaCodes) == 0
}

func (r Region) clone() Region {
	if r.AreaCodes != nil {
		codes := make([]string, len(r.AreaCodes))
		copy(codes, r.AreaCodes)
		r.AreaCodes = codes
	}
	return r
}
