// Package grid turns region configuration into the list of query cells a
// harvest run will visit. The locator API only answers "the K nearest to a
// coordinate", so coverage comes from sampling a lattice of centroids per
// region, plus hand-pinned points where the lattice is known to under-sample.
package grid

// GlobalRegionName tags the synthetic cells that sample rare layers once at
// (0,0) instead of being gridded.
const GlobalRegionName = "Global"

// Cell is one query point. Grid and pinned cells leave Layer empty, meaning
// the collection's umbrella layer applies; global cells carry the rare layer
// they sample. Cells are immutable once planned.
type Cell struct {
	Lat        float64
	Lon        float64
	Cap        int
	RegionName string
	City       string
	Pinned     bool
	Layer      string
}

// PinnedCell is a hand-placed high-density coordinate inside a region.
// Cap 0 falls back to the region default.
type PinnedCell struct {
	Lat  float64 `mapstructure:"lat" validate:"gte=-90,lte=90"`
	Lon  float64 `mapstructure:"lon" validate:"gte=-180,lte=180"`
	City string  `mapstructure:"city"`
	Cap  int     `mapstructure:"cap" validate:"gte=0"`
}

// Region is a named bounding box subdivided into rows x columns grid cells.
// Pure configuration: a harvest run never mutates it. Longitude ranges may
// run "backwards" across the antimeridian; the planner applies the plain
// step formula either way.
type Region struct {
	Name    string       `mapstructure:"name" validate:"required"`
	MinLat  float64      `mapstructure:"min_lat" validate:"gte=-90,lte=90"`
	MaxLat  float64      `mapstructure:"max_lat" validate:"gte=-90,lte=90,gtefield=MinLat"`
	MinLon  float64      `mapstructure:"min_lon" validate:"gte=-180,lte=180"`
	MaxLon  float64      `mapstructure:"max_lon" validate:"gte=-180,lte=180"`
	Rows    int          `mapstructure:"rows" validate:"gte=0"`
	Columns int          `mapstructure:"columns" validate:"gte=0"`
	Cap     int          `mapstructure:"cap" validate:"gt=0"`
	Pinned  []PinnedCell `mapstructure:"pinned" validate:"dive"`
}

// RarePlan describes sparse layers queried once globally with a large cap
// rather than gridded. An empty plan emits nothing.
type RarePlan struct {
	Layers []string
	Cap    int
}
