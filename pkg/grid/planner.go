package grid

// Plan expands regions into the ordered cell list for one harvest run: per
// region its grid centroids in row-major order then its pinned cells, and
// after all regions one global cell per rare layer. Plan is a pure function
// of its inputs; the same configuration always yields the same list.
func Plan(regions []Region, rare RarePlan) []Cell {
	var cells []Cell

	for _, r := range regions {
		// A region with zero rows or columns contributes no grid cells
		// but keeps its pinned coordinates.
		if r.Rows > 0 && r.Columns > 0 {
			latStep := (r.MaxLat - r.MinLat) / float64(r.Rows)
			lonStep := (r.MaxLon - r.MinLon) / float64(r.Columns)
			for i := 0; i < r.Rows; i++ {
				for j := 0; j < r.Columns; j++ {
					cells = append(cells, Cell{
						Lat:        r.MinLat + (float64(i)+0.5)*latStep,
						Lon:        r.MinLon + (float64(j)+0.5)*lonStep,
						Cap:        r.Cap,
						RegionName: r.Name,
					})
				}
			}
		}

		for _, p := range r.Pinned {
			pcap := p.Cap
			if pcap == 0 {
				pcap = r.Cap
			}
			cells = append(cells, Cell{
				Lat:        p.Lat,
				Lon:        p.Lon,
				Cap:        pcap,
				RegionName: r.Name,
				City:       p.City,
				Pinned:     true,
			})
		}
	}

	for _, layer := range rare.Layers {
		cells = append(cells, Cell{
			Cap:        rare.Cap,
			RegionName: GlobalRegionName,
			Layer:      layer,
		})
	}

	return cells
}

// GridCellCount reports how many grid cells a region contributes, excluding
// its pinned coordinates.
func GridCellCount(r Region) int {
	if r.Rows <= 0 || r.Columns <= 0 {
		return 0
	}
	return r.Rows * r.Columns
}
