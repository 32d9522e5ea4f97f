package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/unitscope/unitscope/pkg/locator"
)

func main() {
	// Usage: go run main.go -lat 40.875 -lon -111.891 -nearest 25

	latFlag := flag.Float64("lat", 40.875, "Latitude of the query point")
	lonFlag := flag.Float64("lon", -111.891, "Longitude of the query point")
	nearestFlag := flag.Int("nearest", 25, "How many nearby units to fetch")
	layerFlag := flag.String("layer", "WARD", "Locator layer to query")

	// Parse the command-line flags
	flag.Parse()

	// Empty endpoint and referer fall back to the production locator
	client := locator.NewClient("", "")

	units, err := client.Identify(locator.Query{
		Layer:   *layerFlag,
		Lat:     *latFlag,
		Lon:     *lonFlag,
		Nearest: *nearestFlag,
	})
	if err != nil {
		log.Fatal(err)
	}

	for _, u := range units {
		fmt.Println(u.ID, u.TypeDisplay, u.Name)
	}
}
