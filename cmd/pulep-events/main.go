// Command pulep-events queries the PULEP public events registry and exports
// summary and detail spreadsheets.
//
// Usage:
//
//	pulep-events filters
//	pulep-events scrape --filter anio=2025 --filter departamento=11
//	pulep-events history list
//
// See --help for all available options.
package main

import "github.com/pfrederiksen/pulep-events/internal/cli"

func main() {
	cli.Execute()
}
