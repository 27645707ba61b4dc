// Command validate checks every scenario JSON file in a directory. For each
// file it verifies:
//   - JSON structure and the rules enforced by engine.ValidateConfig
//   - The scenario can start an engine and survive a tick
//   - Starting money covers at least one generator
//   - Scenario names are unique across the directory
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wricardo/citycurrent/game/engine"
	"github.com/wricardo/citycurrent/game/tiles"
)

// ValidationResult captures the outcome of validating a single file.
// If Valid is true, Errors contains informational messages; otherwise it
// accumulates the validation errors that were found.
type ValidationResult struct {
	File   string
	Name   string
	Valid  bool
	Errors []string
}

func (r *ValidationResult) fail(format string, args ...interface{}) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *ValidationResult) info(format string, args ...interface{}) {
	r.Errors = append(r.Errors, "✓ "+fmt.Sprintf(format, args...))
}

// validateConfig loads and validates a single scenario file.
func validateConfig(filePath string) ValidationResult {
	result := ValidationResult{
		File:   filepath.Base(filePath),
		Valid:  true,
		Errors: []string{},
	}

	config, err := engine.LoadConfigFile(filePath)
	if err != nil {
		result.fail("%v", err)
		return result
	}
	result.Name = config.Name

	eng, err := engine.New(config)
	if err != nil {
		result.fail("Engine rejected scenario: %v", err)
		return result
	}
	eng.Tick()
	if err := engine.ValidateState(eng.Snapshot()); err != nil {
		result.fail("First tick produced an invalid state: %v", err)
	}

	if cheapest, ok := cheapestGenerator(); ok && config.StartingMoney < cheapest.Cost {
		result.fail("starting_money %.0f cannot afford any generator (cheapest: %s at %.0f)", config.StartingMoney, cheapest.ID, cheapest.Cost)
	}

	if result.Valid {
		side := config.GridSide()
		result.info("Name: %s", config.Name)
		result.info("Center: %.4f, %.4f", config.Center.Lat, config.Center.Lng)
		result.info("Grid: %dx%d (%.0f m cells over %.0f m)", side, side, config.CellMeters, config.AreaMeters)
		result.info("Difficulty: %s", config.Difficulty)
		result.info("Tick: %s (%.2f in-game minutes)", config.TickInterval(), config.TickMinutes())
		result.info("Starting money: %.0f", config.StartingMoney)
	}

	return result
}

// cheapestGenerator returns the lowest-cost tile that supplies power.
func cheapestGenerator() (tiles.Definition, bool) {
	var cheapest tiles.Definition
	found := false
	for _, def := range tiles.Default().List() {
		if !def.Produces() {
			continue
		}
		if !found || def.Cost < cheapest.Cost {
			cheapest = def
			found = true
		}
	}
	return cheapest, found
}

// validateDir validates every *.json file in dir and flags duplicate
// scenario names.
func validateDir(dir string) ([]ValidationResult, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("error finding config files: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no scenario files found in %s", dir)
	}

	results := make([]ValidationResult, 0, len(files))
	seen := make(map[string]string)
	for _, file := range files {
		result := validateConfig(file)
		if result.Name != "" {
			key := strings.ToLower(result.Name)
			if other, exists := seen[key]; exists {
				result.fail("Duplicate scenario name %q (also in %s)", result.Name, other)
			} else {
				seen[key] = result.File
			}
		}
		results = append(results, result)
	}
	return results, nil
}

// main validates the scenario directory, printing a concise report and
// exiting with non-zero status if any file is invalid.
func main() {
	dir := flag.String("dir", "configs", "Directory containing scenario files")
	flag.Parse()
	if flag.NArg() > 0 {
		*dir = flag.Arg(0)
	}

	results, err := validateDir(*dir)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	allValid := true
	for _, result := range results {
		fmt.Printf("\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Println("✅ VALID")
			for _, info := range result.Errors {
				fmt.Println("  " + info)
			}
		} else {
			fmt.Println("❌ INVALID")
			allValid = false
			for _, err := range result.Errors {
				if !strings.HasPrefix(err, "✓") {
					fmt.Println("  ❌ " + err)
				}
			}
		}
	}

	fmt.Printf("\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Println("✅ All scenarios are valid!")
	} else {
		fmt.Println("❌ Some scenarios have errors")
		os.Exit(1)
	}
}
