// Command inspect reads exported city saves offline. It prints summaries,
// replays the simulation forward without a server, and maps coordinates to
// grid cells.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/wricardo/citycurrent/game/engine"
	"github.com/wricardo/citycurrent/game/geo"
	"github.com/wricardo/citycurrent/game/save"
	"github.com/wricardo/citycurrent/game/tiles"
)

func main() {
	if err := newApp(os.Stdout).Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp(w io.Writer) *cli.Command {
	return &cli.Command{
		Name:   "inspect",
		Usage:  "inspect exported CityCurrent saves",
		Writer: w,
		Commands: []*cli.Command{
			{
				Name:      "summary",
				Usage:     "print the economy, power balance and tile counts of a save",
				ArgsUsage: "<save.json>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					state, view, err := readSave(cmd)
					if err != nil {
						return err
					}
					printSummary(cmd.Root().Writer, state)
					fmt.Fprintf(cmd.Root().Writer, "Overlay:    %t\n", view.OverlayVisible)
					return nil
				},
			},
			{
				Name:      "simulate",
				Usage:     "restore a save and run ticks offline",
				ArgsUsage: "<save.json>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "ticks", Aliases: []string{"n"}, Value: 100, Usage: "number of ticks to run"},
					&cli.StringFlag{Name: "scenario", Usage: "scenario file for balance and tick length (default: built-in)"},
					&cli.BoolFlag{Name: "unpause", Usage: "resume a paused save before running"},
					&cli.StringFlag{Name: "out", Usage: "write the resulting save to this file"},
				},
				Action: simulate,
			},
			{
				Name:      "locate",
				Usage:     "map a coordinate to a grid cell",
				ArgsUsage: "<save.json>",
				Flags: []cli.Flag{
					&cli.FloatFlag{Name: "lat", Required: true},
					&cli.FloatFlag{Name: "lng", Required: true},
				},
				Action: locate,
			},
		},
	}
}

func readSave(cmd *cli.Command) (*engine.State, save.View, error) {
	path := cmd.Args().First()
	if path == "" {
		return nil, save.View{}, fmt.Errorf("missing save file argument")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, save.View{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	return save.Decode(data)
}

func simulate(ctx context.Context, cmd *cli.Command) error {
	state, view, err := readSave(cmd)
	if err != nil {
		return err
	}

	config := engine.DefaultConfig()
	if path := cmd.String("scenario"); path != "" {
		if config, err = engine.LoadConfigFile(path); err != nil {
			return err
		}
	}

	eng, err := engine.New(config)
	if err != nil {
		return err
	}
	if err := eng.Restore(state); err != nil {
		return err
	}
	if cmd.Bool("unpause") {
		eng.SetPaused(false)
	}

	requested := int(cmd.Int("ticks"))
	if requested < 0 {
		return fmt.Errorf("ticks must not be negative, got %d", requested)
	}

	executed := 0
	for executed < requested && ctx.Err() == nil {
		if !eng.Tick() {
			break
		}
		executed++
	}

	w := cmd.Root().Writer
	fmt.Fprintf(w, "Ran %d/%d ticks (%.1f in-game minutes)\n", executed, requested, float64(executed)*eng.TickMinutes())
	if executed < requested && eng.IsPaused() {
		fmt.Fprintln(w, "Stopped: city is paused (use --unpause)")
	}
	fmt.Fprintln(w)

	result := eng.Snapshot()
	printSummary(w, result)

	if out := cmd.String("out"); out != "" {
		data, err := save.Encode(result, view)
		if err != nil {
			return err
		}
		if err := os.WriteFile(out, data, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", out, err)
		}
		fmt.Fprintf(w, "\nSaved to %s\n", out)
	}
	return nil
}

func locate(ctx context.Context, cmd *cli.Command) error {
	state, _, err := readSave(cmd)
	if err != nil {
		return err
	}

	point := geo.LatLng{Lat: cmd.Float("lat"), Lng: cmd.Float("lng")}
	index, ok := geo.GridIndexFor(point, state.BBox, state.GridWidth, state.GridHeight)
	if !ok {
		return fmt.Errorf("%.6f,%.6f is outside the city bounds", point.Lat, point.Lng)
	}

	row, col := geo.RowCol(index, state.GridWidth)
	bounds := geo.CellBoundsFor(row, col, state.BBox, state.GridWidth, state.GridHeight)
	cell := state.Grid[index]

	w := cmd.Root().Writer
	fmt.Fprintf(w, "Cell %d (row %d, col %d)\n", index, row, col)
	if cell.Empty() {
		fmt.Fprintln(w, "Tile: empty")
	} else {
		fmt.Fprintf(w, "Tile: %s (level %d, powered: %t)\n", cell.Tile, cell.Level, cell.Powered)
	}
	fmt.Fprintf(w, "Bounds: N %.6f S %.6f E %.6f W %.6f\n", bounds.North, bounds.South, bounds.East, bounds.West)
	return nil
}

func printSummary(w io.Writer, state *engine.State) {
	fmt.Fprintf(w, "Grid:       %dx%d (%.0f m cells, %d occupied)\n", state.GridWidth, state.GridHeight, state.CellMeters, state.Grid.Occupied())
	fmt.Fprintf(w, "Bounds:     N %.6f S %.6f E %.6f W %.6f\n", state.BBox.North, state.BBox.South, state.BBox.East, state.BBox.West)
	fmt.Fprintf(w, "Money:      %.2f (income %.2f/min, upkeep %.2f/min)\n", state.Money, state.IncomePerMin, state.UpkeepPerMin)
	fmt.Fprintf(w, "Power:      supply %.1f MW, demand %.1f MW\n", state.Supply, state.Demand)
	fmt.Fprintf(w, "Storage:    %.1f/%.1f MWh\n", state.Stored, state.StorageCap)
	fmt.Fprintf(w, "Pollution:  %.3f\n", state.Pollution)
	fmt.Fprintf(w, "Happiness:  %.3f\n", state.Happiness)
	fmt.Fprintf(w, "Time:       %05.2f h (tick %d)\n", state.TimeOfDay, state.Ticks)
	fmt.Fprintf(w, "Difficulty: %s\n", state.Difficulty)
	fmt.Fprintf(w, "Paused:     %t\n", state.Paused)

	counts := state.Grid.CountByKind()
	powered := make(map[tiles.Kind]int)
	for _, cell := range state.Grid {
		if cell.Powered {
			powered[cell.Tile]++
		}
	}

	catalog := tiles.Default()
	fmt.Fprintln(w, "Tiles:")
	for _, def := range catalog.List() {
		if n := counts[def.ID]; n > 0 {
			fmt.Fprintf(w, "  %-12s %4d (%d powered)\n", def.ID, n, powered[def.ID])
		}
	}

	// Kinds outside the catalog count as empty in the simulation.
	unknown, total := []string{}, 0
	for kind, n := range counts {
		if !catalog.Has(kind) {
			unknown = append(unknown, string(kind))
			total += n
		}
	}
	if total > 0 {
		sort.Strings(unknown)
		fmt.Fprintf(w, "  %-12s %4d (%s)\n", "unknown", total, strings.Join(unknown, ", "))
	}
}
