// Command bestday answers "which day this week is best for a bike ride" from the
// terminal, sharing configuration and storage with the HTTP service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/sean-rowe/best-bike-day/internal/app"
	"github.com/sean-rowe/best-bike-day/internal/config"
	"github.com/sean-rowe/best-bike-day/internal/core/domain"
	"github.com/sean-rowe/best-bike-day/internal/observability"
	"github.com/sean-rowe/best-bike-day/internal/version"
)

const usage = `usage: bestday <command> [arguments]

commands:
  forecast [-sort date|score] <place>   score the coming days for the first match of <place>
  search <place>                        list places matching a name
  zip <postal code,country>             resolve a postal code
  favorites [add <place> | remove <name> <country>]
  theme [light|dark|system]
  version`

var errUsage = errors.New(usage)

func main() {
	os.Exit(execute(os.Args[1:]))
}

func execute(args []string) int {
	cfg, err := config.Load()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = "warn"
	}

	cfg.Observability.Enabled = false

	logger, err := observability.NewLogger(cfg.Server.Environment, cfg.Server.LogLevel)

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	application := app.NewWithConfig(cfg, logger)
	defer application.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := run(ctx, application, args, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	return 0
}

func run(ctx context.Context, application *app.App, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}

	command, rest := args[0], args[1:]

	if command == "version" {
		_, err := fmt.Fprintln(out, "bestday", version.Get().String())
		return err
	}

	engine, err := application.BuildEngine(ctx)

	if err != nil {
		return err
	}

	switch command {
	case "forecast":
		return forecast(ctx, engine, rest, out)
	case "search":
		if len(rest) == 0 {
			return errUsage
		}

		return printLocations(out, engine.Controller.SearchByName(ctx, strings.Join(rest, " ")))
	case "zip":
		if len(rest) != 1 {
			return errUsage
		}

		return printLocations(out, engine.Controller.SearchByPostalCode(ctx, rest[0]))
	case "favorites":
		return favorites(ctx, engine, rest, out)
	case "theme":
		return theme(ctx, engine, rest, out)
	default:
		return errUsage
	}
}

func forecast(ctx context.Context, engine *app.Engine, args []string, out io.Writer) error {
	flags := flag.NewFlagSet("forecast", flag.ContinueOnError)
	flags.SetOutput(io.Discard)
	sort := flags.String("sort", "score", "date or score")

	if err := flags.Parse(args); err != nil || flags.NArg() == 0 {
		return errUsage
	}

	if *sort != "date" && *sort != "score" {
		return errUsage
	}

	location, err := firstMatch(ctx, engine, strings.Join(flags.Args(), " "))

	if err != nil {
		return err
	}

	controller := engine.Controller
	controller.SelectLocation(location)
	controller.Wait()

	state := controller.State()

	if state.IsError() {
		return errors.New(state.Message)
	}

	recommendations := controller.RankedRecommendations()

	if *sort == "date" {
		recommendations = controller.Recommendations()
	}

	fmt.Fprintf(out, "%s (updated %s)\n", location.DisplayName(), controller.LastUpdated().Format(time.Kitchen))

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tSCORE\tTEMP\tRAIN\tWIND")

	for _, r := range recommendations {
		fmt.Fprintf(w, "%s\t%d\t%.1f°C\t%.0f%%\t%.1f m/s\n",
			r.Date.Format("Mon Jan 2"), r.Score, r.TemperatureC, r.RainChance*100, r.WindSpeedMps)
	}

	return w.Flush()
}

func favorites(ctx context.Context, engine *app.Engine, args []string, out io.Writer) error {
	switch {
	case len(args) == 0:
	case args[0] == "add" && len(args) > 1:
		location, err := firstMatch(ctx, engine, strings.Join(args[1:], " "))

		if err != nil {
			return err
		}

		if err := engine.Favorites.Add(ctx, location); err != nil {
			return err
		}
	case args[0] == "remove" && len(args) == 3:
		if err := engine.Favorites.Remove(ctx, domain.Location{Name: args[1], Country: args[2]}); err != nil {
			return err
		}
	default:
		return errUsage
	}

	return printLocations(out, engine.Favorites.List())
}

func theme(ctx context.Context, engine *app.Engine, args []string, out io.Writer) error {
	if len(args) > 1 {
		return errUsage
	}

	if len(args) == 1 {
		mode, err := domain.ParseThemeMode(args[0])

		if err != nil {
			return err
		}

		if err := engine.Theme.SetMode(ctx, mode); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintln(out, engine.Theme.Mode())

	return err
}

func firstMatch(ctx context.Context, engine *app.Engine, query string) (domain.Location, error) {
	matches := engine.Controller.SearchByName(ctx, query)

	if len(matches) == 0 {
		return domain.Location{}, fmt.Errorf("no place found for %q", query)
	}

	return matches[0], nil
}

func printLocations(out io.Writer, locations []domain.Location) error {
	if len(locations) == 0 {
		_, err := fmt.Fprintln(out, "no places")
		return err
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PLACE\tLAT\tLON")

	for _, location := range locations {
		fmt.Fprintf(w, "%s\t%.4f\t%.4f\n", location.DisplayName(), location.Lat, location.Lon)
	}

	return w.Flush()
}
