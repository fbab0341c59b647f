package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/sartorproj/fluxcast/calendar"
	"github.com/sartorproj/fluxcast/history"
	"github.com/sartorproj/fluxcast/server"
	"github.com/sartorproj/fluxcast/timeseries"
)

// withApp loads the configuration, wires the app and runs fn with it.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())
	return fn(ctx, a)
}

func parseDateFlag(name, value string) (time.Time, error) {
	d, err := timeseries.ParseDate(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s: %w", name, err)
	}
	return d, nil
}

// weeksCmd prints the custom calendar
func weeksCmd() *cobra.Command {
	var (
		year       int
		start, end string
		date       string
	)
	cmd := &cobra.Command{
		Use:   "weeks",
		Short: "Print custom calendar weeks",
		Long: `Prints the weeks of a year (--year), the weeks overlapping a range
(--start, --end, clipped to the range) or the week containing a day (--date).
Week 1 runs from January 1st to the first Sunday; later weeks run Monday to
Sunday; the last week ends on December 31st.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var weeks []calendar.Week
			switch {
			case date != "":
				d, err := parseDateFlag("date", date)
				if err != nil {
					return err
				}
				weeks = []calendar.Week{calendar.WeekContaining(d)}
			case start != "" || end != "":
				s, err := parseDateFlag("start", start)
				if err != nil {
					return err
				}
				e, err := parseDateFlag("end", end)
				if err != nil {
					return err
				}
				weeks = calendar.WeeksInRange(s, e)
			default:
				if year == 0 {
					year = time.Now().Year()
				}
				weeks = calendar.WeeksInRange(calendar.Date(year, time.January, 1), calendar.Date(year, time.December, 31))
			}
			return printWeeks(cmd.OutOrStdout(), weeks)
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "Year to print (default: current year)")
	cmd.Flags().StringVar(&start, "start", "", "Range start date")
	cmd.Flags().StringVar(&end, "end", "", "Range end date")
	cmd.Flags().StringVar(&date, "date", "", "Print the week containing this date")
	return cmd
}

// aggregateHistoryCmd builds the weekly target store
func aggregateHistoryCmd() *cobra.Command {
	var input, output string
	cmd := &cobra.Command{
		Use:   "aggregate-history",
		Short: "Build the weekly target store from a raw daily export",
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				output = cfg.Data.HistoryPath
			}
			f, err := os.Open(input)
			if err != nil {
				return err
			}
			defer f.Close()

			table, err := history.AggregateDaily(f)
			if err != nil {
				return fmt.Errorf("aggregate %s: %w", input, err)
			}
			if err := table.WriteFile(output); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d weeks, %d outlets written to %s\n", len(table.Rows), len(table.Header)-2, output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "Raw daily export (CSV)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Weekly target store (default: data.history_path)")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

// updateWeatherCmd completes the historical weather store
func updateWeatherCmd() *cobra.Command {
	var start, end string
	cmd := &cobra.Command{
		Use:   "update-weather",
		Short: "Fetch missing days into the historical weather store",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := parseDateFlag("start", start)
			if err != nil {
				return err
			}
			e := calendar.Normalize(time.Now()).AddDate(0, 0, -1)
			if end != "" {
				if e, err = parseDateFlag("end", end); err != nil {
					return err
				}
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				days, err := a.weatherStore.Update(ctx, a.fetcher, s, e)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d days stored in %s\n", len(days), a.weatherStore.Path)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&start, "start", "2021-01-01", "First day to hold")
	cmd.Flags().StringVar(&end, "end", "", "Last day to hold (default: yesterday)")
	return cmd
}

// trainCmd trains one outlet
func trainCmd() *cobra.Command {
	var budget time.Duration
	cmd := &cobra.Command{
		Use:   "train OUTLET",
		Short: "Train and save the model of one outlet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				rep, err := a.service.TrainOutlet(ctx, args[0], budget)
				if err != nil {
					return err
				}
				printTraining(cmd.OutOrStdout(), args[0], rep)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&budget, "budget", 0, "Order search budget (default: training.budget)")
	return cmd
}

// trainAllCmd retrains every outlet
func trainAllCmd() *cobra.Command {
	var budget time.Duration
	cmd := &cobra.Command{
		Use:   "train-all",
		Short: "Train every outlet; failures are reported and skipped",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				sum, err := a.service.TrainAll(ctx, budget)
				if sum != nil {
					printSummary(cmd.OutOrStdout(), sum)
				}
				if err != nil {
					return err
				}
				if sum.Failed > 0 {
					return fmt.Errorf("%d of %d outlets failed", sum.Failed, len(sum.Outcomes))
				}
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&budget, "budget", 0, "Order search budget per outlet (default: training.budget)")
	return cmd
}

// forecastCmd prints a forecast report
func forecastCmd() *cobra.Command {
	var (
		start, end string
		asJSON     bool
	)
	cmd := &cobra.Command{
		Use:   "forecast OUTLET",
		Short: "Forecast the weeks of a date range for one outlet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := parseDateFlag("start", start)
			if err != nil {
				return err
			}
			e, err := parseDateFlag("end", end)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				rep, err := a.service.Forecast(ctx, args[0], s, e)
				if err != nil {
					return err
				}
				if asJSON {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(server.NewReportJSON(rep))
				}
				return printReport(cmd.OutOrStdout(), rep)
			})
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "First day of the range")
	cmd.Flags().StringVar(&end, "end", "", "Last day of the range")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

// serveCmd runs the HTTP API
func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if addr == "" {
					addr = a.cfg.Server.Addr
				}
				srv := server.New(a.service, nil)
				if a.registry != nil {
					srv.Catalog = a.registry
				}
				srv.Gatherer = a.gatherer
				srv.Logger = a.logger.With().Str("component", "server").Logger()
				return srv.ListenAndServe(ctx, addr)
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default: server.addr)")
	return cmd
}

// sectorsCmd administers sectors
func sectorsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sectors",
		Short: "List and administer sectors",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List sectors",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				reg, err := a.requireRegistry()
				if err != nil {
					return err
				}
				sectors, err := reg.Sectors(ctx)
				if err != nil {
					return err
				}
				return printSectors(cmd.OutOrStdout(), sectors)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "add NAME",
		Short: "Add a sector",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				reg, err := a.requireRegistry()
				if err != nil {
					return err
				}
				sector, err := reg.AddSector(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "sector %q added with id %d\n", sector.Name, sector.ID)
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete ID",
		Short: "Delete an empty sector",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("sector id: %w", err)
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				reg, err := a.requireRegistry()
				if err != nil {
					return err
				}
				if err := reg.DeleteSector(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "sector %d deleted\n", id)
				return nil
			})
		},
	})
	return cmd
}

// outletsCmd administers outlets
func outletsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outlets",
		Short: "List and administer outlets",
	}

	var sector int64
	list := &cobra.Command{
		Use:   "list",
		Short: "List outlets, from the registry or the target store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if a.registry == nil {
					if sector != 0 {
						return errors.New("--sector needs the outlet registry")
					}
					names, err := a.service.Outlets(ctx)
					if err != nil {
						return err
					}
					for _, n := range names {
						fmt.Fprintln(cmd.OutOrStdout(), n)
					}
					return nil
				}
				outlets, err := a.registry.Outlets(ctx)
				if sector != 0 {
					outlets, err = a.registry.OutletsInSector(ctx, sector)
				}
				if err != nil {
					return err
				}
				return printOutlets(cmd.OutOrStdout(), outlets)
			})
		},
	}
	list.Flags().Int64Var(&sector, "sector", 0, "Only outlets of this sector id")
	cmd.AddCommand(list)

	var addSector int64
	add := &cobra.Command{
		Use:   "add NAME",
		Short: "Add an outlet to a sector",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				reg, err := a.requireRegistry()
				if err != nil {
					return err
				}
				outlet, err := reg.AddOutlet(ctx, args[0], addSector)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "outlet %q added to sector %q\n", outlet.Name, outlet.Sector)
				return nil
			})
		},
	}
	add.Flags().Int64Var(&addSector, "sector", 0, "Sector id")
	_ = add.MarkFlagRequired("sector")
	cmd.AddCommand(add)

	cmd.AddCommand(&cobra.Command{
		Use:   "delete NAME",
		Short: "Delete an outlet and its model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				reg, err := a.requireRegistry()
				if err != nil {
					return err
				}
				if err := reg.DeleteOutlet(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "outlet %q deleted\n", args[0])
				return nil
			})
		},
	})
	return cmd
}
