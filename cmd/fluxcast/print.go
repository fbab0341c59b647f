package main

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/sartorproj/fluxcast/calendar"
	"github.com/sartorproj/fluxcast/registry"
	"github.com/sartorproj/fluxcast/service"
	"github.com/sartorproj/fluxcast/timeseries"
)

func newTab(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

// value renders a count, or "-" when unknown.
func value(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}
	return strconv.FormatFloat(v, 'f', 0, 64)
}

func printWeeks(w io.Writer, weeks []calendar.Week) error {
	tw := newTab(w)
	fmt.Fprintln(tw, "YEAR\tWEEK\tSTART\tEND\tDAYS")
	for _, wk := range weeks {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%d\n",
			wk.Year, wk.Number, timeseries.FormatDate(wk.Start), timeseries.FormatDate(wk.End), wk.Days)
	}
	return tw.Flush()
}

func printTraining(w io.Writer, outlet string, rep *service.TrainReport) {
	res := rep.Result
	fmt.Fprintf(w, "Outlet:   %s\n", outlet)
	fmt.Fprintf(w, "Run:      %s\n", res.RunID)
	fmt.Fprintf(w, "Order:    %s\n", res.Order)
	fmt.Fprintf(w, "AIC:      %.2f (%s)\n", res.AIC, res.Quality)
	fmt.Fprintf(w, "Weeks:    %d\n", rep.Weeks)
	fmt.Fprintf(w, "Trials:   %d\n", res.Trials)
	fmt.Fprintf(w, "Duration: %s\n", res.Duration.Round(time.Second))
	for _, c := range rep.Caveats {
		fmt.Fprintf(w, "Caveat:   %s\n", c)
	}
}

func printSummary(w io.Writer, sum *service.Summary) {
	tw := newTab(w)
	fmt.Fprintln(tw, "OUTLET\tORDER\tAIC\tQUALITY\tDURATION\tERROR")
	for _, o := range sum.Outcomes {
		aic := "-"
		if o.Error == "" {
			aic = strconv.FormatFloat(o.AIC, 'f', 2, 64)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", o.Outlet, o.Order, aic, o.Quality, o.Duration.Round(time.Second), o.Error)
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d trained, %d failed\n", sum.Trained, sum.Failed)
}

func printReport(w io.Writer, rep *service.Report) error {
	fmt.Fprintf(w, "%s %s to %s, model %s %s\n\n",
		rep.Outlet, timeseries.FormatDate(rep.Start), timeseries.FormatDate(rep.End), rep.Order, rep.RunID)

	tw := newTab(w)
	fmt.Fprintln(tw, "WEEK\tSTART\tFORECAST\tLOWER\tUPPER\tN-1\tN-2\tWEATHER")
	for _, wk := range rep.Weeks {
		fmt.Fprintf(tw, "%d-%02d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			wk.Year, wk.Week, timeseries.FormatDate(wk.Date),
			value(wk.Forecast), value(wk.Lower), value(wk.Upper),
			value(wk.LastYear), value(wk.TwoYearsAgo), wk.Source)
	}
	fmt.Fprintf(tw, "TOTAL\t\t%s\t%s\t%s\t\t\t\n", value(rep.Total), value(rep.TotalLower), value(rep.TotalUpper))
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, c := range rep.Caveats {
		fmt.Fprintf(w, "! %s\n", c)
	}
	return nil
}

func printSectors(w io.Writer, sectors []registry.Sector) error {
	tw := newTab(w)
	fmt.Fprintln(tw, "ID\tSECTOR")
	for _, s := range sectors {
		fmt.Fprintf(tw, "%d\t%s\n", s.ID, s.Name)
	}
	return tw.Flush()
}

func printOutlets(w io.Writer, outlets []registry.Outlet) error {
	tw := newTab(w)
	fmt.Fprintln(tw, "ID\tOUTLET\tSECTOR")
	for _, o := range outlets {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", o.ID, o.Name, o.Sector)
	}
	return tw.Flush()
}
