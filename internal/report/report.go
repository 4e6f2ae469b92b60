package report

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
)

const dateLayout = "2006-01-02"

// Split summarizes how the export was divided around the cutoff
type Split struct {
	Input      string
	Loaded     int
	Dropped    int
	ByType     map[string]int
	Types      []string
	Cutoff     time.Time
	Prior      int
	Candidates int

	// First and last start of the prior trips, zero when there are none
	HistoryFirst time.Time
	HistoryLast  time.Time
}

// TripResult is the outcome for one candidate trip
type TripResult struct {
	TripID      string
	Type        string
	Start       time.Time
	Segments    int
	TotalMeters float64
	NewMeters   float64
	Skipped     string // reason, empty when processed
}

// WriteSplit renders the split summary as a two-column table.
func WriteSplit(w io.Writer, s Split) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Item", "Value"})
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	table.Append([]string{"Input", s.Input})
	table.Append([]string{"Trips loaded", strconv.Itoa(s.Loaded)})
	if s.Dropped > 0 {
		table.Append([]string{"Rows dropped (bad date)", strconv.Itoa(s.Dropped)})
	}

	types := make([]string, 0, len(s.ByType))
	for typ := range s.ByType {
		types = append(types, typ)
	}
	sort.Strings(types)
	for _, typ := range types {
		table.Append([]string{"  type " + typ, strconv.Itoa(s.ByType[typ])})
	}

	table.Append([]string{"Selected types", strings.Join(s.Types, ", ")})
	table.Append([]string{"Cutoff", s.Cutoff.Format(dateLayout)})
	table.Append([]string{"Prior trips", strconv.Itoa(s.Prior)})
	table.Append([]string{"Candidate trips", strconv.Itoa(s.Candidates)})
	table.Append([]string{"Historical range", HistoryRange(s.HistoryFirst, s.HistoryLast)})

	table.Render()
}

// HistoryRange formats the span of prior trips as "first - last" years,
// or "none" without history.
func HistoryRange(first, last time.Time) string {
	if first.IsZero() {
		return "none"
	}
	if first.Year() == last.Year() {
		return strconv.Itoa(first.Year())
	}
	return fmt.Sprintf("%d - %d", first.Year(), last.Year())
}

// WriteResults renders one row per candidate trip and a totals footer.
func WriteResults(w io.Writer, results []TripResult) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Trip", "Type", "Date", "Segments", "New km", "Of km", "Note"})

	var segments int
	var newMeters, totalMeters float64
	for _, r := range results {
		segments += r.Segments
		newMeters += r.NewMeters
		totalMeters += r.TotalMeters
		table.Append([]string{
			r.TripID,
			r.Type,
			r.Start.Format(dateLayout),
			strconv.Itoa(r.Segments),
			km(r.NewMeters),
			km(r.TotalMeters),
			r.Skipped,
		})
	}

	table.SetFooter([]string{"", "", "Total", strconv.Itoa(segments), km(newMeters), km(totalMeters), ""})
	table.Render()
}

func km(meters float64) string {
	return fmt.Sprintf("%.1f", meters/1000)
}
