package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sawpanic/skinrun/internal/scan/pipeline"
	"github.com/sawpanic/skinrun/internal/scoring"
)

var header = []string{
	"Name", "Buy", "Sell", "Source", "Vol7d", "Listings", "Avg24h", "Avg7d",
	"Bullish", "GrowthShort", "GrowthMed", "Explosive", "PumpRisk", "Arbitrage", "Profit%", "SellΔ%", "Candidate",
}

// Emitter writes scan results in table, CSV and JSON form
type Emitter struct{}

func NewEmitter() *Emitter {
	return &Emitter{}
}

// EmitTable writes an aligned table, candidates first when any were picked
func (e *Emitter) EmitTable(w io.Writer, res *pipeline.Result) error {
	if len(res.Rows) == 0 {
		_, err := fmt.Fprintln(w, "No items matched the filters.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if len(res.Candidates) > 0 {
		fmt.Fprintf(tw, "Candidates (%d)\n", len(res.Candidates))
		if err := e.writeRows(tw, res.Candidates); err != nil {
			return err
		}
		fmt.Fprintln(tw)
	}
	fmt.Fprintf(tw, "All items by bullish score (%d)\n", len(res.Rows))
	if err := e.writeRows(tw, res.Rows); err != nil {
		return err
	}
	fmt.Fprintf(tw, "\nrun %s  %s  %d listed  %v\n", res.RunID.String()[:8], res.Currency, res.Listed, res.Duration.Round(time.Millisecond))
	return tw.Flush()
}

func (e *Emitter) writeRows(w io.Writer, rows []pipeline.Row) error {
	for i, h := range header {
		sep := "\t"
		if i == len(header)-1 {
			sep = "\n"
		}
		fmt.Fprint(w, h+sep)
	}
	for _, r := range rows {
		for i, cell := range record(r) {
			sep := "\t"
			if i == len(header)-1 {
				sep = "\n"
			}
			if _, err := fmt.Fprint(w, cell+sep); err != nil {
				return err
			}
		}
	}
	return nil
}

// EmitCSV writes every row with the same columns as the table
func (e *Emitter) EmitCSV(w io.Writer, res *pipeline.Result) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, r := range res.Rows {
		if err := writer.Write(record(r)); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// EmitJSON writes the whole result as indented JSON
func (e *Emitter) EmitJSON(w io.Writer, res *pipeline.Result) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(res); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

func record(r pipeline.Row) []string {
	profit := "-"
	if r.Arbitrage.Class != scoring.NoSellData {
		profit = r.Arbitrage.ProfitPct.StringFixed(1)
	}
	return []string{
		r.Name,
		r.BuyPrice.StringFixed(2),
		nullFixed(r.Quote.CurrentPrice, 2),
		string(r.Quote.Source),
		strconv.Itoa(r.Volume7d),
		strconv.Itoa(r.Listings),
		fmt.Sprintf("%.2f", r.Avg24h),
		fmt.Sprintf("%.2f", r.Avg7d),
		fmt.Sprintf("%.4f", r.BullishScore),
		fmt.Sprintf("%.3f", r.GrowthShort),
		fmt.Sprintf("%.3f", r.GrowthMed),
		fmt.Sprintf("%.2f", r.Explosiveness),
		fmt.Sprintf("%.1f", r.PumpRisk),
		string(r.Arbitrage.Class),
		profit,
		nullFixed(r.SellDeltaPct, 2),
		formatBool(r.Candidate, "yes", ""),
	}
}

func nullFixed(d decimal.NullDecimal, places int32) string {
	if !d.Valid {
		return "-"
	}
	return d.Decimal.StringFixed(places)
}

func formatBool(b bool, t, f string) string {
	if b {
		return t
	}
	return f
}
