package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/skinrun/internal/models"
	"github.com/sawpanic/skinrun/internal/scan/pipeline"
	"github.com/sawpanic/skinrun/internal/scoring"
)

func sampleResult() *pipeline.Result {
	priced := models.EmptyQuote("AK-47 | Redline (Field-Tested)", "USD", 730, models.SourcePrimary, "steam_direct")
	priced.CurrentPrice = decimal.NewNullDecimal(decimal.RequireFromString("13"))

	ak := pipeline.Row{
		ScoreRecord: scoring.ScoreRecord{
			Name:         "AK-47 | Redline (Field-Tested)",
			Volume7d:     100,
			BullishScore: 3.6652,
			Arbitrage: scoring.Arbitrage{
				Class:     scoring.GoodBuy,
				ProfitPct: decimal.RequireFromString("10.5"),
			},
		},
		Currency:     "USD",
		BuyPrice:     decimal.NewFromInt(10),
		Quote:        priced,
		Candidate:    true,
		SellDeltaPct: decimal.NewNullDecimal(decimal.RequireFromString("8.33")),
	}
	awp := pipeline.Row{
		ScoreRecord: scoring.ScoreRecord{
			Name:      "AWP | Asiimov (Field-Tested)",
			Volume7d:  60,
			Arbitrage: scoring.Arbitrage{Class: scoring.NoSellData},
		},
		Currency: "USD",
		BuyPrice: decimal.RequireFromString("85.5"),
		Quote:    models.EmptyQuote("AWP | Asiimov (Field-Tested)", "USD", 730, models.SourceNone, "steam_direct"),
	}
	return &pipeline.Result{
		RunID:      uuid.MustParse("7b0f3a2e-0a44-4c39-9c55-6b7d3c8f1e21"),
		Currency:   "USD",
		Listed:     7,
		Duration:   1500 * time.Millisecond,
		Rows:       []pipeline.Row{ak, awp},
		Candidates: []pipeline.Row{ak},
	}
}

func TestEmitTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewEmitter().EmitTable(&buf, sampleResult()))

	out := buf.String()
	assert.Contains(t, out, "Candidates (1)")
	assert.Contains(t, out, "All items by bullish score (2)")
	assert.Contains(t, out, "GOOD_BUY")
	assert.Contains(t, out, "NO_STEAM_DATA")
	assert.Contains(t, out, "run 7b0f3a2e  USD  7 listed  1.5s")
}

func TestEmitTableEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewEmitter().EmitTable(&buf, &pipeline.Result{}))
	assert.Equal(t, "No items matched the filters.\n", buf.String())
}

func TestEmitCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewEmitter().EmitCSV(&buf, sampleResult()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, header, records[0])

	ak := records[1]
	assert.Equal(t, "AK-47 | Redline (Field-Tested)", ak[0])
	assert.Equal(t, "10.00", ak[1])
	assert.Equal(t, "13.00", ak[2])
	assert.Equal(t, "primary", ak[3])
	assert.Equal(t, "10.5", ak[14])
	assert.Equal(t, "8.33", ak[15])
	assert.Equal(t, "yes", ak[16])

	awp := records[2]
	assert.Equal(t, "-", awp[2])
	assert.Equal(t, "-", awp[14])
	assert.Equal(t, "", awp[16])
}

func TestEmitJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewEmitter().EmitJSON(&buf, sampleResult()))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "7b0f3a2e-0a44-4c39-9c55-6b7d3c8f1e21", decoded["run_id"])
	assert.Len(t, decoded["rows"], 2)
}
