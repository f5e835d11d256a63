package cleaner

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tourismcli/internal/config"
	apperrors "tourismcli/internal/errors"
	"tourismcli/internal/schema"
	"tourismcli/internal/shared/testutil"
	"tourismcli/pkg/contracts/domain"
)

func newTestCleaner(t *testing.T, mutate ...func(*Options)) (*Cleaner, *testutil.BufferedSlogHandler) {
	t.Helper()
	logger, handler := testutil.NewTestLogger(t)
	opts := OptionsFromConfig(config.Default())
	opts.Sheets = nil
	for _, m := range mutate {
		m(&opts)
	}
	c, err := New(schema.NewRegistry(), opts, logger)
	require.NoError(t, err)
	return c, handler
}

// table builds a raw table from string rows, padding to the widest row
func table(sheet string, dim domain.DimensionType, rows ...[]string) domain.RawTable {
	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}
	padded := make([][]string, len(rows))
	for i, row := range rows {
		padded[i] = append(append([]string(nil), row...), make([]string, width-len(row))...)
	}
	return domain.RawTable{Sheet: sheet, Dimension: dim, Rows: padded}
}

// lookup finds the value of one metric for a period and category across records
func lookup(records []domain.CleanRecord, p domain.Period, category string, m domain.MetricType) (domain.NullFloat, bool) {
	for _, rec := range records {
		if rec.Period != p || rec.DimensionValue != category {
			continue
		}
		if v, ok := rec.Metrics[m]; ok {
			return v, true
		}
	}
	return domain.NullFloat{}, false
}

func purposeTable() domain.RawTable {
	return table("Purpose", domain.DimensionPurpose,
		[]string{"Table 3: Visits by purpose (thousands)"},
		[]string{"Quarter", "Holiday", "Business", "VFR", "Miscellaneous"},
		[]string{"2023 Q3", "3100", "1800", "2500", "412"},
		[]string{"2023 Q4", "2900", "1700", "2400", ".."},
		[]string{"2024 Q1", "2500", "1600", "2200", "300"},
		[]string{"Source: International Passenger Survey"},
	)
}

func TestClean_WideLayout(t *testing.T) {
	c, handler := newTestCleaner(t)

	records, units, err := c.Clean(purposeTable())
	require.NoError(t, err)
	require.Len(t, records, 12)

	first := records[0]
	assert.Equal(t, "Purpose", first.Sheet)
	assert.Equal(t, 3, first.Row)
	assert.Equal(t, domain.MustPeriod(2023, 3), first.Period)
	assert.Equal(t, domain.DimensionPurpose, first.DimensionType)
	assert.Equal(t, "Holiday", first.DimensionValue)
	assert.Equal(t, domain.Float(3_100_000), first.Metrics[domain.MetricVisits])

	vfr, ok := lookup(records, domain.MustPeriod(2024, 1), "Visiting friends and relatives", domain.MetricVisits)
	require.True(t, ok, "VFR is mapped through the synonym table")
	assert.Equal(t, domain.Float(2_200_000), vfr)

	misc, ok := lookup(records, domain.MustPeriod(2023, 4), "Miscellaneous", domain.MetricVisits)
	require.True(t, ok)
	assert.False(t, misc.Valid, "'..' is an explicit null, not zero")

	assert.Equal(t, UnitLedger{{Sheet: "Purpose", Metric: domain.MetricVisits, SourceUnit: "thousands", Factor: 1000}}, units)
	assert.True(t, handler.ContainsMessage("sheet cleaned"))
}

func TestClean_MergedTwoRowHeader(t *testing.T) {
	c, _ := newTestCleaner(t)
	raw := table("Transport", domain.DimensionTransport,
		[]string{"Period", "Visits (thousands)", "", "Spending (£ million)", ""},
		[]string{"", "Air", "Sea", "Air", "Sea"},
		[]string{"2023 Q4", "7000", "900", "5400.5", "320"},
		[]string{"2024 Q1", "6100", "800", "4800", "290.25"},
	)
	raw.Merges = []domain.MergeRange{
		{StartCell: "B1", EndCell: "C1", Value: "Visits (thousands)"},
		{StartCell: "D1", EndCell: "E1", Value: "Spending (£ million)"},
	}

	records, units, err := c.Clean(raw)
	require.NoError(t, err)
	require.Len(t, records, 4, "one record per quarter and mode")

	sea := records[1]
	assert.Equal(t, "Sea", sea.DimensionValue)
	assert.Equal(t, domain.Float(900_000), sea.Metrics[domain.MetricVisits])
	assert.Equal(t, domain.Float(320), sea.Metrics[domain.MetricExpenditure])

	air, ok := lookup(records, domain.MustPeriod(2024, 1), "Air", domain.MetricExpenditure)
	require.True(t, ok)
	assert.Equal(t, domain.Float(4800), air)

	assert.ElementsMatch(t, UnitLedger{
		{Sheet: "Transport", Metric: domain.MetricVisits, SourceUnit: "thousands", Factor: 1000},
		{Sheet: "Transport", Metric: domain.MetricExpenditure, SourceUnit: "pounds_millions", Factor: 1},
	}, units)
}

func TestClean_PeriodColumns(t *testing.T) {
	c, _ := newTestCleaner(t)
	raw := table("UK region", domain.DimensionUKRegion,
		[]string{"Visits to UK regions (thousands)"},
		[]string{"Region", "2023 Q4", "2024 Q1"},
		[]string{"London", "5,210", "4,980"},
		[]string{"Northern Ireland", "410", ".."},
		[]string{"Scotland", "[x]", "720"},
	)

	records, _, err := c.Clean(raw)
	require.NoError(t, err)
	require.Len(t, records, 6)

	london, ok := lookup(records, domain.MustPeriod(2023, 4), "London", domain.MetricVisits)
	require.True(t, ok)
	assert.Equal(t, domain.Float(5_210_000), london)

	ni, ok := lookup(records, domain.MustPeriod(2024, 1), "Northern Ireland", domain.MetricVisits)
	require.True(t, ok)
	assert.False(t, ni.Valid)

	scotland, ok := lookup(records, domain.MustPeriod(2023, 4), "Scotland", domain.MetricVisits)
	require.True(t, ok)
	assert.False(t, scotland.Valid, "[x] is a suppression marker")
}

func TestClean_MetricRowsUnderGroupLabels(t *testing.T) {
	c, _ := newTestCleaner(t)
	raw := table("Purpose", domain.DimensionPurpose,
		[]string{"Measure", "2023 Q4", "2024 Q1"},
		[]string{"Visits (thousands)", "9,100", "8,300"},
		[]string{"Holiday"},
		[]string{"Visits (thousands)", "2,900", "2,500"},
		[]string{"Spending (£m)", "1,800.5", "1,700"},
	)

	records, units, err := c.Clean(raw)
	require.NoError(t, err)

	total, ok := lookup(records, domain.MustPeriod(2024, 1), domain.TotalDimensionValue, domain.MetricVisits)
	require.True(t, ok, "metric rows before any group label are totals")
	assert.Equal(t, domain.Float(8_300_000), total)

	visits, ok := lookup(records, domain.MustPeriod(2023, 4), "Holiday", domain.MetricVisits)
	require.True(t, ok)
	assert.Equal(t, domain.Float(2_900_000), visits)

	spend, ok := lookup(records, domain.MustPeriod(2023, 4), "Holiday", domain.MetricExpenditure)
	require.True(t, ok)
	assert.Equal(t, domain.Float(1800.5), spend)

	assert.Contains(t, units, domain.UnitEntry{Sheet: "Purpose", Metric: domain.MetricExpenditure, SourceUnit: "pounds_millions", Factor: 1})
}

func TestClean_ConfidenceIntervalColumn(t *testing.T) {
	c, _ := newTestCleaner(t)
	raw := table("Overview", domain.DimensionGeography,
		[]string{"Quarter", "Visits (thousands)", "CI (%)"},
		[]string{"2024 Q1", "8,300", "4.5"},
	)

	records, _, err := c.Clean(raw)
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, domain.TotalDimensionValue, rec.DimensionValue)
	assert.Equal(t, domain.Float(8_300_000), rec.Metrics[domain.MetricVisits])
	assert.Equal(t, domain.Float(4.5), rec.Intervals[domain.MetricVisits], "intervals are not rescaled")
}

func TestClean_SheetOverride(t *testing.T) {
	raw := table("Purpose", domain.DimensionPurpose,
		[]string{"Quarter", "Holiday", "Business"},
		[]string{"2024 Q1", "2.5", "1.6"},
	)

	c, _ := newTestCleaner(t)
	_, _, err := c.Clean(raw)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrMalformedHeader, "no metric anywhere in the header")

	c, _ = newTestCleaner(t, func(o *Options) {
		o.Sheets = []config.SheetMapping{{Sheet: "purpose", Dimension: "purpose", Metric: "visits", Unit: "millions"}}
	})
	records, units, err := c.Clean(raw)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, domain.Float(2_500_000), records[0].Metrics[domain.MetricVisits])
	assert.Equal(t, "millions", units[0].SourceUnit)
}

func TestClean_CaptionRows(t *testing.T) {
	tests := []struct {
		name   string
		raw    func() domain.RawTable
		expect func(t *testing.T, records []domain.CleanRecord, units UnitLedger)
	}{
		{
			name: "title naming several metrics over a two-row header",
			raw: func() domain.RawTable {
				raw := table("Purpose", domain.DimensionPurpose,
					[]string{"Table 3: Visits, nights and spending by purpose of visit"},
					[]string{"Quarter", "Visits (thousands)", "", "Spending (£ million)", ""},
					[]string{"", "Holiday", "Business", "Holiday", "Business"},
					[]string{"2024 Q1", "2500", "1600", "1200.5", "900"},
				)
				raw.Merges = []domain.MergeRange{
					{StartCell: "B2", EndCell: "C2", Value: "Visits (thousands)"},
					{StartCell: "D2", EndCell: "E2", Value: "Spending (£ million)"},
				}
				return raw
			},
			expect: func(t *testing.T, records []domain.CleanRecord, units UnitLedger) {
				require.Len(t, records, 2)
				visits, ok := lookup(records, domain.MustPeriod(2024, 1), "Holiday", domain.MetricVisits)
				require.True(t, ok)
				assert.Equal(t, domain.Float(2_500_000), visits)
				spend, ok := lookup(records, domain.MustPeriod(2024, 1), "Business", domain.MetricExpenditure)
				require.True(t, ok)
				assert.Equal(t, domain.Float(900), spend)
				assert.Equal(t, 4, records[0].Row)
			},
		},
		{
			name: "title merged across the table",
			raw: func() domain.RawTable {
				raw := table("Purpose", domain.DimensionPurpose,
					[]string{"Visits by purpose of visit, thousands"},
					[]string{"Quarter", "Holiday", "Business", "VFR"},
					[]string{"2024 Q1", "2500", "1600", "2200"},
				)
				raw.Merges = []domain.MergeRange{{StartCell: "A1", EndCell: "D1", Value: "Visits by purpose of visit, thousands"}}
				return raw
			},
			expect: func(t *testing.T, records []domain.CleanRecord, units UnitLedger) {
				require.Len(t, records, 3)
				assert.Equal(t, domain.Float(1_600_000), records[1].Metrics[domain.MetricVisits])
				assert.Equal(t, UnitLedger{{Sheet: "Purpose", Metric: domain.MetricVisits, SourceUnit: "thousands", Factor: 1000}}, units)
			},
		},
		{
			name: "single-metric title over a spending column",
			raw: func() domain.RawTable {
				return table("Transport", domain.DimensionTransport,
					[]string{"Table 5: Visits by mode of travel"},
					[]string{"Quarter", "Visits (thousands)", "Spending (£ million)"},
					[]string{"2024 Q1", "8,300", "5,400"},
				)
			},
			expect: func(t *testing.T, records []domain.CleanRecord, units UnitLedger) {
				require.Len(t, records, 1)
				assert.Equal(t, domain.Float(8_300_000), records[0].Metrics[domain.MetricVisits])
				assert.Equal(t, domain.Float(5400), records[0].Metrics[domain.MetricExpenditure])
				assert.ElementsMatch(t, UnitLedger{
					{Sheet: "Transport", Metric: domain.MetricVisits, SourceUnit: "thousands", Factor: 1000},
					{Sheet: "Transport", Metric: domain.MetricExpenditure, SourceUnit: "pounds_millions", Factor: 1},
				}, units)
			},
		},
		{
			name: "title and note rows stacked above the header",
			raw: func() domain.RawTable {
				return table("Purpose", domain.DimensionPurpose,
					[]string{"Table 3a. Overseas residents' visits to the UK"},
					[]string{"Figures in thousands"},
					[]string{""},
					[]string{"Quarter", "Holiday", "Business"},
					[]string{"2024 Q1", "2500", "1600"},
				)
			},
			expect: func(t *testing.T, records []domain.CleanRecord, units UnitLedger) {
				require.Len(t, records, 2)
				assert.Equal(t, domain.Float(2_500_000), records[0].Metrics[domain.MetricVisits])
				assert.Equal(t, 5, records[0].Row)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestCleaner(t)
			records, units, err := c.Clean(tt.raw())
			require.NoError(t, err)
			tt.expect(t, records, units)
		})
	}
}

func TestCaptionText(t *testing.T) {
	tests := []struct {
		name string
		row  []string
		want string
		ok   bool
	}{
		{name: "table prefix", row: []string{"Table 3: Visits by purpose", "", "note"}, want: "Table 3: Visits by purpose", ok: true},
		{name: "figure prefix", row: []string{"Figure 2a. Spending", ""}, want: "Figure 2a. Spending", ok: true},
		{name: "lone first cell", row: []string{"Visits (thousands)", "", ""}, want: "Visits (thousands)", ok: true},
		{name: "merged across", row: []string{"Visits", "Visits", "Visits"}, want: "Visits", ok: true},
		{name: "header row", row: []string{"Quarter", "Holiday", "Business"}},
		{name: "year row", row: []string{"", "2023", "", "2024"}},
		{name: "single column", row: []string{"Visits"}},
		{name: "blank", row: []string{"", ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := captionText(tt.row)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClean_YearRowOverQuarterRow(t *testing.T) {
	c, _ := newTestCleaner(t)
	raw := table("Purpose", domain.DimensionPurpose,
		[]string{"Table 4: Visits by purpose (thousands)"},
		[]string{"Purpose", "2023", "", "2024", ""},
		[]string{"", "Q3", "Q4", "Q1", "Q2"},
		[]string{"Holiday", "3100", "2900", "2500", "2700"},
		[]string{"Business", "1800", "1700", "1600", "1650"},
	)
	raw.Merges = []domain.MergeRange{
		{StartCell: "B2", EndCell: "C2", Value: "2023"},
		{StartCell: "D2", EndCell: "E2", Value: "2024"},
	}

	records, _, err := c.Clean(raw)
	require.NoError(t, err)
	require.Len(t, records, 8)

	periods := make(map[domain.Period]bool)
	for _, rec := range records {
		periods[rec.Period] = true
	}
	assert.Equal(t, map[domain.Period]bool{
		domain.MustPeriod(2023, 3): true,
		domain.MustPeriod(2023, 4): true,
		domain.MustPeriod(2024, 1): true,
		domain.MustPeriod(2024, 2): true,
	}, periods)

	holiday, ok := lookup(records, domain.MustPeriod(2023, 3), "Holiday", domain.MetricVisits)
	require.True(t, ok)
	assert.Equal(t, domain.Float(3_100_000), holiday)

	business, ok := lookup(records, domain.MustPeriod(2024, 2), "Business", domain.MetricVisits)
	require.True(t, ok)
	assert.Equal(t, domain.Float(1_650_000), business)
}

func TestClean_YearAndQuarterColumns(t *testing.T) {
	tests := []struct {
		name string
		rows [][]string
	}{
		{
			name: "labelled quarter column",
			rows: [][]string{
				{"Table 2: Visits by purpose (thousands)"},
				{"Year", "Quarter", "Holiday", "Business"},
				{"2023", "Q4", "2900", "1700"},
				{"2024", "Q1", "2500", "1600"},
				{"", "Q2", "2700", "1650"},
				{"", "Q3", "3000", "1900"},
			},
		},
		{
			name: "unlabelled quarter numbers",
			rows: [][]string{
				{"Table 2: Visits by purpose (thousands)"},
				{"Year", "", "Holiday", "Business"},
				{"2023", "4", "2900", "1700"},
				{"2024", "1", "2500", "1600"},
				{"", "2", "2700", "1650"},
				{"", "3", "3000", "1900"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestCleaner(t)
			records, _, err := c.Clean(table("Purpose", domain.DimensionPurpose, tt.rows...))
			require.NoError(t, err)
			require.Len(t, records, 8)

			first, ok := lookup(records, domain.MustPeriod(2023, 4), "Holiday", domain.MetricVisits)
			require.True(t, ok)
			assert.Equal(t, domain.Float(2_900_000), first)

			carried, ok := lookup(records, domain.MustPeriod(2024, 3), "Business", domain.MetricVisits)
			require.True(t, ok, "the year carries down to rows that leave it blank")
			assert.Equal(t, domain.Float(1_900_000), carried)
		})
	}
}

func TestClean_UnitOverrideFallsBack(t *testing.T) {
	c, handler := newTestCleaner(t, func(o *Options) {
		o.Sheets = []config.SheetMapping{{Sheet: "Transport", Dimension: "transport", Unit: "thousands"}}
	})
	raw := table("Transport", domain.DimensionTransport,
		[]string{"Quarter", "Visits", "Spending (£ million)"},
		[]string{"2024 Q1", "8,300", "5,400"},
		[]string{"2024 Q2", "9,100", "6,000"},
	)

	records, units, err := c.Clean(raw)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, domain.Float(8_300_000), records[0].Metrics[domain.MetricVisits])
	assert.Equal(t, domain.Float(5400), records[0].Metrics[domain.MetricExpenditure], "the header unit applies where the override cannot")

	assert.ElementsMatch(t, UnitLedger{
		{Sheet: "Transport", Metric: domain.MetricVisits, SourceUnit: "thousands", Factor: 1000},
		{Sheet: "Transport", Metric: domain.MetricExpenditure, SourceUnit: "pounds_millions", Factor: 1, OverrideIgnored: "thousands"},
	}, units)
	warnings := handler.GetRecordsByLevel(slog.LevelWarn)
	require.Len(t, warnings, 1, "warned once per metric")
	assert.Equal(t, "unit override does not fit metric, using sheet units", warnings[0].Message)
	assert.Equal(t, string(domain.MetricExpenditure), warnings[0].Attrs["metric"])
}

func TestClean_Errors(t *testing.T) {
	tests := []struct {
		name     string
		raw      domain.RawTable
		wantKind error
		wantText string
	}{
		{
			name:     "empty sheet",
			raw:      table("Purpose", domain.DimensionPurpose, []string{"", ""}),
			wantKind: apperrors.ErrMalformedHeader,
			wantText: "empty",
		},
		{
			name: "no header row",
			raw: table("Purpose", domain.DimensionPurpose,
				[]string{"3100", "1800"},
				[]string{"2900", "1700"},
			),
			wantKind: apperrors.ErrMalformedHeader,
			wantText: "no header row",
		},
		{
			name: "text in a value cell",
			raw: table("Purpose", domain.DimensionPurpose,
				[]string{"Visits"},
				[]string{"Quarter", "Holiday", "Business"},
				[]string{"2023 Q4", "2900", "approx 1700"},
			),
			wantKind: apperrors.ErrUnparsableValue,
			wantText: "C3",
		},
		{
			name: "unparsable quarter on a data row",
			raw: table("Purpose", domain.DimensionPurpose,
				[]string{"Visits"},
				[]string{"Quarter", "Holiday"},
				[]string{"2023 Q4", "2900"},
				[]string{"2023 Q5", "2800"},
			),
			wantKind: apperrors.ErrUnparsableValue,
			wantText: "A4",
		},
		{
			name: "quarters on both axes",
			raw: table("Purpose", domain.DimensionPurpose,
				[]string{"Quarter", "Visits", "2024 Q1"},
				[]string{"2023 Q4", "2900", "2800"},
			),
			wantKind: apperrors.ErrMalformedHeader,
		},
		{
			name: "quarter heading without a year",
			raw: table("Purpose", domain.DimensionPurpose,
				[]string{"Visits"},
				[]string{"Purpose", "Q1", "Q2"},
				[]string{"Holiday", "2500", "2700"},
			),
			wantKind: apperrors.ErrMalformedHeader,
			wantText: "no year above it",
		},
		{
			name: "year column without quarters",
			raw: table("Purpose", domain.DimensionPurpose,
				[]string{"Visits"},
				[]string{"Year", "Holiday"},
				[]string{"2023", "2900"},
			),
			wantKind: apperrors.ErrMalformedHeader,
			wantText: "no quarter column",
		},
		{
			name: "bare quarter before any year",
			raw: table("Purpose", domain.DimensionPurpose,
				[]string{"Year", "Quarter", "Visits"},
				[]string{"", "Q1", "2500"},
			),
			wantKind: apperrors.ErrUnparsableValue,
			wantText: "A2",
		},
		{
			name: "two metrics in one label",
			raw: table("Purpose", domain.DimensionPurpose,
				[]string{"Quarter", "Visits and nights"},
				[]string{"2023 Q4", "2900"},
			),
			wantKind: apperrors.ErrMalformedHeader,
			wantText: "more than one metric",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestCleaner(t)
			_, _, err := c.Clean(tt.raw)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantKind), "got %v", err)
			if tt.wantText != "" {
				assert.Contains(t, err.Error(), tt.wantText)
			}
		})
	}
}

func TestNew_RejectsBadOptions(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{"synonym to unknown target", func(o *Options) { o.Synonyms = map[string]string{"Hols": "Vacation"} }},
		{"conflicting synonyms", func(o *Options) {
			o.Synonyms = map[string]string{"Other": "Miscellaneous", "other": "Business"}
		}},
		{"unknown override metric", func(o *Options) {
			o.Sheets = []config.SheetMapping{{Sheet: "Purpose", Dimension: "purpose", Metric: "arrivals"}}
		}},
		{"money unit on a count metric", func(o *Options) {
			o.Sheets = []config.SheetMapping{{Sheet: "Purpose", Dimension: "purpose", Metric: "visits", Unit: "£m"}}
		}},
		{"unknown unit", func(o *Options) {
			o.Sheets = []config.SheetMapping{{Sheet: "Purpose", Dimension: "purpose", Unit: "furlongs"}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, _ := testutil.NewTestLogger(t)
			opts := OptionsFromConfig(config.Default())
			tt.mutate(&opts)

			_, err := New(schema.NewRegistry(), opts, logger)
			require.Error(t, err)
			kind, ok := apperrors.TypeOf(err)
			require.True(t, ok)
			assert.Equal(t, apperrors.ErrTypeConfig, kind)
		})
	}
}
