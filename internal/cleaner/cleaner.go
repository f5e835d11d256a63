package cleaner

import (
	"fmt"
	"log/slog"
	"strings"

	"tourismcli/internal/config"
	apperrors "tourismcli/internal/errors"
	"tourismcli/internal/infrastructure"
	"tourismcli/internal/schema"
	"tourismcli/pkg/contracts/domain"
)

// Options carries the tables the cleaner consults
type Options struct {
	Synonyms      map[string]string
	Sentinels     []string
	Units         config.UnitFactors
	HeaderScanMax int
	// Sheets holds per-sheet metric, unit and header-row overrides
	Sheets []config.SheetMapping
}

// OptionsFromConfig builds cleaner options from the loaded configuration
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Synonyms:      cfg.Cleaning.Synonyms,
		Sentinels:     cfg.Cleaning.Sentinels,
		Units:         cfg.Cleaning.Units,
		HeaderScanMax: cfg.Cleaning.HeaderScanMax,
		Sheets:        cfg.Source.Sheets,
	}
}

// Cleaner turns raw worksheets into clean records
type Cleaner struct {
	registry      *schema.Registry
	vocab         *vocabulary
	sentinels     map[string]bool
	units         config.UnitFactors
	headerScanMax int
	sheets        map[string]sheetOverride
	logger        *slog.Logger
}

type sheetOverride struct {
	mapping config.SheetMapping
	metric  domain.MetricType
	unit    unit
}

// New validates the options against the registry and builds a cleaner
func New(registry *schema.Registry, opts Options, logger *slog.Logger) (*Cleaner, error) {
	vocab, err := newVocabulary(registry, opts.Synonyms)
	if err != nil {
		return nil, apperrors.NewConfigError("invalid synonym table", err)
	}

	c := &Cleaner{
		registry:      registry,
		vocab:         vocab,
		sentinels:     make(map[string]bool, len(opts.Sentinels)),
		units:         opts.Units,
		headerScanMax: opts.HeaderScanMax,
		sheets:        make(map[string]sheetOverride, len(opts.Sheets)),
		logger:        infrastructure.WithComponent(logger, "cleaner"),
	}
	if c.headerScanMax <= 0 {
		c.headerScanMax = config.DefaultHeaderScanMax
	}
	for _, s := range opts.Sentinels {
		if t := strings.ToLower(strings.TrimSpace(s)); t != "" {
			c.sentinels[t] = true
		}
	}

	for _, m := range opts.Sheets {
		o := sheetOverride{mapping: m}
		if m.Metric != "" {
			if !registry.IsMetric(m.Metric) {
				return nil, apperrors.NewConfigError(fmt.Sprintf("sheet %q: unknown metric %q", m.Sheet, m.Metric), nil)
			}
			o.metric = domain.MetricType(m.Metric)
		}
		if m.Unit != "" {
			u, err := parseUnit(m.Unit)
			if err != nil {
				return nil, apperrors.NewConfigError(fmt.Sprintf("sheet %q", m.Sheet), err)
			}
			if o.metric != "" && !u.appliesTo(o.metric) {
				return nil, apperrors.NewConfigError(fmt.Sprintf("sheet %q: unit %s does not apply to %s", m.Sheet, u, o.metric), nil)
			}
			o.unit = u
		}
		c.sheets[sheetKey(m.Sheet)] = o
	}
	return c, nil
}

// Clean repairs the header of one sheet and coerces its cells. Records are
// returned in source order, one per source row and dimension value.
func (c *Cleaner) Clean(raw domain.RawTable) ([]domain.CleanRecord, UnitLedger, error) {
	if raw.Empty() {
		return nil, nil, apperrors.MalformedHeader(raw.Sheet, "sheet is empty")
	}

	grid, err := fillMerges(raw)
	if err != nil {
		return nil, nil, apperrors.MalformedHeader(raw.Sheet, err.Error())
	}

	override := c.sheets[sheetKey(raw.Sheet)]
	h, err := c.detectHeader(raw.Sheet, grid, override.mapping)
	if err != nil {
		return nil, nil, err
	}
	if err := h.checkColumns(raw.Sheet, override.metric); err != nil {
		return nil, nil, err
	}

	run := &sheetRun{
		cleaner:  c,
		sheet:    raw.Sheet,
		dim:      raw.Dimension,
		override: override,
		header:   h,
		grid:     grid,
	}
	if err := run.extract(); err != nil {
		return nil, nil, err
	}

	c.logger.Debug("sheet cleaned",
		slog.String("sheet", raw.Sheet),
		slog.String("layout", h.layout.String()),
		slog.Int("header_rows", h.end-h.start),
		slog.Int("value_columns", len(h.values)),
		slog.Int("records", len(run.records)),
		slog.Int("skipped_rows", run.skipped))
	return run.records, run.ledger, nil
}

// sheetRun holds the state of cleaning one sheet
type sheetRun struct {
	cleaner  *Cleaner
	sheet    string
	dim      domain.DimensionType
	override sheetOverride
	header   *header
	grid     [][]string

	records []domain.CleanRecord
	ledger  UnitLedger
	skipped int
	// year carries down a year column to the rows that leave it blank
	year   int
	warned map[domain.MetricType]bool
}

// rowLabel is what the row's own label contributes to its cells
type rowLabel struct {
	period   domain.Period
	category string
	metric   domain.MetricType
	units    []unit
	interval bool
}

func (s *sheetRun) extract() error {
	h := s.header
	group := ""

	for r := h.end; r < len(s.grid); r++ {
		row := s.grid[r]
		if blankRow(row) {
			continue
		}
		numeric, present := s.scanValues(row)

		var rl rowLabel
		switch h.layout {
		case periodRows:
			p, col, ok := s.rowPeriod(row)
			if !ok {
				if !numeric {
					s.skipped++
					continue
				}
				return apperrors.UnparsableValue(s.sheet, cellName(col, r), row[col])
			}
			rl.period = p
			if h.categoryAxis >= 0 {
				ok, err := s.applyRowLabel(&rl, row, r, numeric)
				if err != nil {
					return err
				}
				if !ok {
					s.skipped++
					continue
				}
			}

		case periodColumns:
			if !present {
				// Label-only rows head the metric rows beneath them.
				if lbl, err := s.cleaner.vocab.classify(row[h.categoryAxis]); err == nil && lbl.kind == kindCategory {
					group = lbl.category
				}
				s.skipped++
				continue
			}
			ok, err := s.applyRowLabel(&rl, row, r, numeric)
			if err != nil {
				return err
			}
			if !ok {
				s.skipped++
				continue
			}
			if rl.category == "" && rl.metric != "" {
				rl.category = group
			}
		}

		if err := s.emitRow(r, row, rl); err != nil {
			return err
		}
	}
	return nil
}

// rowPeriod reads the period of a period-rows data row. Beside a year column
// the quarter cell may be bare, and the year carries down from the last row
// that gave one. On failure it returns the offending column.
func (s *sheetRun) rowPeriod(row []string) (domain.Period, int, bool) {
	h := s.header
	token := row[h.periodAxis]
	if h.yearAxis < 0 {
		p, ok := parsePeriodCell(token)
		return p, h.periodAxis, ok
	}

	if y, ok := parseYear(row[h.yearAxis]); ok {
		s.year = y
	} else if strings.TrimSpace(row[h.yearAxis]) != "" {
		return domain.Period{}, h.yearAxis, false
	}
	if p, ok := parsePeriodCell(token); ok {
		return p, h.periodAxis, true
	}
	q, ok := parseQuarterCell(token)
	if !ok {
		return domain.Period{}, h.periodAxis, false
	}
	if s.year == 0 {
		return domain.Period{}, h.yearAxis, false
	}
	p, err := domain.NewPeriod(s.year, q)
	return p, h.periodAxis, err == nil
}

// scanValues reports whether the row has a number, and whether it has any
// number or explicit missing marker, in its value columns
func (s *sheetRun) scanValues(row []string) (numeric, present bool) {
	for _, cm := range s.header.values {
		switch kind, _ := s.cleaner.classifyCell(row[cm.index]); kind {
		case cellNumber:
			return true, true
		case cellSentinel, cellText:
			present = true
		}
	}
	return false, present
}

// applyRowLabel reads the category-axis cell of a data row. It reports false
// for unlabelled rows that hold only missing markers.
func (s *sheetRun) applyRowLabel(rl *rowLabel, row []string, r int, numeric bool) (bool, error) {
	col := s.header.categoryAxis
	token := row[col]
	lbl, err := s.cleaner.vocab.classify(token)
	if err != nil {
		return false, apperrors.MalformedHeader(s.sheet, fmt.Sprintf("cell %s: %v", cellName(col, r), err))
	}

	switch lbl.kind {
	case kindCategory:
		rl.category = lbl.category
	case kindMetric:
		rl.metric = lbl.metric
	case kindInterval:
		rl.interval = true
		rl.metric = lbl.metric
		rl.category = lbl.category
	case kindBlank:
		if numeric {
			return false, apperrors.UnparsableValue(s.sheet, cellName(col, r), token)
		}
		return false, nil
	default:
		return false, apperrors.UnparsableValue(s.sheet, cellName(col, r), token)
	}
	if lbl.unit != unitNone && lbl.unit != unitPercent {
		rl.units = []unit{lbl.unit}
	}
	return true, nil
}

func (s *sheetRun) emitRow(r int, row []string, rl rowLabel) error {
	type slot struct {
		period   domain.Period
		category string
	}
	index := make(map[slot]int)

	for _, cm := range s.header.values {
		period := rl.period
		if cm.hasPeriod {
			period = cm.period
		}
		category := firstOf(rl.category, cm.category, domain.TotalDimensionValue)

		metric, err := s.resolveMetric(cm, rl)
		if err != nil {
			return err
		}
		interval := cm.interval || rl.interval

		var value domain.NullFloat
		switch kind, v := s.cleaner.classifyCell(row[cm.index]); kind {
		case cellNumber:
			value = domain.Float(v)
		case cellText:
			return apperrors.UnparsableValue(s.sheet, cellName(cm.index, r), row[cm.index])
		}

		key := slot{period: period, category: category}
		i, ok := index[key]
		if !ok {
			s.records = append(s.records, domain.CleanRecord{
				Sheet:          s.sheet,
				Row:            r + 1,
				Period:         period,
				DimensionType:  s.dim,
				DimensionValue: category,
				Metrics:        make(map[domain.MetricType]domain.NullFloat),
			})
			i = len(s.records) - 1
			index[key] = i
		}
		rec := &s.records[i]

		if interval {
			if rec.Intervals == nil {
				rec.Intervals = make(map[domain.MetricType]domain.NullFloat)
			}
			if _, dup := rec.Intervals[metric]; dup {
				return apperrors.MalformedHeader(s.sheet, fmt.Sprintf("row %d: two confidence intervals for %s %s", r+1, category, metric))
			}
			rec.Intervals[metric] = value
			continue
		}

		if _, dup := rec.Metrics[metric]; dup {
			return apperrors.MalformedHeader(s.sheet, fmt.Sprintf("row %d: two values for %s %s", r+1, category, metric))
		}
		u, ignored := s.resolveUnit(cm, rl, metric)
		factor := factorFor(u, s.cleaner.units)
		s.ledger.add(domain.UnitEntry{
			Sheet:           s.sheet,
			Metric:          metric,
			SourceUnit:      string(u),
			Factor:          factor,
			OverrideIgnored: string(ignored),
		})
		if value.Valid {
			value = domain.Float(value.Value * factor)
		}
		rec.Metrics[metric] = value
	}
	return nil
}

// resolveMetric applies the sheet override, then the column, then the row label
func (s *sheetRun) resolveMetric(cm *column, rl rowLabel) (domain.MetricType, error) {
	if s.override.metric != "" {
		return s.override.metric, nil
	}
	switch {
	case cm.metric != "" && rl.metric != "" && cm.metric != rl.metric:
		return "", apperrors.MalformedHeader(s.sheet, fmt.Sprintf("column %s is %s but its row is %s", columnName(cm.index), cm.metric, rl.metric))
	case cm.metric != "":
		return cm.metric, nil
	case rl.metric != "":
		return rl.metric, nil
	case s.header.caption.metric != "":
		return s.header.caption.metric, nil
	}
	return "", apperrors.MalformedHeader(s.sheet, fmt.Sprintf("column %s has no metric", columnName(cm.index)))
}

// resolveUnit applies the sheet override, then the most specific header or
// caption unit that fits the metric, then the metric's default unit. An
// override that does not fit the metric is skipped and returned as ignored.
func (s *sheetRun) resolveUnit(cm *column, rl rowLabel, m domain.MetricType) (u, ignored unit) {
	if o := s.override.unit; o != unitNone {
		if o.appliesTo(m) {
			return o, unitNone
		}
		ignored = o
		if !s.warned[m] {
			if s.warned == nil {
				s.warned = make(map[domain.MetricType]bool)
			}
			s.warned[m] = true
			s.cleaner.logger.Warn("unit override does not fit metric, using sheet units",
				slog.String("sheet", s.sheet),
				slog.String("unit", string(o)),
				slog.String("metric", string(m)),
			)
		}
	}
	for _, group := range [][]unit{rl.units, cm.units, s.header.caption.units} {
		for _, hint := range group {
			if hint.appliesTo(m) {
				return hint, ignored
			}
		}
	}
	return defaultUnit(m), ignored
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func sheetKey(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
