package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/vinodismyname/shopperinsights/internal/analytics"
)

// Sheet names, in workbook order.
const (
	SheetSummary     = "Summary"
	SheetEntryExit   = "EntryExit"
	SheetDepth       = "Depth"
	SheetPaths       = "Paths"
	SheetTransitions = "Transitions"
	SheetClicks      = "ClickPatterns"
	SheetFunnel      = "Funnel"
	SheetSegments    = "Segments"
	SheetProfiles    = "SegmentProfiles"
	SheetBehavior    = "Behavior"
	SheetHourly      = "HourlyActivity"
	SheetSales       = "Sales"
)

// SheetNames lists the sheets Workbook writes, in order.
func SheetNames() []string {
	return []string{
		SheetSummary, SheetEntryExit, SheetDepth, SheetPaths, SheetTransitions, SheetClicks,
		SheetFunnel, SheetSegments, SheetProfiles, SheetBehavior, SheetHourly, SheetSales,
	}
}

type sheet struct {
	name   string
	header []any
	rows   [][]any
}

// Workbook lays a report out as one sheet per mapping. Ranked mappings keep
// their rank order top to bottom.
func Workbook(rep analytics.Report) (*excelize.File, error) {
	f := excelize.NewFile()
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	for i, sh := range sheets(rep) {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sh.name); err != nil {
				_ = f.Close()
				return nil, err
			}
		} else if _, err := f.NewSheet(sh.name); err != nil {
			_ = f.Close()
			return nil, err
		}
		if err := writeSheet(f, sh, bold); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("export: sheet %s: %w", sh.name, err)
		}
	}
	f.SetActiveSheet(0)
	return f, nil
}

// WriteFile saves the report workbook to path.
func WriteFile(path string, rep analytics.Report) error {
	f, err := Workbook(rep)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("export: save %s: %w", path, err)
	}
	return nil
}

func writeSheet(f *excelize.File, sh sheet, style int) error {
	if err := f.SetSheetRow(sh.name, "A1", &sh.header); err != nil {
		return err
	}
	if err := f.SetRowStyle(sh.name, 1, 1, style); err != nil {
		return err
	}
	for i, r := range sh.rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := r
		if err := f.SetSheetRow(sh.name, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

func sheets(rep analytics.Report) []sheet {
	m, s := rep.Metrics, rep.Sessions
	out := []sheet{{
		name:   SheetSummary,
		header: []any{"metric", "value"},
		rows: [][]any{
			{"source", rep.Source},
			{"rows", rep.Rows},
			{"total_users", m.TotalUsers},
			{"total_sessions", m.TotalSessions},
			{"conversion_rate", m.ConversionRate},
			{"avg_pages_per_session", m.AvgPagesSession},
			{"bounce_rate", m.BounceRate},
			{"avg_session_duration", s.AvgSessionDuration},
			{"avg_page_views", s.AvgPageViews},
			{"avg_time_by_page", s.AvgTimeByPage},
			{"bottleneck_stage", rep.Funnel.Bottleneck},
		},
	}}
	for _, w := range rep.Warnings {
		out[0].rows = append(out[0].rows, []any{"warning", w})
	}

	entry := sheet{name: SheetEntryExit, header: []any{"kind", "page_type", "sessions"}}
	entry.rows = append(entry.rows, countRows("entry", s.TopEntryPages)...)
	entry.rows = append(entry.rows, countRows("exit", s.TopExitPages)...)
	out = append(out, entry)

	depth := sheet{name: SheetDepth, header: []any{"depth", "sessions"}}
	for _, d := range s.DepthDistribution {
		depth.rows = append(depth.rows, []any{d.Depth, d.Count})
	}
	out = append(out, depth)

	paths := sheet{name: SheetPaths, header: []any{"kind", "sequence", "sessions"}}
	paths.rows = append(paths.rows, countRows("page_path", rep.Paths.CommonPaths)...)
	paths.rows = append(paths.rows, countRows("action_sequence", rep.Paths.ActionSequences)...)
	out = append(out, paths)

	tr := sheet{name: SheetTransitions, header: []any{"from", "to", "count"}}
	for _, t := range rep.Paths.TopTransitions {
		tr.rows = append(tr.rows, []any{t.From, t.To, t.Count})
	}
	out = append(out, tr)

	clicks := sheet{name: SheetClicks, header: []any{"pattern", "clicks"}}
	clicks.rows = countRows("", rep.Paths.ClickPatterns)
	out = append(out, clicks)

	funnel := sheet{name: SheetFunnel, header: []any{"stage", "sessions", "rate", "step_conversion"}}
	for i, st := range rep.Funnel.Stages {
		funnel.rows = append(funnel.rows, []any{st.Key, st.Count, rep.Funnel.Rates[i].Value, rep.Funnel.StepConversion[i].Value})
	}
	out = append(out, funnel)

	segs := sheet{name: SheetSegments, header: []any{"user_id", "segment"}}
	for _, a := range rep.Segments {
		segs.rows = append(segs.rows, []any{a.UserID, a.Segment})
	}
	out = append(out, segs)

	prof := sheet{name: SheetProfiles, header: []any{"segment", "users"}}
	for _, name := range analytics.FeatureNames {
		prof.header = append(prof.header, name)
	}
	if rep.Segmentation != nil {
		for _, p := range rep.Segmentation.Profiles {
			prof.rows = append(prof.rows, []any{p.Segment, p.Users, p.Sessions, p.Purchases, p.CategoryDiversity, p.PlatformDiversity})
		}
	}
	out = append(out, prof)

	b := rep.Behavior
	beh := sheet{name: SheetBehavior, header: []any{"dimension", "value", "events"}}
	beh.rows = append(beh.rows, countRows("device_type", b.DeviceUsage)...)
	beh.rows = append(beh.rows, countRows("category", b.CategoryPreferences)...)
	beh.rows = append(beh.rows, countRows("action", b.ActionDistribution)...)
	beh.rows = append(beh.rows, countRows("platform", b.PlatformDistribution)...)
	out = append(out, beh)

	hourly := sheet{name: SheetHourly, header: []any{"hour", "events"}}
	for _, h := range b.HourlyActivity {
		hourly.rows = append(hourly.rows, []any{h.Hour, h.Count})
	}
	out = append(out, hourly)

	sales := sheet{name: SheetSales, header: []any{"dimension", "value", "purchases"}}
	sales.rows = append(sales.rows, countRows("product_id", rep.Sales.TopProducts)...)
	sales.rows = append(sales.rows, countRows("category", rep.Sales.CategorySales)...)
	sales.rows = append(sales.rows, countRows("month", rep.Sales.MonthlySales)...)
	sales.rows = append(sales.rows, countRows("platform", rep.Sales.PlatformSales)...)
	out = append(out, sales)
	return out
}

// countRows renders ranked counts, prefixed by kind unless kind is empty.
func countRows(kind string, counts []analytics.Count) [][]any {
	rows := make([][]any, 0, len(counts))
	for _, c := range counts {
		if kind == "" {
			rows = append(rows, []any{c.Key, c.Count})
			continue
		}
		rows = append(rows, []any{kind, c.Key, c.Count})
	}
	return rows
}
