// Package report exports learner progress as an Excel workbook.
package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/statsquest/internal/curriculum"
	"github.com/p-n-ai/statsquest/internal/progress"
)

// Sheet names, in workbook order.
const (
	SheetSummary = "Summary"
	SheetTopics  = "Topics"
	SheetBadges  = "Badges"
)

// ContentType is the MIME type of the workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Build creates the workbook. The caller owns the returned file and must Close it.
func Build(units []curriculum.Unit, p progress.Progress, catalog []progress.Badge) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		f.Close()
		return nil, fmt.Errorf("rename default sheet: %w", err)
	}
	for _, name := range []string{SheetTopics, SheetBadges} {
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create header style: %w", err)
	}

	w := &sheetWriter{f: f, header: header}
	w.summary(units, p, catalog)
	w.topics(units, p)
	w.badges(p, catalog)
	if w.err != nil {
		f.Close()
		return nil, w.err
	}

	f.SetActiveSheet(0)
	return f, nil
}

// sheetWriter keeps the first error so the sheet builders read top to bottom.
type sheetWriter struct {
	f      *excelize.File
	header int
	err    error
}

func (w *sheetWriter) row(sheet string, n int, values ...any) {
	if w.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		w.err = err
		return
	}
	if err := w.f.SetSheetRow(sheet, cell, &values); err != nil {
		w.err = fmt.Errorf("write %s row %d: %w", sheet, n, err)
	}
}

func (w *sheetWriter) headerRow(sheet string, titles ...any) {
	w.row(sheet, 1, titles...)
	if w.err != nil {
		return
	}
	last, _ := excelize.CoordinatesToCellName(len(titles), 1)
	if err := w.f.SetCellStyle(sheet, "A1", last, w.header); err != nil {
		w.err = fmt.Errorf("style %s header: %w", sheet, err)
	}
}

func (w *sheetWriter) summary(units []curriculum.Unit, p progress.Progress, catalog []progress.Badge) {
	total := 0
	for _, u := range units {
		total += len(u.Topics)
	}
	s := progress.Summarize(catalog, p)
	next := "-"
	if s.NextBadge != nil {
		next = s.NextBadge.Name
	}

	w.headerRow(SheetSummary, "Metric", "Value")
	w.row(SheetSummary, 2, "Points", p.Points)
	w.row(SheetSummary, 3, "Topics completed", len(p.CompletedTopics))
	w.row(SheetSummary, 4, "Topics available", total)
	w.row(SheetSummary, 5, "Badges earned", len(p.EarnedBadges))
	w.row(SheetSummary, 6, "Badges available", len(catalog))
	w.row(SheetSummary, 7, "Next badge", next)
	w.row(SheetSummary, 8, "Progress to next badge", s.NextBadgeRatio)
	if w.err == nil {
		w.err = w.f.SetColWidth(SheetSummary, "A", "A", 24)
	}
}

func (w *sheetWriter) topics(units []curriculum.Unit, p progress.Progress) {
	w.headerRow(SheetTopics, "Unit", "Unit title", "Topic ID", "Topic", "Completed")
	n := 2
	for _, u := range units {
		for _, t := range u.Topics {
			w.row(SheetTopics, n, u.Number, u.Title, t.ID, t.Title, yesNo(p.HasCompleted(t.ID)))
			n++
		}
	}
	if w.err == nil {
		w.err = w.f.SetColWidth(SheetTopics, "B", "D", 32)
	}
}

func (w *sheetWriter) badges(p progress.Progress, catalog []progress.Badge) {
	w.headerRow(SheetBadges, "Badge ID", "Name", "Description", "Threshold", "Earned")
	for i, b := range catalog {
		w.row(SheetBadges, i+2, b.ID, b.Name, b.Description, b.Threshold, yesNo(p.HasBadge(b.ID)))
	}
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
