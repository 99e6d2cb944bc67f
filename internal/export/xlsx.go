package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"scribe/internal/artifact"
)

const (
	sheetSummary    = "Summary"
	sheetChapters   = "Chapters"
	sheetFlashcards = "Flashcards"
	sheetMoments    = "Key Moments"
)

// WriteWorkbook saves doc as an xlsx workbook at path.
func WriteWorkbook(doc Document, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetSummary); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	n := doc.Notes
	if n == nil {
		n = &artifact.Notes{}
	}

	summary := [][]any{
		{"Title", doc.Title()},
		{"Source", doc.Job.SourceURL},
		{"Job", doc.Job.ID},
		{"Model", n.Model},
		{"Difficulty", string(n.Difficulty)},
		{"Summary", n.Summary},
	}
	for _, bullet := range n.Bullets {
		summary = append(summary, []any{"Key point", bullet})
	}
	for _, item := range n.ActionItems {
		summary = append(summary, []any{"Action item", item})
	}
	if err := writeRows(f, sheetSummary, summary); err != nil {
		return err
	}

	chapters := [][]any{{"Start", "End", "Title", "Summary"}}
	for _, ch := range n.Chapters {
		chapters = append(chapters, []any{artifact.FormatClock(ch.StartTime), artifact.FormatClock(ch.EndTime), ch.Title, ch.Summary})
	}
	flashcards := [][]any{{"Front", "Back"}}
	for _, fc := range n.Flashcards {
		flashcards = append(flashcards, []any{fc.Front, fc.Back})
	}
	moments := [][]any{{"Time", "Seconds", "Label"}}
	for _, km := range n.KeyMoments {
		moments = append(moments, []any{km.Time, km.Seconds, km.Label})
	}

	for _, sheet := range []struct {
		name string
		rows [][]any
	}{
		{sheetChapters, chapters},
		{sheetFlashcards, flashcards},
		{sheetMoments, moments},
	} {
		if _, err := f.NewSheet(sheet.name); err != nil {
			return fmt.Errorf("create sheet %s: %w", sheet.name, err)
		}
		if err := writeRows(f, sheet.name, sheet.rows); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
