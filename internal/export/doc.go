// Package export renders a completed job's notes as Markdown or as an xlsx
// workbook with summary, chapter, flashcard and key-moment sheets.
package export
