// Package report renders study progress as an Excel workbook.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/reviserx/internal/study"
)

// Sheet names.
const (
	ProgressSheet = "Progress"
	SessionsSheet = "Sessions"
	SummarySheet  = "Summary"
)

const timeLayout = "2006-01-02 15:04"

// TopicNamer resolves a topic id to its display name.
type TopicNamer func(topicID string) (string, bool)

// Data is everything a workbook is built from.
type Data struct {
	UserID   string
	Progress []study.Progress
	Sessions []study.Session
	// TopicName labels rows; nil or unresolved ids fall back to the raw id.
	TopicName   TopicNamer
	GeneratedAt time.Time
}

// WriteWorkbook writes an xlsx file with Summary, Progress and Sessions sheets to w.
func WriteWorkbook(w io.Writer, d Data) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return fmt.Errorf("naming summary sheet: %w", err)
	}
	if err := writeSummary(f, d); err != nil {
		return err
	}
	if err := writeProgress(f, d); err != nil {
		return err
	}
	if err := writeSessions(f, d); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func writeSummary(f *excelize.File, d Data) error {
	s := study.Summarize(d.Progress, d.Sessions)
	last := ""
	if s.LastStudied != nil {
		last = s.LastStudied.Format(timeLayout)
	}
	rows := [][]any{
		{"User", d.UserID},
		{"Generated", d.GeneratedAt.Format(timeLayout)},
		{"Topics studied", s.TopicsStudied},
		{"Questions attempted", s.QuestionsAttempted},
		{"Questions correct", s.QuestionsCorrect},
		{"Accuracy (%)", s.Accuracy},
		{"Sessions", s.Sessions},
		{"Study time (minutes)", int(s.StudyTime.Minutes())},
		{"Last studied", last},
	}
	return writeRows(f, SummarySheet, rows)
}

func writeProgress(f *excelize.File, d Data) error {
	if _, err := f.NewSheet(ProgressSheet); err != nil {
		return fmt.Errorf("creating progress sheet: %w", err)
	}
	rows := [][]any{{"Topic ID", "Topic", "Attempted", "Correct", "Accuracy (%)", "Last studied"}}
	for _, p := range d.Progress {
		rows = append(rows, []any{
			p.TopicID,
			topicLabel(d.TopicName, p.TopicID),
			p.QuestionsAttempted,
			p.QuestionsCorrect,
			p.Accuracy(),
			p.LastStudied.Format(timeLayout),
		})
	}
	return writeRows(f, ProgressSheet, rows)
}

func writeSessions(f *excelize.File, d Data) error {
	if _, err := f.NewSheet(SessionsSheet); err != nil {
		return fmt.Errorf("creating sessions sheet: %w", err)
	}
	rows := [][]any{{"Session ID", "Topic", "Started", "Ended", "Minutes", "Attempted", "Correct"}}
	for _, s := range d.Sessions {
		ended := ""
		if s.EndTime != nil {
			ended = s.EndTime.Format(timeLayout)
		}
		rows = append(rows, []any{
			s.ID,
			topicLabel(d.TopicName, s.TopicID),
			s.StartTime.Format(timeLayout),
			ended,
			int(s.Duration().Minutes()),
			s.QuestionsAttempted,
			s.QuestionsCorrect,
		})
	}
	return writeRows(f, SessionsSheet, rows)
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("writing %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func topicLabel(name TopicNamer, id string) string {
	if name != nil {
		if n, ok := name(id); ok {
			return n
		}
	}
	return id
}
