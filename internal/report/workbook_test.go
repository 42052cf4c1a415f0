package report_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/reviserx/internal/report"
	"github.com/p-n-ai/reviserx/internal/study"
)

func TestWriteWorkbook(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	end := t0.Add(40 * time.Minute)

	data := report.Data{
		UserID: "user1",
		Progress: []study.Progress{
			{UserID: "user1", TopicID: "heart-anatomy", QuestionsAttempted: 8, QuestionsCorrect: 6, LastStudied: end},
			{UserID: "user1", TopicID: "retired-topic", QuestionsAttempted: 2, QuestionsCorrect: 2, LastStudied: t0},
		},
		Sessions: []study.Session{
			{ID: "s1", UserID: "user1", TopicID: "heart-anatomy", StartTime: t0, EndTime: &end, QuestionsAttempted: 8, QuestionsCorrect: 6},
		},
		TopicName: func(id string) (string, bool) {
			if id == "heart-anatomy" {
				return "Heart Anatomy", true
			}
			return "", false
		},
		GeneratedAt: end,
	}

	var buf bytes.Buffer
	if err := report.WriteWorkbook(&buf, data); err != nil {
		t.Fatalf("WriteWorkbook() error = %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	want := []string{report.SummarySheet, report.ProgressSheet, report.SessionsSheet}
	if len(sheets) != len(want) {
		t.Fatalf("sheets = %v, want %v", sheets, want)
	}
	for i := range want {
		if sheets[i] != want[i] {
			t.Errorf("sheet %d = %s, want %s", i, sheets[i], want[i])
		}
	}

	progress, err := f.GetRows(report.ProgressSheet)
	if err != nil {
		t.Fatalf("GetRows(Progress) error = %v", err)
	}
	if len(progress) != 3 {
		t.Fatalf("Progress rows = %d, want header + 2", len(progress))
	}
	if progress[1][1] != "Heart Anatomy" || progress[1][4] != "75" {
		t.Errorf("Progress row 1 = %v", progress[1])
	}
	if progress[2][1] != "retired-topic" {
		t.Errorf("unresolved topic label = %q, want raw id", progress[2][1])
	}

	sessions, err := f.GetRows(report.SessionsSheet)
	if err != nil {
		t.Fatalf("GetRows(Sessions) error = %v", err)
	}
	if len(sessions) != 2 || sessions[1][0] != "s1" || sessions[1][4] != "40" {
		t.Errorf("Sessions rows = %v", sessions)
	}

	accuracy, err := f.GetCellValue(report.SummarySheet, "B6")
	if err != nil {
		t.Fatalf("GetCellValue() error = %v", err)
	}
	if accuracy != "80" {
		t.Errorf("summary accuracy = %q, want 80", accuracy)
	}
}

func TestWriteWorkbook_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := report.WriteWorkbook(&buf, report.Data{UserID: "user1"}); err != nil {
		t.Fatalf("WriteWorkbook() error = %v", err)
	}
	if buf.Len() == 0 {
		t.Error("empty workbook produced no bytes")
	}
}
