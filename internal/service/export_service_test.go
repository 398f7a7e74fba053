package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/ump-quiz/quiz-backend/internal/model"
	"github.com/ump-quiz/quiz-backend/internal/repository"
	"github.com/ump-quiz/quiz-backend/internal/repository/memory"
	"github.com/xuri/excelize/v2"
)

func newExportFixture(t *testing.T) *ExportService {
	t.Helper()
	db := memory.New()
	ctx := context.Background()
	answers := NewAnswerService(db.Sessions(), nil, zerolog.Nop())
	results := NewResultService(db.Sessions(), db.Answers(), db.Results(), nil, 27, zerolog.Nop())

	st := &model.Student{FullName: "Putri, A.", Class: "XII", School: "SMA 1"}
	_ = db.Students().Create(ctx, st)
	token := "ABC123"
	sess := &model.QuizSession{StudentID: st.ID, SessionToken: token, TokenUsed: &token, CurrentLevel: 1, Status: model.SessionStatusActive}
	_ = db.Sessions().Create(ctx, sess)

	for _, in := range []SubmitInput{
		{SessionID: sess.ID, Level: 1, QuestionID: "L1-Q1", SelectedAnswer: "A", CorrectAnswer: "A"},
		{SessionID: sess.ID, Level: 2, QuestionID: "L2-Q4", SelectedAnswer: "B", CorrectAnswer: "D"},
	} {
		if _, _, err := answers.Submit(ctx, in); err != nil {
			t.Fatalf("Submit returned error: %v", err)
		}
	}
	if _, err := results.Finalize(ctx, FinalizeInput{SessionID: sess.ID, Status: "stopped_wrong"}); err != nil {
		t.Fatalf("Finalize returned error: %v", err)
	}

	return NewExportService(db.Results(), db.Answers())
}

func TestAnswerDetail(t *testing.T) {
	got := AnswerDetail([]repository.AnswerBrief{{QuestionID: "q1", IsCorrect: true}, {QuestionID: "q2"}})
	if got != "q1:Benar | q2:Salah" {
		t.Fatalf("AnswerDetail = %q", got)
	}
	if AnswerDetail(nil) != "" {
		t.Fatalf("AnswerDetail(nil) should be empty")
	}
}

func TestExportCSV(t *testing.T) {
	svc := newExportFixture(t)
	var buf bytes.Buffer

	n, err := svc.Export(context.Background(), model.ResultFilter{PerPage: 1}, ExportCSV, &buf)
	if err != nil {
		t.Fatalf("Export returned error: %v", err)
	}
	if n != 1 {
		t.Fatalf("exported rows = %d, want 1", n)
	}

	out := buf.String()
	if !strings.HasPrefix(out, "\ufeff") {
		t.Fatalf("CSV is missing the UTF-8 BOM")
	}

	records, err := csv.NewReader(strings.NewReader(strings.TrimPrefix(out, "\ufeff"))).ReadAll()
	if err != nil {
		t.Fatalf("exported CSV does not parse: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want header plus 1", len(records))
	}
	if records[0][0] != "Nama" || records[0][len(records[0])-1] != "Detail Jawaban" {
		t.Fatalf("header = %v", records[0])
	}

	row := records[1]
	if row[0] != "Putri, A." {
		t.Fatalf("name with comma was not quoted correctly: %q", row[0])
	}
	if row[3] != "2" || row[5] != "1" || row[6] != "1" || row[7] != "50.00" {
		t.Fatalf("aggregate columns = %v", row[3:8])
	}
	if row[10] != "ABC123" {
		t.Fatalf("token column = %q", row[10])
	}
	if row[11] != "L1-Q1:Benar | L2-Q4:Salah" {
		t.Fatalf("detail column = %q", row[11])
	}
}

func TestExportXLSX(t *testing.T) {
	svc := newExportFixture(t)
	var buf bytes.Buffer

	if _, err := svc.Export(context.Background(), model.ResultFilter{}, ExportXLSX, &buf); err != nil {
		t.Fatalf("Export returned error: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("exported workbook does not open: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Hasil Kuis")
	if err != nil {
		t.Fatalf("GetRows returned error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want header plus 1", len(rows))
	}
	if rows[0][0] != "Nama" || rows[1][0] != "Putri, A." {
		t.Fatalf("unexpected sheet contents: %v", rows)
	}
	if rows[1][11] != "L1-Q1:Benar | L2-Q4:Salah" {
		t.Fatalf("detail cell = %q", rows[1][11])
	}
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	svc := newExportFixture(t)
	if _, err := svc.Export(context.Background(), model.ResultFilter{}, ExportFormat("pdf"), &bytes.Buffer{}); err == nil {
		t.Fatalf("expected error for unsupported format")
	}
}

func TestExportFormatContentType(t *testing.T) {
	if !strings.HasPrefix(ExportCSV.ContentType(), "text/csv") {
		t.Fatalf("csv content type = %q", ExportCSV.ContentType())
	}
	if !strings.Contains(ExportXLSX.ContentType(), "spreadsheetml") {
		t.Fatalf("xlsx content type = %q", ExportXLSX.ContentType())
	}
}
