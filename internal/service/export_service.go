package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ump-quiz/quiz-backend/internal/model"
	"github.com/ump-quiz/quiz-backend/internal/repository"
	"github.com/xuri/excelize/v2"
)

// ExportFormat selects the export encoding.
type ExportFormat string

const (
	ExportCSV  ExportFormat = "csv"
	ExportXLSX ExportFormat = "xlsx"

	exportSheet      = "Hasil Kuis"
	exportDateLayout = "02/01/2006 15:04"
)

var exportHeader = []string{
	"Nama", "Kelas", "Sekolah", "Level", "Total Soal", "Jawaban Benar", "Jawaban Salah",
	"Akurasi (%)", "Waktu (detik)", "Tanggal Selesai", "Token", "Detail Jawaban",
}

// ContentType returns the MIME type of the format.
func (f ExportFormat) ContentType() string {
	if f == ExportXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// ExportService renders filtered results as CSV or XLSX.
type ExportService struct {
	results ResultStore
	answers AnswerStore
}

// NewExportService creates a new ExportService.
func NewExportService(results ResultStore, answers AnswerStore) *ExportService {
	return &ExportService{results: results, answers: answers}
}

// Export writes every result matching f to w in the requested format and
// returns the number of data rows.
func (s *ExportService) Export(ctx context.Context, f model.ResultFilter, format ExportFormat, w io.Writer) (int, error) {
	f.Page, f.PerPage = 0, 0
	rows, _, err := s.results.List(ctx, f)
	if err != nil {
		return 0, fmt.Errorf("list results: %w", err)
	}

	ids := make([]int64, len(rows))
	for i, r := range rows {
		ids[i] = r.SessionID
	}
	briefs, err := s.answers.ListBriefBySessions(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("load answers: %w", err)
	}

	switch format {
	case ExportCSV:
		return len(rows), writeCSV(w, rows, briefs)
	case ExportXLSX:
		return len(rows), writeXLSX(w, rows, briefs)
	default:
		return 0, fmt.Errorf("%w: unsupported export format %q", ErrValidation, format)
	}
}

// AnswerDetail renders answers as "question_id:Benar|Salah" joined by " | ".
func AnswerDetail(briefs []repository.AnswerBrief) string {
	parts := make([]string, len(briefs))
	for i, b := range briefs {
		verdict := "Salah"
		if b.IsCorrect {
			verdict = "Benar"
		}
		parts[i] = b.QuestionID + ":" + verdict
	}
	return strings.Join(parts, " | ")
}

func tokenLabel(r model.ResultRow) string {
	if r.TokenUsed != nil && *r.TokenUsed != "" {
		return *r.TokenUsed
	}
	return "-"
}

func writeCSV(w io.Writer, rows []model.ResultRow, briefs map[int64][]repository.AnswerBrief) error {
	// UTF-8 BOM so spreadsheet apps detect the encoding.
	if _, err := io.WriteString(w, "\ufeff"); err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	for _, r := range rows {
		record := []string{
			r.FullName,
			r.Class,
			r.School,
			strconv.Itoa(r.HighestLevelReached),
			strconv.Itoa(r.TotalQuestions),
			strconv.Itoa(r.CorrectAnswers),
			strconv.Itoa(r.WrongAnswers),
			strconv.FormatFloat(r.Percentage, 'f', 2, 64),
			strconv.Itoa(r.TimeSpent),
			r.CompletedAt.Local().Format(exportDateLayout),
			tokenLabel(r),
			AnswerDetail(briefs[r.SessionID]),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeXLSX(w io.Writer, rows []model.ResultRow, briefs map[int64][]repository.AnswerBrief) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return err
	}

	header := make([]any, len(exportHeader))
	for i, h := range exportHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(exportSheet, "A1", &header); err != nil {
		return err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	lastCol, _ := excelize.ColumnNumberToName(len(exportHeader))
	if err := f.SetCellStyle(exportSheet, "A1", lastCol+"1", bold); err != nil {
		return err
	}

	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []any{
			r.FullName,
			r.Class,
			r.School,
			r.HighestLevelReached,
			r.TotalQuestions,
			r.CorrectAnswers,
			r.WrongAnswers,
			r.Percentage,
			r.TimeSpent,
			r.CompletedAt.Local().Format(exportDateLayout),
			tokenLabel(r),
			AnswerDetail(briefs[r.SessionID]),
		}
		if err := f.SetSheetRow(exportSheet, cell, &values); err != nil {
			return err
		}
	}

	if err := f.SetColWidth(exportSheet, "A", "C", 28); err != nil {
		return err
	}
	if err := f.SetColWidth(exportSheet, lastCol, lastCol, 60); err != nil {
		return err
	}
	if err := f.SetPanes(exportSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return err
	}

	return f.Write(w)
}
