package bank

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ExcelSource reads the first sheet of a workbook. The header row must have a
// "question" column plus either an "answers" column (comma separated, correct
// first) or "correct", "wrong1", "wrong2", "wrong3" columns.
type ExcelSource struct {
	Path string
}

var splitAnswerColumns = []string{"correct", "wrong1", "wrong2", "wrong3"}

func (s ExcelSource) Load(ctx context.Context) ([]string, error) {
	_ = ctx
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open excel bank: %w", err)
	}
	defer func() { _ = f.Close() }()
	return ReadExcel(f)
}

func ReadExcel(r io.Reader) ([]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open excel: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("excel sheet is empty")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) < 2 {
		return nil, errors.New("no data rows found")
	}

	header := map[string]int{}
	for i, h := range rows[0] {
		header[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := header["question"]; !ok {
		return nil, errors.New("missing required column: question")
	}
	_, joined := header["answers"]
	if !joined {
		for _, col := range splitAnswerColumns {
			if _, ok := header[col]; !ok {
				return nil, fmt.Errorf("missing required column: answers or %s", col)
			}
		}
	}

	blocks := make([]string, 0, len(rows)-1)
	for i, row := range rows[1:] {
		get := func(key string) string {
			idx, ok := header[key]
			if !ok || idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}

		question := get("question")
		var answers []string
		if joined {
			if raw := get("answers"); raw != "" {
				answers = strings.Split(raw, ",")
			}
		} else {
			for _, col := range splitAnswerColumns {
				if v := get(col); v != "" {
					answers = append(answers, v)
				}
			}
		}
		if question == "" && len(answers) == 0 {
			continue
		}
		entry := Entry{Question: question, Answers: answers}
		if err := entry.Validate(); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		blocks = append(blocks, entry.Block())
	}
	return blocks, nil
}

func WriteExcelTemplate(w io.Writer) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(0)
	headers := append([]string{"question"}, splitAnswerColumns...)
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	_ = f.SetColWidth(sheet, "A", "A", 48)
	_ = f.SetColWidth(sheet, "B", "E", 22)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write excel: %w", err)
	}
	return nil
}
