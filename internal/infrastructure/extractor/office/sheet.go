package office

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/legal-intake/internal/core/domain"
)

// extractXLSX renders every sheet as a titled block of tab-separated rows.
// Each sheet counts as one page.
func extractXLSX(raw []byte, maxRows int) (domain.ExtractedText, error) {
	f, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return domain.ExtractedText{}, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	var b strings.Builder
	for _, sheet := range sheets {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return domain.ExtractedText{}, fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		if maxRows > 0 && len(rows) > maxRows {
			rows = rows[:maxRows]
		}
		b.WriteString(sheet)
		b.WriteByte('\n')
		for _, row := range rows {
			line := strings.TrimRight(strings.Join(row, "\t"), "\t ")
			if line == "" {
				continue
			}
			b.WriteString(line)
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}

	out := domain.ExtractedText{
		Text:      strings.TrimSpace(b.String()),
		PageCount: len(sheets),
	}
	if props, err := f.GetDocProps(); err == nil && props != nil {
		out.Metadata = domain.DocumentMetadata{
			Title:    props.Title,
			Author:   props.Creator,
			Created:  parseW3CDate(props.Created),
			Modified: parseW3CDate(props.Modified),
		}
	}
	return out, nil
}
