package extractor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kirillkom/legal-intake/internal/core/domain"
	"github.com/kirillkom/legal-intake/internal/infrastructure/extractor/heuristic"
	"github.com/kirillkom/legal-intake/internal/infrastructure/extractor/pdftext"
	"github.com/kirillkom/legal-intake/internal/infrastructure/extractor/plaintext"
)

type strategyFake struct {
	name  string
	text  string
	err   error
	panic bool
	calls int
}

func (f *strategyFake) Name() string { return f.name }

func (f *strategyFake) Extract(context.Context, []byte) (domain.ExtractedText, error) {
	f.calls++
	if f.panic {
		panic("corrupt cross-reference table")
	}
	if f.err != nil {
		return domain.ExtractedText{}, f.err
	}
	return domain.ExtractedText{Text: f.text, PageCount: 2}, nil
}

func TestCoordinatorFirstPassingStrategyWins(t *testing.T) {
	pdf := &strategyFake{name: domain.MethodPDFParse, text: legalParagraph}
	scan := &strategyFake{name: domain.MethodHeuristicScan, text: legalParagraph}
	c := NewCoordinator(Strategies{PDF: pdf, Heuristic: scan}, nil)

	result := c.Extract(context.Background(), domain.Document{Filename: "decision.pdf", MimeType: "application/pdf", Raw: []byte("x")})
	if !result.Success || result.Method != domain.MethodPDFParse {
		t.Fatalf("expected pdf-parse success, got %+v", result)
	}
	if scan.calls != 0 {
		t.Fatalf("fallback must not run after a passing strategy")
	}
	if result.PageCount != 2 {
		t.Fatalf("expected page count from strategy, got %d", result.PageCount)
	}
}

func TestCoordinatorFallsBackOnShortOutput(t *testing.T) {
	pdf := &strategyFake{name: domain.MethodPDFParse, text: "Page 1"}
	scan := &strategyFake{name: domain.MethodHeuristicScan, text: legalParagraph}
	c := NewCoordinator(Strategies{PDF: pdf, Heuristic: scan}, nil)

	result := c.Extract(context.Background(), domain.Document{Filename: "decision.pdf", MimeType: "application/pdf"})
	if !result.Success || result.Method != domain.MethodHeuristicScan {
		t.Fatalf("expected heuristic-scan success, got %+v", result)
	}
	if len(result.Attempts) != 2 || result.Attempts[0].Passed || !strings.Contains(result.Attempts[0].Reason, "below 100") {
		t.Fatalf("unexpected attempts: %+v", result.Attempts)
	}
}

func TestCoordinatorRecoversStrategyPanic(t *testing.T) {
	pdf := &strategyFake{name: domain.MethodPDFParse, panic: true}
	scan := &strategyFake{name: domain.MethodHeuristicScan, text: legalParagraph}
	c := NewCoordinator(Strategies{PDF: pdf, Heuristic: scan}, nil)

	result := c.Extract(context.Background(), domain.Document{Filename: "broken.pdf", MimeType: "application/pdf"})
	if !result.Success || result.Method != domain.MethodHeuristicScan {
		t.Fatalf("expected fallback after panic, got %+v", result)
	}
	if !strings.Contains(result.Attempts[0].Reason, "panicked") {
		t.Fatalf("expected panic recorded, got %q", result.Attempts[0].Reason)
	}
}

func TestCoordinatorExhaustedPlanReportsLastReason(t *testing.T) {
	pdf := &strategyFake{name: domain.MethodPDFParse, err: errors.New("malformed xref")}
	scan := &strategyFake{name: domain.MethodHeuristicScan, text: strings.Repeat("0101 ", 60)}
	c := NewCoordinator(Strategies{PDF: pdf, Heuristic: scan}, nil)

	result := c.Extract(context.Background(), domain.Document{Filename: "scan.pdf", MimeType: "application/pdf"})
	if result.Success {
		t.Fatalf("expected failure, got %+v", result)
	}
	if result.Method != domain.MethodAllFailed || result.Text != "" {
		t.Fatalf("unexpected failure shape: %+v", result)
	}
	if !strings.HasPrefix(result.Error, domain.MethodHeuristicScan+": quality:") {
		t.Fatalf("expected last strategy reason, got %q", result.Error)
	}
}

func TestCoordinatorNeverSendsPDFToOCR(t *testing.T) {
	ocr := &strategyFake{name: domain.MethodOCR, text: legalParagraph}
	c := NewCoordinator(Strategies{OCR: ocr}, nil)

	result := c.Extract(context.Background(), domain.Document{Filename: "scan.pdf", MimeType: "application/pdf"})
	if result.Success || ocr.calls != 0 {
		t.Fatalf("pdf must not reach ocr: %+v calls=%d", result, ocr.calls)
	}
}

func TestCoordinatorFallbackThresholdIsLower(t *testing.T) {
	html := &strategyFake{name: domain.MethodHTMLParse, err: errors.New("tokenizer failed")}
	// 75 runes: enough for a fallback strategy, but still gated by quality.
	plain := &strategyFake{name: domain.MethodDirectDecode, text: strings.Repeat("abcd ", 15)}
	c := NewCoordinator(Strategies{HTML: html, Plain: plain}, nil)

	result := c.Extract(context.Background(), domain.Document{Filename: "page.html", MimeType: "text/html; charset=utf-8"})
	if result.Success {
		t.Fatalf("expected quality rejection")
	}
	if !strings.Contains(result.Attempts[1].Reason, "quality") {
		t.Fatalf("expected quality gate on fallback, got %q", result.Attempts[1].Reason)
	}
}

func TestCoordinatorCreditsPDFParseForValidPDF(t *testing.T) {
	raw, err := os.ReadFile(filepath.Join("testdata", "declaration.pdf"))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	c := NewCoordinator(Strategies{
		PDF:       pdftext.NewExtractor(0),
		Heuristic: heuristic.NewScanner(0),
		Plain:     plaintext.NewExtractor(),
	}, nil)

	result := c.Extract(context.Background(), domain.Document{Filename: "declaration.pdf", MimeType: "application/pdf", Raw: raw})
	if !result.Success || result.Method != domain.MethodPDFParse {
		t.Fatalf("expected pdf-parse to win, got %+v", result)
	}
	if len(result.Attempts) != 1 || !result.Attempts[0].Passed {
		t.Fatalf("expected a single passing attempt, got %+v", result.Attempts)
	}
	if result.PageCount != 2 || result.Metadata == nil || result.Metadata.Title != "Asylum Declaration" {
		t.Fatalf("unexpected page count or metadata: %d %+v", result.PageCount, result.Metadata)
	}
	if !strings.Contains(result.Text, "application for asylum") {
		t.Fatalf("unexpected text:\n%s", result.Text)
	}
}

func TestCoordinatorFallsBackFromCorruptPDFToHeuristicScan(t *testing.T) {
	raw := strings.Join([]string{
		"%PDF-1.4",
		"1 0 obj",
		"<< /Type /Page /Length 812 >>",
		"stream",
		"BT /F1 14 Tf 72 740 Td (NOTICE TO APPEAR IN REMOVAL PROCEEDINGS) Tj ET",
		"BT /F1 11 Tf 72 712 Td (The Department of Homeland Security alleges that the respondent is not a citizen or national of the United States.) Tj ET",
		"BT /F1 11 Tf 72 698 Td (The respondent is ordered to appear before an immigration judge of the United States Department of Justice.) Tj ET",
		"BT /F1 11 Tf 72 684 Td [(You are required to appear at the hearing) -250 ( on the date set by the immigration court.)] TJ ET",
		"endstream",
		"endobj",
		"\x00\x13\x9f\xfe",
	}, "\n")

	c := NewCoordinator(Strategies{
		PDF:       pdftext.NewExtractor(0),
		Heuristic: heuristic.NewScanner(0),
		Plain:     plaintext.NewExtractor(),
	}, nil)

	result := c.Extract(context.Background(), domain.Document{Filename: "nta.pdf", MimeType: "application/pdf", Raw: []byte(raw)})
	if !result.Success {
		t.Fatalf("expected heuristic recovery, got %+v", result)
	}
	if result.Method != domain.MethodHeuristicScan {
		t.Fatalf("expected heuristic-scan, got %s", result.Method)
	}
	if result.Attempts[0].Method != domain.MethodPDFParse || result.Attempts[0].Passed {
		t.Fatalf("expected failed pdf-parse attempt first, got %+v", result.Attempts)
	}
	for _, want := range []string{"NOTICE TO APPEAR", "immigration judge", "on the date set by the immigration court"} {
		if !strings.Contains(result.Text, want) {
			t.Fatalf("expected %q in recovered text:\n%s", want, result.Text)
		}
	}
	if strings.Contains(result.Text, "endobj") || strings.Contains(result.Text, "/Type") {
		t.Fatalf("container syntax leaked into text:\n%s", result.Text)
	}
}

func TestResolveFamily(t *testing.T) {
	cases := []struct {
		mime     string
		filename string
		want     Family
	}{
		{"application/pdf", "a.bin", FamilyPDF},
		{"APPLICATION/PDF", "", FamilyPDF},
		{"", "Brief.PDF", FamilyPDF},
		{"application/octet-stream", "contract.docx", FamilyOffice},
		{"application/msword", "old.doc", FamilyOffice},
		{"text/rtf", "memo.rtf", FamilyOffice},
		{"image/png", "scan.png", FamilyImage},
		{"text/html; charset=utf-8", "page.html", FamilyHTML},
		{"text/plain; charset=iso-8859-1", "notes.txt", FamilyText},
		{"application/x-unknown", "blob", FamilyUnknown},
	}
	for _, tc := range cases {
		if got := ResolveFamily(tc.mime, tc.filename); got != tc.want {
			t.Fatalf("ResolveFamily(%q, %q) = %s, want %s", tc.mime, tc.filename, got, tc.want)
		}
	}
}

func TestPlanOrder(t *testing.T) {
	c := NewCoordinator(Strategies{
		PDF:       &strategyFake{name: domain.MethodPDFParse},
		Heuristic: &strategyFake{name: domain.MethodHeuristicScan},
		HTML:      &strategyFake{name: domain.MethodHTMLParse},
		Plain:     &strategyFake{name: domain.MethodDirectDecode},
	}, nil)

	got := strings.Join(c.Plan(FamilyPDF), ",")
	if got != "pdf-parse,heuristic-scan" {
		t.Fatalf("unexpected pdf plan %s", got)
	}
	got = strings.Join(c.Plan(FamilyHTML), ",")
	if got != "html-parse,direct-decode" {
		t.Fatalf("unexpected html plan %s", got)
	}
}
