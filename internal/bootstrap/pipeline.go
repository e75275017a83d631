package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/kirillkom/legal-intake/internal/config"
	"github.com/kirillkom/legal-intake/internal/infrastructure/classifier"
	"github.com/kirillkom/legal-intake/internal/infrastructure/extractor"
	"github.com/kirillkom/legal-intake/internal/infrastructure/extractor/heuristic"
	"github.com/kirillkom/legal-intake/internal/infrastructure/extractor/markup"
	"github.com/kirillkom/legal-intake/internal/infrastructure/extractor/ocr"
	"github.com/kirillkom/legal-intake/internal/infrastructure/extractor/office"
	"github.com/kirillkom/legal-intake/internal/infrastructure/extractor/pdftext"
	"github.com/kirillkom/legal-intake/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/legal-intake/internal/infrastructure/redaction"
)

// Pipeline holds the pure text stages. They need no network and are shared
// by the worker and the tests.
type Pipeline struct {
	Extractor  *extractor.Coordinator
	Redactor   *redaction.Redactor
	Classifier *classifier.Engine
}

func NewPipeline(cfg config.Config, logger *slog.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}

	strategies := extractor.Strategies{
		PDF:       pdftext.NewExtractor(cfg.PDFMaxPages),
		Heuristic: heuristic.NewScanner(cfg.HeuristicMaxMatches),
		Office:    office.NewExtractor(cfg.SheetMaxRows),
		HTML:      markup.NewExtractor(),
		Plain:     plaintext.NewExtractor(),
	}
	if cfg.OCREnabled {
		strategies.OCR = ocr.NewExtractor(ocr.Config{
			Binary:      cfg.TesseractBinary,
			Lang:        cfg.TesseractLang,
			TessdataDir: cfg.TesseractDataDir,
			PSM:         cfg.TesseractPSM,
			Timeout:     ProcessTimeout(cfg),
		}, ocr.NewExecRunner(logger))
	}

	patterns, err := config.LoadRedactionPatterns(cfg.RedactionPatternsPath)
	if err != nil {
		return nil, fmt.Errorf("load redaction patterns: %w", err)
	}
	opts := redaction.Options{IncludeLegal: cfg.RedactionIncludeLegal}
	for _, p := range patterns {
		opts.Custom = append(opts.Custom, redaction.CustomPattern{Category: p.Category, Pattern: p.Pattern})
	}

	taxonomy, err := classifier.LoadTaxonomy(cfg.TaxonomyPath)
	if err != nil {
		return nil, fmt.Errorf("load taxonomy: %w", err)
	}
	engine, err := classifier.NewEngine(taxonomy)
	if err != nil {
		return nil, fmt.Errorf("compile taxonomy: %w", err)
	}

	return &Pipeline{
		Extractor:  extractor.NewCoordinator(strategies, logger),
		Redactor:   redaction.New(opts, logger),
		Classifier: engine,
	}, nil
}
