package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"bpmn-backend/internal/config"
	"bpmn-backend/pkg/logger"
	"bpmn-backend/pkg/tracer"

	"go.opentelemetry.io/otel/attribute"
)

var (
	ErrUnavailable = errors.New("ocr service is disabled")
	ErrNotPDF      = errors.New("only PDF files are supported")
	ErrNoPages     = errors.New("no pages rendered from PDF")
)

var pdfMagic = []byte("%PDF-")

// Runner 执行外部命令并返回标准输出
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

type Result struct {
	Text  string
	Pages int
}

// Service PDF 先用 pdftoppm 栅格化，再逐页交给 tesseract
type Service struct {
	cfg config.OCRConfig
	run Runner
}

func NewService(cfg config.OCRConfig) *Service {
	if cfg.PdftoppmCommand == "" {
		cfg.PdftoppmCommand = "pdftoppm"
	}
	if cfg.TesseractCommand == "" {
		cfg.TesseractCommand = "tesseract"
	}
	if cfg.Languages == "" {
		cfg.Languages = "rus+eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	return &Service{cfg: cfg, run: execRunner}
}

func (s *Service) WithRunner(run Runner) *Service {
	s.run = run
	return s
}

func (s *Service) Enabled() bool {
	return s.cfg.Enabled
}

func (s *Service) MaxUploadBytes() int64 {
	return s.cfg.MaxUploadBytes
}

// IsPDF 按文件头判断
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(data, pdfMagic)
}

func (s *Service) ExtractPDF(ctx context.Context, pdf []byte) (*Result, error) {
	if !s.cfg.Enabled {
		return nil, ErrUnavailable
	}
	if !IsPDF(pdf) {
		return nil, ErrNotPDF
	}

	ctx, span := tracer.Start(ctx, "ocr.extract_pdf")
	defer span.End()

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	dir, err := os.MkdirTemp("", "ocr-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	input := filepath.Join(dir, "input.pdf")
	if err := os.WriteFile(input, pdf, 0600); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}

	prefix := filepath.Join(dir, "page")
	if _, err := s.run(ctx, s.cfg.PdftoppmCommand, "-r", strconv.Itoa(s.cfg.DPI), "-png", input, prefix); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("rasterize pdf: %w", err)
	}

	pages, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, ErrNoPages
	}
	// pdftoppm 的页码按位数补零，字典序即页序
	sort.Strings(pages)

	texts := make([]string, 0, len(pages))
	for i, page := range pages {
		out, err := s.run(ctx, s.cfg.TesseractCommand, page, "stdout", "-l", s.cfg.Languages)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("recognize page %d: %w", i+1, err)
		}
		texts = append(texts, strings.TrimSpace(string(out)))
	}

	span.SetAttributes(attribute.Int("ocr.pages", len(pages)))
	logger.Infof("OCR finished: %d pages", len(pages))

	return &Result{
		Text:  strings.Join(texts, "\n\n"),
		Pages: len(pages),
	}, nil
}
