package pdfprocessor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"medextract/logging"
)

// Page is the text of one PDF page.
type Page struct {
	// Number is the 1-indexed page number
	Number int

	// Text is the trimmed page text, empty when the page had none
	Text string

	// Err is non-nil if decoding this page failed
	Err error
}

// Document is the ordered text of a PDF.
type Document struct {
	// Pages holds every processed page in page order
	Pages []Page

	// Text joins non-empty pages, each introduced by a page marker line
	Text string

	// TotalPages is the page count reported by the PDF
	TotalPages int

	// ExtractedPages is the number of pages that yielded text
	ExtractedPages int

	// SkippedPages is the number of pages that were empty or failed
	SkippedPages int

	// EstimatedTokens is the estimated token count of Text
	EstimatedTokens int
}

// PageErrors returns the per-page failures recorded during extraction.
func (d *Document) PageErrors() []error {
	var errs []error
	for _, p := range d.Pages {
		if p.Err != nil {
			errs = append(errs, p.Err)
		}
	}
	return errs
}

// ExtractorConfig holds configuration for PDF text extraction.
type ExtractorConfig struct {
	// MaxPages limits extraction to first N pages (0 for all pages)
	MaxPages int

	// Workers is the number of goroutines decoding pages (<= 1 is sequential)
	Workers int

	// ContinueOnError when true treats a failed page as empty instead of
	// failing the document
	ContinueOnError bool
}

// DefaultExtractorConfig returns sensible default configuration.
func DefaultExtractorConfig() ExtractorConfig {
	return ExtractorConfig{
		MaxPages:        0,
		Workers:         1,
		ContinueOnError: true,
	}
}

// Extractor extracts page-marked text from PDF documents. It holds no
// per-document state and is safe for concurrent use.
type Extractor struct {
	config ExtractorConfig
	logger *logging.Logger
}

// NewExtractor creates a new Extractor. A nil logger disables logging.
func NewExtractor(config ExtractorConfig, logger *logging.Logger) *Extractor {
	if config.Workers < 1 {
		config.Workers = 1
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Extractor{config: config, logger: logger.Named("pdf")}
}

// NewDefaultExtractor creates an Extractor with default configuration.
func NewDefaultExtractor() *Extractor {
	return NewExtractor(DefaultExtractorConfig(), nil)
}

// ExtractFile reads the PDF at path and extracts its text.
func (e *Extractor) ExtractFile(ctx context.Context, path string) (*Document, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ExtractionError{Op: "read", Err: err}
	}
	return e.ExtractBytes(ctx, data)
}

// ExtractBytes extracts text from an in-memory PDF.
//
// Example:
//
//	doc, err := pdfprocessor.NewDefaultExtractor().ExtractBytes(ctx, data)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(doc.Text)
func (e *Extractor) ExtractBytes(ctx context.Context, data []byte) (*Document, error) {
	if !HasPDFHeader(data) {
		return nil, &ExtractionError{Op: "open", Err: ErrNotPDF}
	}

	r, total, err := openReader(data)
	if err != nil {
		return nil, &ExtractionError{Op: "open", Err: err}
	}

	count := total
	if e.config.MaxPages > 0 && e.config.MaxPages < total {
		count = e.config.MaxPages
	}

	pages := make([]Page, count)
	if err := e.extractPages(ctx, data, r, pages); err != nil {
		return nil, err
	}

	doc := assemble(pages, total)

	e.logger.Debug("PDF text extracted",
		zap.Int("total_pages", doc.TotalPages),
		zap.Int("extracted_pages", doc.ExtractedPages),
		zap.Int("skipped_pages", doc.SkippedPages),
		zap.Int("text_length", len(doc.Text)))

	pageErrs := doc.PageErrors()
	if len(pageErrs) > 0 && !e.config.ContinueOnError {
		return nil, &ExtractionError{Op: "page", Err: pageErrs[0]}
	}
	if doc.ExtractedPages == 0 {
		if len(pageErrs) > 0 {
			return nil, &ExtractionError{Op: "page", Err: errors.Join(pageErrs...)}
		}
		return nil, &EmptyDocumentError{Pages: total}
	}
	for _, pe := range pageErrs {
		e.logger.Warn("PDF page skipped", zap.Error(pe))
	}

	return doc, nil
}

// extractPages fills pages in place. With several workers each goroutine
// opens its own reader over the shared bytes and takes every Nth page, so
// page order is fixed by index rather than completion order.
func (e *Extractor) extractPages(ctx context.Context, data []byte, first *pdf.Reader, pages []Page) error {
	workers := e.config.Workers
	if workers > len(pages) {
		workers = len(pages)
	}
	if workers <= 1 {
		for i := range pages {
			if err := ctx.Err(); err != nil {
				return err
			}
			pages[i] = extractPage(first, i+1)
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			r := first
			if w > 0 {
				var err error
				if r, _, err = openReader(data); err != nil {
					return &ExtractionError{Op: "open", Err: err}
				}
			}
			for i := w; i < len(pages); i += workers {
				if err := gctx.Err(); err != nil {
					return err
				}
				pages[i] = extractPage(r, i+1)
			}
			return nil
		})
	}
	return g.Wait()
}

// openReader parses the PDF structure. The decoder panics on some corrupt
// inputs, so panics are turned into errors.
func openReader(data []byte) (r *pdf.Reader, total int, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r, total, err = nil, 0, fmt.Errorf("decoder panic: %v", rec)
		}
	}()

	r, err = pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, 0, err
	}
	return r, r.NumPage(), nil
}

// extractPage extracts text from a single page.
func extractPage(r *pdf.Reader, number int) (page Page) {
	page.Number = number
	defer func() {
		if rec := recover(); rec != nil {
			page.Text = ""
			page.Err = fmt.Errorf("page %d: decoder panic: %v", number, rec)
		}
	}()

	p := r.Page(number)
	if p.V.IsNull() {
		return page
	}

	text, err := p.GetPlainText(nil)
	if err != nil {
		page.Err = fmt.Errorf("page %d: %w", number, err)
		return page
	}
	page.Text = strings.TrimSpace(text)
	return page
}

func assemble(pages []Page, total int) *Document {
	doc := &Document{Pages: pages, TotalPages: total}

	var b strings.Builder
	for _, p := range pages {
		if p.Err != nil || p.Text == "" {
			doc.SkippedPages++
			continue
		}
		doc.ExtractedPages++
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(FormatPageMarker(p.Number))
		b.WriteString("\n")
		b.WriteString(p.Text)
	}

	doc.Text = b.String()
	doc.EstimatedTokens = EstimateTokenCount(doc.Text)
	return doc
}
