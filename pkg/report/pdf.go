// Package report renders panel review sheets as HTML and PDF.
package report

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/mscrnt/panelcap/pkg/db"
)

// Paper sizes in inches
const (
	PaperA4     = "a4"
	PaperLetter = "letter"
)

// PDFOptions contains options for PDF generation
type PDFOptions struct {
	Landscape       bool
	PrintBackground bool
	PaperWidth      float64
	PaperHeight     float64
	MarginTop       float64
	MarginBottom    float64
	MarginLeft      float64
	MarginRight     float64
	FooterTemplate  string
	Timeout         time.Duration
}

// DefaultPDFOptions returns A4 portrait with a page-number footer
func DefaultPDFOptions() PDFOptions {
	opts := PDFOptions{
		PrintBackground: true,
		MarginTop:       0.4,
		MarginBottom:    0.5,
		MarginLeft:      0.4,
		MarginRight:     0.4,
		FooterTemplate: `<div style="font-size:8px;width:100%;text-align:center;color:#888">` +
			`<span class="pageNumber"></span> / <span class="totalPages"></span></div>`,
		Timeout: 30 * time.Second,
	}
	_ = opts.SetPaper(PaperA4)
	return opts
}

// SetPaper selects a named paper size
func (o *PDFOptions) SetPaper(name string) error {
	switch name {
	case PaperA4:
		o.PaperWidth, o.PaperHeight = 8.27, 11.69
	case PaperLetter:
		o.PaperWidth, o.PaperHeight = 8.5, 11.0
	default:
		return fmt.Errorf("unknown paper size %q", name)
	}
	return nil
}

// GeneratePDF renders a stored panel's review sheet to outputPath
func (g *Generator) GeneratePDF(ctx context.Context, panelID int64, outputPath string, options *PDFOptions) error {
	html, err := g.GenerateHTML(panelID)
	if err != nil {
		return fmt.Errorf("failed to generate HTML: %w", err)
	}
	return writePDF(ctx, html, outputPath, options)
}

// RenderPDF renders a panel that need not be stored
func (g *Generator) RenderPDF(ctx context.Context, panel *db.Panel, outputPath string, options *PDFOptions) error {
	html, err := g.RenderHTML(panel)
	if err != nil {
		return fmt.Errorf("failed to generate HTML: %w", err)
	}
	return writePDF(ctx, html, outputPath, options)
}

// QuickPDF generates a PDF with default options
func (g *Generator) QuickPDF(panelID int64, outputPath string) error {
	options := DefaultPDFOptions()
	return g.GeneratePDF(context.Background(), panelID, outputPath, &options)
}

func writePDF(ctx context.Context, html, pdfPath string, options *PDFOptions) error {
	if options == nil {
		defaults := DefaultPDFOptions()
		options = &defaults
	}

	pdfData, err := htmlToPDF(ctx, html, options)
	if err != nil {
		return err
	}

	if err := os.WriteFile(pdfPath, pdfData, 0o600); err != nil {
		return fmt.Errorf("failed to write PDF: %w", err)
	}
	return nil
}

// htmlToPDF prints an HTML document with headless Chrome via chromedp
func htmlToPDF(ctx context.Context, html string, options *PDFOptions) ([]byte, error) {
	ctx, cancel := chromedp.NewContext(ctx)
	defer cancel()

	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel = context.WithTimeout(ctx, timeout)
	defer cancel()

	var pdfData []byte
	if err := chromedp.Run(ctx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
		}),
		chromedp.WaitReady("body"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			params := page.PrintToPDF().
				WithLandscape(options.Landscape).
				WithPrintBackground(options.PrintBackground).
				WithPaperWidth(options.PaperWidth).
				WithPaperHeight(options.PaperHeight).
				WithMarginTop(options.MarginTop).
				WithMarginBottom(options.MarginBottom).
				WithMarginLeft(options.MarginLeft).
				WithMarginRight(options.MarginRight)

			if options.FooterTemplate != "" {
				params = params.
					WithDisplayHeaderFooter(true).
					WithHeaderTemplate("<span></span>").
					WithFooterTemplate(options.FooterTemplate)
			}

			var err error
			pdfData, _, err = params.Do(ctx)
			return err
		}),
	); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}

	return pdfData, nil
}
