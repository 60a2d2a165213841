package ocr

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// PDFMetadata is what the document Info dictionary says about its origin.
type PDFMetadata struct {
	HasInfo  bool
	Creator  string
	Producer string
	Title    string
	Pages    int
}

// TextLayer reads the embedded text of a PDF without OCR. The in-process
// reader is tried first, then pdftotext.
func (e *Extractor) TextLayer(ctx context.Context, path string) (Result, error) {
	start := time.Now()
	res := Result{Method: MethodPDFText}

	txt, pages, err := readPlainText(path)
	if err != nil || strings.TrimSpace(txt) == "" {
		if err != nil {
			res.Warnings = append(res.Warnings, "pdf reader: "+err.Error())
		}
		e.logger.Debug("pdf reader gave no text, trying pdftotext", "path", path, "error", err)

		// pdftotext -layout -enc UTF-8 -eol unix <path> -
		out, errb, rerr := e.runner.Run(ctx, e.logger, e.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
		if rerr != nil {
			res.Warnings = append(res.Warnings, string(errb))
			if err == nil {
				err = rerr
			}
			return res, fmt.Errorf("pdf text layer: %w", err)
		}
		txt = string(out)
		// a form-feed separates pages
		pages = 1 + strings.Count(strings.TrimRight(txt, "\f"), "\f")
	}

	res.Text = Normalize(txt)
	res.Pages = pages
	res.Duration = time.Since(start)
	return res, nil
}

func readPlainText(path string) (text string, pages int, err error) {
	err = guardPDF(func() error {
		f, r, err := pdf.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		plain, err := r.GetPlainText()
		if err != nil {
			return err
		}
		var buf bytes.Buffer
		if _, err := io.Copy(&buf, plain); err != nil {
			return err
		}
		text = buf.String()
		pages = r.NumPage()
		return nil
	})
	return text, pages, err
}

// ReadMetadata pulls Creator/Producer from the Info dictionary and counts pages.
// A PDF without an Info dictionary yields HasInfo=false and no error.
func (e *Extractor) ReadMetadata(path string) (*PDFMetadata, error) {
	md := &PDFMetadata{}
	err := guardPDF(func() error {
		f, r, err := pdf.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		info := r.Trailer().Key("Info")
		if !info.IsNull() {
			md.Creator = strings.TrimSpace(info.Key("Creator").Text())
			md.Producer = strings.TrimSpace(info.Key("Producer").Text())
			md.Title = strings.TrimSpace(info.Key("Title").Text())
			md.HasInfo = md.Creator != "" || md.Producer != "" || md.Title != ""
		}
		md.Pages = r.NumPage()
		return nil
	})
	if err != nil {
		return nil, err
	}

	if n, err := api.PageCountFile(path); err == nil {
		md.Pages = n
	} else {
		e.logger.Debug("pdfcpu page count failed", "path", path, "error", err)
	}
	return md, nil
}

// guardPDF turns panics from malformed documents into errors.
func guardPDF(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()
	return fn()
}
