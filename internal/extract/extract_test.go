package extract

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/inspection-verifier/constants"
	"github.com/joseph-ayodele/inspection-verifier/internal/common"
	"github.com/joseph-ayodele/inspection-verifier/internal/ocr"
)

type fakeEngine struct {
	pdf      ocr.Result
	pdfErr   error
	layer    ocr.Result
	layerErr error
	img      ocr.Result
	imgErr   error
	md       *ocr.PDFMetadata
	mdErr    error

	calls []string
}

func (f *fakeEngine) RecognizePDF(context.Context, string) (ocr.Result, error) {
	f.calls = append(f.calls, "pdf")
	return f.pdf, f.pdfErr
}

func (f *fakeEngine) TextLayer(context.Context, string) (ocr.Result, error) {
	f.calls = append(f.calls, "layer")
	return f.layer, f.layerErr
}

func (f *fakeEngine) RecognizeImage(context.Context, string) (ocr.Result, error) {
	f.calls = append(f.calls, "image")
	return f.img, f.imgErr
}

func (f *fakeEngine) ReadMetadata(string) (*ocr.PDFMetadata, error) {
	f.calls = append(f.calls, "metadata")
	return f.md, f.mdErr
}

var longText = strings.Repeat("REVISION TECNICA PATENTE ABC123 ", 5)

func TestUnsupportedTypeBeforeExtraction(t *testing.T) {
	eng := &fakeEngine{}
	a := NewAdapter(eng, nil)

	_, err := a.ExtractText(context.Background(), Source{Name: "a.docx", MimeType: "application/msword"})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrUnsupportedType)
	assert.Empty(t, eng.calls)
}

func TestPDFSufficientPrimaryIsKept(t *testing.T) {
	eng := &fakeEngine{
		pdf: ocr.Result{Text: longText, Pages: 1},
		md:  &ocr.PDFMetadata{HasInfo: true, Creator: "Word", Pages: 1},
	}
	a := NewAdapter(eng, nil)

	res, err := a.ExtractText(context.Background(), Source{Name: "c.pdf", MimeType: "application/pdf"})
	require.NoError(t, err)
	assert.Equal(t, constants.PDF, res.Type)
	assert.Equal(t, longText, res.Text)
	assert.Equal(t, ocr.MethodPDFOCR, res.Method)
	assert.Nil(t, res.OCRConfidence)
	require.NotNil(t, res.Metadata)
	assert.Equal(t, "Word", res.Metadata.Creator)
	assert.Equal(t, []string{"pdf", "metadata"}, eng.calls)
}

func TestPDFShortPrimaryUsesLongerFallback(t *testing.T) {
	eng := &fakeEngine{
		pdf:   ocr.Result{Text: "poco texto"},
		layer: ocr.Result{Text: longText, Pages: 2},
		md:    &ocr.PDFMetadata{Pages: 2},
	}
	a := NewAdapter(eng, nil)

	res, err := a.ExtractText(context.Background(), Source{Name: "c.pdf", MimeType: "application/pdf"})
	require.NoError(t, err)
	assert.Equal(t, longText, res.Text)
	assert.Equal(t, ocr.MethodPDFText, res.Method)
	assert.Equal(t, 2, res.Pages)
}

func TestPDFShortPrimaryKeptWhenFallbackShorter(t *testing.T) {
	eng := &fakeEngine{
		pdf:   ocr.Result{Text: "texto corto de ocr"},
		layer: ocr.Result{Text: "x"},
		md:    &ocr.PDFMetadata{},
	}
	a := NewAdapter(eng, nil)

	res, err := a.ExtractText(context.Background(), Source{Name: "c.pdf", MimeType: "application/pdf"})
	require.NoError(t, err)
	assert.Equal(t, "texto corto de ocr", res.Text)
	assert.Equal(t, ocr.MethodPDFOCR, res.Method)
}

func TestPDFPrimaryErrorFallsBack(t *testing.T) {
	eng := &fakeEngine{
		pdfErr: errors.New("tesseract missing"),
		layer:  ocr.Result{Text: "texto embebido"},
		mdErr:  errors.New("broken xref"),
	}
	a := NewAdapter(eng, nil)

	res, err := a.ExtractText(context.Background(), Source{Name: "c.pdf", MimeType: "application/pdf"})
	require.NoError(t, err)
	assert.Equal(t, "texto embebido", res.Text)
	assert.Nil(t, res.Metadata)
	assert.NotEmpty(t, res.Warnings)
}

func TestPDFBothEmptyIsExtractionFailure(t *testing.T) {
	eng := &fakeEngine{
		pdfErr:   errors.New("ocr down"),
		layerErr: errors.New("no text layer"),
	}
	a := NewAdapter(eng, nil)

	_, err := a.ExtractText(context.Background(), Source{Name: "c.pdf", MimeType: "application/pdf"})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrExtractionFailure)
	assert.Contains(t, err.Error(), "ocr down")
	assert.Contains(t, err.Error(), "no text layer")

	eng = &fakeEngine{}
	_, err = NewAdapter(eng, nil).ExtractText(context.Background(), Source{Name: "c.pdf", MimeType: "application/pdf"})
	assert.ErrorIs(t, err, common.ErrExtractionFailure)
}

func TestImageCarriesConfidence(t *testing.T) {
	eng := &fakeEngine{img: ocr.Result{Text: "PATENTE ABC123", Confidence: 42.5, Pages: 1}}
	a := NewAdapter(eng, nil)

	res, err := a.ExtractText(context.Background(), Source{Name: "p.jpg", MimeType: "image/jpeg"})
	require.NoError(t, err)
	assert.Equal(t, constants.IMAGE, res.Type)
	require.NotNil(t, res.OCRConfidence)
	assert.InDelta(t, 42.5, *res.OCRConfidence, 0.001)
	assert.Equal(t, []string{"image"}, eng.calls)
}

func TestImageErrorIsExtractionFailure(t *testing.T) {
	eng := &fakeEngine{imgErr: errors.New("decode failed")}
	_, err := NewAdapter(eng, nil).ExtractText(context.Background(), Source{Name: "p.png", MimeType: "image/png"})
	assert.ErrorIs(t, err, common.ErrExtractionFailure)
}
