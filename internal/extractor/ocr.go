package extractor

import (
	"bytes"
	"fmt"
	"image/png"

	"github.com/gen2brain/go-fitz"
	"github.com/otiai10/gosseract/v2"
)

// ocrClient renders PDF pages to images and runs Tesseract over them.
type ocrClient struct {
	dpi  float64
	lang string
}

func newOCRClient(dpi float64, lang string) *ocrClient {
	return &ocrClient{dpi: dpi, lang: lang}
}

// ocrSession holds the renderer and OCR engine open across the pages of
// one document, so the per-page fallback does not reopen the file.
type ocrSession struct {
	client  *ocrClient
	path    string
	doc     *fitz.Document
	tess    *gosseract.Client
	openErr error
}

func (c *ocrClient) open(pdfPath string) *ocrSession {
	return &ocrSession{client: c, path: pdfPath}
}

func (s *ocrSession) ensure() error {
	if s.doc != nil || s.openErr != nil {
		return s.openErr
	}
	doc, err := fitz.New(s.path)
	if err != nil {
		s.openErr = fmt.Errorf("failed to open renderer: %w", err)
		return s.openErr
	}
	tess := gosseract.NewClient()
	if err := tess.SetLanguage(s.client.lang); err != nil {
		doc.Close()
		tess.Close()
		s.openErr = fmt.Errorf("failed to set OCR language: %w", err)
		return s.openErr
	}
	s.doc = doc
	s.tess = tess
	return nil
}

// pageText renders one page (1-based) and returns its OCR text.
func (s *ocrSession) pageText(page int) (string, error) {
	if err := s.ensure(); err != nil {
		return "", err
	}
	img, err := s.doc.ImageDPI(page-1, s.client.dpi)
	if err != nil {
		return "", fmt.Errorf("failed to render page %d: %w", page, err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("failed to encode page %d: %w", page, err)
	}
	if err := s.tess.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", err
	}
	return s.tess.Text()
}

func (s *ocrSession) close() {
	if s.doc != nil {
		s.doc.Close()
	}
	if s.tess != nil {
		s.tess.Close()
	}
}
