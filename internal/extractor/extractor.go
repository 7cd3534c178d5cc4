package extractor

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/rs/zerolog/log"

	"emergency-rag/internal/config"
	"emergency-rag/internal/models"
)

// Extractor turns a source document into an ordered sequence of
// (page number, text) pairs, 1-indexed. PDF pages whose embedded text
// layer is too short or garbled are rendered and run through OCR, page
// by page, since a manual may mix born-digital and scanned pages.
type Extractor struct {
	minPageChars int
	ocr          *ocrClient
}

func New(cfg *config.RAGConfig) *Extractor {
	return &Extractor{
		minPageChars: cfg.MinPageChars,
		ocr:          newOCRClient(float64(cfg.OCRDPI), cfg.OCRLanguage),
	}
}

// Extract dispatches on the file extension. Unsupported formats are an
// input error, a missing path is ErrDocumentNotFound.
func (e *Extractor) Extract(filePath string) ([]models.PageText, error) {
	if _, err := os.Stat(filePath); err != nil {
		return nil, fmt.Errorf("%w: %s", models.ErrDocumentNotFound, filePath)
	}

	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".pdf":
		return e.extractPDF(filePath)
	case ".docx":
		return extractDOCX(filePath)
	case ".txt":
		return extractText(filePath)
	default:
		return nil, fmt.Errorf("unsupported file format: %s", ext)
	}
}

func (e *Extractor) extractPDF(filePath string) ([]models.PageText, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrDocumentNotFound, err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read pdf: %v", models.ErrExtraction, err)
	}

	session := e.ocr.open(filePath)
	defer session.close()

	var pages []models.PageText
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		text, nativeErr := pageText(reader, i)
		if nativeErr == nil && len(text) >= e.minPageChars && !isGarbled(text) {
			pages = append(pages, models.PageText{Page: i, Text: cleanPageText(text)})
			continue
		}

		ocrText, ocrErr := session.pageText(i)
		if ocrErr != nil {
			if nativeErr != nil {
				// Neither the text layer nor rendering worked; skip the
				// page rather than abort the run.
				log.Warn().Int("page", i).
					AnErr("native", nativeErr).AnErr("ocr", ocrErr).
					Msg("Skipping unextractable page")
				continue
			}
			log.Warn().Int("page", i).Err(ocrErr).Msg("OCR fallback failed, keeping short text layer")
			pages = append(pages, models.PageText{Page: i, Text: cleanPageText(text)})
			continue
		}

		log.Debug().Int("page", i).Int("native_chars", len(text)).Msg("Used OCR fallback")
		pages = append(pages, models.PageText{Page: i, Text: cleanPageText(ocrText)})
	}

	if len(pages) == 0 {
		return nil, fmt.Errorf("%w: no usable text extracted from %s", models.ErrExtraction, filePath)
	}
	return pages, nil
}

func pageText(reader *pdf.Reader, pageNum int) (string, error) {
	page := reader.Page(pageNum)
	if page.V.IsNull() {
		return "", fmt.Errorf("page %d is null", pageNum)
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func extractDOCX(filePath string) ([]models.PageText, error) {
	r, err := docx.ReadDocxFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrExtraction, err)
	}
	defer r.Close()

	doc := r.Editable()
	content := strings.TrimSpace(doc.GetContent())
	if content == "" {
		return nil, fmt.Errorf("%w: docx has no text content", models.ErrExtraction)
	}
	// DOCX has no page boundaries; the whole document is one logical page.
	return []models.PageText{{Page: 1, Text: cleanPageText(content)}}, nil
}

func extractText(filePath string) ([]models.PageText, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	text := strings.TrimSpace(strings.ReplaceAll(string(data), "\u00a0", " "))
	if text == "" {
		return nil, fmt.Errorf("%w: text file is empty", models.ErrExtraction)
	}
	return []models.PageText{{Page: 1, Text: text}}, nil
}

var dottedLeaders = regexp.MustCompile(`\.{3,}`)

// isGarbled reports whether a text layer looks like broken encoding, in
// which case the page is treated as scanned.
func isGarbled(text string) bool {
	if text == "" {
		return true
	}
	alpha := 0
	total := 0
	for _, r := range text {
		total++
		if unicode.IsLetter(r) || unicode.IsSpace(r) {
			alpha++
		}
	}
	if total == 0 {
		return true
	}
	for _, junk := range []string{"\\", "ȿ", "ƌ", "ǿ"} {
		if strings.Contains(text, junk) {
			return true
		}
	}
	return float64(alpha)/float64(total) < 0.5
}

// cleanPageText squashes OCR artifacts (dotted leaders, rune runs,
// ruler lines) without destroying the line structure the downstream
// heuristics depend on.
func cleanPageText(text string) string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			lines = append(lines, "")
			continue
		}
		if len(line) > 20 && distinctRunes(line) <= 3 {
			continue
		}
		line = dottedLeaders.ReplaceAllString(line, " ")
		line = collapseRuns(line, 5)
		lines = append(lines, line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// collapseRuns shortens any run of minRun or more identical runes to a
// single rune, removing OCR ruler noise like "-----" or "=====".
func collapseRuns(s string, minRun int) string {
	runes := []rune(s)
	var out []rune
	for i := 0; i < len(runes); {
		j := i
		for j < len(runes) && runes[j] == runes[i] {
			j++
		}
		if j-i >= minRun {
			out = append(out, runes[i])
		} else {
			out = append(out, runes[i:j]...)
		}
		i = j
	}
	return string(out)
}

func distinctRunes(s string) int {
	seen := make(map[rune]struct{}, len(s))
	for _, r := range s {
		seen[r] = struct{}{}
	}
	return len(seen)
}
