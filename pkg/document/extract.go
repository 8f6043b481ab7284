// Copyright 2025 RagForge
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package document

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"io"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"

	"github.com/ragforge/mcprag/pkg/errs"
)

// Below this many total characters the per-page walk is considered to
// have failed and the full-document export takes over.
const nativeContentFloor = 50

func extractPlainText(content []byte) ([]string, error) {
	text := string(content)
	if strings.TrimSpace(text) == "" {
		return nil, errs.Ef(errs.ExtractionFailed, "document.extract", "file contains no text")
	}
	return []string{text}, nil
}

// extractDocument handles PDF and Word natively. Images and legacy
// binary formats have no native parser here; they surface a typed error
// so the progressive processor can escalate to a vision tier.
func extractDocument(ctx context.Context, filename string, content []byte) ([]string, error) {
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".pdf":
		return extractPDF(ctx, content)
	case ".docx", ".doc":
		return extractWord(content)
	case ".png", ".jpg", ".jpeg":
		return nil, errs.Ef(errs.ExtractionFailed, "document.extract",
			"image %s requires a vision extraction tier", filepath.Base(filename))
	default:
		return extractPlainText(content)
	}
}

func extractPDF(ctx context.Context, content []byte) ([]string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, errs.E(errs.ExtractionFailed, "document.extract", "failed to parse PDF", err)
	}

	var (
		pages []string
		total int
	)
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			slog.Debug("pdf page extraction failed", "page", pageNum, "error", err)
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		pages = append(pages, fmt.Sprintf("## Page %d\n\n%s", pageNum, text))
		total += len(strings.TrimSpace(text))
	}

	if total < nativeContentFloor {
		if fallback := extractPDFWhole(reader); fallback != "" && len(fallback) > total {
			slog.Debug("pdf page walk yielded too little, using full-document export",
				"page_chars", total, "fallback_chars", len(fallback))
			pages = []string{"## Page 1\n\n" + fallback}
			total = len(fallback)
		}
	}
	if total == 0 {
		return nil, errs.Ef(errs.ExtractionFailed, "document.extract", "PDF contains no extractable text")
	}
	return pages, nil
}

// extractPDFWhole exports the document as one text stream, ignoring
// page structure.
func extractPDFWhole(reader *pdf.Reader) string {
	stream, err := reader.GetPlainText()
	if err != nil {
		return ""
	}
	data, err := io.ReadAll(stream)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

var (
	wordParagraphEnd = regexp.MustCompile(`</w:p>`)
	wordTab          = regexp.MustCompile(`<w:tab[^>]*/?>`)
	xmlTag           = regexp.MustCompile(`<[^>]+>`)
)

// extractWord reads a DOCX body. Word files carry no page boundaries,
// so the whole document becomes one section.
func extractWord(content []byte) ([]string, error) {
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, errs.E(errs.ExtractionFailed, "document.extract", "failed to parse Word document", err)
	}
	defer doc.Close()

	text := wordXMLToText(doc.Editable().GetContent())
	if text == "" {
		return nil, errs.Ef(errs.ExtractionFailed, "document.extract", "Word document contains no text")
	}
	return []string{"## Page 1\n\n" + text}, nil
}

// wordXMLToText flattens WordprocessingML to plain text: paragraph ends
// become blank lines, tabs survive, every other tag is dropped.
func wordXMLToText(raw string) string {
	text := wordParagraphEnd.ReplaceAllString(raw, "\n\n")
	text = wordTab.ReplaceAllString(text, "\t")
	text = xmlTag.ReplaceAllString(text, "")
	return strings.TrimSpace(html.UnescapeString(text))
}

// PageCount reports the number of pages in a PDF, used for cost and
// timeout accounting. Non-PDF content counts as a single page.
func PageCount(filename string, content []byte) int {
	if strings.ToLower(filepath.Ext(filename)) != ".pdf" {
		return 1
	}
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return 1
	}
	if n := reader.NumPage(); n > 0 {
		return n
	}
	return 1
}
