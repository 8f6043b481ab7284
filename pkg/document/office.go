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
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ragforge/mcprag/pkg/errs"
)

// Spreadsheets can be enormous; cap cells per sheet so one workbook
// cannot dominate a knowledge base.
const maxCellsPerSheet = 1000

func extractOffice(ctx context.Context, filename string, content []byte) ([]string, error) {
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".xlsx", ".xls":
		return extractWorkbook(ctx, content)
	case ".pptx", ".ppt":
		return extractSlides(content)
	default:
		return nil, errs.Ef(errs.ExtractionFailed, "document.office", "unsupported office format %s", ext)
	}
}

// extractWorkbook renders each sheet as a Markdown section of pipe rows.
func extractWorkbook(ctx context.Context, content []byte) ([]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, errs.E(errs.ExtractionFailed, "document.office", "failed to open workbook", err)
	}
	defer f.Close()

	var sections []string
	for _, sheet := range f.GetSheetList() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}

		var b strings.Builder
		fmt.Fprintf(&b, "## Sheet: %s\n\n", sheet)
		cells := 0
		for _, row := range rows {
			if cells >= maxCellsPerSheet {
				b.WriteString("... (truncated)\n")
				break
			}
			trimmed := make([]string, 0, len(row))
			for _, cell := range row {
				if text := strings.TrimSpace(cell); text != "" {
					trimmed = append(trimmed, text)
					cells++
				}
			}
			if len(trimmed) > 0 {
				b.WriteString("| " + strings.Join(trimmed, " | ") + " |\n")
			}
		}
		if cells > 0 {
			sections = append(sections, strings.TrimSpace(b.String()))
		}
	}

	if len(sections) == 0 {
		return nil, errs.Ef(errs.ExtractionFailed, "document.office", "workbook contains no cell data")
	}
	return sections, nil
}

// extractSlides walks the OOXML package directly: each slide part
// becomes one page section built from its text runs.
func extractSlides(content []byte) ([]string, error) {
	archive, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, errs.E(errs.ExtractionFailed, "document.office", "failed to open presentation", err)
	}

	slides := make(map[int]*zip.File)
	numbers := make([]int, 0)
	for _, file := range archive.File {
		n, ok := slideNumber(file.Name)
		if !ok {
			continue
		}
		slides[n] = file
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	var sections []string
	for _, n := range numbers {
		text, err := slideText(slides[n])
		if err != nil || text == "" {
			continue
		}
		sections = append(sections, fmt.Sprintf("## Page %d\n\n%s", n, text))
	}
	if len(sections) == 0 {
		return nil, errs.Ef(errs.ExtractionFailed, "document.office", "presentation contains no text")
	}
	return sections, nil
}

func slideNumber(name string) (int, bool) {
	if !strings.HasPrefix(name, "ppt/slides/slide") || !strings.HasSuffix(name, ".xml") {
		return 0, false
	}
	digits := strings.TrimSuffix(strings.TrimPrefix(name, "ppt/slides/slide"), ".xml")
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}

// slideText collects the <a:t> runs of one slide, one paragraph per
// line.
func slideText(file *zip.File) (string, error) {
	rc, err := file.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	decoder := xml.NewDecoder(rc)
	var (
		b      strings.Builder
		inRun  bool
		inPara bool
	)
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := token.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inRun = true
			case "p":
				inPara = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inRun = false
			case "p":
				if inPara {
					b.WriteString("\n")
					inPara = false
				}
			}
		case xml.CharData:
			if inRun {
				b.Write(t)
			}
		}
	}
	return strings.TrimSpace(b.String()), nil
}
