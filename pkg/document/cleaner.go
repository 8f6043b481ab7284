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
	"log/slog"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/unicode/norm"

	"github.com/ragforge/mcprag/pkg/config"
)

// Extractor glyph escapes come in three shapes depending on which layer
// mangled the font table first.
var (
	glyphAngle  = regexp.MustCompile(`GLYPH<[^>]+>`)
	glyphEntity = regexp.MustCompile(`GLYPH&lt;[^&]+&gt;`)
	glyphParen  = regexp.MustCompile(`GLYPH\([^)]+\)`)

	// PDF extraction inserts spaces between Thai base characters and
	// their combining marks, and between leading vowels and the
	// consonant they belong to.
	thaiMarkGap    = regexp.MustCompile(`([\x{0E01}-\x{0E2E}])\s+([\x{0E30}-\x{0E3A}\x{0E45}-\x{0E4E}])`)
	thaiLeadingGap = regexp.MustCompile(`([\x{0E40}-\x{0E44}])\s+([\x{0E01}-\x{0E2E}])`)

	tripleNewline  = regexp.MustCompile(`\n{3,}`)
	spaceBeforeEnd = regexp.MustCompile(`[ \t]+([.,;:!?])`)
	spaceRun       = regexp.MustCompile(`[ \t]{2,}`)
)

// Cleaner normalizes extracted text before chunking. Steps run in a
// fixed order; the artifact and Thai repairs can be switched off for
// sources that do not need them.
type Cleaner struct {
	cleanArtifacts bool
	fixThai        bool
	minPageChars   int
}

func NewCleaner(cfg *config.ExtractorConfig) *Cleaner {
	c := &Cleaner{cleanArtifacts: true, fixThai: true, minPageChars: 3}
	if cfg == nil {
		return c
	}
	if cfg.CleanArtifacts != nil {
		c.cleanArtifacts = *cfg.CleanArtifacts
	}
	if cfg.FixThaiEncoding != nil {
		c.fixThai = *cfg.FixThaiEncoding
	}
	if cfg.MinPageChars > 0 {
		c.minPageChars = cfg.MinPageChars
	}
	return c
}

// Clean runs the normalization pipeline on one page.
func (c *Cleaner) Clean(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}

	text = RepairEncoding(text)

	if c.cleanArtifacts {
		text = glyphAngle.ReplaceAllString(text, "")
		text = glyphEntity.ReplaceAllString(text, "")
		text = glyphParen.ReplaceAllString(text, "")
		text = stripControl(text)
	}

	if c.fixThai {
		text = thaiMarkGap.ReplaceAllString(text, "$1$2")
		text = thaiLeadingGap.ReplaceAllString(text, "$1$2")
	}

	text = norm.NFC.String(text)

	if c.cleanArtifacts {
		text = dropLeaderLines(text)
	}

	text = normalizeWhitespace(text)
	return strings.TrimSpace(text)
}

// CleanPages cleans every page and drops those that end up below the
// minimum length.
func (c *Cleaner) CleanPages(pages []string) []string {
	cleaned := make([]string, 0, len(pages))
	for i, page := range pages {
		out := c.Clean(page)
		if utf8.RuneCountInString(out) >= c.minPageChars {
			cleaned = append(cleaned, out)
			continue
		}
		slog.Warn("dropping page after cleaning",
			"page", i+1,
			"original_chars", utf8.RuneCountInString(page),
			"cleaned_chars", utf8.RuneCountInString(out))
	}
	return cleaned
}

// stripControl removes control characters (newline and tab excepted)
// and invisible Unicode marks: BOM, zero-widths, bidi overrides.
func stripControl(text string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t':
			return r
		case r < 0x20 || r == 0x7F:
			return -1
		case r == '\uFEFF':
			return -1
		case r >= 0x200B && r <= 0x200F:
			return -1
		case r >= 0x202A && r <= 0x202E:
			return -1
		}
		return r
	}, text)
}

// dropLeaderLines removes table-of-contents leader runs: lines whose
// non-space content is at least 70% dots.
func dropLeaderLines(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if isLeaderLine(line) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

func isLeaderLine(line string) bool {
	dots, total := 0, 0
	for _, r := range line {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if r == '.' {
			dots++
		}
	}
	return total > 0 && float64(dots)/float64(total) >= 0.7
}

func normalizeWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t\r")
	}
	text = strings.Join(lines, "\n")
	text = tripleNewline.ReplaceAllString(text, "\n\n")
	text = spaceBeforeEnd.ReplaceAllString(text, "$1")
	text = spaceRun.ReplaceAllString(text, " ")
	return text
}

// RepairEncoding recovers text that arrived under the wrong charset.
// It only acts when the replacement character is present: the raw bytes
// are reinterpreted as latin-1 and as cp1252, and the variant with the
// fewest replacement characters wins.
func RepairEncoding(text string) string {
	if utf8.ValidString(text) && !strings.Contains(text, "�") {
		return text
	}

	best := strings.ToValidUTF8(text, "�")
	bestCount := strings.Count(best, "�")

	for _, cm := range []*charmap.Charmap{charmap.ISO8859_1, charmap.Windows1252} {
		candidate, err := cm.NewDecoder().String(text)
		if err != nil {
			continue
		}
		if count := strings.Count(candidate, "�"); count < bestCount {
			best, bestCount = candidate, count
		}
	}
	return best
}
