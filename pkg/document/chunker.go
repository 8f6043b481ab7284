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
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	markdownHeader = regexp.MustCompile(`(?m)^#{2,6}\s+.+$`)
	blankLine      = regexp.MustCompile(`\n[ \t]*\n`)
)

// ChunkPages splits sections into chunks of at most size characters
// (runes), descending through structure levels until pieces fit:
// headers, then paragraphs, then sentences, then a hard character
// split. An exactly-at-limit section stays whole. Chunks created by
// splitting below the header level carry the previous chunk's trailing
// overlap, snapped to a word boundary.
func ChunkPages(pages []string, size, overlap int) []Chunk {
	chunks := make([]Chunk, 0, len(pages))
	index := 0
	for i, page := range pages {
		for _, piece := range chunkSection(page, size, overlap) {
			piece = strings.TrimSpace(piece)
			if piece == "" {
				continue
			}
			chunks = append(chunks, Chunk{Text: piece, Page: i + 1, Index: index})
			index++
		}
	}
	return chunks
}

func chunkSection(section string, size, overlap int) []string {
	if utf8.RuneCountInString(section) <= size {
		return []string{section}
	}

	var pieces []string
	for _, region := range splitByHeaders(section) {
		if utf8.RuneCountInString(region) <= size {
			pieces = append(pieces, region)
			continue
		}
		// The header line rides along inside the region, so the first
		// piece of an oversized region still starts with its heading.
		split := splitParagraphs(region, size)
		pieces = append(pieces, applyOverlap(split, overlap)...)
	}
	return pieces
}

// splitByHeaders cuts a section at ##..###### lines. Each region begins
// with its header; text before the first header forms its own region.
func splitByHeaders(section string) []string {
	locs := markdownHeader.FindAllStringIndex(section, -1)
	if len(locs) == 0 {
		return []string{section}
	}

	var regions []string
	if pre := section[:locs[0][0]]; strings.TrimSpace(pre) != "" {
		regions = append(regions, pre)
	}
	for i, loc := range locs {
		end := len(section)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		regions = append(regions, section[loc[0]:end])
	}
	return regions
}

func splitParagraphs(text string, size int) []string {
	var (
		pieces  []string
		current string
	)
	flush := func() {
		if strings.TrimSpace(current) != "" {
			pieces = append(pieces, current)
		}
		current = ""
	}

	for _, para := range blankLine.Split(text, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		paraLen := utf8.RuneCountInString(para)

		if current != "" && utf8.RuneCountInString(current)+2+paraLen <= size {
			current += "\n\n" + para
			continue
		}
		flush()
		if paraLen > size {
			pieces = append(pieces, splitSentences(para, size)...)
			continue
		}
		current = para
	}
	flush()
	return pieces
}

func splitSentences(text string, size int) []string {
	var (
		pieces  []string
		current string
	)
	flush := func() {
		if strings.TrimSpace(current) != "" {
			pieces = append(pieces, current)
		}
		current = ""
	}

	for _, sentence := range sentenceSplit(text) {
		sentenceLen := utf8.RuneCountInString(sentence)

		if current != "" && utf8.RuneCountInString(current)+1+sentenceLen <= size {
			current += " " + sentence
			continue
		}
		flush()
		if sentenceLen > size {
			pieces = append(pieces, splitRunes(sentence, size)...)
			continue
		}
		current = sentence
	}
	flush()
	return pieces
}

// sentenceSplit cuts after ./?/! followed by a space and an uppercase
// letter, or immediately after Thai/CJK sentence punctuation.
func sentenceSplit(text string) []string {
	runes := []rune(text)
	var sentences []string
	start := 0

	emit := func(end, next int) {
		if s := strings.TrimSpace(string(runes[start:end])); s != "" {
			sentences = append(sentences, s)
		}
		start = next
	}

	for i := 0; i < len(runes); i++ {
		switch r := runes[i]; r {
		case '。', '！', '？', '!', '?', '.':
			if r == '。' || r == '！' || r == '？' {
				emit(i+1, i+1)
				continue
			}
			if i+2 < len(runes) && runes[i+1] == ' ' && unicode.IsUpper(runes[i+2]) {
				emit(i+1, i+2)
			}
		}
	}
	if start < len(runes) {
		emit(len(runes), len(runes))
	}
	return sentences
}

func splitRunes(text string, size int) []string {
	runes := []rune(text)
	pieces := make([]string, 0, (len(runes)+size-1)/size)
	for start := 0; start < len(runes); start += size {
		end := min(start+size, len(runes))
		pieces = append(pieces, string(runes[start:end]))
	}
	return pieces
}

// applyOverlap prefixes every piece after the first with the trailing
// overlap of its predecessor.
func applyOverlap(pieces []string, overlap int) []string {
	if overlap <= 0 || len(pieces) < 2 {
		return pieces
	}
	out := make([]string, len(pieces))
	out[0] = pieces[0]
	for i := 1; i < len(pieces); i++ {
		if tail := overlapTail(pieces[i-1], overlap); tail != "" {
			out[i] = tail + "\n" + pieces[i]
		} else {
			out[i] = pieces[i]
		}
	}
	return out
}

// overlapTail takes the last overlap runes and snaps forward to the
// first word boundary so the carried text never starts mid-word. A
// window with no boundary (one long token) is carried whole.
func overlapTail(text string, overlap int) string {
	runes := []rune(text)
	if overlap <= 0 || len(runes) == 0 {
		return ""
	}
	start := 0
	if len(runes) > overlap {
		start = len(runes) - overlap
	}
	tail := string(runes[start:])
	if start > 0 {
		if idx := strings.IndexFunc(tail, unicode.IsSpace); idx >= 0 {
			tail = strings.TrimLeftFunc(tail[idx:], unicode.IsSpace)
		}
	}
	return tail
}
