// Package chunker turns PDF bytes into text chunks with page metadata.
// Chunk sizing is adaptive: long documents are split into smaller pieces so
// retrieval granularity stays useful.
package chunker

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/sirupsen/logrus"

	"dev.helix.brainbox/internal/apperrors"
)

// baseChunkSize is the character budget of a chunk for short documents,
// a rough proxy for ~900 tokens.
const baseChunkSize = 900

// adaptiveThreshold halves the chunk size once a document's word count
// exceeds base*1.5.
const adaptiveThreshold = 1.5

// Chunk is a text fragment plus the page it came from. Callers attach the
// brain/file identity before upserting.
type Chunk struct {
	Content string
	PageNo  int
}

// Chunker splits PDFs into overlapping text chunks.
type Chunker struct {
	base   int
	logger *logrus.Logger
}

// New creates a chunker with the default base size.
func New(logger *logrus.Logger) *Chunker {
	if logger == nil {
		logger = logrus.New()
	}
	return &Chunker{base: baseChunkSize, logger: logger}
}

// Chunk extracts page text from a PDF and splits it on paragraph, line, and
// word boundaries.
func (c *Chunker) Chunk(data []byte) ([]Chunk, error) {
	pages, err := extractPages(data)
	if err != nil {
		return nil, err
	}

	totalWords := 0
	for _, page := range pages {
		totalWords += len(strings.Fields(page))
	}

	size := AdaptiveChunkSize(totalWords, c.base)
	overlap := OverlapFor(size)

	var chunks []Chunk
	for pageNo, page := range pages {
		for _, piece := range splitText(page, size, overlap) {
			piece = strings.TrimSpace(piece)
			if piece == "" {
				continue
			}
			chunks = append(chunks, Chunk{Content: piece, PageNo: pageNo + 1})
		}
	}

	if len(chunks) == 0 {
		return nil, apperrors.E(apperrors.KindUnsupported, "pdf produced no text chunks")
	}

	c.logger.WithFields(logrus.Fields{
		"pages":      len(pages),
		"chunks":     len(chunks),
		"chunk_size": size,
		"overlap":    overlap,
	}).Debug("PDF chunked")
	return chunks, nil
}

// AdaptiveChunkSize halves the base size for long documents.
func AdaptiveChunkSize(totalWords, base int) int {
	if base <= 0 {
		base = baseChunkSize
	}
	if float64(totalWords)/float64(base) > adaptiveThreshold {
		return base / 2
	}
	return base
}

// OverlapFor returns 20% of the chunk size clamped to [50, 200].
func OverlapFor(size int) int {
	overlap := int(math.Round(float64(size) * 0.2))
	if overlap < 50 {
		return 50
	}
	if overlap > 200 {
		return 200
	}
	return overlap
}

func extractPages(data []byte) ([]string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindUnsupported, "failed to open pdf", err)
	}

	pages := make([]string, 0, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// One unreadable page should not sink the document.
			pages = append(pages, "")
			continue
		}
		pages = append(pages, text)
	}
	if len(pages) == 0 {
		return nil, apperrors.E(apperrors.KindUnsupported, "pdf has no pages")
	}
	return pages, nil
}

// separators are tried in order: paragraphs, lines, words, and finally a
// hard character cut.
var separators = []string{"\n\n", "\n", " "}

// splitText breaks text into pieces of at most size characters, re-joining
// small fragments and carrying overlap characters between adjacent chunks.
func splitText(text string, size, overlap int) []string {
	if len(text) <= size {
		if strings.TrimSpace(text) == "" {
			return nil
		}
		return []string{text}
	}

	fragments := fragment(text, size, 0)
	return merge(fragments, size, overlap)
}

// fragment recursively splits text until every fragment fits the budget.
func fragment(text string, size, sepIdx int) []string {
	if len(text) <= size {
		return []string{text}
	}
	if sepIdx >= len(separators) {
		return hardCut(text, size)
	}

	parts := strings.Split(text, separators[sepIdx])
	var out []string
	for _, part := range parts {
		if part == "" {
			continue
		}
		out = append(out, fragment(part, size, sepIdx+1)...)
	}
	if len(out) == 0 {
		return hardCut(text, size)
	}
	return out
}

func hardCut(text string, size int) []string {
	var out []string
	for len(text) > size {
		out = append(out, text[:size])
		text = text[size:]
	}
	if text != "" {
		out = append(out, text)
	}
	return out
}

// merge greedily packs fragments into chunks no longer than size, then
// prepends the tail of the previous chunk as overlap.
func merge(fragments []string, size, overlap int) []string {
	var packed []string
	var current strings.Builder
	for _, frag := range fragments {
		if current.Len() > 0 && current.Len()+1+len(frag) > size {
			packed = append(packed, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(frag)
	}
	if current.Len() > 0 {
		packed = append(packed, current.String())
	}

	if overlap <= 0 || len(packed) < 2 {
		return packed
	}

	out := make([]string, len(packed))
	out[0] = packed[0]
	for i := 1; i < len(packed); i++ {
		prev := packed[i-1]
		tail := prev
		if len(prev) > overlap {
			tail = prev[len(prev)-overlap:]
			// Do not start the overlap mid-word.
			if idx := strings.IndexByte(tail, ' '); idx >= 0 && idx < len(tail)-1 {
				tail = tail[idx+1:]
			}
		}
		out[i] = fmt.Sprintf("%s %s", tail, packed[i])
	}
	return out
}
