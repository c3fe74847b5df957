package chunking

import (
	"fmt"

	"github.com/kirillkom/whitepaper-qa/internal/core/domain"
)

const (
	DefaultChunkSize = 2000
	DefaultOverlap   = 250
)

// DefaultSeparators are tried coarsest first: paragraph, line, sentence, word, character.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// Splitter cuts text into windows of at most ChunkSize runes. Window ends fall on separator
// boundaries and every window after the first re-reads at least Overlap runes of its predecessor.
// All sizes are measured in runes.
type Splitter struct {
	ChunkSize  int
	Overlap    int
	Separators []string
}

type Option func(*Splitter)

func WithSeparators(separators ...string) Option {
	return func(s *Splitter) {
		if len(separators) > 0 {
			s.Separators = separators
		}
	}
}

func NewSplitter(chunkSize, overlap int, opts ...Option) (*Splitter, error) {
	if chunkSize <= 0 {
		return nil, domain.WrapError(domain.ErrConfiguration, "new splitter", fmt.Errorf("chunk size must be positive, got %d", chunkSize))
	}
	if overlap < 0 {
		return nil, domain.WrapError(domain.ErrConfiguration, "new splitter", fmt.Errorf("overlap must not be negative, got %d", overlap))
	}
	if overlap >= chunkSize {
		return nil, domain.WrapError(domain.ErrConfiguration, "new splitter", fmt.Errorf("overlap %d must be smaller than chunk size %d", overlap, chunkSize))
	}
	s := &Splitter{
		ChunkSize:  chunkSize,
		Overlap:    overlap,
		Separators: DefaultSeparators,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Splitter) Split(text string) []string {
	runes := []rune(text)
	windows := s.windows(runes)
	out := make([]string, 0, len(windows))
	for _, w := range windows {
		out = append(out, string(runes[w.start:w.end]))
	}
	return out
}

type span struct {
	start int
	end   int
}

// boundary is a unit end offset tagged with the separator level that produced it. Lower levels are
// coarser; the end of the text has level -1.
type boundary struct {
	pos   int
	level int
}

// windows returns rune offsets of every chunk.
func (s *Splitter) windows(runes []rune) []span {
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= s.ChunkSize {
		return []span{{start: 0, end: len(runes)}}
	}

	// Units never exceed the step, so one more unit always fits after the overlap.
	step := s.ChunkSize - s.Overlap
	bounds := s.boundaries(runes, step)

	var out []span
	start, prevStart, prevEnd := 0, -1, 0
	for {
		// An end closer than Overlap to start would leave the next window nothing to re-read.
		end := windowEnd(bounds, max(prevEnd, start+s.Overlap), start+s.ChunkSize)
		out = append(out, span{start: start, end: end})
		if end == len(runes) {
			return out
		}
		prevStart, prevEnd = start, end
		start = s.nextStart(bounds, prevStart, prevEnd)
	}
}

// nextStart backs up from end by Overlap runes and widens to the previous unit boundary when the
// following unit still fits in the window.
func (s *Splitter) nextStart(bounds []boundary, prevStart, end int) int {
	target := end - s.Overlap
	candidate := -1
	for _, b := range bounds {
		if b.pos > target {
			break
		}
		if b.pos > prevStart {
			candidate = b.pos
		}
	}
	if candidate < 0 {
		return target
	}
	if next := nextBoundary(bounds, end); next-candidate > s.ChunkSize {
		return target
	}
	return candidate
}

// boundaries lists every unit end, ascending, the last being len(runes). A piece is cut at a finer
// separator only while it is longer than limit.
func (s *Splitter) boundaries(runes []rune, limit int) []boundary {
	var bounds []boundary
	s.segment(runes, 0, len(runes), 0, -1, limit, &bounds)
	return bounds
}

// segment splits runes[lo:hi] at separator level. endLevel is the level of the boundary at hi.
func (s *Splitter) segment(runes []rune, lo, hi, level, endLevel, limit int, bounds *[]boundary) {
	if hi-lo <= limit {
		*bounds = append(*bounds, boundary{pos: hi, level: endLevel})
		return
	}
	if level >= len(s.Separators) {
		s.fixedWidth(lo, hi, endLevel, limit, bounds)
		return
	}
	sep := []rune(s.Separators[level])
	if len(sep) == 0 {
		s.fixedWidth(lo, hi, endLevel, limit, bounds)
		return
	}

	pieceStart := lo
	for i := lo; i+len(sep) <= hi; {
		if !hasPrefixAt(runes, i, sep) {
			i++
			continue
		}
		pieceEnd := i + len(sep)
		pieceLevel := level
		if pieceEnd == hi {
			pieceLevel = min(level, endLevel)
		}
		s.segment(runes, pieceStart, pieceEnd, level+1, pieceLevel, limit, bounds)
		pieceStart = pieceEnd
		i = pieceEnd
	}
	if pieceStart < hi {
		s.segment(runes, pieceStart, hi, level+1, endLevel, limit, bounds)
	}
}

func (s *Splitter) fixedWidth(lo, hi, endLevel, limit int, bounds *[]boundary) {
	for pos := lo + limit; pos < hi; pos += limit {
		*bounds = append(*bounds, boundary{pos: pos, level: len(s.Separators)})
	}
	*bounds = append(*bounds, boundary{pos: hi, level: endLevel})
}

func hasPrefixAt(runes []rune, at int, prefix []rune) bool {
	for j, r := range prefix {
		if runes[at+j] != r {
			return false
		}
	}
	return true
}

// windowEnd picks the furthest boundary of the coarsest level present in (after, limit], or the first
// boundary past after when none fits.
func windowEnd(bounds []boundary, after, limit int) int {
	best := boundary{pos: -1}
	for _, b := range bounds {
		if b.pos <= after {
			continue
		}
		if b.pos > limit {
			break
		}
		if best.pos < 0 || b.level <= best.level {
			best = b
		}
	}
	if best.pos < 0 {
		return nextBoundary(bounds, after)
	}
	return best.pos
}

func nextBoundary(bounds []boundary, after int) int {
	for _, b := range bounds {
		if b.pos > after {
			return b.pos
		}
	}
	return bounds[len(bounds)-1].pos
}
