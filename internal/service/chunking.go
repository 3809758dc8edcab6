package service

import (
	"strings"
	"unicode/utf8"
)

// ChunkConfig controls how page text is segmented before embedding.
type ChunkConfig struct {
	MaxRunes int
	Overlap  int
}

// DefaultChunkConfig provides the segment bounds used for page embeddings.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		MaxRunes: 1000,
		Overlap:  200,
	}
}

// chunkSeparators lists split boundaries from largest semantic unit to
// smallest. The empty string means fall back to raw rune windows.
var chunkSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// SplitText segments text into chunks of at most cfg.MaxRunes runes, with
// cfg.Overlap runes of trailing context repeated at the start of the next
// chunk so content spanning a boundary is not lost. Splitting prefers
// paragraph, then line, then sentence, then word boundaries. The result is
// deterministic for a given input.
func SplitText(text string, cfg ChunkConfig) []string {
	if cfg.MaxRunes <= 0 {
		cfg = DefaultChunkConfig()
	}
	clean := strings.TrimSpace(text)
	if clean == "" {
		return nil
	}

	var out []string
	for _, c := range splitRecursive(clean, chunkSeparators, cfg) {
		if strings.TrimSpace(c) == "" {
			continue
		}
		out = append(out, c)
	}
	return out
}

func splitRecursive(text string, seps []string, cfg ChunkConfig) []string {
	if utf8.RuneCountInString(text) <= cfg.MaxRunes {
		return []string{text}
	}

	sep := ""
	var rest []string
	for i, s := range seps {
		if s == "" {
			break
		}
		if strings.Contains(text, s) {
			sep = s
			rest = seps[i+1:]
			break
		}
	}
	if sep == "" {
		return splitRunes(text, cfg)
	}

	var chunks []string
	var buf []string
	flush := func() {
		if len(buf) > 0 {
			chunks = append(chunks, mergePieces(buf, cfg)...)
			buf = nil
		}
	}

	// SplitAfter keeps the separator attached to the preceding piece, so
	// joining pieces back together reproduces the input exactly.
	for _, piece := range strings.SplitAfter(text, sep) {
		if utf8.RuneCountInString(piece) > cfg.MaxRunes {
			flush()
			chunks = append(chunks, splitRecursive(piece, rest, cfg)...)
			continue
		}
		buf = append(buf, piece)
	}
	flush()

	return chunks
}

// mergePieces greedily packs pieces into chunks of at most cfg.MaxRunes
// runes, carrying up to cfg.Overlap runes of whole trailing pieces into the
// next chunk.
func mergePieces(pieces []string, cfg ChunkConfig) []string {
	var chunks []string
	var window []string
	total := 0

	for _, p := range pieces {
		n := utf8.RuneCountInString(p)
		if total > 0 && total+n > cfg.MaxRunes {
			chunks = append(chunks, strings.Join(window, ""))
			for len(window) > 0 && (total > cfg.Overlap || total+n > cfg.MaxRunes) {
				total -= utf8.RuneCountInString(window[0])
				window = window[1:]
			}
		}
		window = append(window, p)
		total += n
	}
	if len(window) > 0 && total > 0 {
		chunks = append(chunks, strings.Join(window, ""))
	}

	return chunks
}

// splitRunes is the last resort for text with no usable boundary: fixed rune
// windows advancing by MaxRunes-Overlap.
func splitRunes(text string, cfg ChunkConfig) []string {
	runes := []rune(text)
	step := cfg.MaxRunes - cfg.Overlap
	if step <= 0 {
		step = cfg.MaxRunes
	}

	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + cfg.MaxRunes
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}
