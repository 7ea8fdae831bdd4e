package manualindex

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Document is a procedure-manual source supplied at build time. Only
// extractable text matters; no file format is mandated.
type Document struct {
	Name string
	Text string
}

// chunkDocument splits normalized document text into spans of roughly
// chunkChars characters, breaking on paragraph boundaries where possible so
// chunks stay semantically coherent. Paragraphs longer than the budget are
// split on sentence boundaries, then hard-wrapped as a last resort.
func chunkDocument(text string, chunkChars int) []string {
	cleaned := normalizeText(text)
	if cleaned == "" {
		return nil
	}

	var chunks []string
	var current strings.Builder

	flush := func() {
		if current.Len() == 0 {
			return
		}
		chunks = append(chunks, strings.TrimSpace(current.String()))
		current.Reset()
	}

	for _, para := range strings.Split(cleaned, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		for _, piece := range splitLongParagraph(para, chunkChars) {
			if current.Len() > 0 && current.Len()+len(piece)+2 > chunkChars {
				flush()
			}
			if current.Len() > 0 {
				current.WriteString("\n\n")
			}
			current.WriteString(piece)
		}
	}
	flush()
	return chunks
}

func splitLongParagraph(para string, chunkChars int) []string {
	if len(para) <= chunkChars {
		return []string{para}
	}

	var pieces []string
	var current strings.Builder
	for _, sentence := range splitSentences(para) {
		if current.Len() > 0 && current.Len()+len(sentence)+1 > chunkChars {
			pieces = append(pieces, strings.TrimSpace(current.String()))
			current.Reset()
		}
		if len(sentence) > chunkChars {
			// Sentence alone exceeds the budget; hard-wrap on runes.
			if current.Len() > 0 {
				pieces = append(pieces, strings.TrimSpace(current.String()))
				current.Reset()
			}
			pieces = append(pieces, hardWrap(sentence, chunkChars)...)
			continue
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(sentence)
	}
	if current.Len() > 0 {
		pieces = append(pieces, strings.TrimSpace(current.String()))
	}
	return pieces
}

func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder
	for _, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(current.String()); s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

func hardWrap(text string, chunkChars int) []string {
	runes := []rune(text)
	var pieces []string
	for len(runes) > 0 {
		n := chunkChars
		if n > len(runes) {
			n = len(runes)
		}
		pieces = append(pieces, strings.TrimSpace(string(runes[:n])))
		runes = runes[n:]
	}
	return pieces
}

// normalizeText applies NFC normalization, unifies line endings, and collapses
// runs of blank lines so chunk boundaries are stable across corpus rebuilds
// from differently-encoded sources.
func normalizeText(text string) string {
	text = norm.NFC.String(text)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	var out []string
	blank := true
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if strings.TrimSpace(line) == "" {
			if !blank {
				out = append(out, "")
			}
			blank = true
			continue
		}
		out = append(out, line)
		blank = false
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}
