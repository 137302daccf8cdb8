package tfidf

import (
	"regexp"
	"strings"

	"github.com/jdkato/prose/v2"
)

// termPattern keeps runs of two or more letters or digits, so single character
// codes such as "M" or "7" never become terms.
var termPattern = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

// Tokenizer splits documents into lower-case terms.
type Tokenizer struct {
	delimiter string
	stopWords map[string]struct{}
}

// NewTokenizer creates a Tokenizer. The delimiter separates document fields.
func NewTokenizer(delimiter string, stopWords []string) *Tokenizer {
	sw := make(map[string]struct{}, len(stopWords))
	for _, w := range stopWords {
		sw[strings.ToLower(w)] = struct{}{}
	}
	return &Tokenizer{delimiter: delimiter, stopWords: sw}
}

// Tokenize returns the terms of doc in order of appearance, duplicates included.
func (t *Tokenizer) Tokenize(doc string) []string {
	if t.delimiter != "" {
		doc = strings.ReplaceAll(doc, t.delimiter, " ")
	}
	doc = strings.TrimSpace(doc)
	if doc == "" {
		return nil
	}

	pdoc, err := prose.NewDocument(doc,
		prose.WithTagging(false),
		prose.WithSegmentation(false),
		prose.WithExtraction(false),
	)
	if err != nil {
		// prose only errors while loading models; fall back to whitespace splitting.
		return t.filter(strings.Fields(doc))
	}

	raw := make([]string, 0, len(pdoc.Tokens()))
	for _, tok := range pdoc.Tokens() {
		raw = append(raw, tok.Text)
	}
	return t.filter(raw)
}

func (t *Tokenizer) filter(raw []string) []string {
	terms := make([]string, 0, len(raw))
	for _, tok := range raw {
		for _, term := range termPattern.FindAllString(strings.ToLower(tok), -1) {
			if _, stop := t.stopWords[term]; stop {
				continue
			}
			terms = append(terms, term)
		}
	}
	return terms
}
