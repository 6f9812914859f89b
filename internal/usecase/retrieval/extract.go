package retrieval

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

// queryTermWeight is added per question-term occurrence when scoring a
// sentence, on top of its normalized background frequency. Question hits
// must dominate frequency, otherwise the composer drifts into generic
// high-frequency sentences.
const queryTermWeight = 2.0

// extractor composes answers by lifting the most relevant sentences out of
// retrieved document text. Purely extractive: every sentence of the answer
// appears verbatim in the context.
type extractor struct {
	tokenPattern    *regexp.Regexp
	sentencePattern *regexp.Regexp
	stopwords       map[string]struct{}
}

func newExtractor() *extractor {
	return &extractor{
		tokenPattern:    regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`),
		sentencePattern: regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`),
		stopwords:       answerStopwords(),
	}
}

// Compose selects up to maxSentences sentences from contextText, scored by
// question-term overlap plus normalized term frequency, and returns them in
// their original order. Context without sentence punctuation is returned
// trimmed as-is.
func (e *extractor) Compose(question, contextText string, maxSentences int) string {
	if maxSentences <= 0 {
		maxSentences = maxAnswerSentences
	}
	sentences := e.sentencePattern.FindAllString(contextText, -1)
	if len(sentences) == 0 {
		return strings.TrimSpace(contextText)
	}

	questionTerms := make(map[string]struct{})
	for _, tok := range e.tokens(question) {
		if _, ok := e.stopwords[tok]; ok {
			continue
		}
		questionTerms[tok] = struct{}{}
	}

	freq := map[string]float64{}
	for _, sent := range sentences {
		for _, tok := range e.tokens(sent) {
			if _, ok := e.stopwords[tok]; ok {
				continue
			}
			freq[tok]++
		}
	}
	maxF := 0.0
	for _, v := range freq {
		if v > maxF {
			maxF = v
		}
	}
	if maxF > 0 {
		for k, v := range freq {
			freq[k] = v / maxF
		}
	}

	type pair struct {
		idx   int
		score float64
	}
	scores := make([]pair, len(sentences))
	for i, sent := range sentences {
		toks := e.tokens(sent)
		sscore := 0.0
		for _, tok := range toks {
			if _, hit := questionTerms[tok]; hit {
				sscore += queryTermWeight
			}
			if v, ok := freq[tok]; ok {
				sscore += v
			}
		}
		// Normalize by sentence length to avoid bias
		if l := float64(len(toks)); l > 0 {
			sscore /= math.Sqrt(l)
		}
		scores[i] = pair{i, sscore}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	if maxSentences > len(scores) {
		maxSentences = len(scores)
	}
	// Keep original order among selected
	selected := make([]int, maxSentences)
	for i := 0; i < maxSentences; i++ {
		selected[i] = scores[i].idx
	}
	sort.Ints(selected)

	out := make([]string, 0, len(selected))
	for _, idx := range selected {
		out = append(out, strings.TrimSpace(sentences[idx]))
	}
	return strings.Join(out, " ")
}

func (e *extractor) tokens(text string) []string {
	return e.tokenPattern.FindAllString(strings.ToLower(text), -1)
}

func answerStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
		"what", "which", "who", "whom", "whose", "when", "where", "why", "how", "do", "does", "did", "has", "have", "had",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
