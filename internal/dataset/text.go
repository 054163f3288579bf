package dataset

import (
	"io"
	"strings"
	"unicode"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/cognicore/apriori/pkg/apriori/logging"
)

// WordSplitter turns free text into a set of normalized words
type WordSplitter struct {
	stopwords map[string]struct{}
}

// NewWordSplitter creates a splitter that drops the given stopwords
func NewWordSplitter(stopwords []string) *WordSplitter {
	stops := make(map[string]struct{}, len(stopwords))
	for _, w := range stopwords {
		stops[strings.ToLower(w)] = struct{}{}
	}
	return &WordSplitter{stopwords: stops}
}

// Words returns the distinct words of text in first-seen order. Words are
// lowercased runs of letters, digits and inner hyphens; single characters,
// pure numbers and stopwords are dropped.
func (s *WordSplitter) Words(text string) []string {
	var (
		words []string
		seen  = map[string]struct{}{}
	)
	emit := func(raw string) {
		w := normalizeWord(raw)
		if w == "" {
			return
		}
		if _, stop := s.stopwords[w]; stop {
			return
		}
		if _, dup := seen[w]; dup {
			return
		}
		seen[w] = struct{}{}
		words = append(words, w)
	}

	start := -1
	for i, r := range text {
		inWord := unicode.IsLetter(r) || unicode.IsNumber(r) || r == '-'
		switch {
		case inWord && start < 0:
			start = i
		case !inWord && start >= 0:
			emit(text[start:i])
			start = -1
		}
	}
	if start >= 0 {
		emit(text[start:])
	}
	return words
}

func normalizeWord(raw string) string {
	w := strings.ToLower(strings.Trim(raw, "-"))
	for strings.Contains(w, "--") {
		w = strings.ReplaceAll(w, "--", "-")
	}
	if len([]rune(w)) <= 1 {
		return ""
	}
	numeric := true
	for _, r := range w {
		if !unicode.IsDigit(r) && r != '-' {
			numeric = false
			break
		}
	}
	if numeric {
		return ""
	}
	return w
}

// ReadText treats each non-blank line as a document whose words form one
// transaction. Lines left without words are skipped.
func ReadText(r io.Reader, name string, splitter *WordSplitter, log *zap.Logger) ([][]string, error) {
	log = logging.OrNop(log)
	if splitter == nil {
		splitter = NewWordSplitter(nil)
	}
	var txs [][]string
	err := eachLine(r, func(n int, line string) {
		if line == "" {
			return
		}
		words := splitter.Words(line)
		if len(words) == 0 {
			log.Debug("skipping line without words", zap.String("file", name), zap.Int("line", n))
			return
		}
		txs = append(txs, words)
	})
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", name)
	}
	return txs, nil
}
