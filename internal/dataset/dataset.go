// Package dataset loads transaction files for the apriori command.
package dataset

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/cognicore/apriori/pkg/apriori/internalerr"
	"github.com/cognicore/apriori/pkg/apriori/logging"
)

// Format names a transaction file layout.
type Format string

const (
	// FormatJSONL holds one transaction per line, either a JSON array of
	// strings or an object with an "items" array.
	FormatJSONL Format = "jsonl"
	// FormatBasket holds one transaction per line as separated items.
	FormatBasket Format = "basket"
	// FormatText holds one document per line; its words are the items.
	FormatText Format = "text"
)

// DefaultSeparator splits basket lines when none is configured.
const DefaultSeparator = ","

const maxLine = 4 << 20

// Options controls how a file is read.
type Options struct {
	Format    Format
	Separator string
	// Stopwords are dropped from text input.
	Stopwords []string
	Logger    *zap.Logger
}

type record struct {
	Items []string `json:"items"`
}

// Load reads transactions from path, or from stdin when path is "-". An
// empty Format is inferred from the file extension.
func Load(path string, opts Options) ([][]string, error) {
	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.Wrapf(err, "open %s", path)
		}
		defer f.Close()
		r = f
	}

	format := opts.Format
	if format == "" {
		format = DetectFormat(path)
	}

	var (
		txs [][]string
		err error
	)
	switch format {
	case FormatJSONL:
		txs, err = ReadJSONL(r, path, opts.Logger)
	case FormatBasket:
		txs, err = ReadBaskets(r, path, opts.Separator, opts.Logger)
	case FormatText:
		txs, err = ReadText(r, path, NewWordSplitter(opts.Stopwords), opts.Logger)
	default:
		return nil, errors.WithHint(
			errors.Wrapf(internalerr.ErrInvalidInput, "unknown format %q", format),
			"use jsonl, basket or text",
		)
	}
	if err != nil {
		return nil, err
	}
	if len(txs) == 0 {
		return nil, errors.Wrapf(internalerr.ErrInvalidInput, "no valid transactions found in %s", path)
	}
	return txs, nil
}

// DetectFormat guesses a format from a file name.
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".ndjson", ".json":
		return FormatJSONL
	case ".txt", ".md":
		return FormatText
	default:
		return FormatBasket
	}
}

// ReadJSONL parses one transaction per line. Malformed lines are skipped
// with a warning.
func ReadJSONL(r io.Reader, name string, log *zap.Logger) ([][]string, error) {
	log = logging.OrNop(log)
	var txs [][]string
	err := eachLine(r, func(n int, line string) {
		if line == "" {
			return
		}
		items, err := decodeJSONLine([]byte(line))
		if err != nil {
			log.Warn("skipping malformed transaction",
				zap.String("file", name),
				zap.Int("line", n),
				zap.Error(err),
			)
			return
		}
		txs = append(txs, items)
	})
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", name)
	}
	return txs, nil
}

func decodeJSONLine(line []byte) ([]string, error) {
	if bytes.HasPrefix(line, []byte("[")) {
		var items []string
		if err := json.Unmarshal(line, &items); err != nil {
			return nil, err
		}
		return items, nil
	}
	var rec record
	if err := json.Unmarshal(line, &rec); err != nil {
		return nil, err
	}
	if rec.Items == nil {
		return nil, errors.New(`missing "items" array`)
	}
	return rec.Items, nil
}

// ReadBaskets parses one transaction per line, items split by sep. Blank
// lines and lines starting with '#' are ignored, as are empty items.
func ReadBaskets(r io.Reader, name, sep string, log *zap.Logger) ([][]string, error) {
	log = logging.OrNop(log)
	if sep == "" {
		sep = DefaultSeparator
	}
	var txs [][]string
	err := eachLine(r, func(n int, line string) {
		if line == "" || strings.HasPrefix(line, "#") {
			return
		}
		var items []string
		for _, field := range strings.Split(line, sep) {
			if field = strings.TrimSpace(field); field != "" {
				items = append(items, field)
			}
		}
		if len(items) == 0 {
			log.Warn("skipping empty basket", zap.String("file", name), zap.Int("line", n))
			return
		}
		txs = append(txs, items)
	})
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", name)
	}
	return txs, nil
}

func eachLine(r io.Reader, fn func(n int, line string)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	n := 0
	for sc.Scan() {
		n++
		fn(n, strings.TrimSpace(sc.Text()))
	}
	return sc.Err()
}
