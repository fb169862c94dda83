package incident

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed ledger.schema.json
var ledgerSchemaJSON string

var (
	compileOnce       sync.Once
	compiledSchema    *jsonschema.Schema
	compiledSchemaErr error
)

// Ledger is the ordered collection of incident records plus the timestamp
// of the last mutation. It is loaded in full, mutated only by appends and
// source merges, and written back as a whole document.
type Ledger struct {
	Incidents   []*Incident `json:"incidents"`
	LastUpdated string      `json:"lastUpdated"`
}

// Parse decodes and schema-validates a ledger document.
func Parse(payload []byte) (*Ledger, error) {
	value, err := decodeStrictJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("decode ledger JSON: %w", err)
	}

	schema, err := loadSchema()
	if err != nil {
		return nil, fmt.Errorf("load ledger schema: %w", err)
	}
	if err := schema.Validate(value); err != nil {
		return nil, fmt.Errorf("ledger schema validation failed: %w", err)
	}

	var led Ledger
	if err := json.Unmarshal(payload, &led); err != nil {
		return nil, fmt.Errorf("unmarshal ledger: %w", err)
	}

	for idx, inc := range led.Incidents {
		if err := inc.Validate(); err != nil {
			return nil, fmt.Errorf("ledger incident %d: %w", idx, err)
		}
	}
	if err := checkSourceURLsUnique(led.Incidents); err != nil {
		return nil, err
	}

	return &led, nil
}

// Load reads and validates the ledger document at path.
func Load(path string) (*Ledger, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ledger %s: %w", path, err)
	}
	return Parse(payload)
}

// Encode renders the ledger as an indented JSON document. A document
// where two records share a source URL is never rendered; Parse would
// reject it on the next load.
func (l *Ledger) Encode() ([]byte, error) {
	if err := checkSourceURLsUnique(l.Incidents); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(l); err != nil {
		return nil, fmt.Errorf("encode ledger: %w", err)
	}
	return buf.Bytes(), nil
}

// Save writes the whole document atomically via a temp file rename.
func (l *Ledger) Save(path string) error {
	payload, err := l.Encode()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".ledger-*.json")
	if err != nil {
		return fmt.Errorf("create temp ledger file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp ledger file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp ledger file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace ledger file: %w", err)
	}
	return nil
}

// Append adds a new record to the end of the ledger. The record must be
// structurally valid and must not share a source URL with any existing
// record.
func (l *Ledger) Append(inc *Incident) error {
	if err := inc.Validate(); err != nil {
		return err
	}
	for _, src := range inc.Sources {
		if owner := l.FindBySourceURL(src.URL); owner != nil {
			return fmt.Errorf("source URL %s already cited by an existing incident", src.URL)
		}
	}
	l.Incidents = append(l.Incidents, inc)
	return nil
}

// FindBySourceURL returns the record citing url, or nil.
func (l *Ledger) FindBySourceURL(url string) *Incident {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil
	}
	for _, inc := range l.Incidents {
		if inc.HasSourceURL(url) {
			return inc
		}
	}
	return nil
}

// SameDate returns the records whose date equals date, in ledger order.
func (l *Ledger) SameDate(date string) []*Incident {
	var matches []*Incident
	for _, inc := range l.Incidents {
		if inc.Date == date {
			matches = append(matches, inc)
		}
	}
	return matches
}

// Touch stamps lastUpdated with now in UTC RFC3339.
func (l *Ledger) Touch(now time.Time) {
	l.LastUpdated = now.UTC().Format(time.RFC3339)
}

func checkSourceURLsUnique(incidents []*Incident) error {
	seen := make(map[string]int, len(incidents))
	for idx, inc := range incidents {
		for _, src := range inc.Sources {
			if prev, ok := seen[src.URL]; ok {
				return fmt.Errorf("source URL %s cited by incidents %d and %d", src.URL, prev, idx)
			}
			seen[src.URL] = idx
		}
	}
	return nil
}

func loadSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020

		if err := compiler.AddResource("ledger.schema.json", strings.NewReader(ledgerSchemaJSON)); err != nil {
			compiledSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		schema, err := compiler.Compile("ledger.schema.json")
		if err != nil {
			compiledSchemaErr = fmt.Errorf("compile schema: %w", err)
			return
		}
		compiledSchema = schema
	})
	return compiledSchema, compiledSchemaErr
}

func decodeStrictJSON(payload []byte) (any, error) {
	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}
	if err := ensureSingleDocument(decoder); err != nil {
		return nil, err
	}
	return value, nil
}

func ensureSingleDocument(decoder *json.Decoder) error {
	if _, err := decoder.Token(); err != io.EOF {
		return fmt.Errorf("trailing data after JSON document")
	}
	return nil
}
