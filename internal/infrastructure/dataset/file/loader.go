// Package file reads FAQ datasets from JSON, YAML or XLSX files.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"

	"github.com/kirillkom/faq-assistant/internal/core/domain"
)

type Loader struct {
	path string
}

func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// rawEntry uses pointers so absent fields can be told apart from empty ones.
type rawEntry struct {
	Question *string `json:"question" yaml:"question"`
	Answer   *string `json:"answer" yaml:"answer"`
	Category *string `json:"category" yaml:"category"`
}

func (r rawEntry) toEntry() (domain.QAEntry, bool) {
	if r.Question == nil || r.Answer == nil {
		return domain.QAEntry{}, false
	}
	entry := domain.QAEntry{Question: *r.Question, Answer: *r.Answer}
	if r.Category != nil {
		entry.Category = *r.Category
	}
	return entry, true
}

func (l *Loader) Load(_ context.Context) ([]domain.QAEntry, error) {
	switch strings.ToLower(filepath.Ext(l.path)) {
	case ".xlsx":
		return l.loadSpreadsheet()
	case ".yaml", ".yml":
		return l.loadYAML()
	default:
		return l.loadJSON()
	}
}

func (l *Loader) loadJSON() ([]domain.QAEntry, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, domain.WrapError(domain.ErrDatasetMalformed, "decode json dataset", err)
	}

	out := make([]domain.QAEntry, 0, len(items))
	for _, item := range items {
		var raw rawEntry
		if err := json.Unmarshal(item, &raw); err != nil {
			continue
		}
		if entry, ok := raw.toEntry(); ok {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (l *Loader) loadYAML() ([]domain.QAEntry, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}

	var items []yaml.Node
	if err := yaml.Unmarshal(data, &items); err != nil {
		return nil, domain.WrapError(domain.ErrDatasetMalformed, "decode yaml dataset", err)
	}

	out := make([]domain.QAEntry, 0, len(items))
	for i := range items {
		var raw rawEntry
		if err := items[i].Decode(&raw); err != nil {
			continue
		}
		if entry, ok := raw.toEntry(); ok {
			out = append(out, entry)
		}
	}
	return out, nil
}

// loadSpreadsheet reads the first sheet. The header row names the question,
// answer and optional category columns in any order.
func (l *Loader) loadSpreadsheet() ([]domain.QAEntry, error) {
	f, err := excelize.OpenFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("open spreadsheet: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, domain.WrapError(domain.ErrDatasetMalformed, "read spreadsheet", fmt.Errorf("no sheets"))
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	columns := map[string]int{}
	for idx, name := range rows[0] {
		columns[strings.ToLower(strings.TrimSpace(name))] = idx
	}
	qCol, okQ := columns["question"]
	aCol, okA := columns["answer"]
	if !okQ || !okA {
		return nil, domain.WrapError(domain.ErrDatasetMalformed, "read spreadsheet", fmt.Errorf("header must name question and answer columns"))
	}
	cCol, okC := columns["category"]

	out := make([]domain.QAEntry, 0, len(rows)-1)
	for _, row := range rows[1:] {
		entry := domain.QAEntry{
			Question: cell(row, qCol),
			Answer:   cell(row, aCol),
		}
		if okC {
			entry.Category = cell(row, cCol)
		}
		out = append(out, entry)
	}
	return out, nil
}

func cell(row []string, idx int) string {
	if idx < len(row) {
		return row[idx]
	}
	return ""
}
