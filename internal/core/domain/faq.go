package domain

import "strings"

const DefaultCategory = "General"

const (
	FAQFallbackAnswer  = "Sorry, I couldn't find an answer in the FAQ."
	ChatFallbackAnswer = "I couldn't find an exact answer in the FAQ. Please check the portal or provide more details."
)

type QAEntry struct {
	Question string `json:"question" yaml:"question"`
	Answer   string `json:"answer" yaml:"answer"`
	Category string `json:"category,omitempty" yaml:"category,omitempty"`
}

// Corpus is the ordered, load-once FAQ knowledge base. Index positions are
// shared with every index built over it.
type Corpus struct {
	entries []QAEntry
}

// NewCorpus keeps only entries that carry both a question and an answer and
// fills in the default category.
func NewCorpus(raw []QAEntry) *Corpus {
	entries := make([]QAEntry, 0, len(raw))
	for _, entry := range raw {
		if strings.TrimSpace(entry.Question) == "" || strings.TrimSpace(entry.Answer) == "" {
			continue
		}
		if strings.TrimSpace(entry.Category) == "" {
			entry.Category = DefaultCategory
		}
		entries = append(entries, entry)
	}
	return &Corpus{entries: entries}
}

func (c *Corpus) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}

func (c *Corpus) At(i int) QAEntry {
	return c.entries[i]
}

func (c *Corpus) Questions() []string {
	out := make([]string, 0, c.Len())
	for _, entry := range c.entries {
		out = append(out, entry.Question)
	}
	return out
}

type Source string

const (
	SourceLexical    Source = "lexical"
	SourceSemantic   Source = "semantic"
	SourceGenerative Source = "generative"
	SourceNone       Source = "none"
)

type RetrievalResult struct {
	Source          Source  `json:"source"`
	Score           float64 `json:"score"`
	MatchedQuestion *string `json:"matched_question"`
	Answer          string  `json:"answer"`
	Category        string  `json:"category"`
}

// Match is the top-1 hit of a similarity index, addressed by corpus position.
type Match struct {
	Index int
	Score float64
}

// Capabilities records which optional tiers survived startup probing.
type Capabilities struct {
	SemanticEnabled   bool `json:"use_embeddings"`
	GenerativeEnabled bool `json:"use_gpt"`
}

// Neighbor is the nearest dense vector to a query, with its squared L2 distance.
type Neighbor struct {
	Index    int
	Distance float64
}
