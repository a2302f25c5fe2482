package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"unicode"
)

const defaultSearchResumeResults = 3

type readResumeTool struct {
	path string
}

// NewReadResumeTool builds the tool returning the staged resume verbatim.
func NewReadResumeTool(env Env) (Tool, error) {
	if strings.TrimSpace(env.ResumePath) == "" {
		return nil, fmt.Errorf("resume path is required")
	}
	return &readResumeTool{path: env.ResumePath}, nil
}

func (t *readResumeTool) Name() string { return ReadResume }

func (t *readResumeTool) Description() string {
	return "Read the full content of the candidate's resume."
}

func (t *readResumeTool) Parameters() map[string]any {
	return objectSchema(map[string]any{})
}

func (t *readResumeTool) Call(ctx context.Context, _ json.RawMessage) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(t.path)
	if err != nil {
		return "", fmt.Errorf("read resume: %w", err)
	}
	return string(data), nil
}

type searchResumeTool struct {
	path    string
	results int
}

// NewSearchResumeTool builds the ranked resume passage search tool.
func NewSearchResumeTool(env Env) (Tool, error) {
	if strings.TrimSpace(env.ResumePath) == "" {
		return nil, fmt.Errorf("resume path is required")
	}
	return &searchResumeTool{path: env.ResumePath, results: defaultSearchResumeResults}, nil
}

func (t *searchResumeTool) Name() string { return SearchResume }

func (t *searchResumeTool) Description() string {
	return "Search the candidate's resume and return the passages most relevant to the query."
}

func (t *searchResumeTool) Parameters() map[string]any {
	return objectSchema(map[string]any{
		"search_query": stringParam("What to look for in the resume"),
	}, "search_query")
}

func (t *searchResumeTool) Call(ctx context.Context, args json.RawMessage) (string, error) {
	var in struct {
		SearchQuery string `json:"search_query"`
		Query       string `json:"query"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return "", err
	}
	query := strings.TrimSpace(in.SearchQuery)
	if query == "" {
		query = strings.TrimSpace(in.Query)
	}
	if query == "" {
		return "", fmt.Errorf("search_query is required")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(t.path)
	if err != nil {
		return "", fmt.Errorf("read resume: %w", err)
	}
	hits := RankPassages(ChunkMarkdown(string(data)), query, t.results)
	if len(hits) == 0 {
		return "No matching resume sections found.", nil
	}
	var b strings.Builder
	b.WriteString("Relevant resume passages:\n")
	for _, hit := range hits {
		fmt.Fprintf(&b, "\n%s\n---", hit.Text)
	}
	return b.String(), nil
}

// Passage is a searchable chunk of a markdown document.
type Passage struct {
	Heading string
	Text    string
	Score   float64
}

// ChunkMarkdown splits a document into paragraph passages, each prefixed with
// the nearest heading so matches keep their section context.
func ChunkMarkdown(doc string) []Passage {
	var passages []Passage
	heading := ""
	var para []string
	flush := func() {
		body := strings.TrimSpace(strings.Join(para, "\n"))
		para = para[:0]
		if body == "" {
			return
		}
		text := body
		if heading != "" {
			text = heading + "\n" + body
		}
		passages = append(passages, Passage{Heading: heading, Text: text})
	}
	for _, line := range strings.Split(doc, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "#"):
			flush()
			heading = trimmed
		case trimmed == "":
			flush()
		default:
			para = append(para, line)
		}
	}
	flush()
	if len(passages) == 0 && heading != "" {
		passages = append(passages, Passage{Heading: heading, Text: heading})
	}
	return passages
}

// RankPassages scores passages against the query with Okapi BM25 and
// returns at most limit passages with a positive score, best first.
func RankPassages(passages []Passage, query string, limit int) []Passage {
	terms := tokenize(query)
	if len(terms) == 0 || len(passages) == 0 {
		return nil
	}
	const (
		k1 = 1.2
		b  = 0.75
	)
	docs := make([][]string, len(passages))
	docFreq := map[string]int{}
	totalLen := 0
	for i, passage := range passages {
		docs[i] = tokenize(passage.Text)
		totalLen += len(docs[i])
		seen := map[string]struct{}{}
		for _, term := range docs[i] {
			if _, ok := seen[term]; ok {
				continue
			}
			seen[term] = struct{}{}
			docFreq[term]++
		}
	}
	avgLen := float64(totalLen) / float64(len(passages))
	if avgLen == 0 {
		return nil
	}
	n := float64(len(passages))
	scored := make([]Passage, 0, len(passages))
	for i, passage := range passages {
		tf := map[string]int{}
		for _, term := range docs[i] {
			tf[term]++
		}
		score := 0.0
		for _, term := range terms {
			freq := float64(tf[term])
			if freq == 0 {
				continue
			}
			df := float64(docFreq[term])
			idf := math.Log(1 + (n-df+0.5)/(df+0.5))
			norm := freq * (k1 + 1) / (freq + k1*(1-b+b*float64(len(docs[i]))/avgLen))
			score += idf * norm
		}
		if score > 0 {
			passage.Score = score
			scored = append(scored, passage)
		}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
