package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

type searchTool struct {
	env    Env
	client *http.Client
}

// NewSearchTool builds the Serper-backed web search tool.
func NewSearchTool(env Env) (Tool, error) {
	if strings.TrimSpace(env.SearchEndpoint) == "" {
		return nil, fmt.Errorf("search endpoint is required")
	}
	if env.SearchResults <= 0 {
		env.SearchResults = 5
	}
	return &searchTool{env: env, client: env.httpClient(0)}, nil
}

func (t *searchTool) Name() string { return SearchInternet }

func (t *searchTool) Description() string {
	return "Search the internet and return the top results with title, link and snippet."
}

func (t *searchTool) Parameters() map[string]any {
	return objectSchema(map[string]any{
		"query": stringParam("The search query"),
	}, "query")
}

type serperRequest struct {
	Q   string `json:"q"`
	Num int    `json:"num"`
}

type serperResponse struct {
	Organic []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic"`
}

func (t *searchTool) Call(ctx context.Context, args json.RawMessage) (string, error) {
	var in struct {
		Query string `json:"query"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return "", err
	}
	query := strings.TrimSpace(in.Query)
	if query == "" {
		return "", fmt.Errorf("query is required")
	}
	if t.env.SearchAPIKey == "" {
		return "", fmt.Errorf("search is not configured: SERPER_API_KEY is missing")
	}
	payload, err := json.Marshal(serperRequest{Q: query, Num: t.env.SearchResults})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.env.SearchEndpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("X-API-KEY", t.env.SearchAPIKey)
	req.Header.Set("Content-Type", "application/json")
	t.env.logf("tool: %s query=%q", SearchInternet, query)
	res, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("search request: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return "", fmt.Errorf("search returned %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	var decoded serperResponse
	if err := json.NewDecoder(res.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode search response: %w", err)
	}
	if len(decoded.Organic) == 0 {
		return "No results found.", nil
	}
	var b strings.Builder
	b.WriteString("Search results:\n")
	for i, item := range decoded.Organic {
		if i >= t.env.SearchResults {
			break
		}
		fmt.Fprintf(&b, "\nTitle: %s\nLink: %s\nSnippet: %s\n---", item.Title, item.Link, item.Snippet)
	}
	return b.String(), nil
}
