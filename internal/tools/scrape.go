package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

const defaultScrapeMaxBytes = 512 << 10

type scrapeTool struct {
	env    Env
	client *http.Client
}

// NewScrapeTool builds the website text extraction tool.
func NewScrapeTool(env Env) (Tool, error) {
	if env.ScrapeMaxBytes <= 0 {
		env.ScrapeMaxBytes = defaultScrapeMaxBytes
	}
	return &scrapeTool{env: env, client: env.httpClient(env.ScrapeTimeout)}, nil
}

func (t *scrapeTool) Name() string { return ScrapeWebsite }

func (t *scrapeTool) Description() string {
	return "Fetch a web page and return its visible text content."
}

func (t *scrapeTool) Parameters() map[string]any {
	return objectSchema(map[string]any{
		"website_url": stringParam("Absolute http(s) URL of the page to read"),
	}, "website_url")
}

func (t *scrapeTool) Call(ctx context.Context, args json.RawMessage) (string, error) {
	var in struct {
		WebsiteURL string `json:"website_url"`
		URL        string `json:"url"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return "", err
	}
	target := strings.TrimSpace(in.WebsiteURL)
	if target == "" {
		target = strings.TrimSpace(in.URL)
	}
	parsed, err := url.Parse(target)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return "", fmt.Errorf("website_url must be an absolute http(s) URL, got %q", target)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "jobprep/1.0 (+https://github.com/kingrea/jobprep)")
	req.Header.Set("Accept", "text/html,text/plain;q=0.9,*/*;q=0.5")
	t.env.logf("tool: %s url=%s", ScrapeWebsite, parsed.String())
	res, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", parsed.String(), err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return "", fmt.Errorf("fetch %s: status %d", parsed.String(), res.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(res.Body, t.env.ScrapeMaxBytes))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", parsed.String(), err)
	}
	contentType := strings.ToLower(res.Header.Get("Content-Type"))
	if strings.HasPrefix(contentType, "text/plain") || strings.Contains(contentType, "markdown") {
		return collapseWhitespace(string(body)), nil
	}
	text, err := ExtractText(strings.NewReader(string(body)))
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", parsed.String(), err)
	}
	if text == "" {
		return "The page contained no readable text.", nil
	}
	return text, nil
}

var skippedElements = map[string]struct{}{
	"script":   {},
	"style":    {},
	"noscript": {},
	"template": {},
	"svg":      {},
	"head":     {},
}

var blockElements = map[string]struct{}{
	"p": {}, "div": {}, "br": {}, "li": {}, "ul": {}, "ol": {}, "tr": {},
	"h1": {}, "h2": {}, "h3": {}, "h4": {}, "h5": {}, "h6": {},
	"section": {}, "article": {}, "header": {}, "footer": {}, "table": {},
}

// ExtractText returns the visible text of an HTML document with whitespace
// collapsed and block elements separated by newlines.
func ExtractText(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if _, skip := skippedElements[n.Data]; skip {
				return
			}
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode {
			if _, block := blockElements[n.Data]; block {
				b.WriteByte('\n')
			}
		}
	}
	walk(doc)
	return collapseWhitespace(b.String()), nil
}

func collapseWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
