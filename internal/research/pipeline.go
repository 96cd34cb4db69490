package research

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"genstudio/internal/search"
)

// ErrNoSources signals that retrieval yielded nothing usable; the caller
// falls back to direct-knowledge generation.
var ErrNoSources = errors.New("research: no sources retrieved")

const (
	maxExpandedQueries = 5
	maxSources         = 20
	maxEnriched        = 8
	excerptLimit       = 2000
	enrichFetchLimit   = 1 << 20 // 1 MiB page cap
)

// Source is one deduplicated research hit, optionally enriched with page
// content. It lives only for the duration of a response.
type Source struct {
	URL            string
	Title          string
	Snippet        string
	Thumbnail      string
	ContentExcerpt string
	Summary        string
	KeyPoints      []string
}

// Report is the pipeline output: the source list plus the synthesis prompt
// to hand to the generation layer.
type Report struct {
	Query           string
	Sources         []Source
	SynthesisPrompt string
}

// Pipeline expands one query into several search angles, retrieves them in
// parallel, deduplicates and enriches the hits, and assembles a
// citation-grounded synthesis prompt.
type Pipeline struct {
	searcher      search.Client
	httpCli       *http.Client
	queryTimeout  time.Duration
	enrichTimeout time.Duration
}

// NewPipeline creates a research pipeline. queryTimeout bounds each search
// branch, enrichTimeout each page fetch; zeros get sensible defaults.
func NewPipeline(searcher search.Client, queryTimeout, enrichTimeout time.Duration) *Pipeline {
	if queryTimeout <= 0 {
		queryTimeout = 10 * time.Second
	}
	if enrichTimeout <= 0 {
		enrichTimeout = 5 * time.Second
	}
	return &Pipeline{
		searcher:      searcher,
		httpCli:       &http.Client{Timeout: enrichTimeout},
		queryTimeout:  queryTimeout,
		enrichTimeout: enrichTimeout,
	}
}

// Run executes the full pipeline. Branch failures degrade to empty result
// sets; only a completely empty aggregate is an error.
func (p *Pipeline) Run(ctx context.Context, query string) (*Report, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("research: empty query")
	}

	queries := ExpandQuery(query)
	branches := p.retrieve(ctx, queries)
	sources := dedupeSources(branches)
	if len(sources) == 0 {
		return nil, ErrNoSources
	}
	if len(sources) > maxSources {
		sources = sources[:maxSources]
	}

	p.enrich(ctx, sources)

	return &Report{
		Query:           query,
		Sources:         sources,
		SynthesisPrompt: BuildSynthesisPrompt(query, sources),
	}, nil
}

// ExpandQuery deterministically derives search angles from the original
// query. The original always comes first; the total is capped.
func ExpandQuery(query string) []string {
	variants := []string{
		query,
		fmt.Sprintf("comprehensive overview of %s", query),
		fmt.Sprintf("latest developments in %s", query),
		fmt.Sprintf("%s pros and cons analysis", query),
		fmt.Sprintf("%s expert opinions and research", query),
		fmt.Sprintf("%s statistics and data", query),
	}
	if len(variants) > maxExpandedQueries {
		variants = variants[:maxExpandedQueries]
	}
	return variants
}

// retrieve fans the queries out concurrently. Results come back indexed by
// branch so the downstream order is deterministic regardless of which branch
// finished first.
func (p *Pipeline) retrieve(ctx context.Context, queries []string) [][]search.Result {
	branches := make([][]search.Result, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	for i, q := range queries {
		g.Go(func() error {
			branchCtx, cancel := context.WithTimeout(gctx, p.queryTimeout)
			defer cancel()

			results, err := p.searcher.Search(branchCtx, q)
			if err != nil {
				logrus.WithError(err).WithField("query", q).Warn("research branch failed")
				return nil
			}
			branches[i] = results
			return nil
		})
	}
	// Branches never return errors, so Wait only observes ctx cancellation.
	_ = g.Wait()
	return branches
}

// dedupeSources flattens the branches in branch order and keeps the first
// occurrence of each normalized URL.
func dedupeSources(branches [][]search.Result) []Source {
	seen := make(map[string]struct{})
	var out []Source
	for _, branch := range branches {
		for _, r := range branch {
			key := NormalizeURL(r.URL)
			if key == "" {
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, Source{
				URL:       r.URL,
				Title:     r.Title,
				Snippet:   r.Content,
				Thumbnail: r.ImgSrc,
			})
		}
	}
	return out
}

// NormalizeURL canonicalizes a URL for deduplication: lowercased scheme and
// host, default ports, fragments and trailing slashes dropped.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.ToLower(strings.TrimRight(raw, "/"))
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Host = strings.TrimSuffix(u.Host, ":80")
	u.Host = strings.TrimSuffix(u.Host, ":443")
	u.Fragment = ""
	u.Path = strings.TrimRight(u.Path, "/")
	return u.String()
}

// enrich fetches page text for a bounded prefix of the sources, in parallel.
// Failures leave the excerpt empty; a source is never dropped here.
func (p *Pipeline) enrich(ctx context.Context, sources []Source) {
	n := len(sources)
	if n > maxEnriched {
		n = maxEnriched
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			text, err := p.fetchPageText(gctx, sources[i].URL)
			if err != nil {
				logrus.WithError(err).WithField("url", sources[i].URL).Debug("enrichment fetch failed")
				return nil
			}
			sources[i].ContentExcerpt = text
			sources[i].Summary, sources[i].KeyPoints = summarize(text)
			return nil
		})
	}
	_ = g.Wait()
}

func (p *Pipeline) fetchPageText(ctx context.Context, pageURL string) (string, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, p.enrichTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; genstudio-research/1.0)")

	resp, err := p.httpCli.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("page fetch http %d", resp.StatusCode)
	}

	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		return "", err
	}
	article, err := readability.FromReader(io.LimitReader(resp.Body, enrichFetchLimit), parsedURL)
	if err != nil {
		return "", fmt.Errorf("readability parse: %w", err)
	}

	text := strings.TrimSpace(article.TextContent)
	text = strings.Join(strings.Fields(text), " ")
	if len(text) > excerptLimit {
		text = text[:excerptLimit]
	}
	return text, nil
}

// summarize derives a cheap extractive summary without invoking a model: the
// first sentences become the summary, the next few the key points.
func summarize(text string) (string, []string) {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return "", nil
	}

	summaryEnd := 2
	if summaryEnd > len(sentences) {
		summaryEnd = len(sentences)
	}
	summary := strings.Join(sentences[:summaryEnd], " ")

	var keyPoints []string
	for _, s := range sentences[summaryEnd:] {
		if len(keyPoints) == 3 {
			break
		}
		if len(s) < 30 {
			continue
		}
		keyPoints = append(keyPoints, s)
	}
	return summary, keyPoints
}

func splitSentences(text string) []string {
	var out []string
	var b strings.Builder
	for _, r := range text {
		b.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			s := strings.TrimSpace(b.String())
			if len(s) > 1 {
				out = append(out, s)
			}
			b.Reset()
		}
	}
	if s := strings.TrimSpace(b.String()); len(s) > 1 {
		out = append(out, s)
	}
	return out
}

// BuildSynthesisPrompt enumerates the sources with [n] citation markers and
// instructs the downstream model to ground its claims in them.
func BuildSynthesisPrompt(query string, sources []Source) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a research assistant. Answer the question below using ONLY the numbered sources provided. Cite sources inline with [n] markers matching the source numbers. If sources disagree, say so.\n\n")
	fmt.Fprintf(&b, "Question: %s\n\nSources:\n", query)

	for i, s := range sources {
		fmt.Fprintf(&b, "[%d] %s\n    URL: %s\n", i+1, s.Title, s.URL)
		if s.Summary != "" {
			fmt.Fprintf(&b, "    Summary: %s\n", s.Summary)
		} else if s.Snippet != "" {
			fmt.Fprintf(&b, "    Snippet: %s\n", s.Snippet)
		}
		for _, kp := range s.KeyPoints {
			fmt.Fprintf(&b, "    - %s\n", kp)
		}
	}

	b.WriteString("\nWrite a well-structured answer with inline [n] citations and a short conclusion.")
	return b.String()
}
