package agent

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"chatrelay/internal/config"
	"chatrelay/internal/storage"

	"github.com/cloudwego/eino-ext/components/document/loader/file"
	"github.com/cloudwego/eino-ext/components/tool/duckduckgo/v2"
	"github.com/cloudwego/eino-ext/components/tool/googlesearch"
	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/components/document/parser"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
)

// InitToolsChain builds the two retrieval tools the engine may invoke:
// FAQ/document search and product-catalog search. Either may be disabled by
// configuration; the engine simply sees a smaller tool set.
func InitToolsChain(cfg *config.Config, db *sql.DB) []tool.BaseTool {
	var tools []tool.BaseTool

	if fs := InitFAQSearch(cfg.BasicConfig.DocsDir); fs != nil {
		tools = append(tools, fs)
	}
	if cs := InitCatalogSearch(cfg.BasicConfig.CatalogURL, db); cs != nil {
		tools = append(tools, cs)
	}
	return tools
}

// FAQ / document search

type faqDoc struct {
	name    string
	content string
}

type faqSearchTool struct {
	docs   []faqDoc
	google tool.InvokableTool
	duck   tool.InvokableTool
}

type faqSearchParams struct {
	Query string `json:"query"`
}

var faqSearchLimiter = newToolRateLimiter(FAQSearchRateLimit, FAQSearchRateWindow)

// InitFAQSearch loads the support documents under docsDir once at startup
// and exposes keyword search over them. When no local document matches, the
// tool falls back to whichever web search providers are available.
func InitFAQSearch(docsDir string) tool.InvokableTool {
	docs, err := loadFAQDocs(docsDir)
	if err != nil {
		log.Printf("faq search: load docs: %v", err)
	}
	googleTool := initGoogleSearch()
	duckTool := initDDGSearch()
	if len(docs) == 0 && googleTool == nil && duckTool == nil {
		log.Printf("faq search tool disabled: no documents and no web providers")
		return nil
	}

	fs := &faqSearchTool{docs: docs, google: googleTool, duck: duckTool}

	info := &schema.ToolInfo{
		Name: "faq_search",
		Desc: "Search the support documentation and FAQ for answers to " +
			"customer questions about policies, shipping, returns and account issues; " +
			"falls back to a web search when the local documents have no match.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {
				Desc:     "Natural language question or keywords to look up",
				Type:     schema.String,
				Required: true,
			},
		}),
	}
	return utils.NewTool(info, fs.run)
}

func (t *faqSearchTool) run(ctx context.Context, params *faqSearchParams) (string, error) {
	if params == nil {
		return "", errors.New("missing search parameters")
	}
	query := strings.TrimSpace(params.Query)
	if query == "" {
		return "", errors.New("query must not be empty")
	}
	if !faqSearchLimiter.Allow(limiterKeyFromContext(ctx)) {
		return "", errors.New("faq search rate limit exceeded, please retry in a minute")
	}

	if hits := t.searchLocal(query); len(hits) > 0 {
		var builder strings.Builder
		for i, hit := range hits {
			fmt.Fprintf(&builder, "Document: %s\n%s", hit.name, hit.content)
			if i < len(hits)-1 {
				builder.WriteString("\n\n---\n\n")
			}
		}
		return builder.String(), nil
	}

	payloadBytes, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return "", fmt.Errorf("marshal search params: %w", err)
	}
	payload := string(payloadBytes)

	if t.google != nil {
		if result, err := t.google.InvokableRun(ctx, payload); err == nil {
			return result, nil
		} else {
			log.Printf("google search failed: %v", err)
		}
	}
	if t.duck != nil {
		if result, err := t.duck.InvokableRun(ctx, payload); err == nil {
			return result, nil
		} else {
			log.Printf("duckduckgo search failed: %v", err)
		}
	}
	return "", errors.New("no document matched and no search provider succeeded")
}

// searchLocal scores each document by term overlap with the query and
// returns up to three matches, best first.
func (t *faqSearchTool) searchLocal(query string) []faqDoc {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil
	}
	type scored struct {
		doc   faqDoc
		score int
	}
	var matches []scored
	for _, doc := range t.docs {
		lower := strings.ToLower(doc.content)
		score := 0
		for _, term := range terms {
			if strings.Contains(lower, term) {
				score++
			}
		}
		if score > 0 {
			matches = append(matches, scored{doc: doc, score: score})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].score > matches[j].score
	})
	if len(matches) > FAQSearchMaxResults {
		matches = matches[:FAQSearchMaxResults]
	}
	out := make([]faqDoc, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.doc)
	}
	return out
}

func loadFAQDocs(docsDir string) ([]faqDoc, error) {
	if docsDir == "" {
		return nil, nil
	}
	parserExt, err := parser.NewExtParser(context.Background(), &parser.ExtParserConfig{
		FallbackParser: parser.TextParser{},
	})
	if err != nil {
		return nil, fmt.Errorf("init parser: %w", err)
	}
	loader, err := file.NewFileLoader(context.Background(), &file.FileLoaderConfig{
		UseNameAsID: true,
		Parser:      parserExt,
	})
	if err != nil {
		return nil, fmt.Errorf("init file loader: %w", err)
	}

	entries, err := os.ReadDir(docsDir)
	if err != nil {
		return nil, fmt.Errorf("read docs dir: %w", err)
	}
	var docs []faqDoc
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(docsDir, entry.Name())
		loaded, err := loader.Load(context.Background(), document.Source{URI: path})
		if err != nil {
			log.Printf("faq search: skip %s: %v", entry.Name(), err)
			continue
		}
		var builder strings.Builder
		for _, d := range loaded {
			content := strings.TrimSpace(d.Content)
			if content == "" {
				continue
			}
			builder.WriteString(content)
			builder.WriteString("\n\n")
		}
		text := strings.TrimSpace(builder.String())
		if text == "" {
			continue
		}
		docs = append(docs, faqDoc{name: entry.Name(), content: text})
	}
	return docs, nil
}

// Product catalog search

type catalogSearchTool struct {
	endpoint   string
	httpClient *http.Client
	db         *sql.DB
}

type catalogSearchParams struct {
	Query string `json:"query"`
}

// InitCatalogSearch exposes product lookup to the engine. The primary path
// is the remote catalog service; when that is unset or fails, the local
// products table answers instead.
func InitCatalogSearch(catalogURL string, db *sql.DB) tool.InvokableTool {
	if catalogURL == "" && db == nil {
		log.Printf("catalog search tool disabled: no endpoint and no database")
		return nil
	}
	cs := &catalogSearchTool{
		endpoint:   catalogURL,
		httpClient: &http.Client{Timeout: CatalogHTTPTimeout},
		db:         db,
	}
	info := &schema.ToolInfo{
		Name: "catalog_search",
		Desc: "Look up products in the store catalog by name, category or " +
			"description; returns matching products with price and stock status.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {
				Desc:     "Product name, category or keywords to search for",
				Type:     schema.String,
				Required: true,
			},
		}),
	}
	return utils.NewTool(info, cs.run)
}

func (t *catalogSearchTool) run(ctx context.Context, params *catalogSearchParams) (string, error) {
	if params == nil {
		return "", errors.New("missing search parameters")
	}
	query := strings.TrimSpace(params.Query)
	if query == "" {
		return "", errors.New("query must not be empty")
	}

	if t.endpoint != "" {
		if result, err := t.searchRemote(ctx, query); err == nil {
			return result, nil
		} else {
			log.Printf("remote catalog search failed: %v", err)
		}
	}
	if t.db != nil {
		products, err := storage.SearchProducts(t.db, query, CatalogMaxResults)
		if err != nil {
			return "", fmt.Errorf("catalog lookup: %w", err)
		}
		if len(products) == 0 {
			return "No products matched the query.", nil
		}
		data, err := json.Marshal(products)
		if err != nil {
			return "", fmt.Errorf("encode catalog results: %w", err)
		}
		return string(data), nil
	}
	return "", errors.New("no catalog source succeeded")
}

func (t *catalogSearchTool) searchRemote(ctx context.Context, query string) (string, error) {
	body, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return "", fmt.Errorf("marshal catalog query: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, strings.NewReader(string(body)))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("catalog service: %s", resp.Status)
	}
	return readBounded(resp.Body, CatalogMaxBodySize)
}

// Web search providers (FAQ fallback chain)

func initDDGSearch() tool.InvokableTool {
	duckConfig := &duckduckgo.Config{
		ToolName:   "web_search_ddg",
		ToolDesc:   "DuckDuckGo Search Tool (no token required)",
		MaxResults: 3,
		Region:     duckduckgo.RegionWT,
		Timeout:    10 * time.Second,
	}
	duckTool, err := duckduckgo.NewTextSearchTool(context.Background(), duckConfig)
	if err != nil {
		log.Printf("duckduckgo search disabled: %v", err)
		return nil
	}
	return duckTool
}

func initGoogleSearch() tool.InvokableTool {
	googleAPIKey := os.Getenv("GOOGLE_API_KEY")
	googleSearchEngineID := os.Getenv("GOOGLE_SEARCH_ENGINE_ID")
	if googleAPIKey == "" || googleSearchEngineID == "" {
		log.Printf("google search disabled: missing GOOGLE_API_KEY or GOOGLE_SEARCH_ENGINE_ID")
		return nil
	}
	googleTool, err := googlesearch.NewTool(context.Background(), &googlesearch.Config{
		ToolName:       "web_search_google",
		ToolDesc:       "Google Search Tool",
		APIKey:         googleAPIKey,
		SearchEngineID: googleSearchEngineID,
		Lang:           "en",
		Num:            5,
	})
	if err != nil {
		log.Printf("google search disabled: %v", err)
		return nil
	}
	return googleTool
}
