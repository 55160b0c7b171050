package code_analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/meysamhadeli/scaffai/code_analyzer/models"
	"github.com/meysamhadeli/scaffai/embed_data"
	"github.com/meysamhadeli/scaffai/logging"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/zeebo/xxh3"
)

const outlineCacheEntries = 128

type grammar struct {
	language *sitter.Language
	queries  map[string]*sitter.Query
}

// CodeAnalyzer extracts declaration outlines with tree-sitter.
type CodeAnalyzer struct {
	grammars map[string]*grammar
	cache    *lru.Cache[uint64, *models.FileOutline]
	logger   *logging.Logger
}

// NewCodeAnalyzer compiles the embedded queries for every supported extension.
func NewCodeAnalyzer(logger *logging.Logger) (*CodeAnalyzer, error) {
	if logger == nil {
		logger = logging.Nop()
	}

	cache, err := lru.New[uint64, *models.FileOutline](outlineCacheEntries)
	if err != nil {
		return nil, fmt.Errorf("failed to create outline cache: %w", err)
	}

	analyzer := &CodeAnalyzer{
		grammars: make(map[string]*grammar),
		cache:    cache,
		logger:   logger.Component("code_analyzer"),
	}

	sources := map[string]struct {
		language *sitter.Language
		queries  []byte
	}{
		".py": {python.GetLanguage(), embed_data.PythonQuery},
		".go": {golang.GetLanguage(), embed_data.GoQuery},
	}
	for extension, source := range sources {
		g, err := compileGrammar(source.language, source.queries)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s queries: %w", extension, err)
		}
		analyzer.grammars[extension] = g
	}

	return analyzer, nil
}

func compileGrammar(language *sitter.Language, raw []byte) (*grammar, error) {
	patterns := make(map[string]string)
	if err := json.Unmarshal(raw, &patterns); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	g := &grammar{language: language, queries: make(map[string]*sitter.Query, len(patterns))}
	for kind, pattern := range patterns {
		query, err := sitter.NewQuery([]byte(pattern), language)
		if err != nil {
			return nil, fmt.Errorf("failed to compile %s query: %w", kind, err)
		}
		g.queries[kind] = query
	}
	return g, nil
}

// Supports reports whether files with this name can be outlined.
func (analyzer *CodeAnalyzer) Supports(fileName string) bool {
	_, ok := analyzer.grammars[strings.ToLower(filepath.Ext(fileName))]
	return ok
}

// Outline parses source and returns its declarations ordered by position.
// Unsupported file types yield an empty outline.
func (analyzer *CodeAnalyzer) Outline(ctx context.Context, fileName string, source []byte) (*models.FileOutline, error) {
	extension := strings.ToLower(filepath.Ext(fileName))
	g, ok := analyzer.grammars[extension]
	if !ok {
		return &models.FileOutline{RelativePath: fileName}, nil
	}

	key := xxh3.HashString(extension + "\x00" + string(source))
	if cached, ok := analyzer.cache.Get(key); ok {
		return &models.FileOutline{RelativePath: fileName, Entries: cached.Entries}, nil
	}

	parser := sitter.NewParser()
	parser.SetLanguage(g.language)
	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", fileName, err)
	}
	defer tree.Close()

	type positioned struct {
		start uint32
		entry models.OutlineEntry
	}
	var found []positioned

	for kind, query := range g.queries {
		cursor := sitter.NewQueryCursor()
		cursor.Exec(query, tree.RootNode())
		for {
			match, ok := cursor.NextMatch()
			if !ok {
				break
			}
			for _, capture := range match.Captures {
				found = append(found, positioned{
					start: capture.Node.StartByte(),
					entry: models.OutlineEntry{
						Kind: kind,
						Name: capture.Node.Content(source),
						Line: int(capture.Node.StartPoint().Row) + 1,
					},
				})
			}
		}
		cursor.Close()
	}

	sort.SliceStable(found, func(i, j int) bool { return found[i].start < found[j].start })

	outline := &models.FileOutline{RelativePath: fileName, Entries: make([]models.OutlineEntry, 0, len(found))}
	for _, f := range found {
		outline.Entries = append(outline.Entries, f.entry)
	}

	analyzer.cache.Add(key, outline)
	analyzer.logger.Trace("outlined file", "file", fileName, "entries", len(outline.Entries))
	return outline, nil
}

// Render formats an outline as "kind: name (line n)" lines for prompts.
func Render(outline *models.FileOutline) string {
	if outline == nil {
		return ""
	}
	lines := make([]string, 0, len(outline.Entries))
	for _, entry := range outline.Entries {
		lines = append(lines, fmt.Sprintf("%s: %s (line %d)", entry.Kind, entry.Name, entry.Line))
	}
	return strings.Join(lines, "\n")
}
