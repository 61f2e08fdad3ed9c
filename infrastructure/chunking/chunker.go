// Package chunking turns source files into code chunks along AST boundaries.
// Files whose grammar produces no usable tree fall back to a line-range
// splitter.
package chunking

import (
	"context"
	"log/slog"
	"strings"
	"time"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/mcb/mcp-context-browser/domain/chunk"
	"github.com/mcb/mcp-context-browser/domain/errs"
	"github.com/mcb/mcp-context-browser/domain/event"
)

// Chunking defaults.
const (
	DefaultMinChunkLength = 10
	DefaultBatchSize      = 64
	fallbackWindowLines   = 50
)

// Config is the immutable chunker configuration.
type Config struct {
	minChunkLength int
	batchSize      int
}

// NewConfig creates a Config with defaults.
func NewConfig() Config {
	return Config{minChunkLength: DefaultMinChunkLength, batchSize: DefaultBatchSize}
}

// MinChunkLength returns the line count below which adjacent siblings merge.
func (c Config) MinChunkLength() int { return c.minChunkLength }

// BatchSize returns the embedding batch size.
func (c Config) BatchSize() int { return c.batchSize }

// WithMinChunkLength returns a copy with the merge threshold replaced.
func (c Config) WithMinChunkLength(lines int) Config {
	if lines <= 0 {
		lines = DefaultMinChunkLength
	}
	c.minChunkLength = lines
	return c
}

// WithBatchSize returns a copy with the batch size replaced.
func (c Config) WithBatchSize(size int) Config {
	if size <= 0 {
		size = DefaultBatchSize
	}
	c.batchSize = size
	return c
}

// Chunker extracts code chunks from source files using AST parsing.
type Chunker struct {
	cfg    Config
	bus    event.Bus
	logger *slog.Logger
	parse  parseFunc
}

type parseFunc func(ctx context.Context, grammar *sitter.Language, source []byte) (*sitter.Tree, error)

func parseSource(ctx context.Context, grammar *sitter.Language, source []byte) (*sitter.Tree, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(grammar)
	return parser.ParseCtx(ctx, nil, source)
}

// NewChunker creates a Chunker. The bus receives ParseDegraded events when a
// file falls back to line splitting; a nil bus disables them.
func NewChunker(cfg Config, bus event.Bus, logger *slog.Logger) *Chunker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chunker{cfg: cfg, bus: bus, logger: logger, parse: parseSource}
}

// ChunkFile extracts chunks from one source file. Unknown languages and
// parser errors use the fallback splitter; only cancellation surfaces as an
// error.
func (c *Chunker) ChunkFile(ctx context.Context, filePath string, source []byte, language chunk.Language) ([]chunk.CodeChunk, error) {
	if len(source) == 0 {
		return nil, nil
	}

	rule, ok := languageRules[language]
	if !ok {
		return c.fallback(filePath, source, language, "no grammar for language"), nil
	}

	tree, err := c.parse(ctx, rule.grammar, source)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errs.Wrapf(errs.KindParse, err, "parsing %q", filePath)
		}
		return c.fallback(filePath, source, language, "parser error: "+err.Error()), nil
	}
	defer tree.Close()

	chunks := c.extract(tree.RootNode(), source, filePath, language, rule)
	if len(chunks) == 0 {
		return c.fallback(filePath, source, language, "no extractable nodes"), nil
	}
	if rule.mergeAdjacent {
		chunks = c.mergeTiny(chunks, source, filePath, language)
	}
	return chunks, nil
}

// extract walks the tree collecting nodes whose kind is in the rule set.
// Matched subtrees are not descended into, except containers larger than the
// target size, which are split by recursing into their children.
func (c *Chunker) extract(root *sitter.Node, source []byte, filePath string, language chunk.Language, rule rules) []chunk.CodeChunk {
	var chunks []chunk.CodeChunk
	var visit func(node *sitter.Node)
	visit = func(node *sitter.Node) {
		if node == nil {
			return
		}
		if _, match := rule.nodeKinds[node.Type()]; match {
			lines := int(node.EndPoint().Row) - int(node.StartPoint().Row) + 1
			_, container := rule.containerKinds[node.Type()]
			if container && lines > rule.chunkTargetSize && hasExtractableChild(node, rule) {
				for i := 0; i < int(node.ChildCount()); i++ {
					visit(node.Child(i))
				}
				return
			}
			if ck, ok := nodeChunk(node, source, filePath, language); ok {
				chunks = append(chunks, ck)
			}
			return
		}
		for i := 0; i < int(node.ChildCount()); i++ {
			visit(node.Child(i))
		}
	}
	visit(root)
	return chunks
}

func hasExtractableChild(node *sitter.Node, rule rules) bool {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		if _, ok := rule.nodeKinds[child.Type()]; ok {
			return true
		}
		if hasExtractableChild(child, rule) {
			return true
		}
	}
	return false
}

func nodeChunk(node *sitter.Node, source []byte, filePath string, language chunk.Language) (chunk.CodeChunk, bool) {
	start, end := node.StartByte(), node.EndByte()
	if start >= end || end > uint32(len(source)) {
		return chunk.CodeChunk{}, false
	}
	content := string(source[start:end])
	if strings.TrimSpace(content) == "" {
		return chunk.CodeChunk{}, false
	}
	startLine := int(node.StartPoint().Row) + 1
	endLine := int(node.EndPoint().Row) + 1
	ck := chunk.NewCodeChunk(content, filePath, startLine, endLine, language).
		WithMetadata("node_kind", node.Type())
	return ck, true
}

// mergeTiny folds runs of adjacent chunks shorter than the minimum into a
// single chunk spanning their combined line range.
func (c *Chunker) mergeTiny(chunks []chunk.CodeChunk, source []byte, filePath string, language chunk.Language) []chunk.CodeChunk {
	if len(chunks) < 2 {
		return chunks
	}
	lines := strings.Split(string(source), "\n")

	merged := make([]chunk.CodeChunk, 0, len(chunks))
	for _, current := range chunks {
		if len(merged) > 0 {
			last := merged[len(merged)-1]
			if last.LineCount() < c.cfg.minChunkLength &&
				current.StartLine() > last.EndLine() &&
				current.StartLine()-last.EndLine() <= 2 {
				merged[len(merged)-1] = spanChunk(lines, last.StartLine(), current.EndLine(), filePath, language)
				continue
			}
		}
		merged = append(merged, current)
	}
	return merged
}

// spanChunk rebuilds a chunk from the source's 1-indexed inclusive line range.
func spanChunk(lines []string, startLine, endLine int, filePath string, language chunk.Language) chunk.CodeChunk {
	if endLine > len(lines) {
		endLine = len(lines)
	}
	content := strings.Join(lines[startLine-1:endLine], "\n")
	return chunk.NewCodeChunk(content, filePath, startLine, endLine, language).
		WithMetadata("node_kind", "merged")
}

// fallback splits the file into fixed line windows and reports degradation.
func (c *Chunker) fallback(filePath string, source []byte, language chunk.Language, reason string) []chunk.CodeChunk {
	if c.bus != nil {
		c.bus.Publish(event.NewParseDegraded(time.Now(), filePath, language.String(), reason))
	}
	c.logger.Debug("falling back to line-range chunking",
		slog.String("path", filePath),
		slog.String("language", language.String()),
		slog.String("reason", reason))

	lines := strings.Split(string(source), "\n")
	var chunks []chunk.CodeChunk
	for start := 0; start < len(lines); start += fallbackWindowLines {
		end := start + fallbackWindowLines
		if end > len(lines) {
			end = len(lines)
		}
		content := strings.Join(lines[start:end], "\n")
		if strings.TrimSpace(content) == "" {
			continue
		}
		ck := chunk.NewCodeChunk(content, filePath, start+1, end, language).
			WithMetadata("node_kind", "fallback")
		chunks = append(chunks, ck)
	}
	return chunks
}

// Batch splits chunks into embedding-sized batches.
func (c *Chunker) Batch(chunks []chunk.CodeChunk) [][]chunk.CodeChunk {
	if len(chunks) == 0 {
		return nil
	}
	size := c.cfg.batchSize
	batches := make([][]chunk.CodeChunk, 0, (len(chunks)+size-1)/size)
	for start := 0; start < len(chunks); start += size {
		end := start + size
		if end > len(chunks) {
			end = len(chunks)
		}
		batches = append(batches, chunks[start:end])
	}
	return batches
}
