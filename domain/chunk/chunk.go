// Package chunk defines the code chunk domain model.
//
// A chunk is a contiguous region of one source file selected along an AST
// boundary (a function, method, class, or top-level declaration). Chunks are
// the unit of embedding, storage, and search.
package chunk

import (
	"fmt"

	"github.com/mcb/mcp-context-browser/domain/errs"
)

// CodeChunk is a semantic unit extracted from a single source file.
type CodeChunk struct {
	id        string
	content   string
	filePath  string
	startLine int
	endLine   int
	language  Language
	metadata  map[string]string
}

// NewCodeChunk creates a CodeChunk with a derived identifier of the form
// "{file_path}:{start_line}".
func NewCodeChunk(content, filePath string, startLine, endLine int, language Language) CodeChunk {
	return CodeChunk{
		id:        fmt.Sprintf("%s:%d", filePath, startLine),
		content:   content,
		filePath:  filePath,
		startLine: startLine,
		endLine:   endLine,
		language:  language,
		metadata:  map[string]string{},
	}
}

// NewCodeChunkWithID creates a CodeChunk with a caller-supplied identifier.
func NewCodeChunkWithID(id, content, filePath string, startLine, endLine int, language Language) CodeChunk {
	c := NewCodeChunk(content, filePath, startLine, endLine, language)
	c.id = id
	return c
}

// ID returns the chunk identifier, unique within a collection.
func (c CodeChunk) ID() string { return c.id }

// Content returns the exact source text of the chunk.
func (c CodeChunk) Content() string { return c.content }

// FilePath returns the repository-relative path of the source file.
func (c CodeChunk) FilePath() string { return c.filePath }

// StartLine returns the 1-indexed first line of the chunk.
func (c CodeChunk) StartLine() int { return c.startLine }

// EndLine returns the 1-indexed last line of the chunk (inclusive).
func (c CodeChunk) EndLine() int { return c.endLine }

// Language returns the language tag of the chunk.
func (c CodeChunk) Language() Language { return c.language }

// Metadata returns a copy of the free-form metadata map.
func (c CodeChunk) Metadata() map[string]string {
	result := make(map[string]string, len(c.metadata))
	for k, v := range c.metadata {
		result[k] = v
	}
	return result
}

// WithMetadata returns a copy of the chunk with the given key set.
func (c CodeChunk) WithMetadata(key, value string) CodeChunk {
	meta := make(map[string]string, len(c.metadata)+1)
	for k, v := range c.metadata {
		meta[k] = v
	}
	meta[key] = value
	c.metadata = meta
	return c
}

// DedupeKey returns the (file_path, start_line) key used to deduplicate
// chunks within a collection.
func (c CodeChunk) DedupeKey() string {
	return fmt.Sprintf("%s:%d", c.filePath, c.startLine)
}

// Validate checks the chunk invariants: non-empty content, a non-empty path,
// and 1 <= start_line <= end_line.
func (c CodeChunk) Validate() error {
	if c.id == "" {
		return errs.New(errs.KindInternal, "chunk id is empty")
	}
	if c.content == "" {
		return errs.New(errs.KindInternal, "chunk content is empty")
	}
	if c.filePath == "" {
		return errs.New(errs.KindInternal, "chunk file path is empty")
	}
	if c.startLine < 1 {
		return errs.Newf(errs.KindInternal, "chunk start line %d is not positive", c.startLine)
	}
	if c.endLine < c.startLine {
		return errs.Newf(errs.KindInternal, "chunk end line %d precedes start line %d", c.endLine, c.startLine)
	}
	return nil
}

// LineCount returns the number of lines spanned by the chunk.
func (c CodeChunk) LineCount() int {
	return c.endLine - c.startLine + 1
}
