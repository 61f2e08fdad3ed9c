package chunking

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
	"github.com/smacker/go-tree-sitter/csharp"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/kotlin"
	"github.com/smacker/go-tree-sitter/php"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/ruby"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/swift"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/mcb/mcp-context-browser/domain/chunk"
)

// rules configure extraction for one grammar. Nodes whose kind is in
// nodeKinds become chunks; container kinds larger than chunkTargetSize lines
// are split by descending into them instead.
type rules struct {
	grammar         *sitter.Language
	chunkTargetSize int
	nodeKinds       map[string]struct{}
	containerKinds  map[string]struct{}
	mergeAdjacent   bool
}

func kindSet(kinds ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(kinds))
	for _, k := range kinds {
		set[k] = struct{}{}
	}
	return set
}

// languageRules maps each supported language to its extraction rule set.
var languageRules = map[chunk.Language]rules{
	chunk.LanguageGo: {
		grammar:         golang.GetLanguage(),
		chunkTargetSize: 80,
		nodeKinds:       kindSet("function_declaration", "method_declaration", "type_declaration"),
		mergeAdjacent:   true,
	},
	chunk.LanguageRust: {
		grammar:         rust.GetLanguage(),
		chunkTargetSize: 80,
		nodeKinds:       kindSet("function_item", "struct_item", "enum_item", "trait_item", "impl_item", "mod_item"),
		containerKinds:  kindSet("impl_item", "mod_item"),
		mergeAdjacent:   true,
	},
	chunk.LanguagePython: {
		grammar:         python.GetLanguage(),
		chunkTargetSize: 60,
		nodeKinds:       kindSet("function_definition", "class_definition", "decorated_definition"),
		containerKinds:  kindSet("class_definition"),
		mergeAdjacent:   true,
	},
	chunk.LanguageJavaScript: {
		grammar:         javascript.GetLanguage(),
		chunkTargetSize: 60,
		nodeKinds:       kindSet("function_declaration", "generator_function_declaration", "class_declaration", "method_definition", "lexical_declaration"),
		containerKinds:  kindSet("class_declaration"),
		mergeAdjacent:   true,
	},
	chunk.LanguageTypeScript: {
		grammar:         typescript.GetLanguage(),
		chunkTargetSize: 60,
		nodeKinds: kindSet("function_declaration", "generator_function_declaration", "class_declaration",
			"method_definition", "interface_declaration", "enum_declaration", "type_alias_declaration"),
		containerKinds: kindSet("class_declaration"),
		mergeAdjacent:  true,
	},
	chunk.LanguageJava: {
		grammar:         java.GetLanguage(),
		chunkTargetSize: 80,
		nodeKinds: kindSet("method_declaration", "constructor_declaration", "class_declaration",
			"interface_declaration", "enum_declaration"),
		containerKinds: kindSet("class_declaration", "interface_declaration"),
		mergeAdjacent:  true,
	},
	chunk.LanguageC: {
		grammar:         c.GetLanguage(),
		chunkTargetSize: 80,
		nodeKinds:       kindSet("function_definition", "struct_specifier", "enum_specifier", "type_definition"),
		mergeAdjacent:   true,
	},
	chunk.LanguageCpp: {
		grammar:         cpp.GetLanguage(),
		chunkTargetSize: 80,
		nodeKinds: kindSet("function_definition", "class_specifier", "struct_specifier",
			"enum_specifier", "namespace_definition", "template_declaration"),
		containerKinds: kindSet("class_specifier", "namespace_definition"),
		mergeAdjacent:  true,
	},
	chunk.LanguageCSharp: {
		grammar:         csharp.GetLanguage(),
		chunkTargetSize: 80,
		nodeKinds: kindSet("method_declaration", "constructor_declaration", "class_declaration",
			"interface_declaration", "struct_declaration", "enum_declaration"),
		containerKinds: kindSet("class_declaration", "interface_declaration", "struct_declaration"),
		mergeAdjacent:  true,
	},
	chunk.LanguageRuby: {
		grammar:         ruby.GetLanguage(),
		chunkTargetSize: 60,
		nodeKinds:       kindSet("method", "singleton_method", "class", "module"),
		containerKinds:  kindSet("class", "module"),
		mergeAdjacent:   true,
	},
	chunk.LanguagePHP: {
		grammar:         php.GetLanguage(),
		chunkTargetSize: 60,
		nodeKinds: kindSet("function_definition", "method_declaration", "class_declaration",
			"interface_declaration", "trait_declaration"),
		containerKinds: kindSet("class_declaration", "trait_declaration"),
		mergeAdjacent:  true,
	},
	chunk.LanguageSwift: {
		grammar:         swift.GetLanguage(),
		chunkTargetSize: 60,
		nodeKinds:       kindSet("function_declaration", "class_declaration", "protocol_declaration"),
		containerKinds:  kindSet("class_declaration"),
		mergeAdjacent:   true,
	},
	chunk.LanguageKotlin: {
		grammar:         kotlin.GetLanguage(),
		chunkTargetSize: 60,
		nodeKinds:       kindSet("function_declaration", "class_declaration", "object_declaration"),
		containerKinds:  kindSet("class_declaration", "object_declaration"),
		mergeAdjacent:   true,
	},
}

// SupportedLanguages returns the languages with a grammar, in no particular
// order.
func SupportedLanguages() []chunk.Language {
	out := make([]chunk.Language, 0, len(languageRules))
	for lang := range languageRules {
		out = append(out, lang)
	}
	return out
}
