package chunk

import "strings"

// Language identifies the programming language of a code chunk.
// Each known language maps to a tree-sitter grammar used by the
// chunking orchestrator.
type Language string

// Supported languages.
const (
	LanguageRust       Language = "rust"
	LanguagePython     Language = "python"
	LanguageJavaScript Language = "javascript"
	LanguageTypeScript Language = "typescript"
	LanguageGo         Language = "go"
	LanguageJava       Language = "java"
	LanguageC          Language = "c"
	LanguageCpp        Language = "cpp"
	LanguageCSharp     Language = "csharp"
	LanguageRuby       Language = "ruby"
	LanguagePHP        Language = "php"
	LanguageSwift      Language = "swift"
	LanguageKotlin     Language = "kotlin"
	LanguageUnknown    Language = "unknown"
)

// LanguageFromExtension maps a file extension (without the leading dot)
// to a Language. Unrecognized extensions yield LanguageUnknown.
func LanguageFromExtension(ext string) Language {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "rs":
		return LanguageRust
	case "py":
		return LanguagePython
	case "js", "jsx", "mjs":
		return LanguageJavaScript
	case "ts", "tsx":
		return LanguageTypeScript
	case "go":
		return LanguageGo
	case "java":
		return LanguageJava
	case "c", "h":
		return LanguageC
	case "cpp", "cc", "cxx", "hpp", "hxx":
		return LanguageCpp
	case "cs":
		return LanguageCSharp
	case "rb":
		return LanguageRuby
	case "php":
		return LanguagePHP
	case "swift":
		return LanguageSwift
	case "kt", "kts":
		return LanguageKotlin
	default:
		return LanguageUnknown
	}
}

// Known reports whether the language has a chunking rule set.
func (l Language) Known() bool {
	return l != LanguageUnknown && l != ""
}

// String returns the language tag.
func (l Language) String() string {
	return string(l)
}
