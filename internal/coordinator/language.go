package coordinator

import (
	"path/filepath"
	"strings"
)

// guessLanguage maps a file extension to the language name the
// Splitter prompt expects. This is deliberately a plain extension
// table: none of the example repos carry a dedicated language-
// detection library, and a switch over a fixed, small enum is the
// simplest faithful implementation (see DESIGN.md).
func guessLanguage(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".go":
		return "go"
	case ".py":
		return "python"
	case ".js", ".mjs", ".cjs":
		return "javascript"
	case ".ts", ".tsx":
		return "typescript"
	case ".java":
		return "java"
	case ".rb":
		return "ruby"
	case ".rs":
		return "rust"
	case ".c", ".h":
		return "c"
	case ".cc", ".cpp", ".cxx", ".hpp":
		return "cpp"
	case ".cs":
		return "csharp"
	case ".php":
		return "php"
	case ".kt", ".kts":
		return "kotlin"
	case ".yaml", ".yml":
		return "yaml"
	case ".json":
		return "json"
	case ".sql":
		return "sql"
	default:
		return "unknown"
	}
}
