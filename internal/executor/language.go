package executor

import (
	"github.com/Ard-Skelling/autogen/internal/apperror"
)

// Language describes how one language tag is staged and executed. The table
// below is the single source of truth shared by the local and container
// backends, so both execute semantically identical commands for the same
// block.
type Language struct {
	// Ext is the staged file's extension, without the dot.
	Ext string
	// Interpreter is the argv prefix the staged file is appended to.
	Interpreter []string
	// Executable marks languages whose staged files receive the execute bit.
	Executable bool
}

// languages maps the free-form Language tag of a CodeBlock to its execution
// policy. Lookups fail closed: a tag missing here is a configuration error
// surfaced before any block runs.
var languages = map[string]Language{
	"python":     {Ext: "py", Interpreter: []string{"python3"}},
	"bash":       {Ext: "sh", Interpreter: []string{"bash"}, Executable: true},
	"sh":         {Ext: "sh", Interpreter: []string{"sh"}, Executable: true},
	"shell":      {Ext: "sh", Interpreter: []string{"bash"}, Executable: true},
	"javascript": {Ext: "js", Interpreter: []string{"node"}},
}

// Lookup returns the execution policy for a language tag.
func Lookup(language string) (Language, error) {
	lang, ok := languages[language]
	if !ok {
		return Language{}, apperror.UnsupportedLanguage(language)
	}
	return lang, nil
}

// Supported reports whether a language tag has a registered mapping.
func Supported(language string) bool {
	_, ok := languages[language]
	return ok
}

// Command builds the argument vector that runs a staged file.
func Command(language, path string) ([]string, error) {
	lang, err := Lookup(language)
	if err != nil {
		return nil, err
	}
	argv := make([]string, 0, len(lang.Interpreter)+1)
	argv = append(argv, lang.Interpreter...)
	return append(argv, path), nil
}
