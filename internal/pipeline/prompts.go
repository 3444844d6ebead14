package pipeline

import (
	"fmt"
	"strings"

	"github.com/seanblong/repotutor/pkg/models"
)

// Stage-A cost bounds: only a sample of the codebase is shown to the model.
// Large repositories lose information here.
const (
	maxPromptFiles = 20
	maxPromptChars = 500
)

// identifyPrompt embeds truncated file samples and asks for a JSON array of
// abstractions.
func identifyPrompt(files models.FileSet) string {
	var b strings.Builder
	b.WriteString("Analyze the following codebase sample.\n\n")

	n := len(files)
	if n > maxPromptFiles {
		n = maxPromptFiles
	}
	for _, f := range files[:n] {
		content := f.Content
		if len(content) > maxPromptChars {
			content = content[:maxPromptChars]
		}
		fmt.Fprintf(&b, "--- %s ---\n%s\n\n", f.Path, content)
	}

	b.WriteString(`Identify the main abstractions (classes, modules, functions) in this codebase.
Respond with a JSON array only, no prose. Each element must have this shape:
{"name": "...", "type": "...", "description": "...", "file_path": "...", "code_snippet": "..."}
"code_snippet" is optional; every other field is required and non-empty.`)

	return b.String()
}

// synthesizePrompt embeds the abstraction list (name/type/description only)
// and the fixed five-section outline.
func synthesizePrompt(project string, abstractions []models.Abstraction, language string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a narrative tutorial in %s for the project %q.\n\nIt is built from these abstractions:\n", language, project)
	for _, a := range abstractions {
		fmt.Fprintf(&b, "- %s (%s): %s\n", a.Name, a.Type, a.Description)
	}

	b.WriteString(`
Structure the tutorial with exactly these five sections:
## Overview
## Key Concepts
## Component Interaction
## Example Usage
## Best Practices

Output markdown directly, without surrounding code fences.`)

	return b.String()
}
