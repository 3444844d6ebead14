package models

import "time"

// RepoFile is one fetched file: its repository-relative path and decoded text.
type RepoFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// FileSet is the bounded, filtered collection of files fetched from a source.
// Order follows the upstream listing and should be treated as unstable.
type FileSet []RepoFile

// Abstraction is one concept the model identified in the codebase.
// Name, Type, Description and FilePath are required; CodeSnippet is optional.
type Abstraction struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	FilePath    string `json:"file_path"`
	CodeSnippet string `json:"code_snippet,omitempty"`
}

// TutorialRequest are the arguments of the generate_tutorial tool.
type TutorialRequest struct {
	Source      string `json:"source"`
	SourceType  string `json:"source_type,omitempty"`
	Language    string `json:"language,omitempty"`
	LLMProvider string `json:"llm_provider,omitempty"`
}

// TutorialDocument is the final generated text with its metadata.
// Content already carries the header and footer; it is immutable once built.
type TutorialDocument struct {
	Title       string    `json:"title"`
	Source      string    `json:"source"`
	Content     string    `json:"content"`
	GeneratedAt time.Time `json:"generated_at"`
}
