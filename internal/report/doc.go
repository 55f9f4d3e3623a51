// Package report provides report generation and output functionality.
//
// This package contains writers for different output formats:
//   - SimpleWriter: Human-readable text output for terminal display
//   - JSONWriter: Structured JSON output for tool integration
//   - MarkdownWriter: Markdown with a mermaid chart for sharing
//   - CSVWriter: One record per weak account for spreadsheets and ticketing
//
// Writers receive the full audit result, including matched cleartexts.
// Rendering a cleartext is a reporting decision: every writer hides it
// unless WithExposeCleartext(true) is given.
package report
