// Package ui renders CLI output: tables, headers and error messages.
package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// ErrorOptions configures an error message
type ErrorOptions struct {
	Context      string
	Problem      string
	Suggestions  []string
	HelpCommands []string
	NoColor      bool
}

// FormatError renders a failure with optional suggestions and help commands.
//
// Example output:
//
//	✗ TYPE NOT FOUND: sqs has no resource "Queu"
//
//	   Did you mean: Queue?
//
//	   → List types: dynres describe sqs
func FormatError(opts ErrorOptions) string {
	var b strings.Builder

	red := color.New(color.FgRed, color.Bold)
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)
	if opts.NoColor {
		red.DisableColor()
		yellow.DisableColor()
		cyan.DisableColor()
	}

	if opts.Context != "" {
		red.Fprintf(&b, "✗ %s: %s\n", strings.ToUpper(opts.Context), opts.Problem)
	} else {
		red.Fprintf(&b, "✗ %s\n", opts.Problem)
	}

	if len(opts.Suggestions) > 0 {
		b.WriteString("\n")
		yellow.Fprintf(&b, "   Did you mean: %s?\n", strings.Join(opts.Suggestions, ", "))
	}

	if len(opts.HelpCommands) > 0 {
		b.WriteString("\n")
		for _, cmd := range opts.HelpCommands {
			cyan.Fprintf(&b, "   → %s\n", cmd)
		}
	}

	return b.String()
}

// WriteError writes a formatted error message
func WriteError(w io.Writer, opts ErrorOptions) {
	fmt.Fprint(w, FormatError(opts))
}

// TypeNotFound renders an unknown type name with close matches from known
func TypeNotFound(service, kind, name string, known []string, noColor bool) string {
	return FormatError(ErrorOptions{
		Context:      "type not found",
		Problem:      fmt.Sprintf("%s has no %s %q", service, kind, name),
		Suggestions:  Suggest(name, known, 3),
		HelpCommands: []string{"List types: dynres describe " + service},
		NoColor:      noColor,
	})
}

// MethodNotFound renders an unknown method name with close matches from known
func MethodNotFound(typeName, method string, known []string, noColor bool) string {
	return FormatError(ErrorOptions{
		Context:     "method not found",
		Problem:     fmt.Sprintf("%s has no method %q", typeName, method),
		Suggestions: Suggest(method, known, 2),
		NoColor:     noColor,
	})
}

// FormatSuccess renders a success message
func FormatSuccess(message string, noColor bool) string {
	green := color.New(color.FgGreen, color.Bold)
	if noColor {
		green.DisableColor()
	}
	return green.Sprintf("✓ %s", message)
}
