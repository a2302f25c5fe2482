package artifact

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
)

const fence = "```"

// Sanitize removes every triple-backtick sequence so model output renders as
// plain markdown rather than a code block.
func Sanitize(text string) string {
	return strings.ReplaceAll(text, fence, "")
}

// Rendered is an artifact prepared for display.
type Rendered struct {
	Ref     ArtifactRef
	Path    string
	Content string
	Missing bool
	Err     error
}

// Warning returns the user-facing message for artifacts that could not be
// shown, or an empty string.
func (r Rendered) Warning() string {
	switch {
	case r.Missing:
		return fmt.Sprintf("%s file not found.", r.Ref.Name)
	case r.Err != nil:
		return fmt.Sprintf("%s could not be read: %v", r.Ref.Name, r.Err)
	default:
		return ""
	}
}

// Collect reads and sanitizes each artifact. A missing file produces a
// warning entry rather than an error.
func Collect(store *Store, refs ...ArtifactRef) []Rendered {
	if len(refs) == 0 {
		refs = Outputs()
	}
	out := make([]Rendered, 0, len(refs))
	for _, ref := range refs {
		item := Rendered{Ref: ref, Path: store.Path(ref)}
		data, err := store.Read(ref)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			item.Missing = true
		case err != nil:
			item.Err = err
		default:
			item.Content = Sanitize(string(data))
		}
		out = append(out, item)
	}
	return out
}

// Warnings returns the warning messages of the rendered set.
func Warnings(items []Rendered) []string {
	var out []string
	for _, item := range items {
		if warning := item.Warning(); warning != "" {
			out = append(out, warning)
		}
	}
	return out
}
