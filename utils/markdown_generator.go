package utils

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/meysamhadeli/scaffai/constants/lipgloss"
)

// RenderCode writes source highlighted for a 256-colour terminal.
func RenderCode(w io.Writer, source string, language string, theme string) error {
	if !strings.HasSuffix(source, "\n") {
		source += "\n"
	}
	return quick.Highlight(w, source, language, "terminal256", theme)
}

// RenderFile prints a titled, highlighted generated file. Without colour it
// falls back to the raw text.
func RenderFile(ctx context.Context, w io.Writer, title string, source string, language string, theme string, colour bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if !colour {
		_, err := fmt.Fprintf(w, "== %s ==\n%s\n", title, strings.TrimRight(source, "\n"))
		return err
	}

	fmt.Fprintln(w, lipgloss.Info.Render(title))
	return RenderCode(w, source, language, theme)
}

// RenderPatch prints appended patch text with added-line markers, the way a
// unified diff shows an insertion.
func RenderPatch(w io.Writer, file string, patch string, colour bool) {
	fmt.Fprintf(w, "+++ %s\n", file)
	for _, line := range strings.Split(strings.TrimRight(patch, "\n"), "\n") {
		if colour {
			fmt.Fprintln(w, "\x1b[92m+"+line+"\x1b[0m")
			continue
		}
		fmt.Fprintln(w, "+"+line)
	}
}
