package utils

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/meysamhadeli/scaffai/constants/lipgloss"
)

// ErrInputClosed is returned once the input stream has ended.
var ErrInputClosed = errors.New("input closed")

// Prompter reads answers for the interactive intake.
type Prompter struct {
	reader *bufio.Reader
	out    io.Writer
	lines  chan readResult
}

type readResult struct {
	line string
	err  error
}

// NewPrompter reads answers from in and writes labels to out.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{reader: bufio.NewReader(in), out: out}
}

// InputPrompt prints label and returns the trimmed answer. It returns
// ErrInputClosed at end of input and ctx.Err() if ctx ends first.
func (p *Prompter) InputPrompt(ctx context.Context, label string) (string, error) {
	fmt.Fprint(p.out, lipgloss.BlueSky.Render(label+" > "))

	// A pending read survives a cancelled prompt and answers the next one.
	if p.lines == nil {
		p.lines = make(chan readResult, 1)
		go func() {
			line, err := p.reader.ReadString('\n')
			p.lines <- readResult{line: line, err: err}
		}()
	}

	select {
	case <-ctx.Done():
		fmt.Fprintln(p.out)
		return "", ctx.Err()
	case result := <-p.lines:
		p.lines = nil
		if result.err != nil {
			if result.err == io.EOF {
				if strings.TrimSpace(result.line) != "" {
					return strings.TrimSpace(result.line), nil
				}
				return "", ErrInputClosed
			}
			return "", fmt.Errorf("error reading input: %w", result.err)
		}
		return strings.TrimSpace(result.line), nil
	}
}

// RequiredPrompt repeats the prompt until the answer is non-empty.
func (p *Prompter) RequiredPrompt(ctx context.Context, label string) (string, error) {
	for {
		answer, err := p.InputPrompt(ctx, label)
		if err != nil || answer != "" {
			return answer, err
		}
		fmt.Fprintln(p.out, lipgloss.Yellow.Render("A value is required."))
	}
}

// Confirm asks a yes/no question; an empty answer selects defaultYes.
func (p *Prompter) Confirm(ctx context.Context, label string, defaultYes bool) (bool, error) {
	hint := " [y/N]"
	if defaultYes {
		hint = " [Y/n]"
	}
	answer, err := p.InputPrompt(ctx, label+hint)
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "":
		return defaultYes, nil
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
