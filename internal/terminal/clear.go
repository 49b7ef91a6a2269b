// Package terminal provides small helpers for interactive prompts.
package terminal

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"golang.org/x/term"
)

// ClearPreviousLines clears text from the terminal that was previously printed.
// It calculates how many lines were used by the provided text based on the current
// terminal width, then moves up and clears each line.
//
// textLength is the total number of characters in the prompt plus the input.
// One extra line is cleared for the newline the user typed.
func ClearPreviousLines(textLength int) {
	termWidth := 80
	if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 0 {
		termWidth = width
	}

	totalLines := int(math.Ceil(float64(textLength) / float64(termWidth)))
	if totalLines < 1 {
		totalLines = 1
	}
	linesToClear := totalLines + 1

	for i := 0; i < linesToClear; i++ {
		fmt.Print("\r\x1b[2K") // Move to start and clear entire line
		if i < linesToClear-1 {
			fmt.Print("\x1b[1A") // Move up one line (don't move up on last iteration)
		}
	}
}

// IsInteractive reports whether stdin is a terminal.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// ReadSecret prompts on out and reads a line from in without echo when in is
// a terminal. Any other reader is read as a plain line.
func ReadSecret(in io.Reader, out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
