// Copyright (c) 2025 Duners
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"atomicgo.dev/cursor"
	"golang.org/x/term"
)

var spinnerFrames = []string{"|", "/", "-", "\\"}

// startInlineSpinner draws frames followed by text on one line of w until the
// returned stop function is called, which clears the line. It does nothing
// unless w is a terminal so piped output stays clean.
func startInlineSpinner(w io.Writer, text string) func() {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return func() {}
	}
	cursor.Hide()
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		i := 0
		ticker := time.NewTicker(120 * time.Millisecond)
		defer ticker.Stop()
		for {
			line := fmt.Sprintf("%s %s", spinnerFrames[i%len(spinnerFrames)], text)
			select {
			case <-stop:
				// Clear the spinner line completely, then return
				fmt.Fprintf(w, "\r%*s\r", len(line), "")
				return
			case <-ticker.C:
				fmt.Fprintf(w, "\r%s", line)
				i++
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			wg.Wait()
			cursor.Show()
		})
	}
}
