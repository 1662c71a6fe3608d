package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// readPassword is replaced in tests so the terminal is never touched.
var readPassword = term.ReadPassword

// Prompt writes label followed by a "> " marker to w and returns the next
// line from r with surrounding whitespace removed. A last line that ends at
// EOF without a newline is still returned.
func Prompt(r *bufio.Reader, w io.Writer, label string) (string, error) {
	if _, err := fmt.Fprintf(w, "%s\n> ", label); err != nil {
		return "", err
	}
	line, err := r.ReadString('\n')
	switch {
	case err == nil:
	case errors.Is(err, io.EOF) && line != "":
	default:
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// PromptSecret reads label's value from the terminal with echo disabled.
// Callers wipe the returned bytes with common.WipeByteArray.
func PromptSecret(w io.Writer, label string) ([]byte, error) {
	if _, err := fmt.Fprintf(w, "%s: ", label); err != nil {
		return nil, err
	}
	secret, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", strings.ToLower(label), err)
	}
	return secret, nil
}
