package ui

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Prompter asks questions on a terminal
type Prompter struct {
	in    io.Reader
	out   io.Writer
	fd    int
	isTTY func(fd int) bool
}

// NewPrompter reads from stdin and writes to stderr
func NewPrompter() *Prompter {
	return &Prompter{in: os.Stdin, out: os.Stderr, fd: int(os.Stdin.Fd()), isTTY: term.IsTerminal}
}

// Interactive reports whether stdin is a terminal
func (p *Prompter) Interactive() bool {
	return p.isTTY(p.fd)
}

// Confirm asks a yes/no question defaulting to no. It never asks when stdin is not a terminal.
func (p *Prompter) Confirm(question string) bool {
	if !p.Interactive() {
		return false
	}
	fmt.Fprintf(p.out, "%s %s ", Yellow(question), Dim("(y/N)"))
	line, err := bufio.NewReader(p.in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

// OverwriteExisting matches grabber.OverwriteDecider
func (p *Prompter) OverwriteExisting(path string) bool {
	return p.Confirm(fmt.Sprintf("%s exists. Overwrite?", path))
}

// ReadSecret reads a line without echo when stdin is a terminal, and a plain line otherwise
func (p *Prompter) ReadSecret(label string) (string, error) {
	fmt.Fprintf(p.out, "%s: ", Cyan(label))
	if p.Interactive() {
		secret, err := term.ReadPassword(p.fd)
		fmt.Fprintln(p.out)
		if err != nil {
			return "", fmt.Errorf("failed to read input: %w", err)
		}
		return strings.TrimSpace(string(secret)), nil
	}

	line, err := bufio.NewReader(p.in).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}
