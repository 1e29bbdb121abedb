package ui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Prompter reads trimmed lines from an input stream and echoes prompts to an
// output stream. Passwords are read without echo when the input is a terminal.
type Prompter struct {
	in       *bufio.Reader
	out      io.Writer
	fd       int
	terminal bool
	ctx      context.Context
}

// NewPrompter wraps in and out. in is used for both lines and passwords.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	p := &Prompter{in: bufio.NewReader(in), out: out, fd: -1}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.fd = int(f.Fd())
		p.terminal = true
	}
	return p
}

// bind makes subsequent reads return early once ctx is done.
func (p *Prompter) bind(ctx context.Context) {
	p.ctx = ctx
}

// read runs fn, giving up when the bound context is cancelled. The
// abandoned read finishes in the background.
func (p *Prompter) read(fn func() (string, error)) (string, error) {
	if p.ctx == nil {
		return fn()
	}
	type result struct {
		s   string
		err error
	}
	ch := make(chan result, 1)
	go func() {
		s, err := fn()
		ch <- result{s, err}
	}()
	select {
	case r := <-ch:
		return r.s, r.err
	case <-p.ctx.Done():
		return "", p.ctx.Err()
	}
}

// Out returns the writer prompts are written to.
func (p *Prompter) Out() io.Writer {
	return p.out
}

// Printf writes formatted text to the output.
func (p *Prompter) Printf(format string, args ...any) {
	fmt.Fprintf(p.out, format, args...)
}

// Println writes a line to the output.
func (p *Prompter) Println(args ...any) {
	fmt.Fprintln(p.out, args...)
}

// Line prints prompt and returns the next input line without surrounding
// whitespace. io.EOF is returned only when no input remains at all.
func (p *Prompter) Line(prompt string) (string, error) {
	line, err := p.rawLine(prompt)
	return strings.TrimSpace(line), err
}

// rawLine reads one line with only its line terminator removed.
func (p *Prompter) rawLine(prompt string) (string, error) {
	if prompt != "" {
		fmt.Fprint(p.out, prompt)
	}
	return p.read(func() (string, error) {
		line, err := p.in.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			return "", err
		}
		return trimEOL(line), nil
	})
}

// Password prints prompt and reads a secret. On a terminal the input is not
// echoed. Spaces are part of the secret; only the line terminator is dropped.
func (p *Prompter) Password(prompt string) (string, error) {
	if !p.terminal {
		return p.rawLine(prompt)
	}
	fmt.Fprint(p.out, prompt)
	secret, err := p.read(func() (string, error) {
		b, err := term.ReadPassword(p.fd)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	})
	fmt.Fprintln(p.out)
	if err != nil {
		return "", err
	}
	return trimEOL(secret), nil
}

func trimEOL(s string) string {
	return strings.TrimRight(s, "\r\n")
}

// Pause waits for the user to press Enter.
func (p *Prompter) Pause() error {
	_, err := p.Line("Press Enter to continue...")
	return err
}

// Clear clears the screen when the output is a terminal.
func (p *Prompter) Clear() {
	if IsTTY(p.out) {
		fmt.Fprint(p.out, "\033[H\033[2J")
	}
}
