package credentials

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"

	twitter "github.com/anatolykoptev/go-twitter-digest"
)

// Prompter asks the user for cookies and the timeline query ID.
type Prompter struct {
	in     *bufio.Reader
	out    io.Writer
	secret func() (string, error)
}

// NewTerminalPrompter reads from stdin and writes to stderr. Cookie values
// are not echoed when stdin is a terminal.
func NewTerminalPrompter() *Prompter {
	p := NewPrompter(os.Stdin, os.Stderr)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		p.secret = func() (string, error) {
			b, err := term.ReadPassword(fd)
			fmt.Fprintln(p.out)
			return string(b), err
		}
	}
	return p
}

// NewPrompter reads plain lines from in.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	p := &Prompter{in: bufio.NewReader(in), out: out}
	p.secret = p.line
	return p
}

func (p *Prompter) line() (string, error) {
	s, err := p.in.ReadString('\n')
	if err != nil && !(err == io.EOF && s != "") {
		return "", err
	}
	return strings.TrimSpace(s), nil
}

// Cookies asks for auth_token and ct0.
func (p *Prompter) Cookies() (twitter.Credentials, error) {
	fmt.Fprintln(p.out, "Enter your x.com session cookies.")
	fmt.Fprintln(p.out, "(Browser DevTools > Application > Cookies > https://x.com)")

	var creds twitter.Credentials
	var err error
	fmt.Fprint(p.out, "auth_token: ")
	if creds.AuthToken, err = p.secret(); err != nil {
		return twitter.Credentials{}, fmt.Errorf("read auth_token: %w", err)
	}
	fmt.Fprint(p.out, "ct0: ")
	if creds.CT0, err = p.secret(); err != nil {
		return twitter.Credentials{}, fmt.Errorf("read ct0: %w", err)
	}
	creds.AuthToken = strings.TrimSpace(creds.AuthToken)
	creds.CT0 = strings.TrimSpace(creds.CT0)
	if !creds.Valid() {
		return twitter.Credentials{}, &twitter.ConfigurationError{Field: "credentials", Reason: "auth_token and ct0 must both be non-empty"}
	}
	return creds, nil
}

// Confirm asks a yes/no question; anything but y/yes is no.
func (p *Prompter) Confirm(question string) (bool, error) {
	fmt.Fprintf(p.out, "%s (y/n): ", question)
	answer, err := p.line()
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

// QueryID walks the user through copying the HomeLatestTimeline query ID.
func (p *Prompter) QueryID() (string, error) {
	fmt.Fprint(p.out, `The HomeLatestTimeline query ID is not configured.

  1. Open x.com in your browser (logged in) and click the "Following" tab
  2. Open DevTools > Network and filter by "HomeLatest"
  3. Refresh the page and select the HomeLatestTimeline request
  4. Copy the ID from https://x.com/i/api/graphql/<ID>/HomeLatestTimeline

Paste the query ID here: `)
	qid, err := p.line()
	if err != nil {
		return "", fmt.Errorf("read query id: %w", err)
	}
	if err := twitter.ValidateQueryID(qid); err != nil {
		return "", err
	}
	return qid, nil
}

// Interactive is the last provider in a chain: it prompts for cookies and
// offers to save them to Store.
type Interactive struct {
	Prompter *Prompter
	Store    *FileStore
}

// Credentials implements Provider.
func (i Interactive) Credentials(context.Context) (twitter.Credentials, error) {
	if i.Prompter == nil {
		return twitter.Credentials{}, ErrNotFound
	}
	creds, err := i.Prompter.Cookies()
	if err != nil {
		return twitter.Credentials{}, err
	}
	if i.Store == nil {
		return creds, nil
	}
	save, err := i.Prompter.Confirm("Save tokens for future runs?")
	if err != nil {
		return creds, nil
	}
	if save {
		if err := i.Store.Save(creds); err != nil {
			slog.Warn("could not save tokens", slog.Any("error", err))
		} else {
			fmt.Fprintf(i.Prompter.out, "Tokens saved to %s (mode 0600)\n", i.Store.Path())
		}
	}
	return creds, nil
}
