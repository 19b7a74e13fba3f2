package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrInputCancelled is returned when input is canceled by context.
var ErrInputCancelled = errors.New("input canceled")

// Confirmer asks yes/no questions on a terminal, respecting context
// cancellation so a ctrl-c never leaves a prompt hanging.
type Confirmer struct {
	reader *bufio.Reader
	out    io.Writer
}

// NewConfirmer creates a confirmer reading from in and prompting on out.
func NewConfirmer(in io.Reader, out io.Writer) *Confirmer {
	if in == nil {
		panic("reader cannot be nil")
	}
	return &Confirmer{
		reader: bufio.NewReader(in),
		out:    out,
	}
}

// Confirm prints the question and waits for a y/n answer. Anything other
// than an explicit yes is no.
func (c *Confirmer) Confirm(ctx context.Context, question string) (bool, error) {
	fmt.Fprintf(c.out, "%s [y/N]: ", question)

	type result struct {
		err  error
		line string
	}
	resultCh := make(chan result, 1)

	go func() {
		line, err := c.reader.ReadString('\n')
		resultCh <- result{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		return false, ErrInputCancelled
	case res := <-resultCh:
		if res.err != nil && res.line == "" {
			return false, res.err
		}
		answer := strings.ToLower(strings.TrimSpace(res.line))
		return answer == "y" || answer == "yes", nil
	}
}
