package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrNoInput is returned by a Prompter that has nobody to ask.
var ErrNoInput = errors.New("no operator input available")

// Prompter supplies the human half of the login ceremony.
type Prompter interface {
	Code(ctx context.Context) (string, error)
	Password(ctx context.Context) (string, error)
}

// ConsolePrompter reads answers line by line, typically from stdin.
type ConsolePrompter struct {
	in  *bufio.Reader
	out io.Writer
}

func NewConsolePrompter(in io.Reader, out io.Writer) *ConsolePrompter {
	return &ConsolePrompter{in: bufio.NewReader(in), out: out}
}

func (p *ConsolePrompter) Code(ctx context.Context) (string, error) {
	return p.ask(ctx, "📱 Введите код подтверждения из Telegram: ")
}

func (p *ConsolePrompter) Password(ctx context.Context) (string, error) {
	return p.ask(ctx, "🔒 Введите пароль от двухфакторной аутентификации: ")
}

func (p *ConsolePrompter) ask(ctx context.Context, prompt string) (string, error) {
	type answer struct {
		line string
		err  error
	}
	fmt.Fprint(p.out, prompt)

	ch := make(chan answer, 1)
	go func() {
		line, err := p.in.ReadString('\n')
		ch <- answer{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case a := <-ch:
		if line := strings.TrimSpace(a.line); line != "" {
			return line, nil
		}
		if a.err != nil && !errors.Is(a.err, io.EOF) {
			return "", fmt.Errorf("read answer: %w", a.err)
		}
		return "", ErrNoInput
	}
}

// ScriptedPrompter replays fixed answers. An empty answer means no input.
type ScriptedPrompter struct {
	Codes     []string
	Passwords []string
}

func (p *ScriptedPrompter) Code(context.Context) (string, error) {
	return pop(&p.Codes)
}

func (p *ScriptedPrompter) Password(context.Context) (string, error) {
	return pop(&p.Passwords)
}

func pop(answers *[]string) (string, error) {
	if len(*answers) == 0 {
		return "", ErrNoInput
	}
	next := (*answers)[0]
	*answers = (*answers)[1:]
	if next == "" {
		return "", ErrNoInput
	}
	return next, nil
}
