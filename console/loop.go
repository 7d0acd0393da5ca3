package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/flarexio/codechat"
	"github.com/flarexio/codechat/llm"
)

var DefaultHeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("12"))

type Option func(*Loop)

func WithK(k int) Option {
	return func(l *Loop) {
		l.k = []int{k}
	}
}

func WithPrompt(prompt string) Option {
	return func(l *Loop) {
		l.prompt = prompt
	}
}

func WithHeaderStyle(style lipgloss.Style) Option {
	return func(l *Loop) {
		l.header = style
	}
}

func WithErrorOutput(w io.Writer) Option {
	return func(l *Loop) {
		l.errOut = w
	}
}

// Loop reads one question per line and streams each answer before reading
// the next one.
type Loop struct {
	svc    codechat.Service
	in     io.Reader
	out    io.Writer
	errOut io.Writer
	k      []int
	prompt string
	header lipgloss.Style
	log    *zap.Logger
}

func NewLoop(svc codechat.Service, in io.Reader, out io.Writer, opts ...Option) *Loop {
	l := &Loop{
		svc:    svc,
		in:     in,
		out:    out,
		errOut: out,
		header: DefaultHeaderStyle,
		log: zap.L().With(
			zap.String("service", "console"),
		),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Run blocks until the input is exhausted or ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(l.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lines := make(chan string)
	errs := make(chan error, 1)

	go func(ctx context.Context, lines chan<- string, errs chan<- error) {
		defer close(lines)

		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}

		if err := scanner.Err(); err != nil {
			errs <- err
		}
	}(ctx, lines, errs)

	for {
		if l.prompt != "" {
			fmt.Fprint(l.out, l.prompt)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-errs:
			return err

		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-errs:
					return err
				default:
					return nil
				}
			}

			question := strings.TrimSpace(line)
			if question == "" {
				continue
			}

			l.answer(ctx, question)
		}
	}
}

func (l *Loop) answer(ctx context.Context, question string) {
	stream, err := l.svc.Ask(ctx, question, l.k...)
	if err != nil {
		l.report(err)
		return
	}
	defer stream.Close()

	p := NewPrinter(l.out, l.header)
	defer p.End()

	for {
		f, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return
			}

			p.End()
			l.report(err)
			return
		}

		if err := p.Write(f); err != nil {
			l.log.Error(err.Error())
			return
		}
	}
}

func (l *Loop) report(err error) {
	if llm.IsTransient(err) {
		fmt.Fprintf(l.errOut, "temporary failure, please ask again: %v\n", err)
		return
	}

	fmt.Fprintf(l.errOut, "error: %v\n", err)
}

// Printer writes fragments as they arrive, grouped under a header per field.
type Printer struct {
	w       io.Writer
	style   lipgloss.Style
	current codechat.Field
	started bool
	newline bool
	ended   bool
}

func NewPrinter(w io.Writer, style lipgloss.Style) *Printer {
	return &Printer{
		w:       w,
		style:   style,
		newline: true,
	}
}

func (p *Printer) Write(f codechat.Fragment) error {
	if !p.started || f.Field != p.current {
		var b strings.Builder
		if p.started {
			if !p.newline {
				b.WriteString("\n")
			}

			b.WriteString("\n")
		}

		b.WriteString(p.style.Render(string(f.Field) + ":"))
		b.WriteString("\n")

		if _, err := io.WriteString(p.w, b.String()); err != nil {
			return err
		}

		p.current = f.Field
		p.started = true
		p.newline = true
	}

	text := f.Text
	if f.Field == codechat.FieldContext {
		text += "\n"
	}

	if text == "" {
		return nil
	}

	if _, err := io.WriteString(p.w, text); err != nil {
		return err
	}

	p.newline = strings.HasSuffix(text, "\n")
	return nil
}

// End terminates the last field with a newline.
func (p *Printer) End() {
	if p.ended {
		return
	}

	p.ended = true

	if p.started && !p.newline {
		io.WriteString(p.w, "\n")
		p.newline = true
	}
}
