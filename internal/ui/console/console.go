// Package console is the line-oriented chat front end.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/felixgeelhaar/ragchat/internal/chat"
	"github.com/felixgeelhaar/ragchat/internal/observe"
	"github.com/felixgeelhaar/ragchat/internal/provider"
)

var (
	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	assistantStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#04B575"))
	infoStyle      = lipgloss.NewStyle().Faint(true)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))
)

const clearScreen = "\033[H\033[2J"

// Console runs the read/dispatch/print loop over a reader and writer. It also
// acts as the controller's UI, printing streamed fragments as they arrive.
type Console struct {
	in     *bufio.Reader
	out    io.Writer
	ctrl   *chat.Controller
	obs    *observe.Observer
	clear  bool
	userID string
}

// New wires the console to ctrl. clear enables clearing the screen before
// each redraw.
func New(in io.Reader, out io.Writer, ctrl *chat.Controller, obs *observe.Observer, clear bool) *Console {
	c := &Console{
		in:     bufio.NewReader(in),
		out:    out,
		ctrl:   ctrl,
		obs:    observe.OrDiscard(obs),
		clear:  clear,
		userID: ctrl.Session().UserID,
	}
	if c.userID == "" {
		c.userID = "User"
	}
	ctrl.SetUI(c)
	return c
}

func (c *Console) UpdateStatus(status string) {
	if status == "generating" {
		fmt.Fprint(c.out, assistantStyle.Render("Assistant:")+" ")
	}
}

func (c *Console) Stream(chunk string) {
	fmt.Fprint(c.out, chunk)
}

func (c *Console) Log(msg string) {
	fmt.Fprintln(c.out, infoStyle.Render(msg))
}

// Run loops until the user quits or the input ends.
func (c *Console) Run(ctx context.Context) error {
	for {
		quit, err := c.runOnce(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if quit {
			break
		}
	}
	fmt.Fprintln(c.out, "Chat session ended.")
	return nil
}

func (c *Console) runOnce(ctx context.Context) (quit bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			c.obs.Log().Error().
				Str("session", c.ctrl.ID()).
				Str("panic", fmt.Sprint(r)).
				Str("stack", string(debug.Stack())).
				Msg("recovered from unexpected error")
			fmt.Fprintln(c.out, errorStyle.Render(fmt.Sprintf("An error occurred: %v", r)))
			quit, err = false, c.pause()
		}
	}()

	c.render(c.ctrl.History())

	line, err := c.readLine("You (h for help): ")
	if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
		return false, err
	}

	outcome := c.handle(ctx, line)
	switch outcome.Kind {
	case chat.KindQuit:
		return true, nil
	case chat.KindContinue, chat.KindRedraw:
		fmt.Fprintln(c.out)
		return false, nil
	case chat.KindHelp:
		fmt.Fprintln(c.out)
		fmt.Fprint(c.out, chat.Help+"\n")
	case chat.KindPass:
		fmt.Fprintln(c.out, outcome.Message)
	case chat.KindFoundDocuments:
		for _, r := range outcome.Results {
			fmt.Fprintf(c.out, "Document %s (distance: %.2f)\n\n", r.ID, r.Distance)
		}
	case chat.KindError:
		fmt.Fprintln(c.out)
		fmt.Fprintln(c.out, errorStyle.Render(outcome.Message))
		if outcome.Err != nil {
			c.obs.Log().Error().Str("session", c.ctrl.ID()).Err(outcome.Err).Msg("command failed")
		}
	default:
		fmt.Fprintf(c.out, "%s: %s\n", outcome.Kind, outcome.Message)
	}
	return false, c.pause()
}

// handle runs one command with Ctrl-C bound to cancelling it.
func (c *Console) handle(ctx context.Context, line string) chat.Outcome {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	return c.ctrl.Handle(ctx, line)
}

func (c *Console) render(history []provider.Message) {
	if c.clear {
		fmt.Fprint(c.out, clearScreen)
	}
	for _, m := range history {
		label := assistantStyle.Render("Assistant:")
		if m.Role == provider.RoleUser {
			label = userStyle.Render(c.userID + ":")
		}
		fmt.Fprintf(c.out, "%s %s\n\n", label, m.Content)
	}
	fmt.Fprintln(c.out)
}

func (c *Console) pause() error {
	fmt.Fprintln(c.out)
	_, err := c.readLine("Hit enter to continue...")
	return err
}

func (c *Console) readLine(prompt string) (string, error) {
	fmt.Fprint(c.out, prompt)
	line, err := c.in.ReadString('\n')
	return strings.TrimSpace(line), err
}
