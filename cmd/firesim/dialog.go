package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/bpgavigan/foundry-firearm-charge-module/internal/host"
)

// lineDialog answers choice dialogs from a line-oriented reader. An empty
// line picks the default; "q" or end of input dismisses the prompt.
type lineDialog struct {
	in  *bufio.Scanner
	out io.Writer
}

func newLineDialog(in io.Reader, out io.Writer) *lineDialog {
	return &lineDialog{in: bufio.NewScanner(in), out: out}
}

// ShowChoiceDialog implements host.Dialog.
func (d *lineDialog) ShowChoiceDialog(ctx context.Context, req host.DialogRequest) (string, error) {
	fmt.Fprintf(d.out, "\n== %s ==\n%s\n", req.Title, req.Body)
	for _, c := range req.Choices {
		marker := " "
		if c.Key == req.Default {
			marker = "*"
		}
		fmt.Fprintf(d.out, " %s %s) %s\n", marker, c.Key, c.Label)
	}
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		fmt.Fprint(d.out, "> ")
		if !d.in.Scan() {
			return "", host.ErrDismissed
		}
		answer := strings.TrimSpace(d.in.Text())
		switch {
		case answer == "":
			return req.Default, nil
		case answer == "q":
			return "", host.ErrDismissed
		case req.HasChoice(answer):
			return answer, nil
		}
		fmt.Fprintf(d.out, "unknown choice %q\n", answer)
	}
}

// consoleChat prints chat entries as they are posted.
type consoleChat struct {
	out io.Writer
}

// PostMessage implements host.ChatLog.
func (c consoleChat) PostMessage(_ context.Context, msg host.ChatMessage) error {
	_, err := fmt.Fprintf(c.out, "[chat] %s: %s\n", msg.Speaker, msg.Content)
	return err
}
