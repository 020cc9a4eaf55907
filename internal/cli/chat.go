package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/google/uuid"
	"github.com/soyeahso/helix/internal/domain"
	"github.com/soyeahso/helix/internal/sequence"
	"github.com/soyeahso/helix/internal/service"
	"github.com/spf13/cobra"
)

// termNotifier prints progress and sequence changes for one local session.
// Chat replies are printed by the REPL loop.
type termNotifier struct {
	mu        sync.Mutex
	out       io.Writer
	sessionID string
}

func (n *termNotifier) print(sessionID, text string) {
	if sessionID != n.sessionID {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintln(n.out, text)
}

func (n *termNotifier) SequenceChanged(sessionID string, seq []domain.OutreachMessage) {
	n.print(sessionID, styleSequence.Render(strings.TrimRight(sequence.Render(seq), "\n")))
}

func (n *termNotifier) ChatMessage(string, string, string) {}

func (n *termNotifier) ToolRunning(sessionID, label string) {
	n.print(sessionID, styleNotice.Render(label))
}

func newChatCmd() *cobra.Command {
	var (
		name    string
		company string
		extra   string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Draft an outreach sequence interactively in the terminal",
		Long: "Starts a local session and reads your messages from stdin.\n" +
			"Type /show to print the current sequence and /quit to exit.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadedConfig()
			if err != nil {
				return err
			}
			a, err := newApp(c, log)
			if err != nil {
				return err
			}
			defer a.Close()

			id := uuid.NewString()
			a.notifier.Add(&termNotifier{out: cmd.OutOrStdout(), sessionID: id})
			a.service.Ensure(id)
			defer func() { _ = a.service.DeleteSession(id) }()
			if name != "" || company != "" || extra != "" {
				if _, err := a.service.UpdateUserInfo(id, service.UserFields{
					Name:              name,
					Company:           company,
					AdditionalContext: extra,
				}); err != nil {
					return err
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runChat(ctx, a.service, id, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "your name")
	cmd.Flags().StringVar(&company, "company", "", "hiring company")
	cmd.Flags().StringVar(&extra, "context", "", "additional context for the role")

	return cmd
}

// chatService is the part of the session service the REPL needs.
type chatService interface {
	HandleUserTurn(ctx context.Context, id, text string) string
	Sequence(id string) ([]domain.OutreachMessage, error)
}

// runChat reads lines from in until EOF, /quit, or ctx is cancelled.
func runChat(ctx context.Context, svc chatService, id string, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, styleHeader.Render("Helix")+" session "+id)
	fmt.Fprintln(out, styleNotice.Render("Tell me about the role you are hiring for. /show prints the sequence, /quit exits."))

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	for {
		fmt.Fprint(out, stylePrompt.Render("you> "))
		var line string
		var ok bool
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return nil
		case line, ok = <-lines:
		}
		if !ok {
			fmt.Fprintln(out)
			return nil
		}

		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/show":
			seq, err := svc.Sequence(id)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, styleSequence.Render(strings.TrimRight(sequence.Render(seq), "\n")))
			continue
		}

		reply := svc.HandleUserTurn(ctx, id, line)
		fmt.Fprintln(out, styleAssistant.Render("helix>")+" "+reply)
	}
}
