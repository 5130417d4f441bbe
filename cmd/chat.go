package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/radar/internal/agent"
	"github.com/nextlevelbuilder/radar/internal/config"
	"github.com/nextlevelbuilder/radar/pkg/protocol"
)

const chatUserID = "5500000000000"

func chatCmd() *cobra.Command {
	var (
		persist  bool
		debounce time.Duration
		user     string
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the assistant from the terminal",
		Long:  "Runs the full conversation pipeline (debounce, menus, tool loop) with replies printed to the terminal instead of WhatsApp.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(persist, debounce, user)
		},
	}
	cmd.Flags().BoolVar(&persist, "persist", false, "use the configured database instead of an in-memory store")
	cmd.Flags().DurationVar(&debounce, "debounce", time.Second, "quiet period before a burst is answered")
	cmd.Flags().StringVar(&user, "user", chatUserID, "phone number to chat as")
	return cmd
}

func runChat(persist bool, debounce time.Duration, user string) error {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if !persist {
		cfg.Database.Driver = "memory"
		cfg.Sessions.Storage = ""
	}
	if debounce > 0 {
		cfg.Gateway.DebounceMs = int(debounce / time.Millisecond)
	}
	cfg.Gateway.PresencePaddingMs = 0

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	stores, err := openStores(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open stores: %w", err)
	}
	console := newConsoleTransport(os.Stdout, user)
	a, err := buildApp(cfg, stores, appOptions{transport: console, channel: "cli"})
	if err != nil {
		if stores.Close != nil {
			stores.Close()
		}
		return err
	}
	defer a.close()

	fmt.Fprintf(os.Stderr, "\nRadar chat | model %s | store %s | user %s\n", cfg.Agent.Model, cfg.Database.Driver, user)
	fmt.Fprintf(os.Stderr, "Type \"exit\" to quit, \"/reset\" to clear the menu state.\n\n")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(os.Stderr, "\nbye")
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			switch text := strings.TrimSpace(line); text {
			case "":
			case "exit", "quit":
				return nil
			case "/reset":
				if err := a.sessions.Clear(user); err != nil {
					slog.Warn("reset state", "error", err)
				}
				fmt.Fprintln(os.Stderr, "(state cleared)")
			default:
				if err := a.engine.Receive(ctx, user, text, agent.Metadata{}); err != nil {
					fmt.Fprintf(os.Stderr, "error: %v\n", err)
				}
			}
		}
	}
}

// consoleTransport prints outbound traffic. Replies to the chat user are
// printed plainly; notices to stores are labelled with their recipient.
type consoleTransport struct {
	mu   sync.Mutex
	out  io.Writer
	user string
}

func newConsoleTransport(out io.Writer, user string) *consoleTransport {
	return &consoleTransport{out: out, user: user}
}

func (c *consoleTransport) SendText(_ context.Context, recipient, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if recipient == c.user {
		_, err := fmt.Fprintf(c.out, "\nRadar: %s\n\n", text)
		return err
	}
	_, err := fmt.Fprintf(c.out, "\n[to %s] %s\n\n", recipient, text)
	return err
}

func (c *consoleTransport) SendPresence(_ context.Context, recipient, state string, _ time.Duration) error {
	if recipient != c.user || state != protocol.PresenceComposing {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintln(c.out, "(typing...)")
	return err
}
