package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	modelchat "github.com/zhouzirui/pulse-hr/backend/internal/model/chat"
	"github.com/zhouzirui/pulse-hr/backend/internal/model/companion"
	"github.com/zhouzirui/pulse-hr/backend/internal/model/wellness"
	"github.com/zhouzirui/pulse-hr/backend/internal/service/chat"
	"github.com/zhouzirui/pulse-hr/backend/internal/simulator"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the wellness companion in the terminal",
	Long: `Starts one anonymous session and reads messages from stdin.

Commands:
  /wellness  print the current score and risk
  /reset     start the conversation over
  /quit      leave the session`,
	RunE: runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	companions := companion.NewMemoryStore(companion.Seed())
	chatService := newChatService(ctx, companions)
	defer chatService.Close()

	return runChatSession(ctx, chatService, companions, cmd.InOrStdin(), cmd.OutOrStdout())
}

// terminal serialises output from the event pump and the input loop.
type terminal struct {
	mu   sync.Mutex
	out  io.Writer
	name string
}

func (t *terminal) printf(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, format, args...)
}

func (t *terminal) printMessage(msg modelchat.Message) {
	if msg.Role == modelchat.RoleAssistant {
		t.printf("%s: %s\n", t.name, msg.Content)
	}
}

func (t *terminal) printMetrics(m wellness.Metrics) {
	t.printf("[wellness] score %d, risk %s\n", m.Score, m.Risk)
	if m.Alert != nil {
		t.printf("[%s] %s (%s)\n", m.Alert.Title, m.Alert.Message, m.Alert.Action)
	}
}

func (t *terminal) printEvent(ev simulator.Event) {
	switch ev.Type {
	case simulator.EventMessage:
		if ev.Message != nil {
			t.printMessage(*ev.Message)
		}
	case simulator.EventTyping:
		if ev.Pending {
			t.printf("%s is typing...\n", t.name)
		}
	case simulator.EventMetrics:
		if ev.Metrics != nil {
			t.printMetrics(*ev.Metrics)
		}
	case simulator.EventReset:
		t.printf("-- conversation reset --\n")
	}
}

// runChatSession drives one session from in until /quit, EOF or ctx cancellation.
// On EOF it waits for outstanding replies so piped input gets its answers.
func runChatSession(ctx context.Context, chatService *chat.Service, companions companion.Store, in io.Reader, out io.Writer) error {
	session, err := chatService.CreateSession(ctx, companion.DefaultID)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	profile, _ := companions.FindByID(session.CompanionID)
	term := &terminal{out: out, name: profile.Name}

	events, unsubscribe, err := chatService.Subscribe(ctx, session.ID, 64)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	snapshot, err := chatService.Snapshot(ctx, session.ID)
	if err != nil {
		unsubscribe()
		return err
	}
	for _, msg := range snapshot.Transcript {
		term.printMessage(msg)
	}
	term.printMetrics(snapshot.Metrics)

	var pump sync.WaitGroup
	pump.Add(1)
	go func() {
		defer pump.Done()
		for ev := range events {
			term.printEvent(ev)
		}
	}()
	defer func() {
		unsubscribe()
		pump.Wait()
	}()

	lines := make(chan string)
	done := make(chan struct{})
	defer close(done)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return waitIdle(ctx, chatService, session.ID)
			}
			quit, err := handleLine(ctx, chatService, session.ID, term, line)
			if err != nil || quit {
				return err
			}
		}
	}
}

func handleLine(ctx context.Context, chatService *chat.Service, sessionID string, term *terminal, line string) (bool, error) {
	switch strings.TrimSpace(line) {
	case "/quit":
		return true, nil
	case "/reset":
		return false, chatService.Reset(ctx, sessionID)
	case "/wellness":
		metrics, err := chatService.Metrics(ctx, sessionID)
		if err != nil {
			return false, err
		}
		term.printMetrics(metrics)
		return false, nil
	}

	_, _, err := chatService.Submit(ctx, sessionID, line)
	return false, err
}

func waitIdle(ctx context.Context, chatService *chat.Service, sessionID string) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		snapshot, err := chatService.Snapshot(ctx, sessionID)
		if err != nil {
			return err
		}
		if !snapshot.Pending {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
