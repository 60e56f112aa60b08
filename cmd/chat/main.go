package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"vidyaguide/internal/chatclient"
	"vidyaguide/internal/domain"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// backend is the part of *chatclient.Client the prompt loop needs.
type backend interface {
	chatclient.Sender
	History(ctx context.Context, conversationID string) ([]domain.Exchange, error)
	Analyze(ctx context.Context, filename string, r io.Reader) (domain.ResumeAnalysis, error)
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "chat terminated with error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	cfg, err := loadConfig()
	if err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	client, err := chatclient.NewClient(cfg.Server, chatclient.WithTimeout(cfg.Timeout))
	if err != nil {
		return exitConfig, err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session := chatclient.NewSession(client, chatclient.NewTranscript(os.Stdout, cfg.Colours))
	fmt.Fprintf(os.Stdout, "VidyaGuide at %s. Type /quit to leave.\n", cfg.Server)

	if err := repl(ctx, os.Stdin, os.Stdout, client, session); err != nil {
		if errors.Is(err, context.Canceled) {
			return exitOK, nil
		}
		return exitRuntime, err
	}
	return exitOK, nil
}

// repl reads one message per line until EOF, /quit or ctx is cancelled.
// Send failures are already in the transcript and do not stop the loop.
func repl(ctx context.Context, in io.Reader, out io.Writer, c backend, session *chatclient.Session) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		var line string
		var ok bool
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok = <-lines:
		}
		if !ok {
			select {
			case err := <-readErr:
				return err
			default:
				return nil
			}
		}

		cmd, arg := parseCommand(line)
		switch cmd {
		case "":
			_, _ = session.Submit(ctx, line)
		case "quit":
			return nil
		case "history":
			printHistory(ctx, out, c, session.ConversationID())
		case "analyze":
			printAnalysis(ctx, out, c, arg)
		}
	}
}

var commands = map[string]bool{"quit": true, "history": true, "analyze": true}

// parseCommand splits "/name arg" lines for the known commands. Anything else,
// including "/etc/hosts"-style text, is a chat message and yields an empty
// command.
func parseCommand(line string) (cmd, arg string) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "/") {
		return "", ""
	}
	name, rest, _ := strings.Cut(trimmed[1:], " ")
	name = strings.ToLower(name)
	if !commands[name] {
		return "", ""
	}
	return name, strings.TrimSpace(rest)
}

func printHistory(ctx context.Context, out io.Writer, c backend, conversationID string) {
	if conversationID == "" {
		fmt.Fprintln(out, "no conversation yet")
		return
	}
	exchanges, err := c.History(ctx, conversationID)
	if err != nil {
		fmt.Fprintf(out, "! %s\n", chatclient.Describe(err))
		return
	}
	for _, ex := range exchanges {
		fmt.Fprintf(out, "[%s] You: %s\n%s\n", ex.CreatedAt.Format("2006-01-02 15:04"), ex.Message, ex.Reply)
	}
	fmt.Fprintf(out, "%d exchange(s)\n", len(exchanges))
}

func printAnalysis(ctx context.Context, out io.Writer, c backend, path string) {
	if path == "" {
		fmt.Fprintln(out, "usage: /analyze <file.pdf>")
		return
	}
	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(out, "! %v\n", err)
		return
	}
	defer f.Close()

	a, err := c.Analyze(ctx, filepath.Base(path), f)
	if err != nil {
		fmt.Fprintf(out, "! %s\n", chatclient.Describe(err))
		return
	}

	fmt.Fprintf(out, "Score: %d/100\n", a.Score)
	if a.Summary != "" {
		fmt.Fprintln(out, a.Summary)
	}
	for _, s := range []struct {
		title string
		items []string
	}{
		{"Strengths", a.Strengths},
		{"Weaknesses", a.Weaknesses},
		{"Missing skills", a.SkillsMissing},
		{"Job roles", a.JobRoles},
		{"Career paths", a.CareerPaths},
		{"6-month roadmap", a.Roadmap6M},
		{"12-month roadmap", a.Roadmap12M},
		{"Interview questions", a.InterviewQuestions},
	} {
		if len(s.items) == 0 {
			continue
		}
		fmt.Fprintf(out, "%s:\n", s.title)
		for _, item := range s.items {
			fmt.Fprintf(out, "  - %s\n", item)
		}
	}
}
