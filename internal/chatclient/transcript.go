package chatclient

import (
	"fmt"
	"io"
	"sync"

	"github.com/gookit/color"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleError     Role = "error"
)

// Entry is one line of the transcript.
type Entry struct {
	Role Role
	Text string
}

// Transcript is the ordered record of a chat session. Every appended entry
// is also rendered to the writer it was created with.
type Transcript struct {
	mu      sync.Mutex
	entries []Entry
	out     io.Writer
	colours bool
}

// NewTranscript renders to out, which may be nil to keep entries in memory only.
func NewTranscript(out io.Writer, colours bool) *Transcript {
	return &Transcript{out: out, colours: colours}
}

func (t *Transcript) Append(e Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, e)
	if t.out != nil {
		_, _ = fmt.Fprintln(t.out, t.render(e))
	}
}

// Entries returns a copy of the transcript so far.
func (t *Transcript) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Entry(nil), t.entries...)
}

func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

func (t *Transcript) render(e Entry) string {
	var line string
	var style color.Style
	switch e.Role {
	case RoleUser:
		line, style = "You: "+e.Text, color.New(color.FgCyan, color.OpBold)
	case RoleError:
		line, style = "! "+e.Text, color.New(color.FgRed)
	default:
		line, style = e.Text, color.New(color.FgGreen)
	}
	if !t.colours {
		return line
	}
	return style.Render(line)
}
