package chatcmder

import (
	"fmt"
	"io"
	"sync"

	"github.com/papercomputeco/streamchat/pkg/chat"
	"github.com/papercomputeco/streamchat/pkg/cliui"
	"github.com/papercomputeco/streamchat/pkg/transcript"
)

// renderer prints controller updates as a line oriented transcript. Tokens
// are written as they arrive.
type renderer struct {
	mu  sync.Mutex
	out io.Writer

	// open is set while an assistant line is being streamed.
	open bool

	// session is the identity announced by the last reset. Outcomes of
	// exchanges from earlier sessions are not printed.
	session string
}

func newRenderer(out io.Writer) *renderer {
	return &renderer{out: out}
}

func (r *renderer) userPrompt() string {
	return cliui.Render(r.out, cliui.UserStyle, "you> ")
}

func (r *renderer) assistantPrompt() string {
	return cliui.Render(r.out, cliui.AssistantStyle, "assistant> ")
}

// greet prints every message currently in the transcript.
func (r *renderer) greet(messages []transcript.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range messages {
		if m.Role == transcript.RoleAssistant {
			fmt.Fprintf(r.out, "%s%s\n", r.assistantPrompt(), m.Content)
		} else {
			fmt.Fprintf(r.out, "%s%s\n", r.userPrompt(), m.Content)
		}
	}
	fmt.Fprintln(r.out)
}

func (r *renderer) handle(u chat.Update) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch u := u.(type) {
	case chat.MessageAppended:
		if u.Message.Role != transcript.RoleAssistant {
			return
		}
		if u.Message.Streaming {
			fmt.Fprint(r.out, r.assistantPrompt())
			r.open = true
			return
		}
		r.closeLine()
		fmt.Fprintf(r.out, "  %s %s\n", cliui.Render(r.out, cliui.ErrorStyle, "✗"),
			cliui.Render(r.out, cliui.ErrorStyle, u.Message.Content))

	case chat.TokenAppended:
		fmt.Fprint(r.out, u.Delta)

	case chat.MessageFinalized:
		r.closeLine()

	case chat.ExchangeConcluded:
		if r.session != "" && u.Outcome.SessionID != r.session {
			return
		}
		r.closeLine()
		if u.Outcome.Disposition == chat.DispositionCancelled {
			fmt.Fprintf(r.out, "  %s\n", cliui.Render(r.out, cliui.DimStyle, "(stopped)"))
		}
		fmt.Fprintln(r.out)

	case chat.TranscriptReset:
		r.session = u.SessionID
		r.closeLine()
		fmt.Fprintf(r.out, "  %s New session %s\n\n",
			cliui.Render(r.out, cliui.DimStyle, "●"),
			cliui.Render(r.out, cliui.HashStyle, u.SessionID),
		)
		fmt.Fprintf(r.out, "%s%s\n\n", r.assistantPrompt(), u.Greeting.Content)
	}
}

func (r *renderer) closeLine() {
	if r.open {
		fmt.Fprintln(r.out)
		r.open = false
	}
}

// notice prints a dim informational line.
func (r *renderer) notice(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "  %s\n\n", cliui.Render(r.out, cliui.DimStyle, fmt.Sprintf(format, args...)))
}

// prompt prints the input prompt.
func (r *renderer) prompt() {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprint(r.out, r.userPrompt())
}
