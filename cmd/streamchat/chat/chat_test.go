package chatcmder

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/gbytes"

	"github.com/papercomputeco/streamchat/pkg/chat"
	"github.com/papercomputeco/streamchat/pkg/config"
	"github.com/papercomputeco/streamchat/pkg/dotdir"
)

// chatService is a fake chat service that records requests and deletions.
type chatService struct {
	mu       sync.Mutex
	requests []chat.Request
	deleted  []string

	// reply writes the response for one stream request.
	reply func(w http.ResponseWriter, r *http.Request)
}

func (s *chatService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/api/chat/stream":
		var req chat.Request
		_ = json.NewDecoder(r.Body).Decode(&req)
		s.mu.Lock()
		s.requests = append(s.requests, req)
		s.mu.Unlock()
		s.reply(w, r)

	case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/api/chat/"):
		s.mu.Lock()
		s.deleted = append(s.deleted, strings.TrimPrefix(r.URL.Path, "/api/chat/"))
		s.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)

	default:
		http.NotFound(w, r)
	}
}

func (s *chatService) Requests() []chat.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]chat.Request(nil), s.requests...)
}

func (s *chatService) Deleted() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deleted...)
}

func streamTokens(tokens ...string) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, t := range tokens {
			_, _ = io.WriteString(w, "event: token\ndata: "+t+"\n\n")
			flusher.Flush()
		}
		_, _ = io.WriteString(w, "event: done\ndata: {}\n\n")
		flusher.Flush()
	}
}

var _ = Describe("NewChatCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := NewChatCmd()
		Expect(cmd.Use).To(Equal("chat"))
	})

	It("registers flags from the shared registry", func() {
		cmd := NewChatCmd()

		target := cmd.Flags().Lookup("target")
		Expect(target).NotTo(BeNil())
		Expect(target.Shorthand).To(Equal("t"))
		Expect(target.DefValue).To(Equal("http://localhost:8080"))

		system := cmd.Flags().Lookup("system")
		Expect(system).NotTo(BeNil())
		Expect(system.Shorthand).To(Equal("s"))
		Expect(system.DefValue).To(Equal(chat.DefaultSystemPrompt))

		for _, name := range []string{"timeout", "sqlite", "postgres", "events-provider", "kafka-brokers", "kafka-topic", "new", "no-archive", "capture", "log-file"} {
			Expect(cmd.Flags().Lookup(name)).NotTo(BeNil(), name)
		}
	})
})

var _ = Describe("chat session", func() {
	var (
		service   *chatService
		server    *httptest.Server
		configDir string
		out       *gbytes.Buffer
		cmder     *chatCommander
	)

	BeforeEach(func() {
		service = &chatService{reply: streamTokens("Hel", "lo")}
		server = httptest.NewServer(service)
		DeferCleanup(server.Close)

		configDir = GinkgoT().TempDir()
		out = gbytes.NewBuffer()

		defaults := config.NewDefaultConfig()
		cmder = &chatCommander{
			configDir:    configDir,
			target:       server.URL,
			systemPrompt: defaults.Client.SystemPrompt,
			timeout:      defaults.Client.TimeoutSeconds,
			ephemeral:    true,
			out:          out,
		}
	})

	It("streams replies and handles slash commands", func() {
		cmder.in = strings.NewReader("hello\n/system Be brief.\nagain\n/session\n/exit\nnever sent\n")

		Expect(cmder.run(context.Background(), nil)).To(Succeed())

		Expect(out).To(gbytes.Say(chat.DefaultGreeting))
		Expect(out).To(gbytes.Say("assistant> Hello"))
		Expect(out).To(gbytes.Say("System prompt updated"))
		Expect(out).To(gbytes.Say("assistant> Hello"))
		Expect(out).To(gbytes.Say("Session chat-"))

		requests := service.Requests()
		Expect(requests).To(HaveLen(2))
		Expect(requests[0].Prompt).To(Equal("hello"))
		Expect(requests[0].SystemPrompt).To(Equal(chat.DefaultSystemPrompt))
		Expect(requests[1].SystemPrompt).To(Equal("Be brief."))
		Expect(requests[1].SessionID).To(Equal(requests[0].SessionID))
	})

	It("persists the session identity and resumes it", func() {
		cmder.in = strings.NewReader("hello\n")
		Expect(cmder.run(context.Background(), nil)).To(Succeed())

		state, err := dotdir.NewManager().LoadSession(configDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(state).NotTo(BeNil())
		Expect(state.SessionID).To(Equal(service.Requests()[0].SessionID))

		cmder.in = strings.NewReader("again\n")
		cmder.out = gbytes.NewBuffer()
		Expect(cmder.run(context.Background(), nil)).To(Succeed())
		Expect(cmder.out).To(gbytes.Say("Resuming session " + state.SessionID))
		Expect(service.Requests()[1].SessionID).To(Equal(state.SessionID))
	})

	It("starts fresh with --new", func() {
		Expect(dotdir.NewManager().SaveSession("chat-old", configDir)).To(Succeed())

		cmder.newSession = true
		cmder.in = strings.NewReader("hello\n")
		Expect(cmder.run(context.Background(), nil)).To(Succeed())

		Expect(service.Requests()[0].SessionID).NotTo(Equal("chat-old"))
	})

	It("rotates the session on /reset and deletes the old one", func() {
		cmder.in = strings.NewReader("hello\n/reset\nagain\n")
		Expect(cmder.run(context.Background(), nil)).To(Succeed())

		Expect(out).To(gbytes.Say(chat.DefaultResetGreeting))

		requests := service.Requests()
		Expect(requests).To(HaveLen(2))
		Expect(requests[1].SessionID).NotTo(Equal(requests[0].SessionID))
		Expect(service.Deleted()).To(ConsistOf(requests[0].SessionID))

		state, err := dotdir.NewManager().LoadSession(configDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(state.SessionID).To(Equal(requests[1].SessionID))
	})

	It("shows failures inline and keeps going", func() {
		service.reply = func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "upstream down", http.StatusBadGateway)
		}
		cmder.in = strings.NewReader("hello\n/session\n")

		Expect(cmder.run(context.Background(), nil)).To(Succeed())
		Expect(out).To(gbytes.Say("Streaming failed: HTTP 502"))
		Expect(out).To(gbytes.Say("Session chat-"))
	})

	It("tees the raw stream to the capture file", func() {
		cmder.capture = filepath.Join(GinkgoT().TempDir(), "stream.log")
		cmder.in = strings.NewReader("hello\n")

		Expect(cmder.run(context.Background(), nil)).To(Succeed())

		raw, err := os.ReadFile(cmder.capture)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(raw)).To(Equal("event: token\ndata: Hel\n\nevent: token\ndata: lo\n\nevent: done\ndata: {}\n\n"))
	})

	It("writes logs to --log-file", func() {
		cmder.logFile = filepath.Join(GinkgoT().TempDir(), "chat.log")
		cmder.in = strings.NewReader("hello\n")

		Expect(cmder.run(context.Background(), nil)).To(Succeed())

		raw, err := os.ReadFile(cmder.logFile)
		Expect(err).NotTo(HaveOccurred())

		first, _, _ := strings.Cut(string(raw), "\n")
		var record map[string]any
		Expect(json.Unmarshal([]byte(first), &record)).To(Succeed())
		Expect(record).To(HaveKey("msg"))
	})

	Describe("interrupts", func() {
		var (
			input      *io.PipeWriter
			interrupts chan os.Signal
			done       chan error
		)

		BeforeEach(func() {
			var r *io.PipeReader
			r, input = io.Pipe()
			DeferCleanup(input.Close)

			cmder.in = r
			interrupts = make(chan os.Signal, 1)
			done = make(chan error, 1)
		})

		start := func() {
			go func() {
				defer GinkgoRecover()
				done <- cmder.run(context.Background(), interrupts)
			}()
		}

		It("exits when idle", func() {
			start()
			Eventually(out).Should(gbytes.Say("you> "))

			interrupts <- os.Interrupt
			Eventually(done).Should(Receive(BeNil()))
		})

		It("stops a streaming reply and keeps the session open", func() {
			release := make(chan struct{})
			service.reply = func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/event-stream")
				_, _ = io.WriteString(w, "event: token\ndata: partial\n\n")
				w.(http.Flusher).Flush()
				select {
				case <-r.Context().Done():
				case <-release:
				}
			}
			DeferCleanup(func() { close(release) })

			start()
			_, err := io.WriteString(input, "hello\n")
			Expect(err).NotTo(HaveOccurred())
			Eventually(out).Should(gbytes.Say("assistant> partial"))

			interrupts <- os.Interrupt
			Eventually(out).Should(gbytes.Say(`\(stopped\)`))
			Consistently(done).ShouldNot(Receive())

			_, err = io.WriteString(input, "/exit\n")
			Expect(err).NotTo(HaveOccurred())
			Eventually(done).Should(Receive(BeNil()))
			Expect(string(out.Contents())).NotTo(ContainSubstring("Streaming failed"))
		})
	})
})

var _ = Describe("renderer", func() {
	It("does not mark an exchange from a replaced session as stopped", func() {
		out := gbytes.NewBuffer()
		r := newRenderer(out)

		r.handle(chat.TranscriptReset{SessionID: "chat-new"})
		r.handle(chat.ExchangeConcluded{Outcome: chat.Outcome{
			SessionID:   "chat-old",
			Disposition: chat.DispositionCancelled,
		}})
		Expect(string(out.Contents())).NotTo(ContainSubstring("(stopped)"))

		r.handle(chat.ExchangeConcluded{Outcome: chat.Outcome{
			SessionID:   "chat-new",
			Disposition: chat.DispositionCancelled,
		}})
		Expect(string(out.Contents())).To(ContainSubstring("(stopped)"))
	})
})
