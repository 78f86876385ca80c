package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/streamchat/pkg/chat"
	"github.com/papercomputeco/streamchat/pkg/client"
)

// writeFrames writes each chunk and flushes it so the client sees them as
// separate reads.
func writeFrames(w http.ResponseWriter, chunks ...string) {
	w.Header().Set("Content-Type", "text/event-stream")
	flusher := w.(http.Flusher)
	for _, chunk := range chunks {
		_, _ = io.WriteString(w, chunk)
		flusher.Flush()
	}
}

// roundTripFunc serves requests without a network and ignores the request
// context.
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

// closeRecorder is a response body that remembers being closed.
type closeRecorder struct {
	io.Reader
	mu     sync.Mutex
	closed bool
}

func (b *closeRecorder) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *closeRecorder) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

var _ = Describe("Client", func() {
	var (
		ctx     context.Context
		mu      sync.Mutex
		handler http.HandlerFunc
		server  *httptest.Server
	)

	BeforeEach(func() {
		ctx = context.Background()
		handler = func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			h := handler
			mu.Unlock()
			h(w, r)
		}))
		DeferCleanup(server.Close)
	})

	setHandler := func(h http.HandlerFunc) {
		mu.Lock()
		defer mu.Unlock()
		handler = h
	}

	Describe("Stream", func() {
		It("posts the request as JSON and asks for an event stream", func() {
			var (
				gotMethod, gotPath, gotAccept, gotType string
				gotBody                                map[string]string
			)
			setHandler(func(w http.ResponseWriter, r *http.Request) {
				gotMethod = r.Method
				gotPath = r.URL.Path
				gotAccept = r.Header.Get("Accept")
				gotType = r.Header.Get("Content-Type")
				_ = json.NewDecoder(r.Body).Decode(&gotBody)
				writeFrames(w, "event: done\n\n")
			})

			c := client.New(server.URL + "/")
			body, err := c.Stream(ctx, chat.Request{SessionID: "chat-1", SystemPrompt: "sys", Prompt: "hi"})
			Expect(err).NotTo(HaveOccurred())
			raw, err := io.ReadAll(body)
			Expect(err).NotTo(HaveOccurred())
			Expect(body.Close()).To(Succeed())

			Expect(string(raw)).To(Equal("event: done\n\n"))
			Expect(gotMethod).To(Equal(http.MethodPost))
			Expect(gotPath).To(Equal("/api/chat/stream"))
			Expect(gotAccept).To(Equal("text/event-stream"))
			Expect(gotType).To(Equal("application/json"))
			Expect(gotBody).To(Equal(map[string]string{
				"sessionId": "chat-1",
				"system":    "sys",
				"prompt":    "hi",
			}))
		})

		It("returns a StatusError for non-2xx responses", func() {
			setHandler(func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "upstream exploded", http.StatusInternalServerError)
			})

			_, err := client.New(server.URL).Stream(ctx, chat.Request{Prompt: "hi"})

			var statusErr *client.StatusError
			Expect(errors.As(err, &statusErr)).To(BeTrue())
			Expect(statusErr.StatusCode).To(Equal(http.StatusInternalServerError))
			Expect(statusErr.Body).To(ContainSubstring("upstream exploded"))
			Expect(err.Error()).To(Equal("HTTP 500"))
		})

		It("returns ErrNoBody when the response has no stream", func() {
			setHandler(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			})

			_, err := client.New(server.URL).Stream(ctx, chat.Request{Prompt: "hi"})
			Expect(err).To(MatchError(client.ErrNoBody))
		})

		It("gives up when headers do not arrive in time", func() {
			release := make(chan struct{})
			DeferCleanup(func() { close(release) })
			setHandler(func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-release:
				case <-r.Context().Done():
				}
			})

			c := client.New(server.URL, client.WithTimeout(50*time.Millisecond))
			_, err := c.Stream(ctx, chat.Request{Prompt: "hi"})
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("no response within"))
		})

		It("rejects a response that arrives as the header timeout fires", func() {
			body := &closeRecorder{Reader: strings.NewReader("event: done\n\n")}
			slow := roundTripFunc(func(*http.Request) (*http.Response, error) {
				time.Sleep(60 * time.Millisecond)
				return &http.Response{StatusCode: http.StatusOK, Body: body, Header: http.Header{}}, nil
			})

			c := client.New(server.URL,
				client.WithHTTPClient(&http.Client{Transport: slow}),
				client.WithTimeout(10*time.Millisecond),
			)
			_, err := c.Stream(ctx, chat.Request{Prompt: "hi"})
			Expect(err).To(MatchError(context.DeadlineExceeded))
			Expect(err.Error()).To(ContainSubstring("no response within"))
			Expect(body.Closed()).To(BeTrue())
		})

		It("keeps streaming past the header timeout", func() {
			setHandler(func(w http.ResponseWriter, _ *http.Request) {
				writeFrames(w, "event: token\ndata: a\n\n")
				time.Sleep(100 * time.Millisecond)
				writeFrames(w, "event: done\n\n")
			})

			c := client.New(server.URL, client.WithTimeout(20*time.Millisecond))
			body, err := c.Stream(ctx, chat.Request{Prompt: "hi"})
			Expect(err).NotTo(HaveOccurred())
			defer body.Close()

			raw, err := io.ReadAll(body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(raw)).To(HaveSuffix("event: done\n\n"))
		})
	})

	Describe("DeleteSession", func() {
		It("deletes the escaped session path", func() {
			var gotMethod, gotPath string
			setHandler(func(w http.ResponseWriter, r *http.Request) {
				gotMethod = r.Method
				gotPath = r.URL.EscapedPath()
				w.WriteHeader(http.StatusNoContent)
			})

			err := client.New(server.URL).DeleteSession(ctx, "chat-a b/c")
			Expect(err).NotTo(HaveOccurred())
			Expect(gotMethod).To(Equal(http.MethodDelete))
			Expect(gotPath).To(Equal("/api/chat/chat-a%20b%2Fc"))
		})

		It("reports non-2xx responses", func() {
			setHandler(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			})

			err := client.New(server.URL).DeleteSession(ctx, "chat-1")
			Expect(err).To(MatchError("HTTP 503"))
		})
	})

	Describe("with a Controller", func() {
		var ctrl *chat.Controller

		BeforeEach(func() {
			ctrl = chat.NewController(chat.WithTransport(client.New(server.URL)))
		})

		lastContent := func() string {
			last, _ := ctrl.Transcript().Last()
			return last.Content
		}

		It("streams a reply split across writes", func() {
			setHandler(func(w http.ResponseWriter, _ *http.Request) {
				writeFrames(w,
					"event: status\ndata: connected\n\n",
					"event: token\ndata: Hel",
					"\n\nevent: tok",
					"en\ndata: lo\n\n",
					": keep-alive\n\n",
					"event: message\ndata: Hello\n\nevent: done\ndata: [DONE]\n\n",
				)
			})

			out, err := ctrl.Send(ctx, "hi")
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Disposition).To(Equal(chat.DispositionCompleted))
			Expect(lastContent()).To(Equal("Hello"))
		})

		It("surfaces a server error as one failure message", func() {
			setHandler(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			})

			out, err := ctrl.Send(ctx, "hi")
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Disposition).To(Equal(chat.DispositionFailed))
			Expect(lastContent()).To(Equal("Streaming failed: HTTP 502"))
			Expect(ctrl.State()).To(Equal(chat.StateIdle))
		})

		It("surfaces an abrupt connection drop as a failure", func() {
			setHandler(func(w http.ResponseWriter, _ *http.Request) {
				writeFrames(w, "event: token\ndata: par")
				panic(http.ErrAbortHandler)
			})

			out, err := ctrl.Send(ctx, "hi")
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Disposition).To(Equal(chat.DispositionFailed))

			snap := ctrl.Transcript().Snapshot()
			Expect(snap[len(snap)-1].Content).To(HavePrefix("Streaming failed: "))
			Expect(snap[len(snap)-2].Streaming).To(BeFalse())
		})

		It("stops silently when cancelled mid-stream", func() {
			setHandler(func(w http.ResponseWriter, r *http.Request) {
				writeFrames(w, "event: token\ndata: Hel\n\n")
				<-r.Context().Done()
			})

			done := make(chan chat.Outcome, 1)
			go func() {
				defer GinkgoRecover()
				out, err := ctrl.Send(ctx, "hi")
				Expect(err).NotTo(HaveOccurred())
				done <- out
			}()

			Eventually(lastContent).Should(Equal("Hel"))
			Expect(ctrl.Cancel()).To(BeTrue())

			var out chat.Outcome
			Eventually(done).Should(Receive(&out))
			Expect(out.Disposition).To(Equal(chat.DispositionCancelled))

			for _, m := range ctrl.Transcript().Snapshot() {
				Expect(m.Content).NotTo(HavePrefix("Streaming failed"))
			}
		})

		It("deletes the previous session on reset", func() {
			deleted := make(chan string, 1)
			setHandler(func(w http.ResponseWriter, r *http.Request) {
				if r.Method == http.MethodDelete {
					deleted <- strings.TrimPrefix(r.URL.Path, "/api/chat/")
				}
				w.WriteHeader(http.StatusOK)
			})

			previous := ctrl.SessionID()
			ctrl.Reset(ctx)
			ctrl.Wait()

			Expect(deleted).To(Receive(Equal(previous)))
			Expect(ctrl.SessionID()).NotTo(Equal(previous))
		})

		It("emits tokens as they arrive", func() {
			next := make(chan struct{})
			setHandler(func(w http.ResponseWriter, _ *http.Request) {
				for i := range 3 {
					writeFrames(w, fmt.Sprintf("event: token\ndata: %d\n\n", i))
					<-next
				}
				writeFrames(w, "event: done\n\n")
			})

			go func() {
				defer GinkgoRecover()
				_, _ = ctrl.Send(ctx, "count")
			}()

			for _, want := range []string{"0", "01", "012"} {
				Eventually(lastContent).Should(Equal(want))
				next <- struct{}{}
			}
			Eventually(ctrl.State).Should(Equal(chat.StateIdle))
		})
	})
})
