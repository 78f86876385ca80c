package sessioncmder

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/streamchat/pkg/dotdir"
)

var _ = Describe("NewSessionCmd", func() {
	It("creates a command with a reset subcommand", func() {
		cmd := NewSessionCmd()
		Expect(cmd.Use).To(Equal("session"))

		reset, _, err := cmd.Find([]string{"reset"})
		Expect(err).NotTo(HaveOccurred())
		Expect(reset.Flags().Lookup("target")).NotTo(BeNil())
	})
})

var _ = Describe("session", func() {
	var (
		configDir string
		out       *bytes.Buffer
	)

	BeforeEach(func() {
		configDir = GinkgoT().TempDir()
		out = &bytes.Buffer{}
	})

	Describe("show", func() {
		It("reports a missing session", func() {
			Expect(runShow(out, configDir)).To(Succeed())
			Expect(out.String()).To(ContainSubstring("No session yet."))
		})

		It("prints the stored session", func() {
			Expect(dotdir.NewManager().SaveSession("chat-123", configDir)).To(Succeed())

			Expect(runShow(out, configDir)).To(Succeed())
			Expect(out.String()).To(ContainSubstring("chat-123"))
		})
	})

	Describe("reset", func() {
		var (
			mu      sync.Mutex
			deleted []string
			server  *httptest.Server
		)

		BeforeEach(func() {
			deleted = nil
			server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method == http.MethodDelete {
					mu.Lock()
					deleted = append(deleted, strings.TrimPrefix(r.URL.Path, "/api/chat/"))
					mu.Unlock()
				}
				w.WriteHeader(http.StatusNoContent)
			}))
			DeferCleanup(server.Close)
		})

		It("rotates the identity and deletes the old server memory", func() {
			Expect(dotdir.NewManager().SaveSession("chat-old", configDir)).To(Succeed())

			cmder := &resetCommander{configDir: configDir, target: server.URL, timeout: 5}
			Expect(cmder.run(context.Background(), out)).To(Succeed())

			state, err := dotdir.NewManager().LoadSession(configDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(state.SessionID).To(HavePrefix("chat-"))
			Expect(state.SessionID).NotTo(Equal("chat-old"))

			mu.Lock()
			defer mu.Unlock()
			Expect(deleted).To(ConsistOf("chat-old"))
			Expect(out.String()).To(ContainSubstring(state.SessionID))
		})

		It("keeps the new identity when the service is unreachable", func() {
			Expect(dotdir.NewManager().SaveSession("chat-old", configDir)).To(Succeed())
			server.Close()

			cmder := &resetCommander{configDir: configDir, target: server.URL, timeout: 1}
			Expect(cmder.run(context.Background(), out)).To(Succeed())

			state, err := dotdir.NewManager().LoadSession(configDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(state.SessionID).NotTo(Equal("chat-old"))
		})

		It("creates an identity without contacting the service", func() {
			cmder := &resetCommander{configDir: configDir, target: server.URL, timeout: 5}
			Expect(cmder.run(context.Background(), out)).To(Succeed())

			state, err := dotdir.NewManager().LoadSession(configDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(state).NotTo(BeNil())

			mu.Lock()
			defer mu.Unlock()
			Expect(deleted).To(BeEmpty())
		})
	})
})
