package dotdir_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/streamchat/pkg/dotdir"
)

var _ = Describe("Manager session", func() {
	var tmpDir string
	var m *dotdir.Manager

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		m = dotdir.NewManager()
	})

	Describe("LoadSession", func() {
		It("returns nil when no session has been saved", func() {
			state, err := m.LoadSession(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(state).To(BeNil())
		})

		It("loads a hand-written session file", func() {
			data := `{"sessionId":"chat-abc","updatedAt":"2026-01-02T03:04:05Z"}`
			Expect(os.WriteFile(filepath.Join(tmpDir, "session.json"), []byte(data), 0o600)).To(Succeed())

			state, err := m.LoadSession(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(state.SessionID).To(Equal("chat-abc"))
			Expect(state.UpdatedAt.Year()).To(Equal(2026))
		})

		It("returns an error for invalid JSON", func() {
			Expect(os.WriteFile(filepath.Join(tmpDir, "session.json"), []byte("not json"), 0o600)).To(Succeed())

			state, err := m.LoadSession(tmpDir)
			Expect(err).To(HaveOccurred())
			Expect(state).To(BeNil())
		})
	})

	Describe("SaveSession", func() {
		It("round trips through LoadSession", func() {
			Expect(m.SaveSession("chat-123", tmpDir)).To(Succeed())

			state, err := m.LoadSession(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(state.SessionID).To(Equal("chat-123"))
			Expect(state.UpdatedAt).NotTo(BeZero())
		})

		It("overwrites the previous identity", func() {
			Expect(m.SaveSession("chat-old", tmpDir)).To(Succeed())
			Expect(m.SaveSession("chat-new", tmpDir)).To(Succeed())

			state, err := m.LoadSession(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(state.SessionID).To(Equal("chat-new"))
		})

		It("rejects an empty id", func() {
			Expect(m.SaveSession("", tmpDir)).NotTo(Succeed())
		})
	})

	Describe("ClearSession", func() {
		It("removes the session file", func() {
			Expect(m.SaveSession("chat-123", tmpDir)).To(Succeed())
			Expect(m.ClearSession(tmpDir)).To(Succeed())

			state, err := m.LoadSession(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(state).To(BeNil())
		})

		It("is a no-op when nothing was saved", func() {
			Expect(m.ClearSession(tmpDir)).To(Succeed())
		})
	})
})
