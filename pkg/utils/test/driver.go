package testutils

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/streamchat/pkg/chat"
	"github.com/papercomputeco/streamchat/pkg/storage"
)

// DescribeDriver registers the behaviour every storage.Driver shares.
// newDriver is called before each test; the driver is closed after it.
func DescribeDriver(newDriver func() storage.Driver) {
	Describe("storage.Driver behaviour", func() {
		var (
			ctx    context.Context
			driver storage.Driver
		)

		BeforeEach(func() {
			ctx = context.Background()
			driver = newDriver()
			DeferCleanup(driver.Close)
		})

		Describe("Put", func() {
			It("stores a new exchange", func() {
				ex := NewTestExchange("chat-a", "hello", 0)

				inserted, err := driver.Put(ctx, ex)
				Expect(err).NotTo(HaveOccurred())
				Expect(inserted).To(BeTrue())

				got, err := driver.Get(ctx, ex.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(got.SessionID).To(Equal("chat-a"))
				Expect(got.Prompt).To(Equal("hello"))
				Expect(got.Reply).To(Equal("reply to hello"))
				Expect(got.Disposition).To(Equal(chat.DispositionCompleted))
				Expect(got.Frames).To(Equal(3))
				Expect(got.StartedAt).To(BeTemporally("~", ex.StartedAt, time.Millisecond))
				Expect(got.Duration()).To(BeNumerically("~", time.Second, time.Millisecond))
			})

			It("is idempotent by ID", func() {
				ex := NewTestExchange("chat-a", "hello", 0)

				_, err := driver.Put(ctx, ex)
				Expect(err).NotTo(HaveOccurred())

				dup := *ex
				dup.Reply = "changed"
				inserted, err := driver.Put(ctx, &dup)
				Expect(err).NotTo(HaveOccurred())
				Expect(inserted).To(BeFalse())

				got, err := driver.Get(ctx, ex.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(got.Reply).To(Equal("reply to hello"))
			})

			It("keeps failure reasons", func() {
				ex := NewTestExchange("chat-a", "hello", 0)
				ex.Disposition = chat.DispositionFailed
				ex.Error = "HTTP 502"

				_, err := driver.Put(ctx, ex)
				Expect(err).NotTo(HaveOccurred())

				got, err := driver.Get(ctx, ex.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(got.Disposition).To(Equal(chat.DispositionFailed))
				Expect(got.Error).To(Equal("HTTP 502"))
			})

			It("rejects nil", func() {
				_, err := driver.Put(ctx, nil)
				Expect(err).To(MatchError(storage.ErrNilExchange))
			})
		})

		Describe("Get", func() {
			It("returns NotFoundError for unknown IDs", func() {
				_, err := driver.Get(ctx, "missing")

				var nf storage.NotFoundError
				Expect(errors.As(err, &nf)).To(BeTrue())
				Expect(nf.ID).To(Equal("missing"))
			})
		})

		Describe("List", func() {
			BeforeEach(func() {
				for _, ex := range []*storage.Exchange{
					NewTestExchange("chat-a", "second", 2*time.Minute),
					NewTestExchange("chat-b", "other", time.Minute),
					NewTestExchange("chat-a", "first", 0),
				} {
					_, err := driver.Put(ctx, ex)
					Expect(err).NotTo(HaveOccurred())
				}
			})

			It("scopes to a session, oldest first", func() {
				got, err := driver.List(ctx, "chat-a")
				Expect(err).NotTo(HaveOccurred())
				Expect(got).To(HaveLen(2))
				Expect(got[0].Prompt).To(Equal("first"))
				Expect(got[1].Prompt).To(Equal("second"))
			})

			It("lists everything for an empty session", func() {
				got, err := driver.List(ctx, "")
				Expect(err).NotTo(HaveOccurred())
				Expect(got).To(HaveLen(3))
				Expect(got[1].Prompt).To(Equal("other"))
			})

			It("returns nothing for an unknown session", func() {
				got, err := driver.List(ctx, "chat-z")
				Expect(err).NotTo(HaveOccurred())
				Expect(got).To(BeEmpty())
			})
		})

		Describe("Sessions", func() {
			It("summarizes sessions, most recently active first", func() {
				for _, ex := range []*storage.Exchange{
					NewTestExchange("chat-a", "one", 0),
					NewTestExchange("chat-b", "two", time.Minute),
					NewTestExchange("chat-a", "three", 2*time.Minute),
					NewTestExchange("chat-c", "four", 30*time.Second),
				} {
					_, err := driver.Put(ctx, ex)
					Expect(err).NotTo(HaveOccurred())
				}

				got, err := driver.Sessions(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(got).To(HaveLen(3))
				Expect(got[0].SessionID).To(Equal("chat-a"))
				Expect(got[0].Exchanges).To(Equal(2))
				Expect(got[1].SessionID).To(Equal("chat-b"))
				Expect(got[2].SessionID).To(Equal("chat-c"))
			})
		})
	})
}
