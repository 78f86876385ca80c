package postgres_test

import (
	"context"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/streamchat/pkg/storage"
	"github.com/papercomputeco/streamchat/pkg/storage/postgres"
	testutils "github.com/papercomputeco/streamchat/pkg/utils/test"
)

// connStr returns the PostgreSQL connection string from environment or skips the test.
func connStr() string {
	dsn := os.Getenv("STREAMCHAT_TEST_POSTGRES_DSN")
	if dsn == "" {
		Skip("STREAMCHAT_TEST_POSTGRES_DSN not set, skipping PostgreSQL tests")
	}
	return dsn
}

var _ = Describe("Driver", func() {
	testutils.DescribeDriver(func() storage.Driver {
		ctx := context.Background()
		d, err := postgres.NewDriver(ctx, connStr())
		Expect(err).NotTo(HaveOccurred())

		// Every test starts from an empty table.
		DeferCleanup(func() {
			_, _ = d.Pool().Exec(context.Background(), "TRUNCATE streamchat_exchanges")
		})
		_, err = d.Pool().Exec(ctx, "TRUNCATE streamchat_exchanges")
		Expect(err).NotTo(HaveOccurred())
		return d
	})

	It("fails fast for an unreachable server", func() {
		_, err := postgres.NewDriver(context.Background(), "postgres://nobody@127.0.0.1:1/none?connect_timeout=1")
		Expect(err).To(HaveOccurred())
	})
})
