package postgres_test

import (
	"context"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Goer17/InnoTree/pkg/storage"
	"github.com/Goer17/InnoTree/pkg/storage/postgres"
	testutils "github.com/Goer17/InnoTree/pkg/utils/test"
)

// connStr returns the PostgreSQL connection string from environment or skips the test.
func connStr() string {
	dsn := os.Getenv("INNOTREE_TEST_POSTGRES_DSN")
	if dsn == "" {
		Skip("INNOTREE_TEST_POSTGRES_DSN not set, skipping PostgreSQL tests")
	}
	return dsn
}

var _ = Describe("Driver", func() {
	testutils.DescribeTaskStore(func() storage.Driver {
		ctx := context.Background()
		d, err := postgres.NewDriver(ctx, connStr())
		Expect(err).NotTo(HaveOccurred())

		// isolate specs
		_, err = d.DB.ExecContext(ctx, "DELETE FROM tasks")
		Expect(err).NotTo(HaveOccurred())
		return d
	})
})
