package sqlite_test

import (
	"context"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Goer17/InnoTree/pkg/storage"
	"github.com/Goer17/InnoTree/pkg/storage/sqlite"
	testutils "github.com/Goer17/InnoTree/pkg/utils/test"
)

var _ = Describe("Driver", func() {
	Context("in memory", func() {
		testutils.DescribeTaskStore(func() storage.Driver {
			d, err := sqlite.NewDriver(context.Background(), ":memory:")
			Expect(err).NotTo(HaveOccurred())
			return d
		})
	})

	It("persists tasks across reopening a file database", func() {
		ctx := context.Background()
		path := filepath.Join(GinkgoT().TempDir(), "tasks.db")

		d, err := sqlite.NewDriver(ctx, path)
		Expect(err).NotTo(HaveOccurred())
		Expect(d.Put(ctx, testutils.NewTestTask("t1", 0))).To(Succeed())
		Expect(d.Close()).To(Succeed())

		d, err = sqlite.NewDriver(ctx, path)
		Expect(err).NotTo(HaveOccurred())
		defer d.Close()
		got, err := d.Get(ctx, "t1")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.BestIdea).To(Equal("idea 1"))
	})
})
