package sqldriver_test

import (
	"context"
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Goer17/InnoTree/pkg/storage/sqldriver"
)

var _ = Describe("Driver", func() {
	var db *sql.DB

	BeforeEach(func() {
		var err error
		db, err = sql.Open("sqlite3", ":memory:")
		Expect(err).NotTo(HaveOccurred())
		db.SetMaxOpenConns(1)
	})

	AfterEach(func() {
		db.Close()
	})

	It("numbers placeholders for postgres", func() {
		d, err := sqldriver.New(context.Background(), db, sqldriver.Postgres)
		Expect(err).NotTo(HaveOccurred())
		Expect(d.Rebind("SELECT a FROM t WHERE b = ? AND c = ?")).To(Equal("SELECT a FROM t WHERE b = $1 AND c = $2"))
	})

	It("leaves sqlite placeholders alone", func() {
		d, err := sqldriver.New(context.Background(), db, sqldriver.SQLite)
		Expect(err).NotTo(HaveOccurred())
		Expect(d.Rebind("WHERE b = ?")).To(Equal("WHERE b = ?"))
	})

	It("creates the schema idempotently", func() {
		_, err := sqldriver.New(context.Background(), db, sqldriver.SQLite)
		Expect(err).NotTo(HaveOccurred())
		_, err = sqldriver.New(context.Background(), db, sqldriver.SQLite)
		Expect(err).NotTo(HaveOccurred())
	})
})
