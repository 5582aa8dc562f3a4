package sqlitepath

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ResolveSQLitePath", func() {
	var (
		homeDir string
		cwd     string
	)

	BeforeEach(func() {
		homeDir = GinkgoT().TempDir()
		cwd = GinkgoT().TempDir()
		GinkgoT().Setenv("HOME", homeDir)
		GinkgoT().Setenv("XDG_DATA_HOME", "")
		orig, err := os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(cwd)).To(Succeed())
		DeferCleanup(func() {
			Expect(os.Chdir(orig)).To(Succeed())
		})
	})

	It("prefers the override", func() {
		path, err := ResolveSQLitePath("/tmp/custom.db", "", ArchiveFile)
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal("/tmp/custom.db"))
	})

	It("resolves ~/.innotree/innotree.db when present", func() {
		dbPath := filepath.Join(homeDir, ".innotree", ArchiveFile)
		Expect(os.MkdirAll(filepath.Dir(dbPath), 0o755)).To(Succeed())
		Expect(os.WriteFile(dbPath, []byte("test"), 0o644)).To(Succeed())

		path, err := ResolveSQLitePath("", "", ArchiveFile)
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal(dbPath))
	})

	It("prefers XDG_DATA_HOME over the home directory", func() {
		xdg := GinkgoT().TempDir()
		GinkgoT().Setenv("XDG_DATA_HOME", xdg)

		xdgPath := filepath.Join(xdg, "innotree", PapersFile)
		Expect(os.MkdirAll(filepath.Dir(xdgPath), 0o755)).To(Succeed())
		Expect(os.WriteFile(xdgPath, []byte("test"), 0o644)).To(Succeed())
		homePath := filepath.Join(homeDir, ".innotree", PapersFile)
		Expect(os.MkdirAll(filepath.Dir(homePath), 0o755)).To(Succeed())
		Expect(os.WriteFile(homePath, []byte("test"), 0o644)).To(Succeed())

		path, err := ResolveSQLitePath("", "", PapersFile)
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal(xdgPath))
	})

	It("falls back to the config directory", func() {
		configDir := filepath.Join(cwd, "state")

		path, err := ResolveSQLitePath("", configDir, PapersFile)
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(HaveSuffix(filepath.Join("state", PapersFile)))
		Expect(configDir).To(BeADirectory())
	})
})
