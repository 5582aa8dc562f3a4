package chroma_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Goer17/InnoTree/pkg/logger"
	"github.com/Goer17/InnoTree/pkg/vector"
	"github.com/Goer17/InnoTree/pkg/vector/chroma"
)

// fakeChroma records requests per path suffix and serves canned replies.
type fakeChroma struct {
	mu       sync.Mutex
	bodies   map[string]map[string]any
	replies  map[string]string
	notFound bool
}

func (f *fakeChroma) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		if r.Method == http.MethodGet {
			if f.notFound {
				http.Error(w, "not found", http.StatusNotFound)
				return
			}
			_, _ = w.Write([]byte(`{"id": "col-1", "name": "innotree_papers"}`))
			return
		}

		op := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.bodies[op] = body
		if reply, ok := f.replies[op]; ok {
			_, _ = w.Write([]byte(reply))
			return
		}
		_, _ = w.Write([]byte(`{"id": "col-2", "name": "innotree_papers"}`))
	}
}

var _ = Describe("Driver", func() {
	var log *slog.Logger

	BeforeEach(func() {
		log = logger.Nop()
	})

	Describe("NewDriver", func() {
		It("returns an error when URL is empty", func() {
			_, err := chroma.NewDriver(chroma.Config{URL: ""}, log)
			Expect(err).To(MatchError(ContainSubstring("chroma URL is required")))
		})

		It("creates the collection when it does not exist", func() {
			fake := &fakeChroma{bodies: map[string]map[string]any{}, notFound: true}
			server := httptest.NewServer(fake.handler())
			defer server.Close()

			_, err := chroma.NewDriver(chroma.Config{URL: server.URL}, log)
			Expect(err).NotTo(HaveOccurred())
			Expect(fake.bodies).To(HaveKey("collections"))
			Expect(fake.bodies["collections"]).To(HaveKeyWithValue("name", chroma.DefaultCollectionName))
		})

		It("succeeds after retrying when Chroma becomes available", func() {
			var attempts atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if attempts.Add(1) <= 4 {
					http.Error(w, "service unavailable", http.StatusServiceUnavailable)
					return
				}
				_, _ = w.Write([]byte(`{"id": "col-1", "name": "innotree_papers"}`))
			}))
			defer server.Close()

			driver, err := chroma.NewDriver(chroma.Config{
				URL:           server.URL,
				MaxRetries:    5,
				RetryDelay:    10 * time.Millisecond,
				MaxRetryDelay: 50 * time.Millisecond,
			}, log)
			Expect(err).NotTo(HaveOccurred())
			Expect(driver).NotTo(BeNil())
			Expect(attempts.Load()).To(BeNumerically(">=", int32(5)))
		})

		It("returns an error after exhausting all retries", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
			}))
			defer server.Close()

			_, err := chroma.NewDriver(chroma.Config{
				URL:           server.URL,
				MaxRetries:    3,
				RetryDelay:    10 * time.Millisecond,
				MaxRetryDelay: 50 * time.Millisecond,
			}, log)
			Expect(err).To(MatchError(vector.ErrConnection))
			Expect(err.Error()).To(ContainSubstring("after 3 attempts"))
		})
	})

	Describe("documents", func() {
		var (
			fake   *fakeChroma
			server *httptest.Server
			driver *chroma.Driver
			ctx    context.Context
		)

		BeforeEach(func() {
			ctx = context.Background()
			fake = &fakeChroma{bodies: map[string]map[string]any{}, replies: map[string]string{}}
			server = httptest.NewServer(fake.handler())
			var err error
			driver, err = chroma.NewDriver(chroma.Config{URL: server.URL}, log)
			Expect(err).NotTo(HaveOccurred())
		})

		AfterEach(func() {
			server.Close()
		})

		It("upserts content and metadata", func() {
			err := driver.Add(ctx, []vector.Document{{
				ID:        "2401.00001",
				Content:   "we study graphs",
				Metadata:  map[string]any{"title": "Graphs"},
				Embedding: []float32{1, 0},
			}})
			Expect(err).NotTo(HaveOccurred())

			body := fake.bodies["upsert"]
			Expect(body["ids"]).To(Equal([]any{"2401.00001"}))
			Expect(body["documents"]).To(Equal([]any{"we study graphs"}))
			Expect(body["metadatas"]).To(Equal([]any{map[string]any{"title": "Graphs"}}))
		})

		It("maps query results and turns distances into scores", func() {
			fake.replies["query"] = `{
				"ids": [["a", "b"]],
				"distances": [[0, 1]],
				"documents": [["abstract a", "abstract b"]],
				"metadatas": [[{"title": "A"}, null]]
			}`

			results, err := driver.Query(ctx, []float32{1, 0}, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(2))
			Expect(results[0].ID).To(Equal("a"))
			Expect(results[0].Content).To(Equal("abstract a"))
			Expect(results[0].Metadata).To(HaveKeyWithValue("title", "A"))
			Expect(results[0].Score).To(Equal(float32(1)))
			Expect(results[1].Score).To(Equal(float32(0.5)))
			Expect(fake.bodies["query"]).To(HaveKeyWithValue("n_results", 2.0))
		})

		It("returns no results for an empty reply", func() {
			fake.replies["query"] = `{"ids": []}`
			results, err := driver.Query(ctx, []float32{1}, 3)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(BeEmpty())
		})

		It("gets documents by id", func() {
			fake.replies["get"] = `{"ids": ["a"], "documents": ["abstract a"], "metadatas": [{"year": 2024}]}`
			docs, err := driver.Get(ctx, []string{"a"})
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(HaveLen(1))
			Expect(docs[0].Content).To(Equal("abstract a"))
			Expect(docs[0].Metadata).To(HaveKeyWithValue("year", 2024.0))
		})

		It("skips requests for empty input", func() {
			Expect(driver.Add(ctx, nil)).To(Succeed())
			Expect(driver.Delete(ctx, nil)).To(Succeed())
			Expect(fake.bodies).To(BeEmpty())
		})

		It("deletes documents", func() {
			Expect(driver.Delete(ctx, []string{"a", "b"})).To(Succeed())
			Expect(fake.bodies["delete"]["ids"]).To(Equal([]any{"a", "b"}))
		})
	})
})
