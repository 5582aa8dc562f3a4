package qdrant_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	pb "github.com/qdrant/go-client/qdrant"

	"github.com/Goer17/InnoTree/pkg/vector"
	"github.com/Goer17/InnoTree/pkg/vector/qdrant"
)

// fakeClient keeps points in insertion order, keyed by point UUID.
type fakeClient struct {
	exists    bool
	existsErr error
	created   *pb.CreateCollection
	order     []string
	points    map[string]*pb.PointStruct
	lastQuery *pb.QueryPoints
	closed    bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{exists: true, points: map[string]*pb.PointStruct{}}
}

func (f *fakeClient) CollectionExists(context.Context, string) (bool, error) {
	return f.exists, f.existsErr
}

func (f *fakeClient) CreateCollection(_ context.Context, req *pb.CreateCollection) error {
	f.created = req
	return nil
}

func (f *fakeClient) Upsert(_ context.Context, req *pb.UpsertPoints) (*pb.UpdateResult, error) {
	for _, p := range req.GetPoints() {
		id := p.GetId().GetUuid()
		if _, ok := f.points[id]; !ok {
			f.order = append(f.order, id)
		}
		f.points[id] = p
	}
	return &pb.UpdateResult{}, nil
}

func (f *fakeClient) Query(_ context.Context, req *pb.QueryPoints) ([]*pb.ScoredPoint, error) {
	f.lastQuery = req
	var out []*pb.ScoredPoint
	for i, id := range f.order {
		if uint64(i) >= req.GetLimit() {
			break
		}
		out = append(out, &pb.ScoredPoint{
			Id:      f.points[id].GetId(),
			Payload: f.points[id].GetPayload(),
			Score:   1 / float32(i+1),
		})
	}
	return out, nil
}

func (f *fakeClient) Get(_ context.Context, req *pb.GetPoints) ([]*pb.RetrievedPoint, error) {
	var out []*pb.RetrievedPoint
	for _, id := range req.GetIds() {
		p, ok := f.points[id.GetUuid()]
		if !ok {
			continue
		}
		out = append(out, &pb.RetrievedPoint{Id: p.GetId(), Payload: p.GetPayload()})
	}
	return out, nil
}

func (f *fakeClient) Delete(_ context.Context, req *pb.DeletePoints) (*pb.UpdateResult, error) {
	for _, id := range req.GetPoints().GetPoints().GetIds() {
		delete(f.points, id.GetUuid())
		for i, o := range f.order {
			if o == id.GetUuid() {
				f.order = append(f.order[:i], f.order[i+1:]...)
				break
			}
		}
	}
	return &pb.UpdateResult{}, nil
}

func (f *fakeClient) Close() error {
	f.closed = true
	return nil
}

var _ = Describe("Driver", func() {
	var (
		ctx  context.Context
		fake *fakeClient
	)

	BeforeEach(func() {
		ctx = context.Background()
		fake = newFakeClient()
	})

	Describe("collection setup", func() {
		It("creates a missing collection with cosine distance", func() {
			fake.exists = false
			_, err := qdrant.NewDriverWithClient(ctx, fake, qdrant.Config{Dimensions: 768}, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(fake.created.GetCollectionName()).To(Equal(qdrant.DefaultCollectionName))
			params := fake.created.GetVectorsConfig().GetParams()
			Expect(params.GetSize()).To(Equal(uint64(768)))
			Expect(params.GetDistance()).To(Equal(pb.Distance_Cosine))
		})

		It("requires dimensions to create a collection", func() {
			fake.exists = false
			_, err := qdrant.NewDriverWithClient(ctx, fake, qdrant.Config{}, nil)
			Expect(err).To(MatchError(ContainSubstring("dimensions are not configured")))
		})

		It("reports connection failures", func() {
			fake.existsErr = errors.New("unavailable")
			_, err := qdrant.NewDriverWithClient(ctx, fake, qdrant.Config{}, nil)
			Expect(err).To(MatchError(vector.ErrConnection))
		})
	})

	Describe("documents", func() {
		var driver *qdrant.Driver

		BeforeEach(func() {
			var err error
			driver, err = qdrant.NewDriverWithClient(ctx, fake, qdrant.Config{CollectionName: "papers"}, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(driver.Add(ctx, []vector.Document{
				{
					ID:        "2401.00001",
					Content:   "graph transformers for molecules",
					Metadata:  map[string]any{"title": "GT", "year": 2024, "authors": []any{"a", "b"}},
					Embedding: []float32{1, 0},
				},
				{ID: "2401.00002", Content: "diffusion", Embedding: []float32{0, 1}},
			})).To(Succeed())
		})

		It("derives stable uuid point ids from document ids", func() {
			Expect(fake.order).To(HaveLen(2))
			Expect(driver.Add(ctx, []vector.Document{{ID: "2401.00001", Content: "v2", Embedding: []float32{1, 1}}})).To(Succeed())
			Expect(fake.order).To(HaveLen(2))
		})

		It("round-trips content and metadata through the payload", func() {
			results, err := driver.Query(ctx, []float32{1, 0}, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(1))
			Expect(results[0].ID).To(Equal("2401.00001"))
			Expect(results[0].Content).To(Equal("graph transformers for molecules"))
			Expect(results[0].Metadata).To(HaveKeyWithValue("title", "GT"))
			Expect(results[0].Metadata).To(HaveKeyWithValue("year", int64(2024)))
			Expect(results[0].Metadata).To(HaveKeyWithValue("authors", []any{"a", "b"}))
			Expect(results[0].Metadata).NotTo(HaveKey("content"))
			Expect(results[0].Score).To(Equal(float32(1)))
			Expect(fake.lastQuery.GetCollectionName()).To(Equal("papers"))
		})

		It("gets and deletes by document id", func() {
			docs, err := driver.Get(ctx, []string{"2401.00002", "missing"})
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(HaveLen(1))
			Expect(docs[0].Content).To(Equal("diffusion"))
			Expect(docs[0].Metadata).To(BeNil())

			Expect(driver.Delete(ctx, []string{"2401.00002"})).To(Succeed())
			docs, err = driver.Get(ctx, []string{"2401.00002"})
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(BeEmpty())
		})

		It("closes the client", func() {
			Expect(driver.Close()).To(Succeed())
			Expect(fake.closed).To(BeTrue())
		})
	})
})
