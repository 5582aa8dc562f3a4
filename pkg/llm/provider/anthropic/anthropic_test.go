package anthropic_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Goer17/InnoTree/pkg/llm"
	"github.com/Goer17/InnoTree/pkg/llm/provider/anthropic"
)

var _ = Describe("Anthropic Client", func() {
	var (
		server   *httptest.Server
		received map[string]any
		calls    atomic.Int32
	)

	BeforeEach(func() {
		calls.Store(0)
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			calls.Add(1)
			Expect(r.URL.Path).To(Equal("/v1/messages"))
			Expect(r.Header.Get("x-api-key")).To(Equal("key"))
			Expect(r.Header.Get("anthropic-version")).To(Equal("2023-06-01"))
			Expect(json.NewDecoder(r.Body).Decode(&received)).To(Succeed())

			_, _ = w.Write([]byte(`{
				"model": "claude-haiku-4-5-20251001",
				"content": [{"type": "text", "text": "[idea]\nuse graphs\n"}],
				"stop_reason": "stop_sequence",
				"usage": {"input_tokens": 10, "output_tokens": 5}
			}`))
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	It("sends one request per choice and sums usage", func() {
		c := anthropic.New(anthropic.Config{APIKey: "key", BaseURL: server.URL})
		resp, err := c.Complete(context.Background(), &llm.ChatRequest{
			System: "sys",
			Stop:   []string{"[END]"},
			N:      3,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(calls.Load()).To(BeEquivalentTo(3))
		Expect(resp.Texts()).To(HaveLen(3))
		Expect(resp.Texts()[0]).To(Equal("[idea]\nuse graphs\n"))
		Expect(resp.Usage.TotalTokens).To(Equal(45))
		Expect(received["system"]).To(Equal("sys"))
		Expect(received["stop_sequences"]).To(ConsistOf("[END]"))
	})

	It("opens with a user turn and merges consecutive assistant turns", func() {
		c := anthropic.New(anthropic.Config{APIKey: "key", BaseURL: server.URL})
		_, err := c.Complete(context.Background(), &llm.ChatRequest{
			Messages: []llm.Message{
				llm.NewTextMessage(llm.RoleAssistant, "a"),
				llm.NewTextMessage(llm.RoleAssistant, "b"),
				llm.NewTextMessage(llm.RoleUser, "obs"),
			},
		})
		Expect(err).NotTo(HaveOccurred())

		msgs := received["messages"].([]any)
		Expect(msgs).To(HaveLen(3))
		Expect(msgs[0].(map[string]any)["role"]).To(Equal("user"))
		Expect(msgs[1].(map[string]any)["content"]).To(Equal("a\nb"))
		Expect(msgs[2].(map[string]any)["content"]).To(Equal("obs"))
	})

	It("reports non-200 responses", func() {
		failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"message":"bad key"}}`))
		}))
		defer failing.Close()

		c := anthropic.New(anthropic.Config{APIKey: "key", BaseURL: failing.URL})
		_, err := c.Complete(context.Background(), &llm.ChatRequest{})
		Expect(err).To(MatchError(ContainSubstring("status 401")))
	})
})
