package openai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Goer17/InnoTree/pkg/llm"
	"github.com/Goer17/InnoTree/pkg/llm/provider/openai"
)

var _ = Describe("OpenAI Client", func() {
	var (
		server   *httptest.Server
		received map[string]any
		status   int
	)

	BeforeEach(func() {
		received = nil
		status = http.StatusOK
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			Expect(r.URL.Path).To(Equal("/v1/chat/completions"))
			Expect(r.Header.Get("Authorization")).To(Equal("Bearer sk-test"))
			Expect(json.NewDecoder(r.Body).Decode(&received)).To(Succeed())

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			if status != http.StatusOK {
				_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"rate_limit"}}`))
				return
			}
			_, _ = w.Write([]byte(`{
				"id": "chatcmpl-1",
				"object": "chat.completion",
				"model": "gpt-4o-mini",
				"choices": [
					{"index": 0, "message": {"role": "assistant", "content": "[reasoning]\nfirst\n"}, "finish_reason": "stop"},
					{"index": 1, "message": {"role": "assistant", "content": "[search]\nsecond\n"}, "finish_reason": "stop"}
				],
				"usage": {"prompt_tokens": 12, "completion_tokens": 8, "total_tokens": 20}
			}`))
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	It("sends the system prompt, messages, stop and n", func() {
		c := openai.New(openai.Config{APIKey: "sk-test", BaseURL: server.URL + "/v1"})
		resp, err := c.Complete(context.Background(), &llm.ChatRequest{
			System:   "be creative",
			Messages: []llm.Message{llm.NewTextMessage(llm.RoleAssistant, "[root]\n\n[END]")},
			Stop:     []string{"[END]"},
			N:        2,
		})
		Expect(err).NotTo(HaveOccurred())

		Expect(received["model"]).To(Equal("gpt-4o-mini"))
		Expect(received["n"]).To(BeNumerically("==", 2))
		Expect(received["stop"]).To(ConsistOf("[END]"))
		msgs := received["messages"].([]any)
		Expect(msgs).To(HaveLen(2))
		Expect(msgs[0].(map[string]any)["role"]).To(Equal("system"))
		Expect(msgs[1].(map[string]any)["role"]).To(Equal("assistant"))

		Expect(resp.Texts()).To(Equal([]string{"[reasoning]\nfirst\n", "[search]\nsecond\n"}))
		Expect(resp.StopReason).To(Equal("stop"))
		Expect(resp.Usage.TotalTokens).To(Equal(20))
	})

	It("omits n for a single completion", func() {
		c := openai.New(openai.Config{APIKey: "sk-test", BaseURL: server.URL + "/v1", Model: "deepseek-chat"})
		_, err := c.Complete(context.Background(), &llm.ChatRequest{})
		Expect(err).NotTo(HaveOccurred())
		Expect(received).NotTo(HaveKey("n"))
		Expect(received["model"]).To(Equal("deepseek-chat"))
	})

	It("returns API errors", func() {
		status = http.StatusTooManyRequests
		c := openai.New(openai.Config{APIKey: "sk-test", BaseURL: server.URL + "/v1"})
		_, err := c.Complete(context.Background(), &llm.ChatRequest{})
		Expect(err).To(MatchError(ContainSubstring("openai request")))
	})
})
