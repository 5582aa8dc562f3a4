package sse_test

import (
	"bytes"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Goer17/InnoTree/pkg/sse"
)

func collect(r *sse.Reader) []*sse.Event {
	var out []*sse.Event
	for {
		ev, err := r.Next()
		Expect(err).NotTo(HaveOccurred())
		if ev == nil {
			return out
		}
		out = append(out, ev)
	}
}

var _ = Describe("Reader", func() {
	Context("with standard events", func() {
		It("parses a single event", func() {
			events := collect(sse.NewReader(strings.NewReader("data: hello world\n\n")))
			Expect(events).To(HaveLen(1))
			Expect(events[0].Data).To(Equal("hello world"))
			Expect(events[0].Type).To(BeEmpty())
			Expect(events[0].ID).To(BeEmpty())
		})

		It("parses multiple events", func() {
			events := collect(sse.NewReader(strings.NewReader("data: first\n\ndata: second\n\n")))
			Expect(events).To(HaveLen(2))
			Expect(events[1].Data).To(Equal("second"))
		})

		It("parses event type and id", func() {
			events := collect(sse.NewReader(strings.NewReader("id: 7\nevent: done\ndata: {}\n\n")))
			Expect(events).To(Equal([]*sse.Event{{ID: "7", Type: "done", Data: "{}"}}))
		})

		It("joins multiple data lines with newline", func() {
			events := collect(sse.NewReader(strings.NewReader("data: a\ndata: b\ndata: c\n\n")))
			Expect(events[0].Data).To(Equal("a\nb\nc"))
		})
	})

	Context("with a search stream", func() {
		It("reads snapshots followed by the done event", func() {
			stream := `data: [{"n_id":"a","p_id":"","n_key":"root"}]

: keep-alive

data: [{"n_id":"a","p_id":"","n_key":"root"},{"n_id":"temp#1","p_id":"a","n_key":"rollout..."}]

event: done
data: {"stop_reason":"completed"}

`
			events := collect(sse.NewReader(strings.NewReader(stream)))
			Expect(events).To(HaveLen(3))
			Expect(events[0].Type).To(BeEmpty())
			Expect(events[1].Data).To(ContainSubstring("temp#1"))
			Expect(events[2].Type).To(Equal(sse.Done))
		})
	})

	Context("with data field variations", func() {
		It("handles no space after the colon", func() {
			events := collect(sse.NewReader(strings.NewReader("data:compact\n\n")))
			Expect(events[0].Data).To(Equal("compact"))
		})

		It("strips only one leading space", func() {
			events := collect(sse.NewReader(strings.NewReader("data:  indented\n\n")))
			Expect(events[0].Data).To(Equal(" indented"))
		})

		It("handles an empty data field", func() {
			events := collect(sse.NewReader(strings.NewReader("data:\n\n")))
			Expect(events).To(HaveLen(1))
			Expect(events[0].Data).To(BeEmpty())
		})
	})

	Context("teeing", func() {
		It("forwards all bytes including comments to the destination", func() {
			input := ": hello\ndata: one\n\nevent: done\ndata: two\n\n"
			dst := &bytes.Buffer{}
			collect(sse.NewTeeReader(strings.NewReader(input), dst))
			Expect(dst.String()).To(Equal(input))
		})
	})

	Context("edge cases", func() {
		It("returns nil on empty input", func() {
			Expect(collect(sse.NewReader(strings.NewReader("")))).To(BeEmpty())
		})

		It("returns nil on input with only blank lines", func() {
			Expect(collect(sse.NewReader(strings.NewReader("\n\n\n")))).To(BeEmpty())
		})

		It("yields an event when the stream ends without a blank line", func() {
			events := collect(sse.NewReader(strings.NewReader("data: trailing")))
			Expect(events).To(HaveLen(1))
			Expect(events[0].Data).To(Equal("trailing"))
		})

		It("ignores unknown fields and retry", func() {
			events := collect(sse.NewReader(strings.NewReader("retry: 1000\nfoo: bar\ndata: x\n\n")))
			Expect(events).To(Equal([]*sse.Event{{Data: "x"}}))
		})

		It("treats a line with no colon as a field with an empty value", func() {
			events := collect(sse.NewReader(strings.NewReader("data\n\n")))
			Expect(events).To(HaveLen(1))
			Expect(events[0].Data).To(BeEmpty())
		})
	})
})
