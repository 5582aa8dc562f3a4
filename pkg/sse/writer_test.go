package sse_test

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Goer17/InnoTree/pkg/sse"
)

var _ = Describe("Write", func() {
	It("writes a data-only event", func() {
		buf := &bytes.Buffer{}
		Expect(sse.Write(buf, sse.Event{Data: `[{"n_id":"a"}]`})).To(Succeed())
		Expect(buf.String()).To(Equal("data: [{\"n_id\":\"a\"}]\n\n"))
	})

	It("writes id and type before data", func() {
		buf := &bytes.Buffer{}
		Expect(sse.Write(buf, sse.Event{ID: "3", Type: sse.Done, Data: "{}"})).To(Succeed())
		Expect(buf.String()).To(Equal("id: 3\nevent: done\ndata: {}\n\n"))
	})

	It("splits multi-line data so a reader restores it", func() {
		buf := &bytes.Buffer{}
		ev := sse.Event{Type: "snapshot", Data: "line one\nline two"}
		Expect(sse.Write(buf, ev)).To(Succeed())
		Expect(buf.String()).To(Equal("event: snapshot\ndata: line one\ndata: line two\n\n"))

		got, err := sse.NewReader(buf).Next()
		Expect(err).NotTo(HaveOccurred())
		Expect(*got).To(Equal(ev))
	})

	It("writes comments that readers skip", func() {
		buf := &bytes.Buffer{}
		Expect(sse.WriteComment(buf, "ping")).To(Succeed())
		Expect(buf.String()).To(Equal(": ping\n\n"))

		got, err := sse.NewReader(buf).Next()
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(BeNil())
	})
})
