package search_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Goer17/InnoTree/pkg/mcts"
	"github.com/Goer17/InnoTree/pkg/search"
)

func snap(ids ...string) []mcts.Profile {
	out := make([]mcts.Profile, len(ids))
	for i, id := range ids {
		out[i] = mcts.Profile{ID: id}
	}
	return out
}

var _ = Describe("Broadcaster", func() {
	var b *search.Broadcaster

	BeforeEach(func() {
		b = search.NewBroadcaster()
	})

	It("delivers snapshots to every subscriber", func() {
		first, releaseFirst := b.Subscribe()
		second, releaseSecond := b.Subscribe()
		defer releaseFirst()
		defer releaseSecond()

		b.Publish(snap("a"))
		Eventually(first).Should(Receive(Equal(snap("a"))))
		Eventually(second).Should(Receive(Equal(snap("a"))))
	})

	It("starts late joiners from the latest snapshot", func() {
		b.Publish(snap("a"))
		b.Publish(snap("a", "b"))

		ch, release := b.Subscribe()
		defer release()
		Expect(ch).To(Receive(Equal(snap("a", "b"))))
		Expect(b.Latest()).To(Equal(snap("a", "b")))
	})

	It("lets a slow consumer skip to the final snapshot", func() {
		ch, release := b.Subscribe()
		defer release()

		for _, id := range []string{"a", "b", "c", "final"} {
			b.Publish(snap(id))
		}
		b.Close()

		var got [][]mcts.Profile
		for s := range ch {
			got = append(got, s)
		}
		Expect(got).To(Equal([][]mcts.Profile{snap("final")}))
	})

	It("gives subscribers after close the last snapshot and a closed channel", func() {
		b.Publish(snap("done"))
		b.Close()

		ch, release := b.Subscribe()
		defer release()
		Expect(ch).To(Receive(Equal(snap("done"))))
		Expect(ch).To(BeClosed())
		Expect(b.Done()).To(BeClosed())
	})

	It("ignores publishes after close", func() {
		b.Publish(snap("a"))
		b.Close()
		b.Publish(snap("b"))
		Expect(b.Latest()).To(Equal(snap("a")))
	})

	It("closes a released subscription and stops delivering to it", func() {
		ch, release := b.Subscribe()
		release()
		release()
		Expect(ch).To(BeClosed())

		b.Publish(snap("a"))
		b.Close()
	})
})
