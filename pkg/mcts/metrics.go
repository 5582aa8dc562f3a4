package mcts

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rolloutsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "innotree_rollouts_total",
		Help: "Rollouts run by the search, by outcome.",
	}, []string{"outcome"})

	rewardHistogram = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "innotree_reward",
		Help:    "Rewards backpropagated into the tree.",
		Buckets: prometheus.LinearBuckets(0, 1, 11),
	})

	trialsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "innotree_trials_total",
		Help: "Trials completed across all searches.",
	})

	commitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "innotree_commits_total",
		Help: "Commit attempts at the end of a trial, by result.",
	}, []string{"result"})
)

const (
	outcomeIdea     = "idea"
	outcomeNoIdea   = "no_idea"
	outcomeSeed     = "seed"
	outcomeSkipped  = "terminal_leaf"
	commitAdvanced  = "advanced"
	commitExhausted = "exhausted"
)
