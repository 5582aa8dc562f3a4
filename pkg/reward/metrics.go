package reward

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var judgeCalls = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "innotree_judge_comparisons_total",
	Help: "Judge calls made by the rewarders, by rewarder and result.",
}, []string{"rewarder", "result"})

const (
	kindScalar  = "scalar"
	kindArena   = "arena"
	resultOK    = "ok"
	resultError = "error"
	resultSelf  = "self"
)
