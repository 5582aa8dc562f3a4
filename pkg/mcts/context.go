package mcts

import (
	"errors"
	"fmt"
	"strings"
)

// Kind tags the role a Context plays in a chain.
type Kind string

const (
	KindRoot      Kind = "root"
	KindReasoning Kind = "reasoning"
	KindSearch    Kind = "search"
	KindIdea      Kind = "idea"
	KindRefine    Kind = "refine"
	KindTerminate Kind = "terminate"
)

// Kinds lists every Kind a generator may produce, in declaration order.
var Kinds = []Kind{KindRoot, KindReasoning, KindSearch, KindIdea, KindRefine, KindTerminate}

// Valid reports whether k belongs to the closed set of kinds.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// EndMarker closes every tagged block in generator output.
const EndMarker = "[END]"

// ErrObservationSet is returned when an observation is attached twice.
var ErrObservationSet = errors.New("observation already set")

// Context is one unit of produced content. Kind and Content are fixed at
// creation; the observation is attached afterwards, at most once.
type Context struct {
	Kind    Kind
	Content string

	observation    string
	hasObservation bool
}

// NewContext returns a Context without an observation.
func NewContext(kind Kind, content string) *Context {
	return &Context{Kind: kind, Content: content}
}

// Observation returns the attached feedback and whether one was attached.
func (c *Context) Observation() (string, bool) {
	return c.observation, c.hasObservation
}

// SetObservation attaches feedback to the context.
func (c *Context) SetObservation(obs string) error {
	if c.hasObservation {
		return ErrObservationSet
	}
	c.observation = obs
	c.hasObservation = true
	return nil
}

// Tagged renders the context as a "[kind]\ncontent\n[END]" block.
func (c *Context) Tagged() string {
	return fmt.Sprintf("[%s]\n%s\n%s", c.Kind, c.Content, EndMarker)
}

// String renders the tagged block followed by the observation block, if any.
func (c *Context) String() string {
	var b strings.Builder
	b.WriteString(c.Tagged())
	if c.hasObservation && c.observation != "" {
		fmt.Fprintf(&b, "[observation]\n%s\n%s", c.observation, EndMarker)
	}
	return b.String()
}

// TerminalFunc decides whether a chain has reached an end state.
type TerminalFunc func(chain []*Context) bool

// EndsWithIdea is the default terminal predicate: the chain's last context
// is an idea.
func EndsWithIdea(chain []*Context) bool {
	return len(chain) > 0 && chain[len(chain)-1].Kind == KindIdea
}
