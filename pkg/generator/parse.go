package generator

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/Goer17/InnoTree/pkg/llm"
	"github.com/Goer17/InnoTree/pkg/mcts"
	"github.com/Goer17/InnoTree/pkg/utils"
)

// ErrMalformed reports model output that does not follow the
// "[kind]\ncontent\n[END]" format, after every retry was spent.
var ErrMalformed = errors.New("malformed generation")

var (
	kindPattern    = regexp.MustCompile(`(?s)\[(.*?)\]`)
	contentPattern = regexp.MustCompile(`(?s)\[.*?\](.*?)\[END\]`)
)

// Parse reads one tagged block. The text must carry a known kind tag and
// an end marker.
func Parse(text string) (*mcts.Context, error) {
	km := kindPattern.FindStringSubmatch(text)
	if km == nil {
		return nil, fmt.Errorf("%w: no kind tag in %q", ErrMalformed, abbreviate(text))
	}
	kind := mcts.Kind(strings.TrimSpace(km[1]))
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown kind %q", ErrMalformed, kind)
	}
	if kind == mcts.KindRoot {
		return nil, fmt.Errorf("%w: %q is reserved for the tree root", ErrMalformed, kind)
	}
	cm := contentPattern.FindStringSubmatch(text)
	if cm == nil {
		return nil, fmt.Errorf("%w: no end marker in %q", ErrMalformed, abbreviate(text))
	}
	return mcts.NewContext(kind, strings.TrimSpace(cm[1])), nil
}

// Messages turns a chain into chat messages: each context is an assistant
// turn and its observation, if any, a user turn.
func Messages(chain []*mcts.Context) []llm.Message {
	msgs := make([]llm.Message, 0, len(chain)*2)
	for _, c := range chain {
		msgs = append(msgs, llm.NewTextMessage(llm.RoleAssistant, c.Tagged()))
		if obs, ok := c.Observation(); ok && obs != "" {
			msgs = append(msgs, llm.NewTextMessage(llm.RoleUser, obs))
		}
	}
	return msgs
}

func abbreviate(s string) string {
	return utils.Truncate(s, 60)
}
