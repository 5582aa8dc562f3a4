package reward_test

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/Goer17/InnoTree/pkg/llm"
)

// judge is a scripted completer. reply builds the judge answer from the
// rendered system prompt.
type judge struct {
	mu    sync.Mutex
	calls []string
	reply func(system string) (string, error)
}

func (j *judge) Complete(_ context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	j.mu.Lock()
	j.calls = append(j.calls, req.System)
	j.mu.Unlock()

	text, err := j.reply(req.System)
	if err != nil {
		return nil, err
	}
	return &llm.ChatResponse{
		Model:   req.Model,
		Choices: []llm.Message{llm.NewTextMessage(llm.RoleAssistant, text)},
	}, nil
}

func (j *judge) callCount() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.calls)
}

func fenced(body string) string {
	return "Here is my verdict.\n```json\n" + body + "\n```\n"
}

// preferA always ranks the idea labelled A higher.
func preferA(string) (string, error) {
	return fenced(`{"novelty": {"scores": {"A": 8, "B": 5}, "better": "A", "comparison": "A is newer"}}`), nil
}

// preferIdea ranks whichever label holds the given idea higher.
func preferIdea(idea string) func(string) (string, error) {
	return func(system string) (string, error) {
		a := strings.Index(system, "Idea A:")
		b := strings.Index(system, "Idea B:")
		at := strings.Index(system, idea)
		if at < 0 {
			return "", errors.New("idea not in prompt")
		}
		if at > a && at < b {
			return preferA(system)
		}
		return fenced(`{"novelty": {"scores": {"A": 4, "B": 9}, "better": "B", "comparison": "B is newer"}}`), nil
	}
}
