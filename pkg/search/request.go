package search

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Goer17/InnoTree/pkg/config"
	"github.com/Goer17/InnoTree/pkg/mcts"
	"github.com/Goer17/InnoTree/pkg/storage"
)

// Request starts a search. Unset fields fall back to the configured
// defaults.
type Request struct {
	Topic string `json:"topic" validate:"required,max=2000"`

	// Per-request LLM overrides.
	APIKey  string `json:"api_key,omitempty"`
	BaseURL string `json:"base_url,omitempty" validate:"omitempty,url"`
	Model   string `json:"model,omitempty"`

	Policy            string   `json:"sampling_method,omitempty" validate:"omitempty,oneof=best epsilon v-epsilon"`
	ExplorationWeight *float64 `json:"exploration_weight,omitempty" validate:"omitempty,gte=0"`
	Trials            *int     `json:"n_trials,omitempty" validate:"omitempty,gte=0,lte=100"`
	Rollouts          *int     `json:"n_rollouts,omitempty" validate:"omitempty,gte=0,lte=100"`
	Expand            *int     `json:"n_expand,omitempty" validate:"omitempty,gte=1,lte=16"`
	Reward            string   `json:"reward,omitempty" validate:"omitempty,oneof=arena scalar"`
}

// ValidationError reports a request that cannot start a search.
type ValidationError struct {
	Fields []string
	err    error
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("invalid search request: %v", e.err)
	}
	return "invalid search request: " + strings.Join(e.Fields, "; ")
}

func (e *ValidationError) Unwrap() error { return e.err }

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the request. A topic made only of whitespace is empty.
func (r *Request) Validate() error {
	r.Topic = strings.TrimSpace(r.Topic)
	if r.Topic == "" {
		return &ValidationError{Fields: []string{"topic: is required"}, err: mcts.ErrEmptyTopic}
	}

	err := validate.Struct(r)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &ValidationError{err: err}
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s: failed %q", fe.Field(), fe.Tag()))
	}
	return &ValidationError{Fields: fields, err: err}
}

// resolve merges the request over the configured defaults.
func (r Request) resolve(def config.SearchConfig, llm config.LLMConfig) storage.Params {
	p := storage.Params{
		Policy:            def.Policy,
		ExplorationWeight: def.ExplorationWeight,
		Trials:            int(def.Trials),
		Rollouts:          int(def.Rollouts),
		Expand:            int(def.Expand),
		Reward:            def.Reward,
		Model:             llm.Model,
	}
	if r.Policy != "" {
		p.Policy = r.Policy
	}
	if r.ExplorationWeight != nil {
		p.ExplorationWeight = *r.ExplorationWeight
	}
	if r.Trials != nil {
		p.Trials = *r.Trials
	}
	if r.Rollouts != nil {
		p.Rollouts = *r.Rollouts
	}
	if r.Expand != nil {
		p.Expand = *r.Expand
	}
	if r.Reward != "" {
		p.Reward = r.Reward
	}
	if r.Model != "" {
		p.Model = r.Model
	}
	return p
}
