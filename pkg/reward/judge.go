package reward

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"regexp"
	"slices"
)

var (
	// ErrNoJSON is returned when a judge reply has no fenced JSON block.
	ErrNoJSON = errors.New("no json block in judge reply")

	// ErrEmptyVerdict is returned when a judge reply has no criteria.
	ErrEmptyVerdict = errors.New("judge reply has no criteria")

	jsonBlock = regexp.MustCompile("(?s)```json(.*?)```")
)

// criterionScore is one criterion of a scalar scorer reply.
type criterionScore struct {
	Score *float64 `json:"score"`
}

// criterionComparison is one criterion of a pairwise judge reply.
type criterionComparison struct {
	Scores     map[string]float64 `json:"scores"`
	Better     *string            `json:"better"`
	Comparison string             `json:"comparison"`
}

// check reports whether the criterion carries a score for both labels and
// names one of them as better.
func (c criterionComparison) check() error {
	if _, ok := c.Scores["A"]; !ok {
		return errors.New("lacks a score for A")
	}
	if _, ok := c.Scores["B"]; !ok {
		return errors.New("lacks a score for B")
	}
	if c.Better == nil {
		return errors.New("lacks a better label")
	}
	if b := *c.Better; b != "A" && b != "B" {
		return fmt.Errorf("better label %q is neither A nor B", b)
	}
	return nil
}

// decodeBlock extracts the fenced JSON block of reply into v.
func decodeBlock[T any](reply string) (map[string]T, error) {
	m := jsonBlock.FindStringSubmatch(reply)
	if m == nil {
		return nil, ErrNoJSON
	}
	var out map[string]T
	if err := json.Unmarshal([]byte(m[1]), &out); err != nil {
		return nil, fmt.Errorf("decode judge json: %w", err)
	}
	if len(out) == 0 {
		return nil, ErrEmptyVerdict
	}
	return out, nil
}

func sortedKeys[T any](m map[string]T) []string {
	return slices.Sorted(maps.Keys(m))
}
