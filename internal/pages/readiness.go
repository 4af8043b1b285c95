package pages

import (
	"context"
	"fmt"
)

// Readiness is the verdict on whether a page can render.
type Readiness struct {
	PageKey        string                  `json:"page_key"`
	Ready          bool                    `json:"ready"`
	InputsComplete bool                    `json:"inputs_complete"`
	Message        string                  `json:"message,omitempty"`
	Issues         []string                `json:"issues"`
	Notice         string                  `json:"notice,omitempty"`
	Explain        map[string]ExplainEntry `json:"explain"`
}

// Evaluate decides whether the page in state can render. Coverage checks only
// run once every required input is loaded, in order, stopping at the first
// check that reports issues.
func Evaluate(ctx context.Context, state *PanelState, src ColumnSource) (*Readiness, error) {
	r := &Readiness{
		PageKey: state.Page.Key,
		Notice:  state.Page.Notice,
		Issues:  []string{},
		Explain: state.Explain(),
	}

	if msg := state.IncompleteMessage(); msg != "" {
		r.Message = msg
		return r, nil
	}
	r.InputsComplete = true

	for _, check := range state.Page.Checks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		issues, err := check(ctx, state, src)
		if err != nil {
			return nil, fmt.Errorf("page %s: %w", state.Page.Key, err)
		}
		r.Issues = append(r.Issues, issues...)
		if len(issues) > 0 {
			break
		}
	}

	r.Ready = len(r.Issues) == 0
	return r, nil
}

