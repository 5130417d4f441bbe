package tools

import "github.com/nextlevelbuilder/radar/internal/budget"

// Result is the unified return type from tool execution.
type Result struct {
	ForLLM  string `json:"for_llm"`            // content sent to the LLM
	ForUser string `json:"for_user,omitempty"` // content shown to the user
	IsError bool   `json:"is_error"`           // marks error
	Err     error  `json:"-"`                  // internal error (not serialized)

	// Budget is set by compute_budget so the caller can open the option menu.
	Budget *budget.Result `json:"-"`
	// Notice is an out-of-band message to deliver once the tool succeeded.
	Notice *Notice `json:"-"`
}

// Notice is a message for someone other than the current user.
type Notice struct {
	Recipient string
	Text      string
}

func NewResult(forLLM string) *Result {
	return &Result{ForLLM: forLLM}
}

func ErrorResult(message string) *Result {
	return &Result{ForLLM: message, IsError: true}
}

func UserResult(content string) *Result {
	return &Result{ForLLM: content, ForUser: content}
}

func (r *Result) WithError(err error) *Result {
	r.Err = err
	return r
}
