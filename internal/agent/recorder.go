package agent

import (
	"time"

	"github.com/nextlevelbuilder/radar/internal/providers"
)

// Recorder receives per-turn measurements. internal/metrics provides the
// Prometheus implementation.
type Recorder interface {
	LLMCall(provider, model string, d time.Duration, usage *providers.Usage, err error)
	ToolCall(tool string, d time.Duration, isError bool)
	Turn(outcome string, d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) LLMCall(string, string, time.Duration, *providers.Usage, error) {}
func (nopRecorder) ToolCall(string, time.Duration, bool)                           {}
func (nopRecorder) Turn(string, time.Duration)                                     {}
