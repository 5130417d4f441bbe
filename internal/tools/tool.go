package tools

import (
	"context"
	"encoding/json"
)

// Tool is a function the model can call.
type Tool interface {
	Name() string
	Description() string
	// Parameters returns the JSON schema of the arguments object.
	Parameters() map[string]interface{}
	Execute(ctx context.Context, args map[string]interface{}) *Result
}

// decodeArgs converts the loosely typed argument map into a typed struct.
func decodeArgs(args map[string]interface{}, v interface{}) error {
	data, err := json.Marshal(args)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// jsonResult marshals v as the LLM-facing content.
func jsonResult(v interface{}) *Result {
	data, err := json.Marshal(v)
	if err != nil {
		return ErrorResult("failed to encode tool result: " + err.Error()).WithError(err)
	}
	return NewResult(string(data))
}
