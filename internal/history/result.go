package history

import (
	"strings"

	"msgmon/internal/messenger"
	"msgmon/pkg/jsoncodec"
)

// Result is one handler outcome: {handler, data} on success or
// {exception, message, data} on failure.
type Result struct {
	Handler   string         `json:"handler,omitempty" bson:"handler,omitempty"`
	Exception string         `json:"exception,omitempty" bson:"exception,omitempty"`
	Message   string         `json:"message,omitempty" bson:"message,omitempty"`
	Data      map[string]any `json:"data" bson:"data"`
}

func (r Result) IsFailure() bool {
	return r.Exception != ""
}

// HandlerName returns the handler without a trailing "::Handle" style method suffix.
func (r Result) HandlerName() string {
	name, method, ok := strings.Cut(r.Handler, "::")
	if !ok || method == "Handle" {
		return name
	}
	return r.Handler
}

// ShortHandler is the handler name without its package qualifier.
func (r Result) ShortHandler() string {
	return messenger.ShortName(r.HandlerName())
}

type Results []Result

func (r Results) All() []Result {
	return append([]Result(nil), r...)
}

func (r Results) Successes() []Result {
	var out []Result
	for _, result := range r {
		if !result.IsFailure() {
			out = append(out, result)
		}
	}
	return out
}

func (r Results) Failures() []Result {
	var out []Result
	for _, result := range r {
		if result.IsFailure() {
			out = append(out, result)
		}
	}
	return out
}

func (r Results) Len() int {
	return len(r)
}

// Encode serialises the results for a JSON column. An empty set encodes as [].
func (r Results) Encode() ([]byte, error) {
	if r == nil {
		r = Results{}
	}
	return jsoncodec.Marshal(r)
}

func DecodeResults(data []byte) (Results, error) {
	if len(data) == 0 {
		return Results{}, nil
	}
	var out Results
	if err := jsoncodec.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = Results{}
	}
	return out, nil
}
