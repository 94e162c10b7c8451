package history

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"os/exec"
	"reflect"
	"strconv"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"

	"msgmon/internal/messenger"
)

// ProcessResult is the outcome of running an external process.
type ProcessResult struct {
	ExitCode    int
	Output      string
	ErrorOutput string
}

// CommandResult is the outcome of running a sub-command of this program.
type CommandResult struct {
	Command  string
	ExitCode int
	Output   string
}

// SentMail is the transport receipt for a sent email.
type SentMail struct {
	MessageID string
	Original  *messenger.Email
	Debug     string
}

type ProcessFailedError struct {
	Result ProcessResult
}

func (e *ProcessFailedError) Error() string {
	return fmt.Sprintf("process failed with exit code %d", e.Result.ExitCode)
}

type CommandFailedError struct {
	Result CommandResult
}

func (e *CommandFailedError) Error() string {
	return fmt.Sprintf("command %q failed with exit code %d", e.Result.Command, e.Result.ExitCode)
}

// HTTPError is implemented by errors that carry the HTTP response which caused them.
type HTTPError interface {
	error
	HTTPResponse() *http.Response
}

// Strategy normalises the values it recognises and reports whether it did.
type Strategy func(n *ResultNormalizer, v any) (map[string]any, bool)

type NormalizerOption func(*ResultNormalizer)

func WithStrategy(s Strategy) NormalizerOption {
	return func(n *ResultNormalizer) {
		n.strategies = append(n.strategies, s)
	}
}

// ResultNormalizer converts handler return values and errors into
// JSON-safe maps. It never fails: unknown leaves degrade to their type name.
type ResultNormalizer struct {
	projectDir string
	strategies []Strategy
}

func NewResultNormalizer(projectDir string, opts ...NormalizerOption) *ResultNormalizer {
	n := &ResultNormalizer{
		projectDir: projectDir,
		strategies: []Strategy{processStrategy, commandStrategy, httpStrategy, mailStrategy},
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func (n *ResultNormalizer) Normalize(v any) map[string]any {
	out := n.normalize(v)
	for k, value := range out {
		out[k] = walk(value)
	}
	return out
}

func (n *ResultNormalizer) normalize(v any) map[string]any {
	if isNil(v) {
		return map[string]any{}
	}

	if err, ok := v.(error); ok {
		return n.normalizeError(err)
	}

	for _, strategy := range n.strategies {
		if out, ok := strategy(n, v); ok {
			return out
		}
	}

	switch value := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(value))
		for k, item := range value {
			out[k] = item
		}
		return out
	case fmt.Stringer:
		return classOf(v, value.String())
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		if m, ok := walk(v).(map[string]any); ok {
			return m
		}
	case reflect.Bool, reflect.String, reflect.Slice, reflect.Array,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return map[string]any{"data": v}
	}

	return classOf(v, "")
}

func classOf(v any, data string) map[string]any {
	out := map[string]any{"class": fmt.Sprintf("%T", v)}
	if data != "" {
		out["data"] = data
	}
	return out
}

func (n *ResultNormalizer) normalizeError(err error) map[string]any {
	out := map[string]any{"stack_trace": n.stackTrace(err)}

	if previous := errors.Unwrap(messenger.Unstacked(err)); previous != nil {
		out["previous_exception"] = messenger.ErrorType(previous)
		out["previous_message"] = previous.Error()
		out["previous_stack_trace"] = n.stackTrace(previous)
	}

	var context any
	var (
		processErr *ProcessFailedError
		commandErr *CommandFailedError
		exitErr    *exec.ExitError
		httpErr    HTTPError
	)
	switch {
	case errors.As(err, &processErr):
		context = processErr.Result
	case errors.As(err, &commandErr):
		context = commandErr.Result
	case errors.As(err, &exitErr):
		context = ProcessResult{ExitCode: exitErr.ExitCode(), ErrorOutput: string(exitErr.Stderr)}
	case errors.As(err, &httpErr):
		context = httpErr.HTTPResponse()
	}

	if context != nil {
		for k, v := range n.normalize(context) {
			out[k] = v
		}
	}

	return out
}

type stackTracer interface {
	StackTrace() pkgerrors.StackTrace
}

// stackTrace prefers the deepest recorded stack in err's chain and captures
// the current one otherwise.
func (n *ResultNormalizer) stackTrace(err error) string {
	var trace pkgerrors.StackTrace
	for e := err; e != nil; e = errors.Unwrap(e) {
		if st, ok := e.(stackTracer); ok {
			trace = st.StackTrace()
		}
	}
	if trace == nil {
		trace = pkgerrors.WithStack(err).(stackTracer).StackTrace()
	}

	formatted := strings.TrimLeft(fmt.Sprintf("%+v", trace), "\n")
	if n.projectDir != "" {
		formatted = strings.ReplaceAll(formatted, strings.TrimRight(n.projectDir, "/")+"/", "")
		formatted = strings.ReplaceAll(formatted, n.projectDir, "")
	}
	return formatted
}

func processStrategy(_ *ResultNormalizer, v any) (map[string]any, bool) {
	var r ProcessResult
	switch value := v.(type) {
	case ProcessResult:
		r = value
	case *ProcessResult:
		r = *value
	default:
		return nil, false
	}
	return map[string]any{
		"exit_code":    r.ExitCode,
		"output":       trimOutput(r.Output),
		"error_output": trimOutput(r.ErrorOutput),
	}, true
}

func commandStrategy(_ *ResultNormalizer, v any) (map[string]any, bool) {
	var r CommandResult
	switch value := v.(type) {
	case CommandResult:
		r = value
	case *CommandResult:
		r = *value
	default:
		return nil, false
	}
	return map[string]any{
		"exit_code": r.ExitCode,
		"output":    trimOutput(r.Output),
	}, true
}

func httpStrategy(_ *ResultNormalizer, v any) (map[string]any, bool) {
	resp, ok := v.(*http.Response)
	if !ok {
		return nil, false
	}

	headers := make(map[string]any, len(resp.Header))
	for k, values := range resp.Header {
		headers[strings.ToLower(k)] = append([]string(nil), values...)
	}

	info := map[string]any{
		"http_code":      resp.StatusCode,
		"protocol":       resp.Proto,
		"content_length": resp.ContentLength,
	}
	if resp.Request != nil {
		info["http_method"] = resp.Request.Method
		if resp.Request.URL != nil {
			info["url"] = resp.Request.URL.String()
		}
	}

	return map[string]any{
		"status_code": resp.StatusCode,
		"headers":     headers,
		"info":        info,
	}, true
}

func mailStrategy(_ *ResultNormalizer, v any) (map[string]any, bool) {
	var sent SentMail
	switch value := v.(type) {
	case SentMail:
		sent = value
	case *SentMail:
		sent = *value
	default:
		return nil, false
	}
	if sent.Original == nil {
		return classOf(v, ""), true
	}

	headers := make(map[string]any)
	for k, h := range sent.Original.AllHeaders() {
		headers[k] = h
	}
	return map[string]any{
		"id":      sent.MessageID,
		"headers": headers,
		"debug":   sent.Debug,
	}, true
}

// trimOutput strips trailing spaces from every line and surrounding blank space.
func trimOutput(output string) string {
	lines := strings.Split(output, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " ")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// maxWalkDepth bounds the nesting kept by walk. Deeper values degrade to
// their type name.
const maxWalkDepth = 32

// walk reduces v to nested map[string]any / []any with scalar leaves.
// Non-finite floats become strings and self-referencing maps or slices
// degrade to their type name.
func walk(v any) any {
	w := walker{path: map[uintptr]bool{}}
	return w.walk(v, 0)
}

type walker struct {
	// path holds the maps and slices being walked, to detect cycles.
	path map[uintptr]bool
}

func (w walker) walk(v any, depth int) any {
	if isNil(v) {
		return nil
	}

	switch value := v.(type) {
	case time.Time:
		return value.Format(time.RFC3339)
	case *time.Time:
		return value.Format(time.RFC3339)
	case []byte:
		return string(value)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool()
	case reflect.String:
		return rv.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		if u := rv.Uint(); u <= math.MaxInt64 {
			return int64(u)
		}
		return float64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return strconv.FormatFloat(f, 'g', -1, 64)
		}
		return f
	case reflect.Map:
		if !w.enter(rv, depth) {
			return fmt.Sprintf("%T", v)
		}
		defer w.leave(rv)
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[fmt.Sprint(iter.Key().Interface())] = w.walk(iter.Value().Interface(), depth+1)
		}
		return out
	case reflect.Slice:
		if !w.enter(rv, depth) {
			return fmt.Sprintf("%T", v)
		}
		defer w.leave(rv)
		return w.elements(rv, depth)
	case reflect.Array:
		if depth >= maxWalkDepth {
			return fmt.Sprintf("%T", v)
		}
		return w.elements(rv, depth)
	}

	return fmt.Sprintf("%T", v)
}

func (w walker) elements(rv reflect.Value, depth int) []any {
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = w.walk(rv.Index(i).Interface(), depth+1)
	}
	return out
}

// enter reports false when rv is already on the current path or the walk
// is too deep.
func (w walker) enter(rv reflect.Value, depth int) bool {
	if depth >= maxWalkDepth || w.path[rv.Pointer()] {
		return false
	}
	w.path[rv.Pointer()] = true
	return true
}

func (w walker) leave(rv reflect.Value) {
	delete(w.path, rv.Pointer())
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
