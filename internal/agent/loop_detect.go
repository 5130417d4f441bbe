package agent

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"
)

// repeatDetector remembers the signatures of the tool calls executed in one
// turn and flags a call already seen among the last window calls.
type repeatDetector struct {
	window    int
	threshold int
	history   []string
}

func newRepeatDetector(window, threshold int) *repeatDetector {
	if window <= 0 {
		window = 3
	}
	if threshold <= 0 {
		threshold = 1
	}
	return &repeatDetector{window: window, threshold: threshold}
}

// seen reports whether sig occurred at least threshold times among the
// last window executed calls.
func (d *repeatDetector) seen(sig string) bool {
	start := len(d.history) - d.window
	if start < 0 {
		start = 0
	}
	n := 0
	for _, h := range d.history[start:] {
		if h == sig {
			n++
		}
	}
	return n >= d.threshold
}

func (d *repeatDetector) record(sig string) {
	d.history = append(d.history, sig)
}

// toolSignature is the tool name plus its arguments as canonical JSON
// (object keys sorted at every depth). Unparseable arguments are used verbatim.
func toolSignature(name, argsJSON string) string {
	args := strings.TrimSpace(argsJSON)
	if args == "" {
		args = "{}"
	}
	var v interface{}
	dec := json.NewDecoder(strings.NewReader(args))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return name + ":" + args
	}
	var buf bytes.Buffer
	writeCanonical(&buf, v)
	return name + ":" + buf.String()
}

func writeCanonical(buf *bytes.Buffer, v interface{}) {
	switch t := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, _ := json.Marshal(k)
			buf.Write(kb)
			buf.WriteByte(':')
			writeCanonical(buf, t[k])
		}
		buf.WriteByte('}')
	case []interface{}:
		buf.WriteByte('[')
		for i, e := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeCanonical(buf, e)
		}
		buf.WriteByte(']')
	default:
		b, _ := json.Marshal(t)
		buf.Write(b)
	}
}
