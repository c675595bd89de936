package forwarder

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func TestFrame_RoundTrip(t *testing.T) {
	units := []string{
		`{"id":"chatcmpl-1","choices":[{"index":0,"delta":{"content":"Hi"}}]}`,
		`{"choices":[],"usage":{"prompt_tokens":10,"completion_tokens":2,"total_tokens":12}}`,
		`{"text":"line\nbreak \"quoted\" é <tag>"}`,
		`{ "spaced" : [ 1, 2.5, true, null ] }`,
		`{"nested":{"a":{"b":{"c":[{"d":"e"}]}}}}`,
	}

	for _, u := range units {
		ev, err := Frame(json.RawMessage(u))
		if err != nil {
			t.Fatalf("Frame(%s) error = %v", u, err)
		}
		if !strings.HasPrefix(string(ev), "data: ") {
			t.Errorf("event %q lacks the data prefix", ev)
		}
		if strings.Contains(string(ev), "\n") {
			t.Errorf("event %q spans more than one line", ev)
		}

		var want, got interface{}
		if err := json.Unmarshal([]byte(u), &want); err != nil {
			t.Fatalf("bad fixture %s: %v", u, err)
		}
		if err := json.Unmarshal([]byte(ev.Data()), &got); err != nil {
			t.Fatalf("framed payload %q is not JSON: %v", ev.Data(), err)
		}
		if !reflect.DeepEqual(want, got) {
			t.Errorf("round trip mismatch:\n in: %v\nout: %v", want, got)
		}
	}
}

func TestFrame_Compacts(t *testing.T) {
	ev, err := Frame(json.RawMessage("{\n  \"a\": 1,\n  \"b\": [1, 2]\n}"))
	if err != nil {
		t.Fatalf("Frame() error = %v", err)
	}
	if ev != `data: {"a":1,"b":[1,2]}` {
		t.Errorf("Frame() = %q", ev)
	}
}

func TestFrame_Invalid(t *testing.T) {
	if _, err := Frame(json.RawMessage(`{"a":`)); err == nil {
		t.Error("Frame() of truncated JSON should fail")
	}
}

func TestEvent_Wire(t *testing.T) {
	if got := string(Done.Wire()); got != "data: [DONE]\n\n" {
		t.Errorf("Done.Wire() = %q", got)
	}
	if Done.Data() != "[DONE]" {
		t.Errorf("Done.Data() = %q", Done.Data())
	}
}
