package helpers

import (
	"errors"
	"testing"
)

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"fenced", "```json\n{\"a\": [1, 2]}\n```", `{"a": [1, 2]}`},
		{"surrounded", "Sure! Here it is: {\"q\": \"x\"} hope that helps", `{"q": "x"}`},
		{"braces in strings", `{"s": "a } b { c"} trailing`, `{"s": "a } b { c"}`},
		{"nested", `pre {"a": {"b": {}}} post`, `{"a": {"b": {}}}`},
		{"escaped quote", `{"s": "say \"}\" ok"}`, `{"s": "say \"}\" ok"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSONObject(tt.in)
			if err != nil {
				t.Fatalf("ExtractJSONObject: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %q want %q", got, tt.want)
			}
		})
	}
}

func TestExtractJSONObjectMissing(t *testing.T) {
	for _, in := range []string{"", "no json here", "{unterminated"} {
		if _, err := ExtractJSONObject(in); !errors.Is(err, ErrNoJSONObject) {
			t.Fatalf("expected ErrNoJSONObject for %q, got %v", in, err)
		}
	}
}
