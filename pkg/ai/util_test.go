package ai

import (
	"testing"
)

func TestUnmarshalFlexible_ObjectVariants(t *testing.T) {
	type connection struct {
		Subject string `json:"subject"`
		Object  string `json:"object,omitempty"`
	}

	tests := []struct {
		name  string
		input string
		want  connection
	}{
		{
			name:  "valid json object",
			input: `{"subject":"dolphins"}`,
			want:  connection{Subject: "dolphins"},
		},
		{
			name:  "unquoted key and single quotes",
			input: `{subject: 'dolphins'}`,
			want:  connection{Subject: "dolphins"},
		},
		{
			name:  "trailing comma",
			input: `{"subject":"dolphins",}`,
			want:  connection{Subject: "dolphins"},
		},
		{
			name:  "missing endbracket",
			input: `{"subject":"dolphins`,
			want:  connection{Subject: "dolphins"},
		},
		{
			name:  "stringified invalid json object",
			input: `"{subject: 'dolphins'}"`,
			want:  connection{Subject: "dolphins"},
		},
		{
			name:  "duplicate leading brace",
			input: "{\n{\n  \"subject\": \"dolphins\"\n}\n",
			want:  connection{Subject: "dolphins"},
		},
		{
			name:  "markdown fenced",
			input: "```json\n{\"subject\":\"dolphins\"}\n```",
			want:  connection{Subject: "dolphins"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got connection
			if err := UnmarshalFlexible(tc.input, &got); err != nil {
				t.Fatalf("UnmarshalFlexible() error = %v", err)
			}
			if got.Subject != tc.want.Subject || got.Object != tc.want.Object {
				t.Fatalf("UnmarshalFlexible() got = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestUnmarshalFlexible_ArrayVariants(t *testing.T) {
	input := `[{query:'dolphins secret'},{query:'pyramids hidden',}]`
	type query struct {
		Query string `json:"query"`
	}
	var got []query
	if err := UnmarshalFlexible(input, &got); err != nil {
		t.Fatalf("UnmarshalFlexible() error = %v", err)
	}
	if len(got) != 2 || got[0].Query != "dolphins secret" || got[1].Query != "pyramids hidden" {
		t.Fatalf("UnmarshalFlexible() got = %+v, want two queries", got)
	}
}

func TestUnmarshalFlexible_StringList(t *testing.T) {
	var got []string
	input := "```json\n[\"dolphins secret connections\", \"pyramids hidden links\"]\n```"
	if err := UnmarshalFlexible(input, &got); err != nil {
		t.Fatalf("UnmarshalFlexible() error = %v", err)
	}
	if len(got) != 2 || got[0] != "dolphins secret connections" {
		t.Fatalf("UnmarshalFlexible() got = %+v", got)
	}
}

func TestUnmarshalFlexible_Unrecoverable(t *testing.T) {
	type connection struct {
		Subject string `json:"subject"`
	}

	var got connection
	if err := UnmarshalFlexible("hello", &got); err == nil {
		t.Fatalf("UnmarshalFlexible() expected error for unrecoverable input")
	}
}
