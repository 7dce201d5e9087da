package util

import "testing"

func TestSanitizePostgresText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "plain utf8",
			input: "hello world",
			want:  "hello world",
		},
		{
			name:  "contains null byte",
			input: "hel\x00lo",
			want:  "hello",
		},
		{
			name:  "contains invalid utf8",
			input: string([]byte{'a', 0xff, 'b'}),
			want:  "ab",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizePostgresText(tt.input)
			if got != tt.want {
				t.Fatalf("unexpected sanitized value: got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTruncateString(t *testing.T) {
	tests := []struct {
		name  string
		input string
		max   int
		want  string
	}{
		{
			name:  "shorter than max",
			input: "short",
			max:   10,
			want:  "short",
		},
		{
			name:  "exactly max",
			input: "1234567890",
			max:   10,
			want:  "1234567890",
		},
		{
			name:  "truncated with ellipsis",
			input: "a longer question about transactions",
			max:   12,
			want:  "a longer ...",
		},
		{
			name:  "max below minimum returns unchanged",
			input: "abcdef",
			max:   3,
			want:  "abcdef",
		},
		{
			name:  "multibyte runes are not split",
			input: "Überweisung über 9500 Euro",
			max:   14,
			want:  "Überweisung...",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateString(tt.input, tt.max)
			if got != tt.want {
				t.Fatalf("unexpected truncated value: got %q, want %q", got, tt.want)
			}
		})
	}
}
