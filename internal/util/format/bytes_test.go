package format

import "testing"

func TestHumanizeBytes(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{bytes: 0, want: "0 B"},
		{bytes: 1023, want: "1023 B"},
		{bytes: 1024, want: "1.0 KB"},
		{bytes: 2048, want: "2.0 KB"},
		{bytes: 1536 * 1024, want: "1.5 MB"},
		{bytes: 700 * 1024 * 1024, want: "700.0 MB"},
		{bytes: 3 << 30, want: "3.0 GB"},
		{bytes: 2 << 50, want: "2.0 PB"},
		{bytes: 4096 << 50, want: "4096.0 PB"},
	}
	for _, tt := range tests {
		if got := HumanizeBytes(tt.bytes); got != tt.want {
			t.Errorf("HumanizeBytes(%d) = %q, want %q", tt.bytes, got, tt.want)
		}
	}
}

func TestReduction(t *testing.T) {
	tests := []struct {
		name          string
		before, after int64
		want          string
	}{
		{name: "smaller", before: 1000, after: 380, want: "62% smaller"},
		{name: "same", before: 1000, after: 1000, want: "0% smaller"},
		{name: "larger", before: 1000, after: 1120, want: "12% larger"},
		{name: "unknown", before: 0, after: 10, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Reduction(tt.before, tt.after); got != tt.want {
				t.Errorf("Reduction(%d, %d) = %q, want %q", tt.before, tt.after, got, tt.want)
			}
		})
	}
}
