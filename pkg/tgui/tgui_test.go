package tgui

import "testing"

func TestDataAndSplit(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		data      string
		component string
		action    string
		payload   string
	}{
		{name: "full", data: "sub:on:42", component: "sub", action: "on", payload: "42"},
		{name: "no payload", data: "sub:off", component: "sub", action: "off", payload: ""},
		{name: "payload with colon", data: "sub:on:a:b", component: "sub", action: "on", payload: "a:b"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			c, a, p := Split(tt.data)
			if c != tt.component || a != tt.action || p != tt.payload {
				t.Fatalf("Split(%q) = %q, %q, %q", tt.data, c, a, p)
			}
		})
	}

	if got := Data("sub", "on", "42"); got != "sub:on:42" {
		t.Fatalf("Data = %q", got)
	}
	if got := Data("sub", "off", ""); got != "sub:off" {
		t.Fatalf("Data without payload = %q", got)
	}
}

func TestTruncRunes(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{name: "short", in: "abc", n: 5, want: "abc"},
		{name: "exact", in: "abc", n: 3, want: "abc"},
		{name: "truncated", in: "abcdef", n: 3, want: "abc…"},
		{name: "multibyte", in: "привет", n: 4, want: "прив…"},
		{name: "zero", in: "abc", n: 0, want: ""},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := TruncRunes(tt.in, tt.n); got != tt.want {
				t.Fatalf("TruncRunes(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
			}
		})
	}
}
