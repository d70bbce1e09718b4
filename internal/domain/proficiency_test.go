package domain

import "testing"

func TestClampScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  int
		want int
	}{
		{raw: 15, want: 10},
		{raw: -3, want: 1},
		{raw: 0, want: 1},
		{raw: 1, want: 1},
		{raw: 7, want: 7},
		{raw: 10, want: 10},
		{raw: 11, want: 10},
	}
	for _, tt := range tests {
		if got := ClampScore(tt.raw); got != tt.want {
			t.Errorf("ClampScore(%d) = %d, want %d", tt.raw, got, tt.want)
		}
	}
}

func TestConversationKey(t *testing.T) {
	t.Parallel()

	c := Conversation{LearnerID: "anon_abc", SessionID: "default"}
	if got := c.Key(); got != "anon_abc:default" {
		t.Fatalf("unexpected key: %q", got)
	}
}
