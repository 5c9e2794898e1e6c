package chat

import (
	"reflect"
	"testing"
)

func TestParseMentions(t *testing.T) {
	cases := []struct {
		body    string
		handles []string
		all     bool
	}{
		{"hello world", nil, false},
		{"@alice hi", []string{"alice"}, false},
		{"hi @bob and @alice", []string{"bob", "alice"}, false},
		{"@alice @alice again", []string{"alice"}, false},
		{"@all meeting at 5", nil, true},
		{"@ALL shouting", nil, true},
		{"mail me at bob@example.com", nil, false},
		{"just an @ sign", nil, false},
		{"@bob, trailing punctuation", []string{"bob"}, false},
		{"(@carol)", []string{"carol"}, false},
		{"@all and @dave too", []string{"dave"}, true},
	}
	for _, tc := range cases {
		handles, all := ParseMentions(tc.body)
		if !reflect.DeepEqual(handles, tc.handles) || all != tc.all {
			t.Errorf("ParseMentions(%q) = %v, %v; want %v, %v", tc.body, handles, all, tc.handles, tc.all)
		}
	}
}

func TestExcerptTruncatesOnRunes(t *testing.T) {
	if got := excerpt("short", 80); got != "short" {
		t.Fatalf("excerpt = %q", got)
	}
	long := make([]rune, 100)
	for i := range long {
		long[i] = 'ä'
	}
	got := excerpt(string(long), 80)
	if len([]rune(got)) != 80 {
		t.Fatalf("excerpt length = %d runes, want 80", len([]rune(got)))
	}
}
