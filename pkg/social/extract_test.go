package social

import (
	"reflect"
	"testing"
)

func TestExtractTags(t *testing.T) {
	cases := []struct {
		content  string
		hashtags []string
		mentions []string
	}{
		{"plain words only", []string{}, []string{}},
		{"Trust #Finality and #finality again", []string{"finality", "finality"}, []string{}},
		{"hail @Prophet_One and @prophet_one", []string{}, []string{"Prophet_One", "prophet_one"}},
		{"#Mona_2024 rises, ask @Oracle", []string{"mona_2024"}, []string{"Oracle"}},
		{"bare # and @ are ignored", []string{}, []string{}},
		{"#end", []string{"end"}, []string{}},
		{"punctuation stops it: #faith! @you?", []string{"faith"}, []string{"you"}},
	}
	for _, tc := range cases {
		h, m := extractTags(tc.content)
		if !reflect.DeepEqual(h, tc.hashtags) {
			t.Errorf("%q hashtags = %v, want %v", tc.content, h, tc.hashtags)
		}
		if !reflect.DeepEqual(m, tc.mentions) {
			t.Errorf("%q mentions = %v, want %v", tc.content, m, tc.mentions)
		}
	}
}

func TestNormalizeTag(t *testing.T) {
	if got := normalizeTag("#Finality"); got != "finality" {
		t.Fatalf("normalizeTag = %q", got)
	}
	if got := normalizeTag("finality"); got != "finality" {
		t.Fatalf("normalizeTag without prefix = %q", got)
	}
}
