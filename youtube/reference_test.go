package youtube

import (
	"errors"
	"testing"
)

func TestParseReference(t *testing.T) {
	const id = "UCuAXFkgsw1L7xaCfnd5JJOw"
	tests := []struct {
		name string
		in   string
		want Reference
	}{
		{"bare id", id, Reference{RefChannelID, id}},
		{"bare id with spaces", "  " + id + "\n", Reference{RefChannelID, id}},
		{"bare handle", "@MrBeast", Reference{RefHandle, "MrBeast"}},
		{"handle url", "https://www.youtube.com/@MrBeast", Reference{RefHandle, "MrBeast"}},
		{"handle url with tab", "https://www.youtube.com/@MrBeast/videos", Reference{RefHandle, "MrBeast"}},
		{"handle url trailing slash", "https://youtube.com/@MrBeast/", Reference{RefHandle, "MrBeast"}},
		{"channel url", "https://www.youtube.com/channel/" + id, Reference{RefChannelID, id}},
		{"channel url with fragment", "https://www.youtube.com/channel/" + id + "/featured#about", Reference{RefChannelID, id}},
		{"no scheme", "youtube.com/c/LinusTechTips", Reference{RefCustom, "LinusTechTips"}},
		{"mobile user url", "https://m.youtube.com/user/pewdiepie?app=m", Reference{RefUser, "pewdiepie"}},
		{"http scheme", "http://www.youtube.com/user/pewdiepie", Reference{RefUser, "pewdiepie"}},
		{"site relative custom", "/c/foo", Reference{RefCustom, "foo"}},
		{"site relative user", "user/bar", Reference{RefUser, "bar"}},
		{"vanity url", "https://www.youtube.com/veritasium", Reference{RefName, "veritasium"}},
		{"bare name", "  SomeName  ", Reference{RefName, "SomeName"}},
		{"bare name with query", "SomeName?x=1", Reference{RefName, "SomeName"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseReference(tt.in)
			if err != nil {
				t.Fatalf("ParseReference(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseReference(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseReferenceInvalid(t *testing.T) {
	inputs := []string{
		"",
		"   ",
		"@",
		"https://vimeo.com/channels/staffpicks",
		"https://www.youtube.com/",
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		"https://www.youtube.com/shorts/dQw4w9WgXcQ",
		"https://www.youtube.com/playlist?list=PL123",
		"https://www.youtube.com/channel/UCshort",
		"https://www.youtube.com/c/",
	}

	for _, in := range inputs {
		_, err := ParseReference(in)
		if !errors.Is(err, ErrInvalidReference) {
			t.Errorf("ParseReference(%q) error = %v, want ErrInvalidReference", in, err)
		}
	}
}

func TestReferenceString(t *testing.T) {
	if got := (Reference{RefHandle, "abc"}).String(); got != "@abc" {
		t.Errorf("String() = %q, want %q", got, "@abc")
	}
	if got := (Reference{RefUser, "abc"}).String(); got != "user:abc" {
		t.Errorf("String() = %q, want %q", got, "user:abc")
	}
}
