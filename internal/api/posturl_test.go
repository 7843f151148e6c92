package api

import (
	"errors"
	"testing"

	"github.com/instatrack/instatrack/internal/task"
)

func TestExtractPostCode(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		url     string
		want    string
		wantErr bool
	}{
		{name: "post_url", url: "https://www.instagram.com/p/DAbCdEfGh/", want: "DAbCdEfGh"},
		{name: "reel_url", url: "https://www.instagram.com/reel/Xy12-_Zab/", want: "Xy12-_Zab"},
		{name: "tv_url", url: "https://www.instagram.com/tv/Qwerty123/", want: "Qwerty123"},
		{name: "no_trailing_slash", url: "https://instagram.com/p/DAbCdEfGh", want: "DAbCdEfGh"},
		{name: "with_query_params", url: "https://www.instagram.com/p/DAbCdEfGh/?igsh=abc", want: "DAbCdEfGh"},
		{name: "profile_url", url: "https://www.instagram.com/natgeo/", wantErr: true},
		{name: "not_a_url", url: "just some text", wantErr: true},
		{name: "empty", url: "", wantErr: true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := ExtractPostCode(tc.url)
			if tc.wantErr {
				if !errors.Is(err, task.ErrInvalidPostURL) {
					t.Fatalf("ExtractPostCode(%q) error = %v, want ErrInvalidPostURL", tc.url, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ExtractPostCode(%q) unexpected error: %v", tc.url, err)
			}
			if got != tc.want {
				t.Fatalf("ExtractPostCode(%q) = %q, want %q", tc.url, got, tc.want)
			}
		})
	}
}
