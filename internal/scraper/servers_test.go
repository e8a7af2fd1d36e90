package scraper

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPickServerLink(t *testing.T) {
	tests := []struct {
		name  string
		links []ServerLink
		want  string
		ok    bool
	}{
		{
			name: "server one beats fsl and 10gbps",
			links: []ServerLink{
				{Server: "10 Gbps Server", URL: "https://c.example/file.mkv"},
				{Server: "FSL Server", URL: "https://b.example/file.mkv"},
				{Server: "VCloud Server 1", URL: "https://a.example/file.mkv"},
			},
			want: "https://a.example/file.mkv",
			ok:   true,
		},
		{
			name: "fsl beats 10gbps",
			links: []ServerLink{
				{Server: "10Gbps Speed", URL: "https://c.example/f"},
				{Server: "Fast Server Link", URL: "https://b.example/f"},
			},
			want: "https://b.example/f",
			ok:   true,
		},
		{
			name: "direct media preferred within a rank",
			links: []ServerLink{
				{Server: "Mirror", URL: "https://m.example/landing"},
				{Server: "Other", URL: "https://o.example/movie.MP4?token=x"},
			},
			want: "https://o.example/movie.MP4?token=x",
			ok:   true,
		},
		{
			name: "unknown servers keep page order",
			links: []ServerLink{
				{Server: "Mirror A", URL: "https://a.example/x"},
				{Server: "Mirror B", URL: "https://b.example/x"},
			},
			want: "https://a.example/x",
			ok:   true,
		},
		{
			name: "blocked and invalid links skipped",
			links: []ServerLink{
				{Server: "Server One", URL: "https://popads.net/file.mp4"},
				{Server: "Server One", URL: "javascript:alert(1)"},
				{Server: "10 Gbps", URL: "https://ok.example/file.mp4"},
			},
			want: "https://ok.example/file.mp4",
			ok:   true,
		},
		{
			name: "nothing usable",
			links: []ServerLink{
				{Server: "Server One", URL: ""},
			},
			ok: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := PickServerLink(tt.links, DefaultBlocklist())
			require.Equal(t, tt.ok, ok)
			require.Equal(t, tt.want, got)
		})
	}
}
