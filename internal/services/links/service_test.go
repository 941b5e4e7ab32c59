package links

import "testing"

func TestSanitize(t *testing.T) {
	tests := []struct {
		name        string
		in          string
		want        string
		wantChanged bool
	}{
		{
			name:        "strips share tracking params",
			in:          "watch this https://www.bilibili.com/video/BV1xx411c7mD?share_source=copy_web&vd_source=abc123",
			want:        "watch this https://www.bilibili.com/video/BV1xx411c7mD",
			wantChanged: true,
		},
		{
			name:        "keeps part selector",
			in:          "https://www.bilibili.com/video/BV1xx411c7mD?p=3&share_source=copy_web",
			want:        "https://www.bilibili.com/video/BV1xx411c7mD?p=3",
			wantChanged: true,
		},
		{
			name:        "rewrites short links",
			in:          "https://b23.tv/abc123?share_medium=android",
			want:        "https://b23.tf/abc123",
			wantChanged: true,
		},
		{
			name:        "clean link untouched",
			in:          "https://www.bilibili.com/video/BV1xx411c7mD",
			want:        "https://www.bilibili.com/video/BV1xx411c7mD",
			wantChanged: false,
		},
		{
			name:        "other hosts untouched",
			in:          "https://example.com/watch?v=abc&utm_source=share",
			want:        "https://example.com/watch?v=abc&utm_source=share",
			wantChanged: false,
		},
		{
			name:        "no links at all",
			in:          "just a normal message",
			want:        "just a normal message",
			wantChanged: false,
		},
		{
			name:        "multiple links in one message",
			in:          "a https://b23.tv/x?share_medium=ios and b https://example.com/ok",
			want:        "a https://b23.tf/x and b https://example.com/ok",
			wantChanged: true,
		},
		{
			name:        "drops fragment tracking",
			in:          "https://www.bilibili.com/video/BV1xx411c7mD#reply12345",
			want:        "https://www.bilibili.com/video/BV1xx411c7mD",
			wantChanged: true,
		},
	}

	s := NewSanitizer("")
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, changed := s.Sanitize(tc.in)
			if got != tc.want {
				t.Fatalf("Sanitize = %q, want %q", got, tc.want)
			}
			if changed != tc.wantChanged {
				t.Fatalf("changed = %v, want %v", changed, tc.wantChanged)
			}
		})
	}
}

func TestExempt(t *testing.T) {
	s := NewSanitizer("role-exempt")

	if !s.Exempt([]string{"role-a", "role-exempt"}) {
		t.Fatalf("Exempt = false, want true for member holding the role")
	}
	if s.Exempt([]string{"role-a"}) {
		t.Fatalf("Exempt = true, want false without the role")
	}

	none := NewSanitizer("")
	if none.Exempt([]string{"role-a"}) {
		t.Fatalf("Exempt = true with no exempt role configured")
	}
}
