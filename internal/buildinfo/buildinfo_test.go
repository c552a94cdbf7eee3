package buildinfo

import "testing"

func TestString(t *testing.T) {
	defer func(v, c, d string) { Version, Commit, Date = v, c, d }(Version, Commit, Date)

	for _, tc := range []struct {
		version, commit, date string
		short, full           string
	}{
		{"dev", "unknown", "unknown", "dev", "dev"},
		{"dev", "abc123", "unknown", "abc123", "abc123"},
		{"v0.2.0", "abc123", "2026-10-19", "v0.2.0", "v0.2.0 (abc123) built 2026-10-19"},
	} {
		Version, Commit, Date = tc.version, tc.commit, tc.date
		if got := Short(); got != tc.short {
			t.Fatalf("Short() = %q, want %q", got, tc.short)
		}
		if got := String(); got != tc.full {
			t.Fatalf("String() = %q, want %q", got, tc.full)
		}
	}
}
