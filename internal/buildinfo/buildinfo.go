// Package buildinfo carries the version stamped in with
//
//	-ldflags "-X hearth/internal/buildinfo.Version=... -X ...Commit=... -X ...Date=..."
package buildinfo

var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Short is the version, else the commit, else "dev". It goes in the window
// title and on the splash.
func Short() string {
	if Version != "" && Version != "dev" {
		return Version
	}
	if Commit != "" && Commit != "unknown" {
		return Commit
	}
	return "dev"
}

// String is the boot banner form: version, commit and build date, leaving
// out whatever was not stamped.
func String() string {
	s := Short()
	if Commit != "" && Commit != "unknown" && s != Commit {
		s += " (" + Commit + ")"
	}
	if Date != "" && Date != "unknown" {
		s += " built " + Date
	}
	return s
}
