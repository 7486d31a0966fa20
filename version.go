package docdedup

const (
	// Name is the application name.
	Name = "docdedup"

	// Description is a short description of the application.
	Description = "Fingerprint cache for long-document translation jobs"
)

// Build information, set with ldflags for releases:
//
//	go build -ldflags "-X github.com/ZaguanLabs/docdedup.Version=1.0.0 -X github.com/ZaguanLabs/docdedup.GitCommit=$(git rev-parse HEAD)"
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// FullVersion returns Version with the short commit appended when known.
func FullVersion() string {
	v := Version
	if GitCommit != "unknown" && GitCommit != "" {
		short := GitCommit
		if len(short) > 7 {
			short = short[:7]
		}
		v += "+" + short
	}
	return v
}
