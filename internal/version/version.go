package version

// Set at build time via -ldflags "-X pricecmp/internal/version.Version=...".
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)
