package utils

// Build-time variables set via -ldflags
var (
	Version   = "dev"
	Sha       = "unknown"
	Buildtime = "unknown"
)
