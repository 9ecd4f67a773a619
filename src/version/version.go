package version

// Version is overridden at build time via -ldflags "-X resource-backup/src/version.Version=...".
var Version = "dev"
