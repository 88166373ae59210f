package buildinfo

import "runtime"

// Set at build time via -ldflags "-X tripnav/internal/buildinfo.Version=...".
var (
    Version = "dev"
    Commit  = ""
    BuiltAt = ""
)

// Info returns the build identity served on /debugz.
func Info() map[string]string {
    return map[string]string{
        "version": Version,
        "commit":  Commit,
        "builtAt": BuiltAt,
        "go":      runtime.Version(),
    }
}
