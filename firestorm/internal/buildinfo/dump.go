package buildinfo

import (
	"fmt"
	"io"
	"runtime/debug"
)

// Version is stamped by the release build with -ldflags "-X ...".
var Version = ""

func Dump(w io.Writer) error {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		_, err := fmt.Fprintf(w, "version: %s\n", version(nil))
		return err
	}

	_, err := fmt.Fprintf(w, "version: %s\ngo: %s\nmodule: %s\n", version(info), info.GoVersion, info.Main.Path)
	if err != nil {
		return err
	}
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision", "vcs.time", "vcs.modified":
			if _, err := fmt.Fprintf(w, "%s: %s\n", setting.Key, setting.Value); err != nil {
				return err
			}
		}
	}
	return nil
}

func version(info *debug.BuildInfo) string {
	switch {
	case Version != "":
		return Version
	case info != nil && info.Main.Version != "":
		return info.Main.Version
	default:
		return "(devel)"
	}
}
