package main

import (
	"fmt"
	"io"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/histprobe/internal/model"
)

// Build metadata injected with -ldflags "-X main.version=...".
var (
	version = ""
	commit  = ""
	date    = ""
)

const chromedpModule = "github.com/chromedp/chromedp"

// buildDetails is what `histprobe version` reports. Detection results depend
// on the browser driver as much as on histprobe itself, so the chromedp
// version travels with the release version.
type buildDetails struct {
	Version  string
	Commit   string
	Dirty    bool
	Date     string
	Chromedp string
	Go       string
	Platform string
}

// currentBuild merges ldflags values over the embedded module build info.
func currentBuild() buildDetails {
	info, _ := debug.ReadBuildInfo()
	return resolveBuild(info, version, commit, date)
}

// resolveBuild fills the gaps left by ldflags from info, which may be nil.
func resolveBuild(info *debug.BuildInfo, ver, rev, built string) buildDetails {
	d := buildDetails{
		Version:  ver,
		Commit:   rev,
		Date:     built,
		Chromedp: "unknown",
		Go:       runtime.Version(),
		Platform: runtime.GOOS + "/" + runtime.GOARCH,
	}
	if info != nil {
		if d.Version == "" && info.Main.Version != "" {
			d.Version = info.Main.Version
		}
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				if d.Commit == "" {
					d.Commit = s.Value
				}
			case "vcs.time":
				if d.Date == "" {
					d.Date = s.Value
				}
			case "vcs.modified":
				d.Dirty = s.Value == "true"
			}
		}
		for _, dep := range info.Deps {
			if dep.Path == chromedpModule {
				d.Chromedp = dep.Version
			}
		}
		if info.GoVersion != "" {
			d.Go = info.GoVersion
		}
	}

	if d.Version == "" {
		d.Version = "(devel)"
	}
	if len(d.Commit) > 7 {
		d.Commit = d.Commit[:7]
	}
	if d.Commit == "" {
		d.Commit = "unknown"
	}
	if d.Date == "" {
		d.Date = "unknown"
	}
	return d
}

// getVersion returns the release version shown by --version.
func getVersion() string {
	return currentBuild().Version
}

func (d buildDetails) write(w io.Writer) {
	rev := d.Commit
	if d.Dirty {
		rev += "-dirty"
	}
	fmt.Fprintf(w, "histprobe %s\n", d.Version)
	fmt.Fprintf(w, "  commit:   %s (%s)\n", rev, d.Date)
	fmt.Fprintf(w, "  chromedp: %s\n", d.Chromedp)
	fmt.Fprintf(w, "  runtime:  %s %s\n", d.Go, d.Platform)
	fmt.Fprintf(w, "  probes:   %s\n", strings.Join(probeNames(), ", "))
}

func probeNames() []string {
	names := make([]string, len(model.AllProbes))
	for i, p := range model.AllProbes {
		names[i] = string(p)
	}
	return names
}

// NewVersionCmd creates the version command.
func NewVersionCmd() *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version and build details",
		Long: `Print the histprobe release, the commit it was built from, the chromedp
driver version and Go runtime it was linked against, and the detection
techniques compiled in. Include this output when reporting a detection that
looks wrong; timing thresholds differ across browser drivers.`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			d := currentBuild()
			if short {
				fmt.Fprintln(cmd.OutOrStdout(), d.Version)
				return
			}
			d.write(cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&short, "short", false, "print only the release version")
	return cmd
}
