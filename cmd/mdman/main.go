package main

import (
	"flag"
	"fmt"

	"github.com/ossidisc/mdman/pkg/mdman"
	"github.com/ossidisc/mdman/pkg/netmd"
)

// set at build time through ldflags
var (
	gitCommit  string
	versionTag string
	buildType  string
)

var (
	verbose  bool
	simulate bool
)

func init() {
	flag.BoolVar(&verbose, "verbose", false, "show verbose logs (useful for debugging)")
	flag.BoolVar(&verbose, "v", false, "shorthand for --verbose")
	flag.BoolVar(&simulate, "simulate", false, "run against a simulated recorder instead of real hardware")
	flag.Parse()
}

func main() {
	logger, err := mdman.NewLogger(buildType)
	if err != nil {
		panic(fmt.Sprintf("Failed to create logger: %v", err))
	}

	named := logger.Named("main")
	named.Debug("Created logger")

	named.Infow("Version info",
		"gitCommit", gitCommit,
		"versionTag", versionTag,
		"buildType", buildType)

	driver := netmd.DefaultDriver
	if simulate {
		named.Info("Using simulated recorder")
		driver = netmd.NewSimDriver()
	}
	if driver == nil {
		named.Fatal("No NetMD driver is linked into this build, re-run with --simulate")
	}

	// provide a fallback version for non-release builds
	version := versionTag
	if version == "" {
		version = "dev build"
	}

	m, err := mdman.NewManager(logger, verbose, driver)
	if err != nil {
		named.Fatalw("Failed to create mdman manager", "error", err)
	}

	m.SetVersion(version)

	if err := m.Initialize(); err != nil {
		named.Fatalw("Failed to initialize mdman manager", "error", err)
	}
}
