package common

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/banner"
)

var (
	version = "dev"
	build   = "unknown"
)

func GetVersion() string { return version }
func GetBuild() string    { return build }

// PrintBanner prints ArgusDB's startup banner, grounded on the teacher's
// internal/common/banner.go: ternarybob/banner for the visual box, then
// a structured arbor log line carrying the same facts.
func PrintBanner(cfg *Config, logger arbor.ILogger) {
	serviceURL := fmt.Sprintf("http://%s:%d", cfg.Server.Host, cfg.Server.Port)

	b := banner.New().
		SetStyle(banner.StyleDouble).
		SetBorderColor(banner.ColorGreen).
		SetTextColor(banner.ColorWhite).
		SetBold(true).
		SetWidth(80)

	fmt.Printf("\n")
	b.PrintTopLine()
	b.PrintCenteredText("ARGUSDB")
	b.PrintCenteredText("JSON Document Store on a Two-Level LSM Tree")
	b.PrintSeparatorLine()
	b.PrintKeyValue("Version", GetVersion(), 15)
	b.PrintKeyValue("Build", GetBuild(), 15)
	b.PrintKeyValue("Data Dir", cfg.Engine.DataDir, 15)
	b.PrintKeyValue("Service URL", serviceURL, 15)
	b.PrintBottomLine()
	fmt.Printf("\n")

	logger.Info().
		Str("version", GetVersion()).
		Str("build", GetBuild()).
		Str("data_dir", cfg.Engine.DataDir).
		Str("service_url", serviceURL).
		Msg("ArgusDB started")
}

// PrintShutdownBanner prints the shutdown banner on graceful exit.
func PrintShutdownBanner(logger arbor.ILogger) {
	b := banner.New().
		SetStyle(banner.StyleDouble).
		SetBorderColor(banner.ColorGreen).
		SetTextColor(banner.ColorWhite).
		SetWidth(80)
	b.PrintTopLine()
	b.PrintCenteredText("ARGUSDB SHUTDOWN")
	b.PrintBottomLine()
	logger.Info().Msg("ArgusDB stopped")
}
