package bootstrap

import (
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
)

// CLIReporter renders a progress bar for an interactive terminal.
// Grounded on the teacher's internal/cli.CLIProgressReporter.
type CLIReporter struct {
	quiet bool
	bar   *progressbar.ProgressBar
}

// NewCLIReporter creates a CLIReporter. When quiet is true, every event
// is discarded.
func NewCLIReporter(quiet bool) *CLIReporter {
	return &CLIReporter{quiet: quiet}
}

func (c *CLIReporter) OnDiscovered(total int) {
	if c.quiet {
		return
	}
	c.bar = progressbar.NewOptions(total,
		progressbar.OptionSetDescription("Bootstrapping"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("files/s"),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionOnCompletion(func() {
			fmt.Println()
		}),
	)
}

func (c *CLIReporter) OnFileComplete(path string, err error) {
	if c.quiet || c.bar == nil {
		return
	}
	c.bar.Add(1)
}

func (c *CLIReporter) OnComplete(succeeded, failed int, elapsed time.Duration) {
	if c.quiet {
		return
	}
	fmt.Printf("bootstrap complete: %d indexed, %d failed (%.1fs)\n", succeeded, failed, elapsed.Seconds())
}
