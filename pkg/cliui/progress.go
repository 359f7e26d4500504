package cliui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/progress"

	"github.com/Esca-Byte/ESCA-GGUF/pkg/stream"
)

const progressWidth = 40

// ProgressBar renders a download progress bar for percent (0..100) filled in
// the accent colour.
func ProgressBar(percent int, accent string) string {
	percent = max(0, min(percent, 100))

	bar := progress.New(
		progress.WithSolidFill(accent),
		progress.WithWidth(progressWidth),
		progress.WithoutPercentage(),
	)
	return fmt.Sprintf("%s %3d%%", bar.ViewAs(float64(percent)/100), percent)
}

// Metrics renders reply statistics as "N tokens in Ds (T t/s)". It returns
// an empty string when meta is nil.
func Metrics(meta *stream.Metadata) string {
	if meta == nil {
		return ""
	}
	return StepStyle.Render(meta.String())
}
