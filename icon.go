package statusnotifier

import (
	"fmt"
	"math"
)

// Icon names shipped with the application icon theme.
const (
	// IdleIconName is the icon shown while no session is running.
	IdleIconName = "tomate-idle"

	// AttentionIconName is the icon offered to visualizations for the
	// NeedsAttention status.
	AttentionIconName = "tomate-attention"

	iconNamePrefix = "tomate"
)

// SessionIconName derives the icon name for an elapsed-percent value.
//
// The percent is rounded to the nearest whole number and zero-padded to two
// digits, so 0 maps to "tomate-00" and 99.6 maps to "tomate-100". Values are
// used as the timer supplies them; no additional clamping is performed.
func SessionIconName(percent float64) string {
	return fmt.Sprintf("%s-%02d", iconNamePrefix, int(math.Round(percent)))
}
