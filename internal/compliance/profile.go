package compliance

import (
	"fmt"
	"strconv"
	"strings"
)

// Length is a physical length stored in PostScript points (1/72 inch).
type Length float64

const (
	Point      Length = 1
	Inch       Length = 72
	Millimeter Length = 72 / 25.4
)

// ParseLength reads values such as "6in", "152.4mm", "0.3cm" or "432pt".
// A bare number is taken as points.
func ParseLength(s string) (Length, error) {
	v := strings.TrimSpace(strings.ToLower(s))
	if v == "" {
		return 0, fmt.Errorf("empty length")
	}
	unit := Point
	for _, u := range []struct {
		suffix string
		scale  Length
	}{
		{"in", Inch},
		{"mm", Millimeter},
		{"cm", 10 * Millimeter},
		{"pt", Point},
		{"px", Inch / 96},
	} {
		if strings.HasSuffix(v, u.suffix) {
			unit = u.scale
			v = strings.TrimSpace(strings.TrimSuffix(v, u.suffix))
			break
		}
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid length %q: %w", s, err)
	}
	return Length(f) * unit, nil
}

// Points returns the length in PostScript points.
func (l Length) Points() float64 { return float64(l) }

// Inches returns the length in inches.
func (l Length) Inches() float64 { return float64(l / Inch) }

// Millimeters returns the length in millimeters.
func (l Length) Millimeters() float64 { return float64(l / Millimeter) }

// CSS renders the length in a form page-size CSS and renderer CLIs accept.
func (l Length) CSS() string {
	return strconv.FormatFloat(l.Inches(), 'f', -1, 64) + "in"
}

func (l Length) String() string { return l.CSS() }

// Default production target: 6x9in trade paperback, 0.125in bleed, 300 dpi.
const (
	DefaultTACPass = 200.0
	DefaultTACFail = 240.0
	DefaultDPI     = 300
	MaxTAC         = 400.0
)

// Profile is the static compliance target for a run.
// Build it with NewProfile; it is not modified afterwards.
type Profile struct {
	TrimWidth  Length
	TrimHeight Length
	Bleed      Length
	DPI        int

	// TACPass is the highest TAC classified as pass.
	TACPass float64
	// TACWarn is the upper edge of the warn band. Classify has no separate
	// warn/fail boundary, so it always equals TACFail.
	TACWarn float64
	// TACFail is the hard ceiling: anything strictly above it fails.
	TACFail float64
}

// ProfileOptions carries the raw values a Profile is built from.
// Zero values fall back to the defaults.
type ProfileOptions struct {
	TrimWidth  string
	TrimHeight string
	Bleed      string
	DPI        int
	TACPass    float64
	TACFail    float64
}

// NewProfile validates opts and returns an immutable Profile.
func NewProfile(opts ProfileOptions) (Profile, error) {
	if opts.TrimWidth == "" {
		opts.TrimWidth = "6in"
	}
	if opts.TrimHeight == "" {
		opts.TrimHeight = "9in"
	}
	if opts.Bleed == "" {
		opts.Bleed = "0.125in"
	}
	if opts.DPI == 0 {
		opts.DPI = DefaultDPI
	}
	if opts.TACPass == 0 {
		opts.TACPass = DefaultTACPass
	}
	if opts.TACFail == 0 {
		opts.TACFail = DefaultTACFail
	}

	w, err := ParseLength(opts.TrimWidth)
	if err != nil {
		return Profile{}, fmt.Errorf("trim width: %w", err)
	}
	h, err := ParseLength(opts.TrimHeight)
	if err != nil {
		return Profile{}, fmt.Errorf("trim height: %w", err)
	}
	b, err := ParseLength(opts.Bleed)
	if err != nil {
		return Profile{}, fmt.Errorf("bleed: %w", err)
	}

	p := Profile{
		TrimWidth:  w,
		TrimHeight: h,
		Bleed:      b,
		DPI:        opts.DPI,
		TACPass:    opts.TACPass,
		TACWarn:    opts.TACFail,
		TACFail:    opts.TACFail,
	}
	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// DefaultProfile returns the 6x9in / 0.125in / 300dpi / 200-240 profile.
func DefaultProfile() Profile {
	p, _ := NewProfile(ProfileOptions{})
	return p
}

// Validate checks geometry and threshold ordering.
func (p Profile) Validate() error {
	switch {
	case p.TrimWidth <= 0 || p.TrimHeight <= 0:
		return fmt.Errorf("trim size must be positive, got %s x %s", p.TrimWidth, p.TrimHeight)
	case p.Bleed < 0:
		return fmt.Errorf("bleed must not be negative, got %s", p.Bleed)
	case p.DPI <= 0:
		return fmt.Errorf("dpi must be positive, got %d", p.DPI)
	case p.TACPass < 0 || p.TACPass > p.TACWarn || p.TACWarn > p.TACFail || p.TACFail > MaxTAC:
		return fmt.Errorf("thresholds must satisfy 0 <= pass <= warn <= fail <= %.0f, got %.1f/%.1f/%.1f",
			MaxTAC, p.TACPass, p.TACWarn, p.TACFail)
	}
	return nil
}

// FinalWidth is the trim width plus bleed on both sides.
func (p Profile) FinalWidth() Length { return p.TrimWidth + 2*p.Bleed }

// FinalHeight is the trim height plus bleed on both sides.
func (p Profile) FinalHeight() Length { return p.TrimHeight + 2*p.Bleed }

// Classify maps a TAC value onto a status. It depends only on tac and p.
func (p Profile) Classify(tac float64) Status {
	switch {
	case tac <= p.TACPass:
		return StatusPass
	case tac > p.TACFail:
		return StatusFail
	default:
		return StatusWarn
	}
}
