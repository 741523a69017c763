package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/local/inkbench/internal/compliance"
)

// Project is the YAML project file: compliance target, backends and the
// print toolchain.
type Project struct {
	Profile     ProfileConfig     `yaml:"profile"`
	Entry       string            `yaml:"entry"`
	OutputDir   string            `yaml:"output_dir"`
	Backends    []BackendConfig   `yaml:"backends"`
	Tools       ToolsConfig       `yaml:"tools"`
	Remediation RemediationConfig `yaml:"remediation"`
	Compare     CompareConfig     `yaml:"compare"`
	// Resources caps concurrent builds per shared resource key.
	Resources map[string]int `yaml:"resources"`
}

type ProfileConfig struct {
	TrimWidth  string  `yaml:"trim_width"`
	TrimHeight string  `yaml:"trim_height"`
	Bleed      string  `yaml:"bleed"`
	DPI        int     `yaml:"dpi"`
	TACPass    float64 `yaml:"tac_pass"`
	// TACWarn may be omitted. When set it must equal tac_fail: the warn band
	// always ends where failing starts.
	TACWarn    float64 `yaml:"tac_warn"`
	TACFail    float64 `yaml:"tac_fail"`
}

// BackendConfig names either a preset or a full argv template.
type BackendConfig struct {
	ID         string   `yaml:"id"`
	Preset     string   `yaml:"preset"`
	Command    []string `yaml:"command"`
	Resource   string   `yaml:"resource"`
	Skip       bool     `yaml:"skip"`
	SkipReason string   `yaml:"skip_reason"`
}

type ToolsConfig struct {
	Ghostscript string `yaml:"ghostscript"`
	// OutputProfile is the CMYK ICC profile used for conversion and ink limiting.
	OutputProfile string `yaml:"output_profile"`
}

type RemediationConfig struct {
	// Ceiling defaults to the profile's tac_fail.
	Ceiling     float64 `yaml:"ceiling"`
	DPI         int     `yaml:"dpi"`
	StrictPages bool    `yaml:"strict_pages"`
	WorkDir     string  `yaml:"work_dir"`
}

type CompareConfig struct {
	DiffDPI       int     `yaml:"diff_dpi"`
	DiffThreshold int     `yaml:"diff_threshold"`
	TACTolerance  float64 `yaml:"tac_tolerance"`
	SizeTolerance float64 `yaml:"size_tolerance"`
}

// DefaultProject returns the configuration used when no file is given.
func DefaultProject() *Project {
	p := &Project{
		Backends: []BackendConfig{
			{ID: "weasyprint", Preset: "weasyprint"},
			{ID: "pagedjs", Preset: "pagedjs", Resource: "browser"},
			{ID: "vivliostyle", Preset: "vivliostyle", Resource: "browser"},
		},
	}
	p.applyDefaults()
	return p
}

// Load reads and validates a project file.
func Load(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var p Project
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	p.applyDefaults()
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &p, nil
}

func (p *Project) applyDefaults() {
	if p.Profile.TrimWidth == "" {
		p.Profile.TrimWidth = "6in"
	}
	if p.Profile.TrimHeight == "" {
		p.Profile.TrimHeight = "9in"
	}
	if p.Profile.Bleed == "" {
		p.Profile.Bleed = "0.125in"
	}
	if p.Profile.DPI == 0 {
		p.Profile.DPI = compliance.DefaultDPI
	}
	if p.Profile.TACPass == 0 {
		p.Profile.TACPass = compliance.DefaultTACPass
	}
	if p.Profile.TACFail == 0 {
		p.Profile.TACFail = compliance.DefaultTACFail
	}
	if p.Entry == "" {
		p.Entry = "index.html"
	}
	if p.OutputDir == "" {
		p.OutputDir = "inkbench-out"
	}
	if p.Tools.Ghostscript == "" {
		p.Tools.Ghostscript = "gs"
	}
	if p.Compare.DiffDPI == 0 {
		p.Compare.DiffDPI = 50
	}
	if p.Compare.DiffThreshold == 0 {
		p.Compare.DiffThreshold = 1000
	}
	if p.Compare.TACTolerance == 0 {
		p.Compare.TACTolerance = 5
	}
	if p.Compare.SizeTolerance == 0 {
		p.Compare.SizeTolerance = 0.05
	}
	for i := range p.Backends {
		if p.Backends[i].ID == "" {
			p.Backends[i].ID = p.Backends[i].Preset
		}
	}
}

// Validate checks the profile and the backend list.
func (p *Project) Validate() error {
	if p.Profile.TACWarn != 0 && p.Profile.TACWarn != p.Profile.TACFail {
		return fmt.Errorf("tac_warn %v must equal tac_fail %v (pages above tac_fail fail, everything above tac_pass warns)",
			p.Profile.TACWarn, p.Profile.TACFail)
	}
	if _, err := p.ComplianceProfile(); err != nil {
		return err
	}
	if len(p.Backends) == 0 {
		return fmt.Errorf("no backends configured")
	}
	seen := map[string]bool{}
	for i, b := range p.Backends {
		if b.ID == "" {
			return fmt.Errorf("backend %d: id is required", i)
		}
		if seen[b.ID] {
			return fmt.Errorf("backend %q: duplicate id", b.ID)
		}
		seen[b.ID] = true
		if b.Preset == "" && len(b.Command) == 0 {
			return fmt.Errorf("backend %q: preset or command is required", b.ID)
		}
	}
	if p.Remediation.Ceiling < 0 || p.Remediation.Ceiling > compliance.MaxTAC {
		return fmt.Errorf("remediation ceiling %v out of range", p.Remediation.Ceiling)
	}
	return nil
}

// ComplianceProfile builds the validated compliance profile.
func (p *Project) ComplianceProfile() (compliance.Profile, error) {
	return compliance.NewProfile(compliance.ProfileOptions{
		TrimWidth:  p.Profile.TrimWidth,
		TrimHeight: p.Profile.TrimHeight,
		Bleed:      p.Profile.Bleed,
		DPI:        p.Profile.DPI,
		TACPass:    p.Profile.TACPass,
		TACFail:    p.Profile.TACFail,
	})
}

// Argv returns the backend's command template with a preset name resolved
// by the caller when Command is empty.
func (b BackendConfig) Argv() []string {
	if len(b.Command) > 0 {
		return b.Command
	}
	return []string{b.Preset}
}
