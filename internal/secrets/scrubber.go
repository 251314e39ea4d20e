package secrets

import (
	"sort"
	"strings"
	"sync"

	gitleaksconfig "github.com/zricethezav/gitleaks/v8/config"
	"github.com/zricethezav/gitleaks/v8/detect"
)

// Placeholder replaces every detected secret.
const Placeholder = "[REDACTED]"

// rebuildAfter bounds the findings the gitleaks detector accumulates
// internally across scans.
const rebuildAfter = 512

// Scrubber redacts secrets from content.
type Scrubber interface {
	Scrub(content string) *Result
}

// Result is the outcome of one scan. Secret values are never retained.
type Result struct {
	Scrubbed      string    `json:"scrubbed"`
	Findings      []Finding `json:"findings,omitempty"`
	TotalFindings int       `json:"total_findings"`
}

// Finding describes one detected secret.
type Finding struct {
	RuleID      string `json:"rule_id"`
	Description string `json:"description"`
	Line        int    `json:"line"`
}

// GitleaksScrubber scans with the gitleaks default configuration.
type GitleaksScrubber struct {
	mu       sync.Mutex
	cfg      gitleaksconfig.Config
	detector *detect.Detector
	scans    int
}

var _ Scrubber = (*GitleaksScrubber)(nil)

// New loads the gitleaks default rules.
func New() (*GitleaksScrubber, error) {
	d, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, err
	}
	return &GitleaksScrubber{cfg: d.Config, detector: d}, nil
}

// Scrub replaces every detected secret in content with Placeholder.
func (s *GitleaksScrubber) Scrub(content string) *Result {
	res := &Result{Scrubbed: content}
	if content == "" {
		return res
	}

	s.mu.Lock()
	if s.scans >= rebuildAfter {
		s.detector = detect.NewDetector(s.cfg)
		s.scans = 0
	}
	s.scans++
	found := s.detector.DetectString(content)
	s.mu.Unlock()

	// Longest first, so a secret containing another is replaced whole.
	secrets := make([]string, 0, len(found))
	for _, f := range found {
		res.Findings = append(res.Findings, Finding{
			RuleID:      f.RuleID,
			Description: f.Description,
			Line:        f.StartLine,
		})
		if f.Secret != "" {
			secrets = append(secrets, f.Secret)
		}
	}
	sort.Slice(secrets, func(i, j int) bool { return len(secrets[i]) > len(secrets[j]) })
	for _, secret := range secrets {
		res.Scrubbed = strings.ReplaceAll(res.Scrubbed, secret, Placeholder)
	}
	res.TotalFindings = len(res.Findings)
	return res
}

// Nop returns content unchanged.
type Nop struct{}

func (Nop) Scrub(content string) *Result {
	return &Result{Scrubbed: content}
}
