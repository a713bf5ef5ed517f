package task

import (
	"fmt"
	"strings"
)

// Style selects the shape of a summary.
type Style string

const (
	StyleBrief        Style = "brief"
	StyleDetailed     Style = "detailed"
	StyleBulletPoints Style = "bullet_points"
	StyleMicro        Style = "micro"
	// StyleAudience targets the summary at an Audience.
	StyleAudience Style = "audience"
)

// Audience is the reader of an audience-targeted summary.
type Audience string

const (
	AudienceGeneral      Audience = "general"
	AudienceProfessional Audience = "professional"
)

// Mode selects what a comparison focuses on.
type Mode string

const (
	ModeSimilarities  Mode = "similarities"
	ModeDifferences   Mode = "differences"
	ModeComprehensive Mode = "comprehensive"
)

// ParseStyle validates a summary style. Empty means brief.
func ParseStyle(s string) (Style, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "brief":
		return StyleBrief, nil
	case "detailed":
		return StyleDetailed, nil
	case "bullet_points", "bullet-points", "bullets":
		return StyleBulletPoints, nil
	case "micro":
		return StyleMicro, nil
	case "audience", "audience-targeted", "audience_targeted":
		return StyleAudience, nil
	}
	return "", fmt.Errorf("task: unknown summary style %q (valid: brief, detailed, bullet_points, micro, audience)", s)
}

// ParseAudience validates a target audience. Empty means general.
func ParseAudience(s string) (Audience, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "general":
		return AudienceGeneral, nil
	case "professional":
		return AudienceProfessional, nil
	}
	return "", fmt.Errorf("task: unknown audience %q (valid: general, professional)", s)
}

// ParseMode validates a comparison mode. Empty means comprehensive.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "comprehensive":
		return ModeComprehensive, nil
	case "similarities":
		return ModeSimilarities, nil
	case "differences":
		return ModeDifferences, nil
	}
	return "", fmt.Errorf("task: unknown comparison mode %q (valid: similarities, differences, comprehensive)", s)
}
