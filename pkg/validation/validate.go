package validation

import (
	"errors"
	"fmt"
	"strings"

	"explora/pkg/models"
)

// Rules bounds incoming messages beyond the structural checks the thread
// model performs. Zero values disable a check except Roles/Confidence, which
// fall back to the built-in sets.
type Rules struct {
	MaxContentBytes int64
	MaxAuthorLen    int
	Roles           []string
	Confidence      []string
}

var rules = Defaults()

// Defaults returns the rule set used when no configuration is provided.
func Defaults() Rules {
	return Rules{
		MaxAuthorLen: 128,
		Roles:        []string{models.RoleUser, models.RoleAssistant, models.RoleSystem},
		Confidence:   []string{"low", "medium", "high"},
	}
}

// SetRules installs the active rule set. Empty Roles/Confidence keep the
// built-in sets.
func SetRules(r Rules) {
	d := Defaults()
	if len(r.Roles) == 0 {
		r.Roles = d.Roles
	}
	if len(r.Confidence) == 0 {
		r.Confidence = d.Confidence
	}
	if r.MaxAuthorLen == 0 {
		r.MaxAuthorLen = d.MaxAuthorLen
	}
	rules = r
}

// ValidateMessage checks a fully assembled message against the active rules.
func ValidateMessage(m models.Message) error {
	var errs []string
	if m.Content == "" {
		errs = append(errs, "content is required")
	}
	if m.Role == "" {
		errs = append(errs, "role is required")
	} else if !contains(rules.Roles, m.Role) {
		errs = append(errs, fmt.Sprintf("invalid role: %s", m.Role))
	}
	if rules.MaxContentBytes > 0 && int64(len(m.Content)) > rules.MaxContentBytes {
		errs = append(errs, fmt.Sprintf("content too large: %d > %d bytes", len(m.Content), rules.MaxContentBytes))
	}
	if rules.MaxAuthorLen > 0 && len(m.Author) > rules.MaxAuthorLen {
		errs = append(errs, fmt.Sprintf("author too long: %d > %d", len(m.Author), rules.MaxAuthorLen))
	}
	if m.Confidence != "" && !contains(rules.Confidence, m.Confidence) {
		errs = append(errs, fmt.Sprintf("invalid confidence: %s", m.Confidence))
	}
	if m.Highlight != nil {
		if m.Highlight.SourceID == "" {
			errs = append(errs, "highlight source_id is required")
		}
		if m.Highlight.Excerpt == "" {
			errs = append(errs, "highlight excerpt is required")
		}
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// ValidateConfidence checks a standalone confidence tag value.
func ValidateConfidence(v string) error {
	if !contains(rules.Confidence, v) {
		return fmt.Errorf("invalid confidence: %s", v)
	}
	return nil
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
