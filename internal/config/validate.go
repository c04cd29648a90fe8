package config

import (
	"fmt"
	"regexp"
	"slices"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// sourceChannelPattern is the accepted source-channel id shape: the scraper
// bridge emits numeric ids, optionally guild-scoped ("123" or "123/456").
var sourceChannelPattern = regexp.MustCompile(`^[0-9]+(/[0-9]+)?$`)

// ValidSourceChannelID reports whether s looks like a source-channel id.
func ValidSourceChannelID(s string) bool {
	return sourceChannelPattern.MatchString(s)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Logging.Level),
		})
	}

	validStyles := []string{"pretty", "json"}
	if cfg.Logging.Style != "" && !slices.Contains(validStyles, cfg.Logging.Style) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.style",
			Message: fmt.Sprintf("must be one of %v, got %q", validStyles, cfg.Logging.Style),
		})
	}

	validAlgorithms := []string{"token_bucket", "sliding_window", "leaky_bucket"}
	if cfg.RateLimit.Algorithm != "" && !slices.Contains(validAlgorithms, cfg.RateLimit.Algorithm) {
		issues = append(issues, ValidationIssue{
			Path:    "rateLimit.algorithm",
			Message: fmt.Sprintf("must be one of %v, got %q", validAlgorithms, cfg.RateLimit.Algorithm),
		})
	}

	validPlatforms := []string{"discord", "telegram", "slack"}
	seenBots := map[string]bool{}
	for i, d := range cfg.Destinations {
		path := fmt.Sprintf("destinations[%d]", i)
		if !slices.Contains(validPlatforms, d.Platform) {
			issues = append(issues, ValidationIssue{
				Path:    path + ".platform",
				Message: fmt.Sprintf("must be one of %v, got %q", validPlatforms, d.Platform),
			})
		}
		if d.BotID == "" {
			issues = append(issues, ValidationIssue{Path: path + ".botId", Message: "botId is required"})
		}
		if d.Credential == "" {
			issues = append(issues, ValidationIssue{Path: path + ".credential", Message: "credential is required"})
		}
		key := d.Platform + ":" + d.BotID
		if seenBots[key] {
			issues = append(issues, ValidationIssue{
				Path:    path,
				Message: "duplicate destination bot: " + key,
			})
		}
		seenBots[key] = true
	}

	for i, m := range cfg.Mappings {
		path := fmt.Sprintf("mappings[%d]", i)
		if m.SourceChannel == "" {
			issues = append(issues, ValidationIssue{Path: path + ".sourceChannel", Message: "sourceChannel is required"})
		} else if !ValidSourceChannelID(m.SourceChannel) {
			issues = append(issues, ValidationIssue{
				Path:    path + ".sourceChannel",
				Message: fmt.Sprintf("malformed source channel id %q", m.SourceChannel),
			})
		}
		if !seenBots[m.Platform+":"+m.BotID] {
			issues = append(issues, ValidationIssue{
				Path:    path,
				Message: fmt.Sprintf("references unknown destination bot %s:%s", m.Platform, m.BotID),
			})
		}
		if m.DestChannel == "" {
			issues = append(issues, ValidationIssue{Path: path + ".destChannel", Message: "destChannel is required"})
		}
	}

	seenAccounts := map[string]bool{}
	for i, a := range cfg.Accounts {
		path := fmt.Sprintf("accounts[%d]", i)
		if a.ID == "" {
			issues = append(issues, ValidationIssue{Path: path + ".id", Message: "id is required"})
		}
		if seenAccounts[a.ID] {
			issues = append(issues, ValidationIssue{Path: path, Message: "duplicate account id: " + a.ID})
		}
		seenAccounts[a.ID] = true
	}

	if len(cfg.Accounts) > 0 && cfg.Ingest.BridgeURL == "" {
		issues = append(issues, ValidationIssue{
			Path:    "ingest.bridgeUrl",
			Message: "bridgeUrl is required when accounts are configured",
		})
	}

	return issues
}
