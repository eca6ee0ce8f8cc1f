package scape

import "strings"

// NormalizeName canonicalizes task names and their aliases: case and
// separators are folded, and "gate"/"task" prefixes or suffixes dropped, so
// "XOR_Gate", "task-xor" and "xor" all name the same task.
func NormalizeName(name string) string {
	normalized := strings.TrimSpace(strings.ToLower(name))
	normalized = strings.ReplaceAll(normalized, "_", "-")
	normalized = strings.ReplaceAll(normalized, " ", "-")
	normalized = strings.Trim(normalized, "-")
	if normalized == "" {
		return ""
	}
	for _, candidate := range aliasCandidates(normalized) {
		if canonical, ok := canonicalGateName(candidate); ok {
			return canonical
		}
	}
	return normalized
}

func aliasCandidates(normalized string) []string {
	candidates := []string{normalized}
	trimmed := normalized
	for _, prefix := range []string{"gate-", "task-", "logic-"} {
		trimmed = strings.TrimPrefix(trimmed, prefix)
	}
	for _, suffix := range []string{"-gate", "-task"} {
		trimmed = strings.TrimSuffix(trimmed, suffix)
	}
	if trimmed != "" && trimmed != normalized {
		candidates = append(candidates, trimmed)
	}
	return candidates
}

func canonicalGateName(alias string) (string, bool) {
	switch strings.ReplaceAll(alias, "-", "") {
	case "xor", "exclusiveor":
		return "xor", true
	case "and":
		return "and", true
	case "or":
		return "or", true
	case "nand", "notand":
		return "nand", true
	default:
		return "", false
	}
}
