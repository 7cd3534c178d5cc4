package answer

import (
	"regexp"
	"strings"

	"emergency-rag/internal/config"
)

// RulesVersion identifies the compiled rule set. Bump when patterns or
// default lexicons change, since they affect end-to-end behavior.
const RulesVersion = "v1"

// Conservative, manual-faithful lexicons. The words are matched
// case-insensitively inside a line; tools by substring over the whole
// retrieved text.
var (
	defaultWarningWords = []string{
		"warning",
		"caution",
		"notice",
		"danger",
	}

	defaultToolWords = []string{
		"jack",
		"wheel spanner",
		"spanner",
		"wrench",
		"screwdriver",
		"pliers",
		"tow hook",
		"towing eye",
		"jumper cable",
		"jumper cables",
		"battery cable",
		"warning triangle",
		"wheel chock",
		"gloves",
		"flashlight",
		"tire pressure gauge",
	}

	// Verbs that open an imperative instruction line.
	defaultImperativeVerbs = []string{
		"turn", "open", "close", "stop", "pull", "park", "switch",
		"check", "remove", "install", "replace", "apply", "release",
		"place", "wait", "call", "contact", "loosen", "tighten",
		"connect", "disconnect", "press", "shift", "secure", "inspect",
		"move", "reduce", "avoid", "keep", "use", "engage", "lower",
		"raise", "insert", "attach",
	}
)

var (
	ordinalMarker = regexp.MustCompile(`^\s*\d+[.)]\s+`)
	bulletMarker  = regexp.MustCompile(`^\s*[-•*]\s+`)
	spaceRun      = regexp.MustCompile(`\s+`)
)

// Rules is the versioned line-pattern → category table the classifier
// runs. Lexicons are overridable from config; patterns are fixed.
type Rules struct {
	Version         string
	warningWords    []string
	toolWords       []string
	imperativeVerbs map[string]struct{}
	maxWarnings     int
}

// NewRules builds the rule table, applying config lexicon overrides
// where present.
func NewRules(cfg *config.AnswerConfig) *Rules {
	r := &Rules{
		Version:      RulesVersion,
		warningWords: defaultWarningWords,
		toolWords:    defaultToolWords,
		maxWarnings:  10,
	}
	if cfg != nil {
		if len(cfg.WarningWords) > 0 {
			r.warningWords = lower(cfg.WarningWords)
		}
		if len(cfg.ToolWords) > 0 {
			r.toolWords = lower(cfg.ToolWords)
		}
		if cfg.MaxWarnings > 0 {
			r.maxWarnings = cfg.MaxWarnings
		}
	}
	r.imperativeVerbs = make(map[string]struct{}, len(defaultImperativeVerbs))
	for _, v := range defaultImperativeVerbs {
		r.imperativeVerbs[v] = struct{}{}
	}
	return r
}

// MatchStep reports whether the line is an instruction step and returns
// the step text with any leading ordinal or bullet marker stripped.
func (r *Rules) MatchStep(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return "", false
	}
	if ordinalMarker.MatchString(trimmed) {
		return strings.TrimSpace(ordinalMarker.ReplaceAllString(trimmed, "")), true
	}
	if bulletMarker.MatchString(trimmed) {
		rest := strings.TrimSpace(bulletMarker.ReplaceAllString(trimmed, ""))
		if r.startsImperative(rest) {
			return rest, true
		}
		return "", false
	}
	if r.startsImperative(trimmed) {
		return trimmed, true
	}
	return "", false
}

func (r *Rules) startsImperative(line string) bool {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) < 2 {
		return false
	}
	first := strings.Trim(fields[0], ",.;:")
	_, ok := r.imperativeVerbs[first]
	return ok
}

// MatchWarning reports whether the line contains a hazard lexeme.
func (r *Rules) MatchWarning(line string) bool {
	l := strings.ToLower(line)
	for _, w := range r.warningWords {
		if strings.Contains(l, w) {
			return true
		}
	}
	return false
}

// ToolsIn returns the tool phrases found in text, in lexicon order,
// each at most once.
func (r *Rules) ToolsIn(text string) []string {
	haystack := strings.ToLower(text)
	var found []string
	for _, kw := range r.toolWords {
		if strings.Contains(haystack, kw) {
			found = append(found, kw)
		}
	}
	return found
}

// Normalize lowercases and collapses whitespace for deduplication.
func Normalize(s string) string {
	return spaceRun.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), " ")
}

func lower(words []string) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = strings.ToLower(strings.TrimSpace(w))
	}
	return out
}
