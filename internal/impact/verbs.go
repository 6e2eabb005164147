// Package impact derives the capabilities, entities, and decisions a story
// implies. Analysis is a pure function of (story, graph snapshot): no side
// effects, no generator calls - just deterministic rule tables keyed by the
// story's classified verb.
package impact

import "strings"

// Verb is the small closed set of primary actions a story can express.
type Verb string

const (
	VerbCreate Verb = "create"
	VerbRead   Verb = "read"
	VerbUpdate Verb = "update"
	VerbDelete Verb = "delete"
	VerbSearch Verb = "search"
)

// verbSynonyms maps surface verbs in story text onto the canonical set.
// First match in reading order wins.
var verbSynonyms = map[string]Verb{
	"create":   VerbCreate,
	"add":      VerbCreate,
	"register": VerbCreate,
	"build":    VerbCreate,
	"make":     VerbCreate,
	"upload":   VerbCreate,
	"submit":   VerbCreate,

	"read":    VerbRead,
	"view":    VerbRead,
	"see":     VerbRead,
	"show":    VerbRead,
	"list":    VerbRead,
	"display": VerbRead,
	"browse":  VerbRead,

	"update": VerbUpdate,
	"edit":   VerbUpdate,
	"modify": VerbUpdate,
	"change": VerbUpdate,
	"rename": VerbUpdate,

	"delete":  VerbDelete,
	"remove":  VerbDelete,
	"archive": VerbDelete,
	"cancel":  VerbDelete,

	"search": VerbSearch,
	"find":   VerbSearch,
	"filter": VerbSearch,
	"query":  VerbSearch,
	"lookup": VerbSearch,
}

// articles are tokens skipped when extracting the object noun after a verb.
var articles = map[string]bool{
	"a": true, "an": true, "the": true, "my": true, "our": true,
	"all": true, "new": true, "any": true, "their": true, "to": true,
}

// Classify finds the story's primary verb and the object noun it acts on.
// The first recognized verb in the text wins; the object is the first
// non-article token after it. Falls back to (VerbRead, "item") when no verb
// is recognized, so downstream template lookups always succeed.
func Classify(text string) (Verb, string) {
	tokens := tokenize(text)
	for i, tok := range tokens {
		verb, ok := verbSynonyms[tok]
		if !ok {
			continue
		}
		for _, next := range tokens[i+1:] {
			if articles[next] {
				continue
			}
			return verb, next
		}
		return verb, "item"
	}
	return VerbRead, "item"
}

// tokenize lowercases and splits text on non-alphanumeric runes.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
	})
}

// containsKeyword reports whether any of the keywords appears as a token.
func containsKeyword(text string, keywords ...string) bool {
	tokens := tokenize(text)
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	for _, k := range keywords {
		if set[k] {
			return true
		}
	}
	return false
}
