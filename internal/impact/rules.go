package impact

import (
	"fmt"
	"strings"
)

// --- Capability templates ---

// CapabilitySubtype mirrors the semantic store's capability subtypes.
type CapabilitySubtype string

const (
	Functional    CapabilitySubtype = "functional"
	NonFunctional CapabilitySubtype = "non_functional"
	Operational   CapabilitySubtype = "operational"
)

// capabilityTemplate is instantiated with the extracted object noun.
type capabilityTemplate struct {
	nameFmt string
	descFmt string
	subtype CapabilitySubtype
}

// capabilityTemplates maps each canonical verb to its capability shape.
var capabilityTemplates = map[Verb]capabilityTemplate{
	VerbCreate: {"%s creation", "Users can create and persist %s records", Functional},
	VerbRead:   {"%s viewing", "Users can view %s records and their details", Functional},
	VerbUpdate: {"%s editing", "Users can modify existing %s records", Functional},
	VerbDelete: {"%s removal", "Users can remove %s records from active use", Functional},
	VerbSearch: {"%s search", "Users can search and filter %s records", Functional},
}

// --- Decision rule table ---
//
// A small fixed table mapping verb/keyword combinations onto canonical
// architectural decision topics with pre-populated options. Topics marked
// auto-resolvable carry a recommended default the evolution engine may
// apply without human approval.

// decisionRule matches a story and yields a proposed decision topic.
type decisionRule struct {
	// match reports whether the rule fires for (verb, story text).
	match func(verb Verb, text string) bool

	topic          string
	title          string
	options        []string
	recommended    string
	rationale      string
	autoResolvable bool
}

var decisionRules = []decisionRule{
	{
		match:          func(v Verb, _ string) bool { return v == VerbSearch },
		topic:          "search_implementation",
		title:          "How should search be implemented?",
		options:        []string{"SQL LIKE queries", "SQLite FTS index", "external search service"},
		recommended:    "SQLite FTS index",
		rationale:      "Full-text indexing handles relevance ranking without an external service.",
		autoResolvable: true,
	},
	{
		match:          func(v Verb, _ string) bool { return v == VerbDelete },
		topic:          "deletion_strategy",
		title:          "Hard delete or soft delete?",
		options:        []string{"hard delete", "soft delete with deleted_at", "archive table"},
		recommended:    "soft delete with deleted_at",
		rationale:      "Soft deletion preserves history and keeps references resolvable.",
		autoResolvable: true,
	},
	{
		match:          func(_ Verb, text string) bool { return containsKeyword(text, "upload", "file", "image", "attachment") },
		topic:          "file_storage",
		title:          "Where should uploaded files live?",
		options:        []string{"local filesystem", "object storage", "database blobs"},
		recommended:    "local filesystem",
		rationale:      "Local storage is the simplest starting point; revisit at scale.",
		autoResolvable: true,
	},
	{
		match:          func(_ Verb, text string) bool { return containsKeyword(text, "login", "auth", "authenticate", "password", "signin") },
		topic:          "authentication_strategy",
		title:          "Which authentication strategy?",
		options:        []string{"session cookies", "JWT tokens", "external identity provider"},
		recommended:    "",
		rationale:      "Authentication shape depends on the deployment model; needs a human call.",
		autoResolvable: false,
	},
	{
		match:          func(_ Verb, text string) bool { return containsKeyword(text, "notify", "notification", "email", "alert") },
		topic:          "notification_delivery",
		title:          "How are notifications delivered?",
		options:        []string{"in-app only", "email", "webhook"},
		recommended:    "in-app only",
		rationale:      "In-app notifications need no external delivery dependency.",
		autoResolvable: true,
	},
}

// nfrKeywords trigger an additional non-functional capability proposal.
var nfrKeywords = []string{"fast", "quickly", "performance", "instant", "realtime"}

// instantiate fills a capability template with the object noun.
func (tpl capabilityTemplate) instantiate(object string) ProposedCapability {
	return ProposedCapability{
		Name:        fmt.Sprintf(tpl.nameFmt, object),
		Description: fmt.Sprintf(tpl.descFmt, object),
		Subtype:     tpl.subtype,
	}
}

// titleCase uppercases the first letter of a noun for entity names.
func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
