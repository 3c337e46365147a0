// Package i18n is the Logging/i18n external collaborator spec §6 names: a
// language-indexed message catalog for the user-visible strings the
// monitor core sends (deactivation notices, etc).
package i18n

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func init() {
	message.SetString(language.English, "feed deactivated reason", "%d consecutive failures")
	message.SetString(language.French, "feed deactivated reason", "%d échecs consécutifs")
	message.SetString(language.German, "feed deactivated reason", "%d aufeinanderfolgende Fehler")
	message.SetString(language.Spanish, "feed deactivated reason", "%d fallos consecutivos")
}

// defaultTag is used whenever a subscriber's stored language tag is empty
// or fails to parse.
var defaultTag = language.English

// DeactivationReason renders the localized deactivation reason for a given
// BCP-47 language tag (typically a Sub.Lang value), falling back to
// English for unparsed or unsupported tags.
func DeactivationReason(lang string, consecutiveFailures int) string {
	tag, err := language.Parse(lang)
	if err != nil {
		tag = defaultTag
	}
	p := message.NewPrinter(tag)
	return p.Sprintf("feed deactivated reason", consecutiveFailures)
}

// Catalog exposes resolved printers so callers that render more than one
// message per request don't re-parse the tag each time.
type Catalog struct {
	tag language.Tag
}

// NewCatalog resolves lang once; pass the subscriber's stored language.
func NewCatalog(lang string) *Catalog {
	tag, err := language.Parse(lang)
	if err != nil {
		tag = defaultTag
	}
	return &Catalog{tag: tag}
}

// DeactivationReason renders the deactivation reason in this catalog's
// resolved language.
func (c *Catalog) DeactivationReason(consecutiveFailures int) string {
	return message.NewPrinter(c.tag).Sprintf("feed deactivated reason", consecutiveFailures)
}

// Generic renders an arbitrary already-registered message key; used by
// callers outside this package that add their own catalog entries.
func (c *Catalog) Generic(key message.Reference, args ...interface{}) string {
	return message.NewPrinter(c.tag).Sprintf(key, args...)
}
