// Mailfold - Bulk Email Campaign Manager
// Copyright 2026 M. Reyes (mreyes)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mreyes/mailfold

package mailer

import (
	"regexp"
	"strings"

	"github.com/mreyes/mailfold/internal/models"
)

// Personalize substitutes recipient placeholders in campaign content.
//
// Supported placeholders:
//
//	{{first_name}}  contact first name
//	{{last_name}}   contact last name
//	{{full_name}}   "First Last", falling back to the email address
//	{{email}}       contact email address
//
// Unknown placeholders are left untouched.
func Personalize(text string, contact *models.Contact) string {
	if text == "" || contact == nil {
		return text
	}

	replacer := strings.NewReplacer(
		"{{first_name}}", contact.FirstName,
		"{{last_name}}", contact.LastName,
		"{{full_name}}", contact.FullName(),
		"{{email}}", contact.Email,
	)
	return replacer.Replace(text)
}

var (
	htmlTagRe     = regexp.MustCompile(`<[^>]*>`)
	htmlBreakRe   = regexp.MustCompile(`(?i)<(br\s*/?|/p|/div|/h[1-6]|/li|/tr)>`)
	multiNewline  = regexp.MustCompile(`\n{3,}`)
	multiSpace    = regexp.MustCompile(`[ \t]+`)
	htmlEntityMap = strings.NewReplacer(
		"&nbsp;", " ",
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
	)
)

// HTMLToPlaintext derives a plain-text body from HTML content. It is a
// fallback for campaigns without an explicit text part: block-closing
// tags become newlines, remaining tags are stripped, and common entities
// are decoded.
func HTMLToPlaintext(html string) string {
	if html == "" {
		return ""
	}

	text := htmlBreakRe.ReplaceAllString(html, "\n")
	text = htmlTagRe.ReplaceAllString(text, "")
	text = htmlEntityMap.Replace(text)
	text = multiSpace.ReplaceAllString(text, " ")
	text = multiNewline.ReplaceAllString(text, "\n\n")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
