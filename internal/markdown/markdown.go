// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package markdown converts post bodies written in Markdown into HTML that
// is safe to hand to the public site. Output is sanitised with bluemonday
// after rendering, so raw HTML in the source cannot inject scripts.
package markdown

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
)

// md is the configured goldmark instance, reused across calls.
var md = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,         // tables, strikethrough, autolinks, task lists
		extension.Typographer, // smart quotes and dashes
		highlighting.NewHighlighting(
			highlighting.WithStyle("monokai"),
			highlighting.WithFormatOptions(),
		),
	),
	goldmark.WithParserOptions(
		parser.WithAutoHeadingID(),
	),
	goldmark.WithRendererOptions(
		html.WithUnsafe(), // raw HTML is allowed in, the policy below strips what is unsafe
	),
)

// policy is the sanitiser applied to rendered HTML.
var policy = newPolicy()

func newPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	// Heading anchors and highlighted code blocks.
	p.AllowAttrs("id").Matching(regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)).OnElements("h1", "h2", "h3", "h4", "h5", "h6")
	p.AllowAttrs("style").OnElements("pre", "span")
	p.AllowStyles("color", "background-color", "font-weight", "font-style").OnElements("pre", "span")
	p.RequireNoFollowOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	return p
}

// ToHTML converts Markdown source into sanitised HTML.
func ToHTML(source string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(source), &buf); err != nil {
		return "", err
	}
	return policy.Sanitize(buf.String()), nil
}

// Excerpt returns the plain text of source cut to at most n runes, for
// posts saved without an explicit excerpt.
func Excerpt(source string, n int) (string, error) {
	rendered, err := ToHTML(source)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(collapseSpace.ReplaceAllString(stripTags.Sanitize(rendered), " "))
	runes := []rune(text)
	if len(runes) <= n {
		return text, nil
	}
	cut := string(runes[:n])
	if i := strings.LastIndexByte(cut, ' '); i > len(cut)/2 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut) + "…", nil
}

var (
	collapseSpace = regexp.MustCompile(`\s+`)
	stripTags     = bluemonday.StrictPolicy()
)
