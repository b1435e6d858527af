// Package extract reduces fetched HTML to the visible text a reader sees.
// Deciding which part of that text is the main content is left to the model.
package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/unicode/norm"
)

// Document is the visible text of a page plus its title.
type Document struct {
	Title string
	Text  string
}

// Extractor converts a raw page body into a Document.
type Extractor interface {
	Extract(body []byte, contentType string) (Document, error)
}

// hiddenSelector lists subtrees that never contribute visible text.
const hiddenSelector = "head, script, style, noscript, template, iframe, svg, nav"

// TextExtractor keeps every visible text node of <body> in document order.
type TextExtractor struct{}

var _ Extractor = TextExtractor{}

func (TextExtractor) Extract(body []byte, contentType string) (Document, error) {
	return VisibleText(body, contentType)
}

// VisibleText decodes body using the charset from contentType (or the
// document's own meta tags), strips non-visible subtrees, and joins the
// remaining text nodes with single spaces. The result is NFC-normalized.
func VisibleText(body []byte, contentType string) (Document, error) {
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return Document{}, fmt.Errorf("decode charset: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return Document{}, fmt.Errorf("parse html: %w", err)
	}

	title := collapse(doc.Find("title").First().Text())
	doc.Find(hiddenSelector).Remove()

	var parts []string
	for _, n := range doc.Find("body").Nodes {
		parts = collectText(parts, n)
	}
	text := strings.Join(parts, " ")
	return Document{
		Title: norm.NFC.String(title),
		Text:  norm.NFC.String(text),
	}, nil
}

func collectText(parts []string, n *html.Node) []string {
	switch n.Type {
	case html.TextNode:
		if s := collapse(n.Data); s != "" {
			parts = append(parts, s)
		}
		return parts
	case html.CommentNode:
		return parts
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		parts = collectText(parts, c)
	}
	return parts
}

// collapse trims s and folds every whitespace run into one space.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
