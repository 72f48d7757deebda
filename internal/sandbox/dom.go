package sandbox

import (
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// DOM provides a lightweight document proxy for sandboxed JavaScript
type DOM struct {
	doc     *goquery.Document
	nodes   map[*html.Node]*Element
	root    *Element
	changes []DOMChange
	mu      sync.RWMutex
}

// Element represents a DOM element
type Element struct {
	TagName     string
	ID          string
	ClassName   string
	TextContent string
	Attributes  map[string]string
	Children    []*Element
	Parent      *Element

	mu sync.RWMutex
}

// NewDOM creates an empty document
func NewDOM() *DOM {
	return &DOM{
		root: &Element{
			TagName:    "document",
			Attributes: make(map[string]string),
			Children:   []*Element{},
		},
		changes: []DOMChange{},
	}
}

// ParseDOM builds a document from HTML markup. Queries on the result
// accept full CSS selectors.
func ParseDOM(markup string) (*DOM, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	d := NewDOM()
	d.doc = doc
	d.nodes = make(map[*html.Node]*Element)
	for _, n := range doc.Nodes {
		d.adopt(d.root, n)
	}
	return d, nil
}

func (d *DOM) adopt(parent *Element, n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		elem := &Element{
			TagName:     c.Data,
			TextContent: goquery.NewDocumentFromNode(c).Text(),
			Attributes:  make(map[string]string, len(c.Attr)),
			Children:    []*Element{},
		}
		for _, a := range c.Attr {
			elem.Attributes[a.Key] = a.Val
		}
		elem.ID = elem.Attributes["id"]
		elem.ClassName = elem.Attributes["class"]
		d.nodes[c] = elem
		parent.AddElement(elem)
		d.adopt(elem, c)
	}
}

// Query finds elements by selector. Parsed documents use CSS selectors;
// hand-built ones support #id, .class and tag.
func (d *DOM) Query(selector string) []*Element {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.doc != nil {
		var result []*Element
		for _, n := range d.doc.Find(selector).Nodes {
			if elem, ok := d.nodes[n]; ok {
				result = append(result, elem)
			}
		}
		return result
	}

	switch {
	case strings.HasPrefix(selector, "#"):
		if elem := findByID(d.root, strings.TrimPrefix(selector, "#")); elem != nil {
			return []*Element{elem}
		}
		return nil
	case strings.HasPrefix(selector, "."):
		return findByClass(d.root, strings.TrimPrefix(selector, "."))
	default:
		return findByTag(d.root, selector)
	}
}

// Root returns the document element
func (d *DOM) Root() *Element {
	return d.root
}

// GetChanges returns accumulated DOM changes
func (d *DOM) GetChanges() []DOMChange {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]DOMChange{}, d.changes...)
}

// RecordChange adds a DOM change
func (d *DOM) RecordChange(change DOMChange) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.changes = append(d.changes, change)
}

// Attribute retrieves an attribute value
func (e *Element) Attribute(name string) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.Attributes[name]
	return v, ok
}

// SetAttribute sets an attribute value
func (e *Element) SetAttribute(name, value string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Attributes == nil {
		e.Attributes = make(map[string]string)
	}
	e.Attributes[name] = value
	switch name {
	case "id":
		e.ID = value
	case "class":
		e.ClassName = value
	}
}

// AddElement adds a child element
func (e *Element) AddElement(child *Element) {
	child.Parent = e
	e.Children = append(e.Children, child)
}

// Remove removes element from parent
func (e *Element) Remove() {
	if e.Parent == nil {
		return
	}
	children := e.Parent.Children[:0]
	for _, child := range e.Parent.Children {
		if child != e {
			children = append(children, child)
		}
	}
	e.Parent.Children = children
	e.Parent = nil
}

func findByID(elem *Element, id string) *Element {
	if elem.ID == id {
		return elem
	}
	for _, child := range elem.Children {
		if found := findByID(child, id); found != nil {
			return found
		}
	}
	return nil
}

func findByClass(elem *Element, class string) []*Element {
	var result []*Element
	if hasClass(elem.ClassName, class) {
		result = append(result, elem)
	}
	for _, child := range elem.Children {
		result = append(result, findByClass(child, class)...)
	}
	return result
}

func hasClass(list, class string) bool {
	for _, c := range strings.Fields(list) {
		if c == class {
			return true
		}
	}
	return false
}

func findByTag(elem *Element, tag string) []*Element {
	var result []*Element
	if strings.EqualFold(elem.TagName, tag) {
		result = append(result, elem)
	}
	for _, child := range elem.Children {
		result = append(result, findByTag(child, tag)...)
	}
	return result
}
