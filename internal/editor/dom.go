package editor

import (
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const historyLimit = 100

var (
	inlineAliases = map[Kind][]string{
		Bold:      {"b", "strong"},
		Italic:    {"i", "em"},
		Underline: {"u"},
	}
	blockTags = map[string]bool{
		"p": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
		"div": true, "li": true, "blockquote": true, "pre": true,
	}
	// sectioning and cell elements hold blocks of their own; loose text in
	// them is wrapped in place
	containerTags = map[string]bool{
		"td": true, "th": true, "caption": true, "figure": true, "figcaption": true,
		"section": true, "article": true,
	}
	// blocks that become containers once they hold other blocks
	mixedTags = map[string]bool{"div": true, "blockquote": true, "li": true}
	// elements that may be left without children after a split
	removableWhenEmpty = map[string]bool{
		"b": true, "strong": true, "i": true, "em": true, "u": true, "a": true, "span": true,
		"ul": true, "ol": true,
	}
	alignments = map[Kind]string{
		AlignLeft:    "",
		AlignCenter:  "center",
		AlignRight:   "right",
		AlignJustify: "justify",
	}
)

// DOMSurface is a Surface over a parsed HTML fragment. Content that has not
// been touched by a command serializes back to the exact input string.
type DOMSurface struct {
	mu        sync.Mutex
	root      *html.Node
	source    string
	dirty     bool
	undo      []string
	redo      []string
	listeners []func(string)
}

// NewDOMSurface parses content into a new surface with empty history
func NewDOMSurface(content string) (*DOMSurface, error) {
	root, err := parseFragment(content)
	if err != nil {
		return nil, err
	}
	return &DOMSurface{root: root, source: content}, nil
}

func parseFragment(content string) (*html.Node, error) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(content), body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse content: %w", err)
	}
	for _, n := range nodes {
		body.AppendChild(n)
	}
	return body, nil
}

func (s *DOMSurface) SerializedContent() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current()
}

func (s *DOMSurface) current() string {
	if !s.dirty {
		return s.source
	}
	return s.render()
}

func (s *DOMSurface) render() string {
	var b strings.Builder
	for c := s.root.FirstChild; c != nil; c = c.NextSibling {
		// Rendering to a strings.Builder does not fail.
		_ = html.Render(&b, c)
	}
	return b.String()
}

// SetSerializedContent replaces the document. The previous content becomes
// an undo step.
func (s *DOMSurface) SetSerializedContent(content string) error {
	s.mu.Lock()
	if content == s.current() {
		s.mu.Unlock()
		return nil
	}
	root, err := parseFragment(content)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.pushUndo(s.current())
	s.redo = nil
	s.root, s.source, s.dirty = root, content, false
	listeners := s.listeners
	s.mu.Unlock()

	notify(listeners, content)
	return nil
}

func (s *DOMSurface) OnContentChanged(cb func(content string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, cb)
}

// CanUndo reports whether there is history to step back to
func (s *DOMSurface) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.undo) > 0
}

func (s *DOMSurface) CanRedo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.redo) > 0
}

// TextLength is the number of runes a selection can span
func (s *DOMSurface) TextLength() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.texts() {
		n += utf8.RuneCountInString(r.node.Data)
	}
	return n
}

func (s *DOMSurface) ApplyFormat(cmd Command) error {
	s.mu.Lock()

	var (
		changed bool
		err     error
	)
	switch cmd.Kind {
	case Undo:
		changed = s.step(&s.undo, &s.redo)
	case Redo:
		changed = s.step(&s.redo, &s.undo)
	default:
		before := s.current()
		changed, err = s.apply(cmd)
		if err == nil && changed {
			s.dirty = true
			if s.render() == before {
				changed = false
			} else {
				s.pushUndo(before)
				s.redo = nil
			}
		}
	}
	if err != nil || !changed {
		s.mu.Unlock()
		return err
	}

	content := s.current()
	listeners := s.listeners
	s.mu.Unlock()

	notify(listeners, content)
	return nil
}

func notify(listeners []func(string), content string) {
	for _, cb := range listeners {
		cb(content)
	}
}

func (s *DOMSurface) pushUndo(content string) {
	s.undo = append(s.undo, content)
	if len(s.undo) > historyLimit {
		s.undo = s.undo[len(s.undo)-historyLimit:]
	}
}

// step moves the current document onto to and restores the top of from
func (s *DOMSurface) step(from, to *[]string) bool {
	if len(*from) == 0 {
		return false
	}
	prev := (*from)[len(*from)-1]
	root, err := parseFragment(prev)
	if err != nil {
		return false
	}
	*from = (*from)[:len(*from)-1]
	*to = append(*to, s.current())
	s.root, s.source, s.dirty = root, prev, false
	return true
}

func (s *DOMSurface) apply(cmd Command) (bool, error) {
	sel := s.clamp(cmd.Selection)

	switch cmd.Kind {
	case Bold, Italic, Underline:
		return s.toggleInline(sel, inlineAliases[cmd.Kind]), nil
	case Heading1, Heading2, Heading3, Paragraph:
		return s.formatBlock(sel, string(cmd.Kind)), nil
	case OrderedList:
		return s.toggleList(sel, "ol"), nil
	case UnorderedList:
		return s.toggleList(sel, "ul"), nil
	case AlignLeft, AlignCenter, AlignRight, AlignJustify:
		return s.align(sel, alignments[cmd.Kind]), nil
	case CreateLink:
		if sel == nil || sel.Collapsed() {
			return false, ErrSelectionRequired
		}
		href := strings.TrimSpace(cmd.Value)
		if href == "" {
			return false, ErrValueRequired
		}
		return s.link(*sel, href)
	case Unlink:
		return s.unlink(sel), nil
	case InsertImage:
		src := strings.TrimSpace(cmd.Value)
		if src == "" {
			return false, ErrValueRequired
		}
		s.insertImage(sel, src)
		return true, nil
	}
	return false, fmt.Errorf("%w: %s", ErrUnsupportedCommand, cmd.Kind)
}

// clamp bounds the selection to the document text, swapping reversed ends
func (s *DOMSurface) clamp(sel *Selection) *Selection {
	if sel == nil {
		return nil
	}
	total := 0
	for _, r := range s.texts() {
		total += utf8.RuneCountInString(r.node.Data)
	}
	c := *sel
	if c.End < c.Start {
		c.Start, c.End = c.End, c.Start
	}
	c.Start = min(max(c.Start, 0), total)
	c.End = min(max(c.End, 0), total)
	return &c
}

type textRef struct {
	node  *html.Node
	start int
}

func (s *DOMSurface) texts() []textRef {
	var refs []textRef
	offset := 0
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				refs = append(refs, textRef{node: c, start: offset})
				offset += utf8.RuneCountInString(c.Data)
				continue
			}
			walk(c)
		}
	}
	walk(s.root)
	return refs
}

// selectedTexts splits text nodes at the selection edges and returns the
// nodes lying inside it. Whitespace between block elements is skipped.
func (s *DOMSurface) selectedTexts(sel Selection) []*html.Node {
	var out []*html.Node
	for _, r := range s.texts() {
		n := r.node
		start := r.start
		end := start + utf8.RuneCountInString(n.Data)
		if end <= sel.Start || start >= sel.End || end == start {
			continue
		}
		if sel.Start > start {
			n = splitText(n, sel.Start-start)
			start = sel.Start
		}
		if sel.End < end {
			splitText(n, sel.End-start)
		}
		if s.isStructuralWhitespace(n) {
			continue
		}
		out = append(out, n)
	}
	return out
}

// textAt returns the text node holding the cursor position and the offset
// within it, nil when the document has no text.
func (s *DOMSurface) textAt(pos int) (*html.Node, int) {
	var last textRef
	found := false
	for _, r := range s.texts() {
		l := utf8.RuneCountInString(r.node.Data)
		if pos >= r.start && pos < r.start+l {
			return r.node, pos - r.start
		}
		last, found = r, true
	}
	if !found {
		return nil, 0
	}
	return last.node, utf8.RuneCountInString(last.node.Data)
}

// cursorTexts returns the selected text nodes, or the node under a cursor
func (s *DOMSurface) cursorTexts(sel *Selection) []*html.Node {
	if sel == nil {
		return nil
	}
	if !sel.Collapsed() {
		return s.selectedTexts(*sel)
	}
	if n, _ := s.textAt(sel.Start); n != nil {
		return []*html.Node{n}
	}
	return nil
}

func (s *DOMSurface) toggleInline(sel *Selection, aliases []string) bool {
	if sel == nil || sel.Collapsed() {
		return false
	}
	segs := s.selectedTexts(*sel)
	if len(segs) == 0 {
		return false
	}

	applied := true
	for _, seg := range segs {
		if s.ancestor(seg, aliases...) == nil {
			applied = false
			break
		}
	}

	if !applied {
		for _, seg := range segs {
			if s.ancestor(seg, aliases...) == nil {
				wrap(seg, newElement(aliases[0]))
			}
		}
		return true
	}

	for _, seg := range segs {
		for el := s.ancestor(seg, aliases...); el != nil; el = s.ancestor(seg, aliases...) {
			liftOut(el, seg)
		}
	}
	removeEmpty(s.root)
	return true
}

func (s *DOMSurface) formatBlock(sel *Selection, tag string) bool {
	blocks := s.blocks(sel)
	if len(blocks) == 0 {
		if sel == nil || s.root.FirstChild != nil {
			return false
		}
		s.root.AppendChild(newElement(tag))
		return true
	}

	for _, b := range blocks {
		if b.Data == "li" {
			inner := newElement(tag)
			moveChildren(b, inner)
			b.AppendChild(inner)
			continue
		}
		rename(b, tag)
	}
	return true
}

func (s *DOMSurface) toggleList(sel *Selection, tag string) bool {
	blocks := s.listBlocks(sel)
	if len(blocks) == 0 {
		return false
	}

	allItems, sameList := true, true
	for _, b := range blocks {
		if b.Data != "li" || b.Parent == nil {
			allItems = false
			break
		}
		if b.Parent.Data != tag {
			sameList = false
		}
	}

	switch {
	case allItems && sameList:
		for _, li := range blocks {
			unlistItem(li)
		}
		removeEmpty(s.root)
	case allItems:
		for _, li := range blocks {
			if li.Parent.Data != tag {
				rename(li.Parent, tag)
			}
		}
	default:
		s.listify(blocks, tag)
	}
	return true
}

// listBlocks returns the touched blocks with blocks inside list items
// replaced by their items
func (s *DOMSurface) listBlocks(sel *Selection) []*html.Node {
	var out []*html.Node
	seen := make(map[*html.Node]bool)
	for _, b := range s.blocks(sel) {
		if b.Data != "li" {
			if li := s.ancestor(b, "li"); li != nil {
				b = li
			}
		}
		if !seen[b] {
			seen[b] = true
			out = append(out, b)
		}
	}
	return out
}

// listify turns blocks into the items of one new list, in document order,
// placed where the first block was. Items of other lists are moved over.
func (s *DOMSurface) listify(blocks []*html.Node, tag string) {
	list := newElement(tag)
	anchor := blocks[0]
	if anchor.Data == "li" {
		anchor = isolateItem(anchor)
	}
	anchor.Parent.InsertBefore(list, anchor)

	for _, b := range blocks {
		if b.Data == "li" {
			isolateItem(b)
			b.Parent.RemoveChild(b)
			list.AppendChild(b)
			continue
		}
		li := newElement("li")
		moveChildren(b, li)
		list.AppendChild(li)
		b.Parent.RemoveChild(b)
	}
	removeEmpty(s.root)
}

func (s *DOMSurface) align(sel *Selection, value string) bool {
	blocks := s.blocks(sel)
	for _, b := range blocks {
		setStyle(b, "text-align", value)
	}
	return len(blocks) > 0
}

func (s *DOMSurface) link(sel Selection, href string) (bool, error) {
	segs := s.selectedTexts(sel)
	if len(segs) == 0 {
		return false, ErrSelectionRequired
	}
	for _, seg := range segs {
		if a := s.ancestor(seg, "a"); a != nil {
			setAttr(a, "href", href)
			continue
		}
		a := newElement("a")
		setAttr(a, "href", href)
		wrap(seg, a)
	}
	return true, nil
}

func (s *DOMSurface) unlink(sel *Selection) bool {
	var anchors []*html.Node
	seen := make(map[*html.Node]bool)
	for _, seg := range s.cursorTexts(sel) {
		if a := s.ancestor(seg, "a"); a != nil && !seen[a] {
			seen[a] = true
			anchors = append(anchors, a)
		}
	}
	for _, a := range anchors {
		unwrap(a)
	}
	return len(anchors) > 0
}

// insertImage places an <img> at the cursor, or appends it to the document
// when there is no cursor.
func (s *DOMSurface) insertImage(sel *Selection, src string) {
	img := newElement("img")
	setAttr(img, "src", src)
	setAttr(img, "alt", "")

	if sel == nil {
		s.root.AppendChild(img)
		return
	}
	n, offset := s.textAt(sel.Start)
	if n == nil {
		s.root.AppendChild(img)
		return
	}
	switch {
	case offset == 0:
		n.Parent.InsertBefore(img, n)
	case offset >= utf8.RuneCountInString(n.Data):
		n.Parent.InsertBefore(img, n.NextSibling)
	default:
		right := splitText(n, offset)
		right.Parent.InsertBefore(img, right)
	}
}

// blocks returns the block elements touched by the selection, wrapping
// loose top-level text into paragraphs first.
func (s *DOMSurface) blocks(sel *Selection) []*html.Node {
	var out []*html.Node
	seen := make(map[*html.Node]bool)
	for _, seg := range s.cursorTexts(sel) {
		b, container := s.blockOf(seg)
		if b == nil {
			b = s.wrapInlineRun(seg, container)
		}
		if !seen[b] {
			seen[b] = true
			out = append(out, b)
		}
	}
	return out
}

// blockOf returns the leaf block holding n. Text lying directly in a
// container yields no block and the container instead.
func (s *DOMSurface) blockOf(n *html.Node) (block, container *html.Node) {
	for p := n.Parent; p != nil; p = p.Parent {
		if s.isContainer(p) {
			return nil, p
		}
		if p.Type == html.ElementNode && blockTags[p.Data] {
			return p, nil
		}
	}
	return nil, s.root
}

func (s *DOMSurface) isContainer(n *html.Node) bool {
	if n == s.root {
		return true
	}
	if n.Type != html.ElementNode {
		return false
	}
	return containerTags[n.Data] || (mixedTags[n.Data] && hasBlockChild(n))
}

func hasBlockChild(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && !isInline(c) {
			return true
		}
	}
	return false
}

// wrapInlineRun wraps the run of inline siblings around n, as children of
// container, into a new paragraph.
func (s *DOMSurface) wrapInlineRun(n, container *html.Node) *html.Node {
	top := n
	for top.Parent != container {
		top = top.Parent
	}
	first, last := top, top
	for first.PrevSibling != nil && isInline(first.PrevSibling) {
		first = first.PrevSibling
	}
	for last.NextSibling != nil && isInline(last.NextSibling) {
		last = last.NextSibling
	}

	p := newElement("p")
	container.InsertBefore(p, first)
	for c := first; ; {
		next := c.NextSibling
		container.RemoveChild(c)
		p.AppendChild(c)
		if c == last {
			break
		}
		c = next
	}
	return p
}

// ancestor returns the nearest enclosing element named one of tags
func (s *DOMSurface) ancestor(n *html.Node, tags ...string) *html.Node {
	for p := n.Parent; p != nil && p != s.root; p = p.Parent {
		if p.Type != html.ElementNode {
			continue
		}
		for _, t := range tags {
			if p.Data == t {
				return p
			}
		}
	}
	return nil
}

func isInline(n *html.Node) bool {
	switch n.Type {
	case html.TextNode:
		return true
	case html.ElementNode:
		if blockTags[n.Data] || containerTags[n.Data] {
			return false
		}
		switch n.Data {
		case "ul", "ol", "table", "hr":
			return false
		}
		return true
	}
	return false
}

// isStructuralWhitespace reports whitespace that only separates blocks
func (s *DOMSurface) isStructuralWhitespace(n *html.Node) bool {
	if strings.TrimSpace(n.Data) != "" || n.Parent == nil {
		return false
	}
	switch n.Parent.Data {
	case "ul", "ol", "table", "thead", "tbody", "tfoot", "tr":
		return true
	}
	return s.isContainer(n.Parent)
}

func newElement(tag string) *html.Node {
	return &html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))}
}

func rename(n *html.Node, tag string) {
	n.Data = tag
	n.DataAtom = atom.Lookup([]byte(tag))
}

func shallowClone(n *html.Node) *html.Node {
	c := &html.Node{Type: n.Type, Data: n.Data, DataAtom: n.DataAtom, Namespace: n.Namespace}
	c.Attr = append([]html.Attribute(nil), n.Attr...)
	return c
}

// splitText cuts a text node at a rune offset and returns the right half
func splitText(n *html.Node, at int) *html.Node {
	runes := []rune(n.Data)
	right := &html.Node{Type: html.TextNode, Data: string(runes[at:])}
	n.Data = string(runes[:at])
	n.Parent.InsertBefore(right, n.NextSibling)
	return right
}

func wrap(n, el *html.Node) {
	n.Parent.InsertBefore(el, n)
	n.Parent.RemoveChild(n)
	el.AppendChild(n)
}

func unwrap(el *html.Node) {
	parent := el.Parent
	for c := el.FirstChild; c != nil; {
		next := c.NextSibling
		el.RemoveChild(c)
		parent.InsertBefore(c, el)
		c = next
	}
	parent.RemoveChild(el)
}

func moveChildren(from, to *html.Node) {
	for c := from.FirstChild; c != nil; {
		next := c.NextSibling
		from.RemoveChild(c)
		to.AppendChild(c)
		c = next
	}
}

// splitBefore splits root in two so that n and everything after it inside
// root move into a copy of root placed right after it. The copy is returned.
func splitBefore(root, n *html.Node) *html.Node {
	cur := n
	for {
		parent := cur.Parent
		clone := shallowClone(parent)
		for c := cur; c != nil; {
			next := c.NextSibling
			parent.RemoveChild(c)
			clone.AppendChild(c)
			c = next
		}
		parent.Parent.InsertBefore(clone, parent.NextSibling)
		if parent == root {
			return clone
		}
		cur = clone
	}
}

// liftOut moves n out of the element el, splitting el around it
func liftOut(el, n *html.Node) {
	mid := el
	if hasContentBefore(el, n) {
		mid = splitBefore(el, n)
	}
	if next := nextWithin(mid, n); next != nil {
		splitBefore(mid, next)
	}
	unwrap(mid)
}

func hasContentBefore(root, n *html.Node) bool {
	for x := n; x != root; x = x.Parent {
		if x.PrevSibling != nil {
			return true
		}
	}
	return false
}

// nextWithin returns the node following n in document order without
// leaving root
func nextWithin(root, n *html.Node) *html.Node {
	for x := n; x != root; x = x.Parent {
		if x.NextSibling != nil {
			return x.NextSibling
		}
	}
	return nil
}

// isolateItem splits the list of li so that li is its only item and
// returns that list
func isolateItem(li *html.Node) *html.Node {
	list := li.Parent
	if li.PrevSibling != nil {
		list = splitBefore(list, li)
	}
	if li.NextSibling != nil {
		splitBefore(list, li.NextSibling)
	}
	return list
}

// unlistItem turns a list item into a paragraph, splitting its list
func unlistItem(li *html.Node) {
	list := isolateItem(li)
	p := newElement("p")
	moveChildren(li, p)
	list.Parent.InsertBefore(p, list)
	list.Parent.RemoveChild(list)
}

func removeEmpty(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.ElementNode {
			removeEmpty(c)
			if removableWhenEmpty[c.Data] && blank(c) {
				n.RemoveChild(c)
			}
		}
		c = next
	}
}

// blank reports an element without children, or a list holding only
// whitespace
func blank(n *html.Node) bool {
	if n.FirstChild == nil {
		return true
	}
	if n.Data != "ul" && n.Data != "ol" {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.TextNode || strings.TrimSpace(c.Data) != "" {
			return false
		}
	}
	return true
}

func getAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	attrs := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			continue
		}
		attrs = append(attrs, a)
	}
	n.Attr = attrs
}

// setStyle sets one declaration of the style attribute; an empty value
// removes it.
func setStyle(n *html.Node, prop, value string) {
	style, _ := getAttr(n, "style")
	var decls []string
	for _, d := range strings.Split(style, ";") {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		name, _, _ := strings.Cut(d, ":")
		if strings.EqualFold(strings.TrimSpace(name), prop) {
			continue
		}
		decls = append(decls, d)
	}
	if value != "" {
		decls = append(decls, prop+": "+value)
	}
	if len(decls) == 0 {
		removeAttr(n, "style")
		return
	}
	setAttr(n, "style", strings.Join(decls, "; ")+";")
}
