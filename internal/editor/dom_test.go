package editor

import (
	"errors"
	"testing"
)

func sel(start, end int) *Selection {
	return &Selection{Start: start, End: end}
}

func newSurface(t *testing.T, content string) *DOMSurface {
	t.Helper()
	s, err := NewDOMSurface(content)
	if err != nil {
		t.Fatalf("NewDOMSurface() error = %v", err)
	}
	return s
}

func TestUntouchedContentRoundTrips(t *testing.T) {
	src := "<p>Привіт,   <b>світ</b></p>\n<ul><li>один</li></ul><br>"
	s := newSurface(t, src)
	if got := s.SerializedContent(); got != src {
		t.Errorf("SerializedContent() = %q, want input unchanged", got)
	}
	if err := s.SetSerializedContent(src); err != nil {
		t.Fatal(err)
	}
	if s.CanUndo() {
		t.Error("setting identical content should not create history")
	}
}

func TestApplyFormat(t *testing.T) {
	tests := []struct {
		name string
		src  string
		cmds []Command
		want string
	}{
		{
			name: "bold word",
			src:  "<p>Hello world</p>",
			cmds: []Command{{Kind: Bold, Selection: sel(0, 5)}},
			want: "<p><b>Hello</b> world</p>",
		},
		{
			name: "bold toggles off",
			src:  "<p>Hello world</p>",
			cmds: []Command{{Kind: Bold, Selection: sel(0, 5)}, {Kind: Bold, Selection: sel(0, 5)}},
			want: "<p>Hello world</p>",
		},
		{
			name: "unbold tail of bold run",
			src:  "<p><b>Hello world</b></p>",
			cmds: []Command{{Kind: Bold, Selection: sel(6, 11)}},
			want: "<p><b>Hello </b>world</p>",
		},
		{
			name: "unbold middle splits the element",
			src:  "<p><b>abc</b></p>",
			cmds: []Command{{Kind: Bold, Selection: sel(1, 2)}},
			want: "<p><b>a</b>b<b>c</b></p>",
		},
		{
			name: "strong counts as bold",
			src:  "<p><strong>abc</strong></p>",
			cmds: []Command{{Kind: Bold, Selection: sel(0, 3)}},
			want: "<p>abc</p>",
		},
		{
			name: "italic across paragraphs",
			src:  "<p>one</p><p>two</p>",
			cmds: []Command{{Kind: Italic, Selection: sel(0, 6)}},
			want: "<p><i>one</i></p><p><i>two</i></p>",
		},
		{
			name: "underline with cursor does nothing",
			src:  "<p>abc</p>",
			cmds: []Command{{Kind: Underline, Selection: sel(1, 1)}},
			want: "<p>abc</p>",
		},
		{
			name: "heading at cursor",
			src:  "<p>Title</p>",
			cmds: []Command{{Kind: Heading1, Selection: sel(2, 2)}},
			want: "<h1>Title</h1>",
		},
		{
			name: "loose text becomes a heading",
			src:  "plain text",
			cmds: []Command{{Kind: Heading2, Selection: sel(0, 0)}},
			want: "<h2>plain text</h2>",
		},
		{
			name: "heading back to paragraph",
			src:  "<h3>x</h3>",
			cmds: []Command{{Kind: Paragraph, Selection: sel(0, 1)}},
			want: "<p>x</p>",
		},
		{
			name: "paragraphs into unordered list",
			src:  "<p>a</p><p>b</p>",
			cmds: []Command{{Kind: UnorderedList, Selection: sel(0, 2)}},
			want: "<ul><li>a</li><li>b</li></ul>",
		},
		{
			name: "list toggles off",
			src:  "<p>a</p><p>b</p>",
			cmds: []Command{{Kind: UnorderedList, Selection: sel(0, 2)}, {Kind: UnorderedList, Selection: sel(0, 2)}},
			want: "<p>a</p><p>b</p>",
		},
		{
			name: "middle item leaves the list",
			src:  "<ol><li>a</li><li>b</li><li>c</li></ol>",
			cmds: []Command{{Kind: OrderedList, Selection: sel(1, 1)}},
			want: "<ol><li>a</li></ol><p>b</p><ol><li>c</li></ol>",
		},
		{
			name: "unordered becomes ordered",
			src:  "<ul><li>a</li></ul>",
			cmds: []Command{{Kind: OrderedList, Selection: sel(0, 1)}},
			want: "<ol><li>a</li></ol>",
		},
		{
			name: "list item and following paragraph keep their order",
			src:  "<ul><li>one</li></ul><p>two</p>",
			cmds: []Command{{Kind: OrderedList, Selection: sel(0, 6)}},
			want: "<ol><li>one</li><li>two</li></ol>",
		},
		{
			name: "paragraph and following list item form one list",
			src:  "<p>two</p><ul><li>one</li></ul>",
			cmds: []Command{{Kind: OrderedList, Selection: sel(0, 6)}},
			want: "<ol><li>two</li><li>one</li></ol>",
		},
		{
			name: "last item and paragraph leave the rest of the list",
			src:  "<ul><li>a</li><li>b</li></ul><p>c</p>",
			cmds: []Command{{Kind: OrderedList, Selection: sel(1, 3)}},
			want: "<ul><li>a</li></ul><ol><li>b</li><li>c</li></ol>",
		},
		{
			name: "center",
			src:  "<p>x</p>",
			cmds: []Command{{Kind: AlignCenter, Selection: sel(0, 0)}},
			want: `<p style="text-align: center;">x</p>`,
		},
		{
			name: "justify left removes alignment",
			src:  `<p style="color: red; text-align: right;">x</p>`,
			cmds: []Command{{Kind: AlignLeft, Selection: sel(0, 0)}},
			want: `<p style="color: red;">x</p>`,
		},
		{
			name: "justify",
			src:  "<p>x</p>",
			cmds: []Command{{Kind: AlignJustify, Selection: sel(0, 1)}},
			want: `<p style="text-align: justify;">x</p>`,
		},
		{
			name: "table cell text is aligned inside the cell",
			src:  "<p>intro</p><table><tbody><tr><td>cell</td></tr></tbody></table>",
			cmds: []Command{{Kind: AlignCenter, Selection: sel(0, 9)}},
			want: `<p style="text-align: center;">intro</p><table><tbody><tr><td><p style="text-align: center;">cell</p></td></tr></tbody></table>`,
		},
		{
			name: "heading in a table cell",
			src:  "<table><tbody><tr><td>a</td><th>b</th></tr></tbody></table>",
			cmds: []Command{{Kind: Heading2, Selection: sel(0, 2)}},
			want: "<table><tbody><tr><td><h2>a</h2></td><th><h2>b</h2></th></tr></tbody></table>",
		},
		{
			name: "loose text next to blocks in a div",
			src:  "<div>loose<p>inner</p></div>",
			cmds: []Command{{Kind: Heading3, Selection: sel(0, 10)}},
			want: "<div><h3>loose</h3><h3>inner</h3></div>",
		},
		{
			name: "div without blocks is renamed",
			src:  "<div>only</div>",
			cmds: []Command{{Kind: Heading1, Selection: sel(0, 0)}},
			want: "<h1>only</h1>",
		},
		{
			name: "link selection",
			src:  "<p>Hello world</p>",
			cmds: []Command{{Kind: CreateLink, Value: "https://ryba.ua", Selection: sel(0, 5)}},
			want: `<p><a href="https://ryba.ua">Hello</a> world</p>`,
		},
		{
			name: "unlink at cursor",
			src:  `<p><a href="https://ryba.ua">Hello</a> world</p>`,
			cmds: []Command{{Kind: Unlink, Selection: sel(2, 2)}},
			want: "<p>Hello world</p>",
		},
		{
			name: "image at cursor",
			src:  "<p>ab</p>",
			cmds: []Command{{Kind: InsertImage, Value: "https://img/x.jpg", Selection: sel(1, 1)}},
			want: `<p>a<img src="https://img/x.jpg" alt=""/>b</p>`,
		},
		{
			name: "image without cursor is appended",
			src:  "<p>ab</p>",
			cmds: []Command{{Kind: InsertImage, Value: "https://img/x.jpg"}},
			want: `<p>ab</p><img src="https://img/x.jpg" alt=""/>`,
		},
		{
			name: "image into empty document",
			src:  "",
			cmds: []Command{{Kind: InsertImage, Value: "u.png", Selection: sel(0, 0)}},
			want: `<img src="u.png" alt=""/>`,
		},
		{
			name: "reversed selection",
			src:  "<p>Hello</p>",
			cmds: []Command{{Kind: Italic, Selection: sel(5, 0)}},
			want: "<p><i>Hello</i></p>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSurface(t, tt.src)
			for _, cmd := range tt.cmds {
				if err := s.ApplyFormat(cmd); err != nil {
					t.Fatalf("ApplyFormat(%s) error = %v", cmd.Kind, err)
				}
			}
			got := s.SerializedContent()
			if got != tt.want {
				t.Errorf("content = %q, want %q", got, tt.want)
			}
			if again := reparsed(t, got); again != got {
				t.Errorf("content changes when parsed again: %q", again)
			}
		})
	}
}

// reparsed renders content after a fresh parse
func reparsed(t *testing.T, content string) string {
	t.Helper()
	root, err := parseFragment(content)
	if err != nil {
		t.Fatal(err)
	}
	s := &DOMSurface{root: root, dirty: true}
	return s.render()
}

func TestLinkRequiresSelection(t *testing.T) {
	s := newSurface(t, "<p>Hello</p>")
	err := s.ApplyFormat(Command{Kind: CreateLink, Value: "https://x", Selection: sel(2, 2)})
	if !errors.Is(err, ErrSelectionRequired) {
		t.Fatalf("error = %v, want ErrSelectionRequired", err)
	}
	if err := s.ApplyFormat(Command{Kind: CreateLink, Value: "https://x"}); !errors.Is(err, ErrSelectionRequired) {
		t.Errorf("nil selection error = %v", err)
	}
	if err := s.ApplyFormat(Command{Kind: CreateLink, Value: " ", Selection: sel(0, 5)}); !errors.Is(err, ErrValueRequired) {
		t.Errorf("empty URL error = %v", err)
	}
	if got := s.SerializedContent(); got != "<p>Hello</p>" {
		t.Errorf("content changed to %q", got)
	}

	s = newSurface(t, "<p>a</p>\n<p>b</p>")
	if err := s.ApplyFormat(Command{Kind: CreateLink, Value: "https://x", Selection: sel(1, 2)}); !errors.Is(err, ErrSelectionRequired) {
		t.Errorf("whitespace-only selection error = %v", err)
	}
}

func TestUnsupportedCommand(t *testing.T) {
	s := newSurface(t, "<p>Hello</p>")
	err := s.ApplyFormat(Command{Kind: "strikeThrough", Selection: sel(0, 5)})
	if !errors.Is(err, ErrUnsupportedCommand) {
		t.Fatalf("error = %v, want ErrUnsupportedCommand", err)
	}
	if got := s.SerializedContent(); got != "<p>Hello</p>" {
		t.Errorf("content changed to %q", got)
	}
}

func TestUndoRedo(t *testing.T) {
	src := "<p>Hello world</p>"
	s := newSurface(t, src)

	var changes []string
	s.OnContentChanged(func(c string) { changes = append(changes, c) })

	if err := s.ApplyFormat(Command{Kind: Bold, Selection: sel(0, 5)}); err != nil {
		t.Fatal(err)
	}
	bolded := s.SerializedContent()

	if err := s.ApplyFormat(Command{Kind: Undo}); err != nil {
		t.Fatal(err)
	}
	if got := s.SerializedContent(); got != src {
		t.Errorf("after undo = %q, want %q", got, src)
	}
	if !s.CanRedo() {
		t.Error("redo should be available")
	}

	if err := s.ApplyFormat(Command{Kind: Redo}); err != nil {
		t.Fatal(err)
	}
	if got := s.SerializedContent(); got != bolded {
		t.Errorf("after redo = %q, want %q", got, bolded)
	}

	if len(changes) != 3 || changes[1] != src {
		t.Errorf("change notifications = %q", changes)
	}

	// nothing left to redo
	if err := s.ApplyFormat(Command{Kind: Redo}); err != nil {
		t.Fatal(err)
	}
	if len(changes) != 3 {
		t.Error("an empty redo should not notify")
	}
}

func TestTypingIsUndoable(t *testing.T) {
	s := newSurface(t, "<p>a</p>")
	if err := s.SetSerializedContent("<p>ab</p>"); err != nil {
		t.Fatal(err)
	}
	if err := s.ApplyFormat(Command{Kind: Undo}); err != nil {
		t.Fatal(err)
	}
	if got := s.SerializedContent(); got != "<p>a</p>" {
		t.Errorf("after undo = %q", got)
	}
}

func TestTextLength(t *testing.T) {
	s := newSurface(t, "<p>Риба</p><p>ok</p>")
	if got := s.TextLength(); got != 6 {
		t.Errorf("TextLength() = %d, want 6", got)
	}
}
