// Package editor implements the article editing surface: formatting commands
// over an HTML document, the editor/HTML/preview tabs and the per-draft
// editing sessions.
package editor

import (
	"errors"
)

// Kind names a formatting command
type Kind string

const (
	Bold          Kind = "bold"
	Italic        Kind = "italic"
	Underline     Kind = "underline"
	Heading1      Kind = "h1"
	Heading2      Kind = "h2"
	Heading3      Kind = "h3"
	Paragraph     Kind = "p"
	OrderedList   Kind = "insertOrderedList"
	UnorderedList Kind = "insertUnorderedList"
	AlignLeft     Kind = "justifyLeft"
	AlignCenter   Kind = "justifyCenter"
	AlignRight    Kind = "justifyRight"
	AlignJustify  Kind = "justifyFull"
	CreateLink    Kind = "createLink"
	Unlink        Kind = "unlink"
	Undo          Kind = "undo"
	Redo          Kind = "redo"
	InsertImage   Kind = "insertImage"
)

var (
	// ErrUnsupportedCommand is returned for command kinds the surface does not know
	ErrUnsupportedCommand = errors.New("unsupported command")
	// ErrSelectionRequired is returned when a command needs selected text
	ErrSelectionRequired = errors.New("selection required")
	// ErrValueRequired is returned when a link or image command has no URL
	ErrValueRequired = errors.New("command value required")
)

// Selection is a range of rune offsets into the text of the document. An
// empty range is a cursor.
type Selection struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Collapsed reports whether the selection is a cursor
func (s Selection) Collapsed() bool {
	return s.Start == s.End
}

// Command is one toolbar action. Selection is nil when the surface has no
// focus; Value carries the URL of link and image commands.
type Command struct {
	Kind      Kind       `json:"command" validate:"required"`
	Value     string     `json:"value,omitempty"`
	Selection *Selection `json:"selection,omitempty"`
}

// Surface is an editable rich-text document
type Surface interface {
	ApplyFormat(cmd Command) error
	SerializedContent() string
	SetSerializedContent(content string) error
	OnContentChanged(cb func(content string))
}
