package nmea

import (
	"fmt"
	"strings"

	"firestige.xyz/shipswitch/internal/core"
)

const (
	startDelimiter = '$'
	headerLen      = 6 // "$" + talker + formatter
)

// Field is one named value of a sentence. Values are kept verbatim after
// whitespace trimming; no numeric conversion is attempted.
type Field struct {
	Name  string
	Value string
}

// Message is a parsed sentence.
type Message struct {
	Talker TalkerID
	Type   SentenceType
	Fields []Field // schema order, names unique
}

// Prefix returns the authorization unit "$"+talker+type, e.g. "$IIHDT".
func (m Message) Prefix() string {
	return Prefix(m.Talker, m.Type)
}

// Field returns the value of the named field.
func (m Message) Field(name string) (string, bool) {
	for _, f := range m.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Values returns the field values in schema order.
func (m Message) Values() []string {
	out := make([]string, len(m.Fields))
	for i, f := range m.Fields {
		out[i] = f.Value
	}
	return out
}

// Prefix builds the authorization prefix for a talker and sentence type.
func Prefix(t TalkerID, s SentenceType) string {
	return string(startDelimiter) + t.Code() + s.Code()
}

// ParsePrefix splits a "$TTSSS" prefix into its talker and sentence type.
func ParsePrefix(prefix string) (TalkerID, SentenceType, error) {
	if len(prefix) != headerLen || prefix[0] != startDelimiter {
		return 0, 0, fmt.Errorf("%w: prefix %q", core.ErrNotSentence, prefix)
	}
	t, ok := LookupTalker(prefix[1:3])
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", core.ErrUnknownTalker, prefix[1:3])
	}
	s, ok := LookupSentence(prefix[3:6])
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", core.ErrUnsupportedType, prefix[3:6])
	}
	return t, s, nil
}

// Parse extracts talker, type and named fields from a sentence.
//
// The sentence ends at the first CR, LF or NUL. Talker and type are read from
// fixed offsets 1-2 and 3-5. The remaining comma-separated tokens are zipped
// onto the type's schema: fewer tokens than names is ErrSchemaMismatch, extra
// tokens are ignored. The trailing checksum is never verified.
func Parse(text string) (Message, error) {
	if i := strings.IndexAny(text, "\r\n\x00"); i >= 0 {
		text = text[:i]
	}
	if len(text) < headerLen || text[0] != startDelimiter {
		return Message{}, core.ErrNotSentence
	}

	talker, ok := LookupTalker(text[1:3])
	if !ok {
		return Message{}, fmt.Errorf("%w: %q", core.ErrUnknownTalker, text[1:3])
	}

	st, ok := LookupSentence(text[3:6])
	if !ok {
		return Message{}, fmt.Errorf("%w: %q", core.ErrUnsupportedType, text[3:6])
	}
	schema, ok := schemas[st]
	if !ok {
		return Message{}, fmt.Errorf("%w: %s has no extractor", core.ErrUnsupportedType, st)
	}

	tokens := strings.Split(text, ",")[1:]
	if len(tokens) < len(schema) {
		return Message{}, fmt.Errorf("%w: %s wants %d fields, got %d",
			core.ErrSchemaMismatch, st, len(schema), len(tokens))
	}

	fields := make([]Field, len(schema))
	for i, name := range schema {
		fields[i] = Field{Name: name, Value: strings.TrimSpace(tokens[i])}
	}

	return Message{Talker: talker, Type: st, Fields: fields}, nil
}
