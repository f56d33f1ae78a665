// Package entity defines the form payloads of the web layer and the
// validation rules applied to them before any state is changed.
package entity

// NonFieldErrors is the FieldErrors key for errors that belong to the form as a whole.
const NonFieldErrors = "__all__"

// Message is a translatable validation message.
type Message struct {
	Key   string
	Param string
}

// FieldErrors collects validation messages per form field.
type FieldErrors map[string][]Message

// Add appends a message for field.
func (e FieldErrors) Add(field, key string) {
	e[field] = append(e[field], Message{Key: key})
}

// AddParam appends a message with a single template parameter.
func (e FieldErrors) AddParam(field, key, param string) {
	e[field] = append(e[field], Message{Key: key, Param: param})
}

// Has reports whether field has at least one message.
func (e FieldErrors) Has(field string) bool {
	return len(e[field]) > 0
}

// HasKey reports whether field has a message with the given key.
func (e FieldErrors) HasKey(field, key string) bool {
	for _, m := range e[field] {
		if m.Key == key {
			return true
		}
	}
	return false
}

func (e FieldErrors) Empty() bool {
	return len(e) == 0
}
