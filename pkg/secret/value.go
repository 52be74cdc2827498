package secret

import "time"

// DefaultContentType is used for passwords stored as strings.
const DefaultContentType = "text/plain"

// Value is a secret with its content type.
type Value struct {
	data        []byte
	contentType string
}

// NewValue wraps data. An empty contentType means text/plain.
func NewValue(data []byte, contentType string) *Value {
	if contentType == "" {
		contentType = DefaultContentType
	}
	return &Value{data: append([]byte(nil), data...), contentType: contentType}
}

// NewTextValue wraps a password string.
func NewTextValue(password string) *Value {
	return &Value{data: []byte(password), contentType: DefaultContentType}
}

// Bytes returns the raw secret. The slice is shared with v.
func (v *Value) Bytes() []byte { return v.data }

// Text returns the secret as a string.
func (v *Value) Text() string { return string(v.data) }

// ContentType returns the MIME type of the secret.
func (v *Value) ContentType() string { return v.contentType }

// Wipe overwrites the secret bytes.
func (v *Value) Wipe() {
	for i := range v.data {
		v.data[i] = 0
	}
	v.data = nil
}

// Item describes one stored secret, as returned by Search.
type Item struct {
	Path       string
	Label      string
	Schema     string
	Attributes map[string]string
	Locked     bool
	Created    time.Time
	Modified   time.Time
	// Value is set when the search asked for secrets and the item is unlocked.
	Value *Value
}

// SearchFlags modify Search.
type SearchFlags int

const (
	// SearchAll returns every match instead of only the first.
	SearchAll SearchFlags = 1 << iota
	// SearchUnlock unlocks locked matches, prompting if necessary.
	SearchUnlock
	// SearchLoadSecrets fills Item.Value for unlocked matches.
	SearchLoadSecrets
)
