package schema

// Well-known schemas shared with other Secret Service clients.
var (
	// Generic accepts any string attributes.
	Generic = mustBuild("org.freedesktop.Secret.Generic", AllowUndefined, nil)

	// Network describes network passwords as stored by gnome-keyring.
	Network = mustBuild("org.gnome.keyring.NetworkPassword", None, []Attribute{
		{Name: "user", Type: String},
		{Name: "domain", Type: String},
		{Name: "object", Type: String},
		{Name: "protocol", Type: String},
		{Name: "port", Type: Integer},
		{Name: "server", Type: String},
		{Name: "authtype", Type: String},
	})

	// Note is for free-form notes; it has no attributes.
	Note = mustBuild("org.gnome.keyring.Note", None, nil)
)

func mustBuild(name string, flags Flags, attrs []Attribute) *Schema {
	s, err := build(name, flags, attrs)
	if err != nil {
		panic(err)
	}
	return s
}
