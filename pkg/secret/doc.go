// Package secret stores and retrieves passwords held by a freedesktop
// Secret Service (gnome-keyring, KWallet, KeePassXC).
//
// Passwords are addressed by attributes validated against a schema.
// Attributes are checked before anything is sent to the service, so a
// typo in an attribute name or a non-numeric INTEGER value fails fast:
//
//	s := schema.MustDefine("org.example.Password", schema.None, map[string]schema.AttributeType{
//	    "user":   schema.String,
//	    "server": schema.String,
//	    "port":   schema.Integer,
//	})
//	client, err := secret.Connect(ctx, "")
//	...
//	password, found, err := client.Lookup(ctx, s, schema.Attributes{
//	    "user": "alice", "server": "example.org", "port": "993",
//	})
//
// Every operation comes in a blocking form taking a context and a
// non-blocking form taking a callback. The callback runs exactly once on a
// goroutine owned by the client, whether the operation succeeds, fails, is
// cancelled through the returned Call, or loses its connection.
//
// A lookup that matches nothing is not an error: it reports found == false.
// When several items match, the first one the service reports wins.
package secret
