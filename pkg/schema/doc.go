// Package schema defines typed attribute schemas for Secret Service items.
//
// A Schema names a class of secrets and declares which attribute keys are
// legal for it and what type each value has. Attribute values always travel
// as text; the schema decides which text is acceptable:
//
//   - String: any valid UTF-8
//   - Integer: the decimal form of a signed 64-bit integer
//   - Boolean: exactly "true" or "false"
//
// Schemas are immutable once defined and are safe to share between
// goroutines. They are usually declared once at package level:
//
//	var StoreSchema = schema.MustDefine("org.example.Store", schema.None,
//	    map[string]schema.AttributeType{
//	        "number": schema.Integer,
//	        "string": schema.String,
//	        "even":   schema.Boolean,
//	    })
//
// Before any request reaches the backend, attributes are passed through
// Encode, which rejects undeclared keys and badly typed values:
//
//	wire, err := StoreSchema.Encode(schema.Attributes{"number": "1", "even": "false"})
//	if err != nil {
//	    // *UnknownAttributeError or *TypeMismatchError
//	}
package schema
