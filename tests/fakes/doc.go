// Package fakes provides test doubles for the secret service backend.
//
// FakeSecretService answers Secret Service requests from memory and
// implements transport.Conn, so a client can be pointed at it directly.
// Fakes are manually implemented (not generated) to provide precise control
// over timing: replies can be delayed, held back and released out of order,
// or lost to a simulated disconnect.
//
// Usage:
//
//	svc := fakes.NewFakeSecretService()
//	svc.AddItem("default", "Number one", map[string]string{
//	    "xdg:schema": "org.mock.Schema",
//	    "number":     "1",
//	}, "111", false)
//	client := secret.New(svc)
//	// Exercise client methods...
package fakes
