package testutil

import (
	"errors"
	"testing"

	"github.com/offsoc/libsecret/pkg/schema"
	"github.com/offsoc/libsecret/tests/fakes"
)

// MockSchemaName is the schema every fixture item is stored under.
const MockSchemaName = "org.mock.Schema"

// MockSchema declares the attributes of the fixture items.
var MockSchema = schema.MustDefine(MockSchemaName, schema.None, map[string]schema.AttributeType{
	"number": schema.Integer,
	"string": schema.String,
	"even":   schema.Boolean,
})

// MockItem is one fixture entry.
type MockItem struct {
	Label    string
	Number   string
	String   string
	Even     string
	Password string
	Locked   bool
}

// MockItems is the fixture loaded by StartMockService, in creation order.
var MockItems = []MockItem{
	{Label: "Number 1", Number: "1", String: "one", Even: "false", Password: "111"},
	{Label: "Number 2", Number: "2", String: "two", Even: "true", Password: "222"},
	{Label: "Number 3", Number: "3", String: "three", Even: "false", Password: "333"},
	{Label: "Number 4", Number: "4", String: "four", Even: "true", Password: "444", Locked: true},
}

// Attributes returns the item's attributes as the fake service stores them.
func (m MockItem) Attributes() map[string]string {
	return map[string]string{
		"xdg:schema": MockSchemaName,
		"number":     m.Number,
		"string":     m.String,
		"even":       m.Even,
	}
}

// StartMockService returns a fake secret service loaded with MockItems in
// the default collection. It is disconnected when the test ends.
//
// Example usage:
//
//	svc := testutil.StartMockService(t)
//	client := secret.New(svc)
//	password, found, err := client.Lookup(ctx, testutil.MockSchema, schema.Attributes{"number": "1"})
func StartMockService(t *testing.T) *fakes.FakeSecretService {
	t.Helper()

	svc := fakes.NewFakeSecretService()
	for _, it := range MockItems {
		svc.AddItem("default", it.Label, it.Attributes(), it.Password, it.Locked)
	}
	t.Cleanup(func() {
		svc.Disconnect(errors.New("mock service stopped"))
	})
	return svc
}
