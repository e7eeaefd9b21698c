// Package render turns a template id and a variable map into a subject and
// body.
//
// Templates use text/template syntax with missingkey=error, so a variable the
// template references but the caller omitted fails rendering with
// ErrMissingVariable instead of producing "<no value>". Templates may also
// declare Required variables that are checked before execution.
//
//	store, err := render.NewStore(render.Template{
//		ID:       "order_shipped",
//		Subject:  "Order {{.OrderID}} shipped",
//		Body:     "Hi {{.Name}}, your order is on its way.",
//		Required: []string{"OrderID", "Name"},
//	})
//	out, err := store.Render(ctx, "order_shipped", map[string]any{"OrderID": "42", "Name": "Ada"})
package render
