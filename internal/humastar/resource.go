package humastar

import "fmt"

// ActionDef is a reusable action template. Pattern takes a single %s verb
// for the resource ID, e.g. "/api/v1/cases/%s/select".
type ActionDef struct {
	Rel     string
	Pattern string
	Method  string
	Title   string
	Schema  string
}

// ActionsFor expands defs into concrete actions for one resource.
func ActionsFor(id string, defs []ActionDef) []Action {
	actions := make([]Action, len(defs))
	for i, d := range defs {
		actions[i] = Action{
			Rel:    d.Rel,
			Href:   fmt.Sprintf(d.Pattern, id),
			Method: d.Method,
			Title:  d.Title,
			Schema: d.Schema,
		}
	}
	return actions
}
