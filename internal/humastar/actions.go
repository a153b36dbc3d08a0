package humastar

import (
	"fmt"
	"strings"
)

// Action is a state-dependent hypermedia link, written as an RFC 8288 Link
// header with method, title and schema extension parameters:
//
//	</api/v1/state/ready>; rel="ready"; method="POST"; title="Mark map ready"
type Action struct {
	Rel    string
	Href   string
	Method string
	Title  string
	Schema string // JSON Schema URL for the request body
}

// Actor is implemented by response bodies whose available actions depend on
// their state, such as session state before and after the map is ready.
type Actor interface {
	Actions() []Action
}

// LinkHeader formats the action as a Link header value.
func (a Action) LinkHeader() string {
	var b strings.Builder
	fmt.Fprintf(&b, `<%s>; rel="%s"`, a.Href, a.Rel)
	for _, p := range [][2]string{{"method", a.Method}, {"title", a.Title}, {"schema", a.Schema}} {
		if p[1] != "" {
			fmt.Fprintf(&b, `; %s="%s"`, p[0], strings.ReplaceAll(p[1], `"`, `'`))
		}
	}
	return b.String()
}
