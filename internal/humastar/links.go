package humastar

import (
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// Links holds RFC 8288 Link header values discovered from an OpenAPI
// document, keyed by operation path.
type Links struct {
	entry   string
	skipTag string
	byOp    map[string][]string
}

// NewLinks creates an empty link registry rooted at entry. Operations tagged
// skipTag (Datastar SSE endpoints) are left out of discovery. Its Transformer
// can be installed before Discover runs.
func NewLinks(entry, skipTag string) *Links {
	return &Links{entry: entry, skipTag: skipTag, byOp: map[string][]string{}}
}

// Discover walks the registered operations and derives hypermedia links
// between them. Call once, after all routes are registered and before
// serving.
func (l *Links) Discover(api huma.API) {
	oapi := api.OpenAPI()
	entry, skipTag := l.entry, l.skipTag

	var collections, items []string
	for p, pi := range oapi.Paths {
		if slices.Contains(tagsOf(pi), skipTag) {
			continue
		}
		if strings.Contains(p, "{") {
			items = append(items, p)
		} else {
			collections = append(collections, p)
		}
	}
	slices.Sort(collections)
	slices.Sort(items)

	for _, item := range items {
		parent := path.Dir(item)
		if slices.Contains(collections, parent) {
			l.add(item, parent, "collection")
			l.add(parent, item, "item")
		}
	}

	_, hasQuery := oapi.Paths["/api/v1/query"]
	for _, coll := range collections {
		if coll == entry {
			continue
		}
		l.add(coll, entry, "up")
		l.add(entry, coll, lastSegment(coll))
		if hasQuery && coll != "/api/v1/query" {
			l.add(coll, "/api/v1/query", "search")
		}
	}
	l.add(entry, "/openapi.json", "describedby")
	l.add(entry, "/openapi.json", "service-desc")
	l.add(entry, "/docs", "service-doc")

	for p, pi := range oapi.Paths {
		if ref := responseSchemaRef(pi); ref != "" {
			l.add(p, "/openapi.json#/components/schemas/"+ref, "describedby")
		}
	}

	for p, pi := range oapi.Paths {
		if headers, ok := l.byOp[p]; ok {
			for _, op := range operationsOf(pi) {
				if op != nil {
					injectResponseLinks(op, headers)
				}
			}
		}
	}
}

// For returns the Link header values for an operation path.
func (l *Links) For(opPath string) []string {
	if l == nil {
		return nil
	}
	return l.byOp[opPath]
}

// Root returns the entry point links, for non-Huma handlers such as the
// dashboard page.
func (l *Links) Root() []string {
	return l.For(l.entry)
}

// Transformer returns a Huma Transformer that writes discovered links plus
// self, pagination and state-dependent action links from the body.
func (l *Links) Transformer() huma.Transformer {
	return func(ctx huma.Context, status string, v any) (any, error) {
		op := ctx.Operation()
		if op == nil {
			return v, nil
		}
		for _, link := range l.For(op.Path) {
			ctx.AppendHeader("Link", link)
		}
		if strings.Contains(op.Path, "{") {
			ctx.AppendHeader("Link", fmt.Sprintf(`<%s>; rel="self"`, ctx.URL().Path))
		}
		if p, ok := v.(Pager); ok {
			for _, link := range p.PaginationLinks(ctx.URL().Path) {
				ctx.AppendHeader("Link", link)
			}
		}
		if a, ok := v.(Actor); ok {
			for _, action := range a.Actions() {
				ctx.AppendHeader("Link", action.LinkHeader())
			}
		}
		return v, nil
	}
}

func (l *Links) add(from, to, rel string) {
	val := fmt.Sprintf(`<%s>; rel="%s"`, to, rel)
	if !slices.Contains(l.byOp[from], val) {
		l.byOp[from] = append(l.byOp[from], val)
	}
}

func tagsOf(pi *huma.PathItem) []string {
	for _, op := range operationsOf(pi) {
		if op != nil && len(op.Tags) > 0 {
			return op.Tags
		}
	}
	return nil
}

func operationsOf(pi *huma.PathItem) []*huma.Operation {
	return []*huma.Operation{pi.Get, pi.Post, pi.Put, pi.Patch, pi.Delete}
}

func lastSegment(p string) string {
	return path.Base(strings.TrimRight(p, "/"))
}

// injectResponseLinks documents the links as OpenAPI Link objects on the
// operation's first 2xx response.
func injectResponseLinks(op *huma.Operation, headers []string) {
	for code, resp := range op.Responses {
		if !strings.HasPrefix(code, "2") {
			continue
		}
		if resp.Links == nil {
			resp.Links = map[string]*huma.Link{}
		}
		for _, h := range headers {
			if rel, href := parseLinkHeader(h); rel != "" {
				resp.Links[rel] = &huma.Link{
					OperationRef: href,
					Description:  "Related: " + rel,
				}
			}
		}
		return
	}
}

func responseSchemaRef(pi *huma.PathItem) string {
	if pi.Get == nil {
		return ""
	}
	for code, resp := range pi.Get.Responses {
		if !strings.HasPrefix(code, "2") {
			continue
		}
		for _, mt := range resp.Content {
			if mt.Schema != nil && mt.Schema.Ref != "" {
				return path.Base(mt.Schema.Ref)
			}
		}
	}
	return ""
}

func parseLinkHeader(h string) (rel, href string) {
	target, params, ok := strings.Cut(h, ";")
	if !ok {
		return "", ""
	}
	href = strings.Trim(strings.TrimSpace(target), "<>")
	params = strings.TrimSpace(params)
	if v, ok := strings.CutPrefix(params, `rel="`); ok {
		rel = strings.TrimSuffix(v, `"`)
	}
	return rel, href
}
