package rpc

import "fmt"

// route binds one literal token pattern to its handler. A pattern of N tokens
// matches when the path's first N tokens equal it exactly.
type route struct {
	pattern []string
	handle  func(*Request) (Result, error)
}

// routeTable is the fixed, ordered dispatch table of one namespace. The first
// matching pattern wins; tables stay small enough that a linear scan is fine.
type routeTable struct {
	namespace string
	routes    []route
}

// Process implements Processor by first-match-wins scanning.
func (t *routeTable) Process(req *Request) (Result, error) {
	for _, r := range t.routes {
		if matchesPrefix(req.Path, r.pattern) {
			return r.handle(req)
		}
	}
	return badRequest(CodeInvalidAction, "unsupported action %s in namespace %s", pathString(req.Path), t.namespace)
}

func matchesPrefix(path, pattern []string) bool {
	if len(path) < len(pattern) {
		return false
	}
	for i := range pattern {
		if path[i] != pattern[i] {
			return false
		}
	}
	return true
}

func pathString(path []string) string {
	if len(path) == 0 {
		return "(empty)"
	}
	return fmt.Sprintf("%q", path)
}
