package obs

import "strings"

// CanonicalPath collapses resource identifiers so metric label cardinality
// stays bounded. Unknown paths are returned as-is without the query string.
func CanonicalPath(path string) string {
	if idx := strings.IndexByte(path, '?'); idx >= 0 {
		path = path[:idx]
	}
	if path == "" {
		return "/"
	}
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 3 || parts[0] != "v1" {
		return path
	}
	switch parts[1] {
	case "zones":
		switch len(parts) {
		case 3:
			return "/v1/zones/:id"
		case 4:
			if parts[3] == "ancestors" {
				return "/v1/zones/:id/ancestors"
			}
		}
	case "alerts":
		if len(parts) == 4 && (parts[3] == "resolve" || parts[3] == "dismiss") {
			return "/v1/alerts/:id/" + parts[3]
		}
	case "users":
		if len(parts) == 4 && parts[3] == "history" {
			return "/v1/users/:id/history"
		}
	}
	return path
}
