package orders

import "strings"

// ImageURL turns a stored relative image path into an absolute URL.
type ImageURL struct {
	Base string
}

func (u ImageURL) Resolve(path string) string {
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if u.Base == "" {
		return path
	}
	return strings.TrimRight(u.Base, "/") + "/" + strings.TrimLeft(path, "/")
}
