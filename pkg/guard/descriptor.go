package guard

import (
	"net/url"
	"path"
	"strings"
)

// Intent classifies who asked for a call. User-initiated calls may bypass
// the state and circuit guards when the active profile allows it.
type Intent uint8

const (
	// IntentSystem is for calls the application makes on its own behalf.
	IntentSystem Intent = iota

	// IntentUser is for calls directly triggered by a user action.
	IntentUser

	// IntentBackground is for periodic pollers and prefetchers.
	IntentBackground
)

// String returns the intent name.
func (i Intent) String() string {
	switch i {
	case IntentSystem:
		return "system"
	case IntentUser:
		return "user"
	case IntentBackground:
		return "background"
	default:
		return "unknown"
	}
}

// Category selects which cache TTL and cooldown apply to a call. The set is
// closed: a call either belongs to one of the known categories or carries
// CategoryNone and is never cached or spaced.
type Category uint8

const (
	// CategoryNone disables caching and cooldowns for the call.
	CategoryNone Category = iota

	// CategoryInfo is the device-info endpoint (cached, short TTL).
	CategoryInfo

	// CategoryConfigs is configuration reads (cached, spaced).
	CategoryConfigs

	// CategoryDrives is drive enumeration (spaced, not cached).
	CategoryDrives

	// CategoryFTPList is FTP directory listings (spaced, not cached).
	CategoryFTPList
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryNone:
		return ""
	case CategoryInfo:
		return "info"
	case CategoryConfigs:
		return "configs"
	case CategoryDrives:
		return "drives"
	case CategoryFTPList:
		return "ftp-list"
	default:
		return "unknown"
	}
}

// Descriptor identifies one logical call for admission purposes.
type Descriptor struct {
	// Key is the dedup key: calls with equal keys coalesce and share cache
	// entries. Use RESTKey or FTPKey to derive it.
	Key string

	// Intent is the caller classification.
	Intent Intent

	// Category selects the cache TTL and cooldown rules.
	Category Category
}

// RESTKey derives a dedup key from an HTTP method and request path. The
// method is upper-cased, the path cleaned of duplicate and trailing slashes,
// and query parameters sorted, so that textual variants of the same logical
// call coalesce.
func RESTKey(method, rawPath string) string {
	p := rawPath
	query := ""
	if i := strings.IndexByte(rawPath, '?'); i >= 0 {
		p, query = rawPath[:i], rawPath[i+1:]
	}

	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	p = path.Clean(p)

	key := strings.ToUpper(strings.TrimSpace(method)) + " " + p
	if query != "" {
		if values, err := url.ParseQuery(query); err == nil {
			// Encode sorts by key.
			query = values.Encode()
		}
		key += "?" + query
	}
	return key
}

// FTPKey derives a dedup key from an FTP operation and path.
func FTPKey(op, rawPath string) string {
	p := rawPath
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return "FTP " + strings.ToUpper(strings.TrimSpace(op)) + " " + path.Clean(p)
}

// ftpCategory maps an FTP operation to its cooldown category. Directory
// listings are the only spaced FTP operation.
func ftpCategory(op string) Category {
	switch strings.ToUpper(strings.TrimSpace(op)) {
	case "LIST", "NLST", "MLSD":
		return CategoryFTPList
	default:
		return CategoryNone
	}
}
