package validator

import (
	"net/http"
	"regexp"
	"strings"
)

// readMethods and writeMethods classify the HTTP methods the path/permission
// claim (x-nmos-<scope>) is checked against.
var (
	readMethods = map[string]bool{
		http.MethodOptions: true,
		http.MethodGet:     true,
		http.MethodHead:    true,
	}
	writeMethods = map[string]bool{
		http.MethodPost:   true,
		http.MethodPut:    true,
		http.MethodPatch:  true,
		http.MethodDelete: true,
	}
)

// stripAPIPrefix removes the leading "/x-nmos/<scope>/v<major>.<minor>/"
// segment from a request path, yielding the candidate the glob list is
// matched against.
func stripAPIPrefix(path, scope string) string {
	prefix := "/x-nmos/" + scope + "/"
	if !strings.HasPrefix(path, prefix) {
		return path
	}
	rest := path[len(prefix):]
	if slash := strings.IndexByte(rest, '/'); slash >= 0 {
		return rest[slash+1:]
	}
	return ""
}

func globMatches(globs []string, candidate string) bool {
	for _, g := range globs {
		if reMatch(g, candidate) {
			return true
		}
	}
	return false
}

func reMatch(glob, candidate string) bool {
	var b strings.Builder
	b.WriteByte('^')
	for _, r := range glob {
		if r == '*' {
			b.WriteString(".*")
			continue
		}
		b.WriteString(regexp.QuoteMeta(string(r)))
	}
	b.WriteByte('$')
	re, err := regexp.Compile(b.String())
	if err != nil {
		return false
	}
	return re.MatchString(candidate)
}
