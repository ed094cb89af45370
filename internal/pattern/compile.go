// Package pattern implements the glob-style pattern store used for
// partner and category recognition, including learning from user
// corrections and negative-signal damping.
package pattern

import (
	"regexp"
	"strings"
	"sync"
)

var (
	cacheMu  sync.RWMutex
	compiled = make(map[string]*regexp.Regexp)
)

// Compile translates a glob into a case-insensitive regexp. '*' matches
// any run of characters; everything else is literal. The same pattern is
// matched against many transactions, so compiled forms are cached.
func Compile(glob string) (*regexp.Regexp, error) {
	cacheMu.RLock()
	re, ok := compiled[glob]
	cacheMu.RUnlock()
	if ok {
		return re, nil
	}

	var b strings.Builder
	b.WriteString("(?i)^")
	for i, part := range strings.Split(glob, "*") {
		if i > 0 {
			b.WriteString(".*")
		}
		b.WriteString(regexp.QuoteMeta(part))
	}
	b.WriteString("$")

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, err
	}

	cacheMu.Lock()
	compiled[glob] = re
	cacheMu.Unlock()
	return re, nil
}

// Match reports whether the glob matches the text. Invalid globs never
// match.
func Match(glob, text string) bool {
	if glob == "" {
		return false
	}
	re, err := Compile(glob)
	if err != nil {
		return false
	}
	return re.MatchString(text)
}
