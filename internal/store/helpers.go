package store

import "strings"

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// keyPrefixPattern returns a LIKE pattern, for use with ESCAPE '\', that
// matches cache keys starting with prefix. Requestor ids routinely contain
// underscores, so wildcards in prefix match only themselves.
func keyPrefixPattern(prefix string) string {
	return likeEscaper.Replace(prefix) + "%"
}
