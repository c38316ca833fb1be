package memory

import (
	"strings"

	"github.com/m-mizutani/sribot/pkg/model"
)

// MatchIdentifier reports whether a record is selected by a conversational
// identifier such as "alamat" or an id prefix shown in a listing. A record
// matches when any of the following holds:
//
//   - its text contains identifier, ignoring case
//   - its id starts with identifier
//   - its id contains identifier, ignoring case
//
// The rules are loose on purpose and can select more than one record when
// the identifier is a common substring. An empty identifier matches nothing.
func MatchIdentifier(mem *model.Memory, identifier string) bool {
	if identifier == "" || mem == nil {
		return false
	}

	lower := strings.ToLower(identifier)
	id := string(mem.ID)

	switch {
	case strings.Contains(strings.ToLower(mem.Text), lower):
		return true
	case strings.HasPrefix(id, identifier):
		return true
	case strings.Contains(strings.ToLower(id), lower):
		return true
	}
	return false
}

// ReplaceFragment replaces every case-sensitive occurrence of oldFragment in
// text with newFragment, leaving the rest of the text untouched. ok is false
// when text does not contain oldFragment or oldFragment is empty.
func ReplaceFragment(text, oldFragment, newFragment string) (replaced string, ok bool) {
	if oldFragment == "" || !strings.Contains(text, oldFragment) {
		return text, false
	}
	return strings.ReplaceAll(text, oldFragment, newFragment), true
}
