package engine

// PrefAny is the explicit "no preference" value. An empty string means the
// same thing: the user never declared one.
const PrefAny = "any"

// Filters are the attributes a queue entry is matched on. Empty fields are
// wildcards.
type Filters struct {
	Gender     string
	Preference string
	Language   string
}

// Compatible reports whether two users may be paired. It is symmetric:
// Compatible(a, b) == Compatible(b, a) for all inputs.
//
// Language must match by equality unless either side left it open. If
// either side has not declared a gender there is nothing to filter on and
// the pair is allowed. Otherwise each side's preference must accept the
// other's gender; a preference accepts everything when unset or "any".
// When both preferences are specific this degenerates to the strict
// cross-match: a.Preference == b.Gender and b.Preference == a.Gender.
func Compatible(a, b Filters) bool {
	if !languageOK(a.Language, b.Language) {
		return false
	}
	if a.Gender == "" || b.Gender == "" {
		return true
	}
	return accepts(a.Preference, b.Gender) && accepts(b.Preference, a.Gender)
}

func accepts(preference, gender string) bool {
	return preference == "" || preference == PrefAny || preference == gender
}

func languageOK(a, b string) bool {
	if a == "" || a == PrefAny || b == "" || b == PrefAny {
		return true
	}
	return a == b
}
