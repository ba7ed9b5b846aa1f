package people

import "strings"

// Resolver maps raw participant references (emails, names, aliases) to
// canonical person ids. Lookup maps are built once per discovery run.
type Resolver struct {
	byEmail map[string]string
	byName  map[string]string
}

// NewResolver builds lookup maps over the given persons.
func NewResolver(persons []Person) *Resolver {
	r := &Resolver{
		byEmail: make(map[string]string),
		byName:  make(map[string]string),
	}
	for _, p := range persons {
		for _, email := range p.Emails {
			r.byEmail[strings.ToLower(email)] = p.ID
		}
		if p.CanonicalName != "" {
			r.byName[normalize(p.CanonicalName)] = p.ID
		}
		for _, alias := range p.Aliases {
			r.byName[normalize(alias)] = p.ID
		}
	}
	return r
}

// Resolve maps a participant reference to a canonical person id. Tokens
// containing "@" are tried as emails, everything else as a name or alias.
// Returns "" when the participant is unknown.
func (r *Resolver) Resolve(participant string) string {
	if participant == "" {
		return ""
	}
	if strings.Contains(participant, "@") {
		return r.byEmail[normalize(participant)]
	}
	return r.byName[normalize(participant)]
}

// ResolveName maps a display name or alias to a canonical person id,
// never consulting the email map. Used by the slack fallback pass.
func (r *Resolver) ResolveName(name string) string {
	if name == "" {
		return ""
	}
	return r.byName[normalize(name)]
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
