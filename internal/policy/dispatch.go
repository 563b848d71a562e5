package policy

import (
	"context"
	"strings"
)

// matchesPolicy inspects the section's namespaced keys and requires every
// present namespace's matcher to accept the channel. An unrecognized
// namespace makes the whole policy a non-match with a warning; it does not
// fail the channel. Unknown keys inside a recognized namespace do.
func (r *Resolver) matchesPolicy(ctx context.Context, channel Channel, name string, sec *Section) (bool, error) {
	seen := make(map[string]bool)
	var namespaces []string
	for _, key := range sec.Keys() {
		ns, _, found := strings.Cut(key, ".")
		if !found || seen[ns] {
			continue
		}
		seen[ns] = true
		namespaces = append(namespaces, ns)
	}

	for _, ns := range namespaces {
		if ns != "chan" && ns != "node" {
			r.logger.Printf("unknown namespace %q in policy %q", ns, name)
			return false, nil
		}
	}

	for _, ns := range namespaces {
		var (
			ok  bool
			err error
		)
		switch ns {
		case "chan":
			ok, err = r.matchChannel(ctx, channel, sec)
		case "node":
			ok, err = r.matchNode(ctx, channel, sec)
		}
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// validateKeys rejects any key under the given namespace that is not in the
// accepted set.
func validateKeys(sec *Section, namespace string, accepted map[string]bool) error {
	prefix := namespace + "."
	for _, key := range sec.Keys() {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if !accepted[strings.TrimPrefix(key, prefix)] {
			return &UnknownPropertyError{Key: key}
		}
	}
	return nil
}

// UnknownPropertyError reports an option key outside its namespace's accepted
// set. It aborts the channel's resolution.
type UnknownPropertyError struct {
	Key string
}

func (e *UnknownPropertyError) Error() string {
	return "unknown property \"" + e.Key + "\""
}
