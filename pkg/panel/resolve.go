package panel

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sw33tLie/ghrenew/pkg/entitlement"
)

var (
	ErrTargetNotFound  = errors.New("target server not found")
	ErrAmbiguousTarget = errors.New("target server name is ambiguous")
)

// ResolveTarget picks the configured server out of the listing. An exact id
// match wins. Otherwise the name is compared case-insensitively; several
// servers with the same name resolve to the most recently created one, as
// long as every one of them carries a creation time.
func ResolveTarget(servers []entitlement.ServerSummary, id, name string) (entitlement.ServerSummary, error) {
	if id != "" {
		for _, s := range servers {
			if s.ID == id {
				return s, nil
			}
		}
		if name == "" {
			return entitlement.ServerSummary{}, fmt.Errorf("%w: id %q", ErrTargetNotFound, id)
		}
	}
	if name == "" {
		return entitlement.ServerSummary{}, fmt.Errorf("%w: no target id or name configured", ErrTargetNotFound)
	}

	var matches []entitlement.ServerSummary
	for _, s := range servers {
		if strings.EqualFold(strings.TrimSpace(s.Name), strings.TrimSpace(name)) {
			matches = append(matches, s)
		}
	}

	switch len(matches) {
	case 0:
		return entitlement.ServerSummary{}, fmt.Errorf("%w: name %q (%d servers listed)", ErrTargetNotFound, name, len(servers))
	case 1:
		return matches[0], nil
	}

	newest := matches[0]
	for _, s := range matches {
		if s.CreatedAt == nil {
			return entitlement.ServerSummary{}, fmt.Errorf("%w: %d servers named %q without creation times", ErrAmbiguousTarget, len(matches), name)
		}
		if s.CreatedAt.After(*newest.CreatedAt) {
			newest = s
		}
	}
	return newest, nil
}
