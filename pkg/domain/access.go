package domain

import (
	"fmt"
	"strings"
)

// AccessLevel is an ordered permission tier.
type AccessLevel int

const (
	NoAccess AccessLevel = iota
	Read
	Connect
	Write
)

var accessNames = [...]string{"NO_ACCESS", "READ", "CONNECT", "WRITE"}

func (l AccessLevel) String() string {
	if l < NoAccess || l > Write {
		return fmt.Sprintf("AccessLevel(%d)", int(l))
	}
	return accessNames[l]
}

// MarshalText encodes the level by name.
func (l AccessLevel) MarshalText() ([]byte, error) {
	if l < NoAccess || l > Write {
		return nil, fmt.Errorf("invalid access level %d", int(l))
	}
	return []byte(accessNames[l]), nil
}

// UnmarshalText decodes a level name (case-insensitive).
func (l *AccessLevel) UnmarshalText(text []byte) error {
	level, err := ParseAccessLevel(string(text))
	if err != nil {
		return err
	}
	*l = level
	return nil
}

// ParseAccessLevel parses NO_ACCESS, READ, CONNECT or WRITE.
func ParseAccessLevel(s string) (AccessLevel, error) {
	for i, name := range accessNames {
		if strings.EqualFold(s, name) {
			return AccessLevel(i), nil
		}
	}
	return NoAccess, fmt.Errorf("unknown access level %q", s)
}

// Permission is the access policy attached to every anchor.
// A missing entry in Roots means "no override", not NoAccess.
type Permission struct {
	All   AccessLevel        `json:"all"`
	Roots map[ID]AccessLevel `json:"roots,omitempty"`
}

// Override returns the per-root override for root, if any.
func (p Permission) Override(root ID) (AccessLevel, bool) {
	level, ok := p.Roots[root]
	return level, ok
}

// Allow records a per-root override.
func (p *Permission) Allow(root ID, level AccessLevel) {
	if p.Roots == nil {
		p.Roots = make(map[ID]AccessLevel)
	}
	p.Roots[root] = level
}

// Disallow removes the per-root override for root.
func (p *Permission) Disallow(root ID) {
	delete(p.Roots, root)
}

// Clone returns a deep copy.
func (p Permission) Clone() Permission {
	out := Permission{All: p.All}
	if len(p.Roots) > 0 {
		out.Roots = make(map[ID]AccessLevel, len(p.Roots))
		for k, v := range p.Roots {
			out.Roots[k] = v
		}
	}
	return out
}

// ResolveAccess computes the access level the requesting root has on target.
// owner is the target's owning root anchor, or nil when it cannot be resolved.
// The function never mutates its arguments.
func ResolveAccess(requester ID, target, owner Anchored) AccessLevel {
	t := target.Base()
	if !t.Persistent {
		return Write
	}
	if requester == SystemRootID || requester == t.RootID || requester == t.ID {
		return Write
	}

	level := t.Access.All
	if owner != nil {
		o := owner.Base()
		level = max(level, o.Access.All)
		if ov, ok := o.Access.Override(requester); ok {
			level = max(level, ov)
		}
	}
	if ov, ok := t.Access.Override(requester); ok {
		level = max(level, ov)
	}
	return level
}

// HasRead reports level > NoAccess.
func HasRead(level AccessLevel) bool { return level > NoAccess }

// HasConnect reports level > Read.
func HasConnect(level AccessLevel) bool { return level > Read }

// HasWrite reports level > Connect.
func HasWrite(level AccessLevel) bool { return level > Connect }
