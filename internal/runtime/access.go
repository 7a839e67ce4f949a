package runtime

import (
	"context"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
)

// AccessLevel returns the access the current root holds on arch.
func (x *Context) AccessLevel(ctx context.Context, arch domain.Architype) domain.AccessLevel {
	return x.accessOf(ctx, domain.AnchorOf(arch))
}

// HasReadAccess reports whether arch is readable from the current root.
func (x *Context) HasReadAccess(ctx context.Context, arch domain.Architype) bool {
	return domain.HasRead(x.AccessLevel(ctx, arch))
}

// HasConnectAccess reports whether arch can be connected from the current root.
func (x *Context) HasConnectAccess(ctx context.Context, arch domain.Architype) bool {
	return domain.HasConnect(x.AccessLevel(ctx, arch))
}

// HasWriteAccess reports whether arch is writable from the current root.
func (x *Context) HasWriteAccess(ctx context.Context, arch domain.Architype) bool {
	return domain.HasWrite(x.AccessLevel(ctx, arch))
}

func (x *Context) accessOf(ctx context.Context, a domain.Anchored) domain.AccessLevel {
	requester := x.root.ID
	if level := domain.ResolveAccess(requester, a, nil); level == domain.Write {
		return level
	}
	var owner domain.Anchored
	if rootID := a.Base().RootID; !rootID.IsZero() {
		// A dangling owner contributes nothing.
		if o, err := x.mem.Get(ctx, rootID); err == nil {
			owner = o
		}
	}
	return domain.ResolveAccess(requester, a, owner)
}

// check reports whether the current root holds at least need on a. A denial
// is not an error; it is logged and reported through OnAccessDenied.
func (x *Context) check(ctx context.Context, op string, a domain.Anchored, need domain.AccessLevel) bool {
	granted := x.accessOf(ctx, a)
	if granted >= need {
		return true
	}
	x.denied(ctx, op, a, need, granted)
	return false
}

func (x *Context) denied(ctx context.Context, op string, a domain.Anchored, need, granted domain.AccessLevel) {
	base := a.Base()
	x.logger.Debug("access denied", "op", op, "target", base.String(), "required", need, "granted", granted)
	if x.hooks.OnAccessDenied != nil {
		x.hooks.OnAccessDenied(ctx, &domain.AccessEvent{
			EventBase:  domain.EventBase{Timestamp: time.Now(), Type: domain.EventAccessDenied, RootID: x.root.ID},
			Operation:  op,
			TargetID:   base.ID,
			TargetType: base.Type,
			Required:   need,
			Granted:    granted,
		})
	}
}

// owns reports whether the current root may change a's permission.
func (x *Context) owns(a domain.Anchored) bool {
	base := a.Base()
	return !base.Persistent ||
		x.root.ID == domain.SystemRootID ||
		x.root.ID == base.RootID ||
		x.root.ID == base.ID
}

func (x *Context) managePermission(ctx context.Context, op string, arch domain.Architype, change func(*domain.Permission)) bool {
	a := domain.AnchorOf(arch)
	if !x.owns(a) {
		// Only the owner may change permissions, whatever the granted level.
		x.denied(ctx, op, a, domain.Write, x.accessOf(ctx, a))
		return false
	}
	change(&a.Base().Access)
	return true
}

// Grant sets the default access every root has on arch.
func (x *Context) Grant(ctx context.Context, arch domain.Architype, level domain.AccessLevel) bool {
	return x.managePermission(ctx, "grant", arch, func(p *domain.Permission) {
		p.All = level
	})
}

// Revoke removes the default access on arch.
func (x *Context) Revoke(ctx context.Context, arch domain.Architype) bool {
	return x.managePermission(ctx, "revoke", arch, func(p *domain.Permission) {
		p.All = domain.NoAccess
	})
}

// AllowRoot gives root a per-root override on arch.
func (x *Context) AllowRoot(ctx context.Context, arch domain.Architype, root domain.ID, level domain.AccessLevel) bool {
	return x.managePermission(ctx, "allow_root", arch, func(p *domain.Permission) {
		p.Allow(root, level)
	})
}

// DisallowRoot removes root's per-root override on arch.
func (x *Context) DisallowRoot(ctx context.Context, arch domain.Architype, root domain.ID) bool {
	return x.managePermission(ctx, "disallow_root", arch, func(p *domain.Permission) {
		p.Disallow(root)
	})
}
