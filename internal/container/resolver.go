package container

import (
	"fmt"
	"log"
)

const (
	// DefaultIDAttribute is the element attribute that carries a container identifier.
	DefaultIDAttribute = "data-container-id"
	// DefaultNameAttribute is the element attribute that carries a container display name.
	DefaultNameAttribute = "data-container-name"
	// DefaultSectionClass classifies the element that encloses one container's controls.
	DefaultSectionClass = "container-section"
	// DefaultMaxDepth bounds the ancestor walk.
	DefaultMaxDepth = 32
)

// Element is one node of the UI hierarchy a gesture landed on. Attributes
// may be absent or stale; a nil *string means absent.
type Element interface {
	Attribute(name string) (*string, error)
	HasClass(class string) (bool, error)
	// Parent returns nil without error at the top of the hierarchy.
	Parent() (Element, error)
}

// InteractionContext is the transient state reached by a user gesture.
// Attributes holds values handed over directly by the caller; Origin is the
// element the gesture fired on. Either may be missing.
type InteractionContext struct {
	Attributes map[string]string
	Origin     Element
}

// Target is what the resolver recovered. Candidate is unvalidated unless
// Source is "ancestor".
type Target struct {
	Candidate *string
	Name      string
	Source    string
	Depth     int
}

// ResolverOptions names the attributes and classification the resolver reads.
type ResolverOptions struct {
	IDAttribute   string
	NameAttribute string
	SectionClass  string
	MaxDepth      int
}

// Resolver maps an interaction context to a container target.
type Resolver struct {
	opts ResolverOptions
}

func NewResolver(opts ResolverOptions) *Resolver {
	if opts.IDAttribute == "" {
		opts.IDAttribute = DefaultIDAttribute
	}
	if opts.NameAttribute == "" {
		opts.NameAttribute = DefaultNameAttribute
	}
	if opts.SectionClass == "" {
		opts.SectionClass = DefaultSectionClass
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	return &Resolver{opts: opts}
}

// Resolve reads the identifier straight off the context and falls back to
// the nearest container-section ancestor of the origin element that carries
// a valid identifier. A present but invalid direct candidate is returned when
// the fallback finds nothing so the validator can reject it by name.
func (r *Resolver) Resolve(ic InteractionContext) (Target, error) {
	primary := Target{Source: "context"}
	if v, ok := ic.Attributes[r.opts.IDAttribute]; ok {
		primary.Candidate = &v
	}
	primary.Name = ic.Attributes[r.opts.NameAttribute]

	if ic.Origin != nil {
		if primary.Candidate == nil {
			primary.Candidate = r.attr(ic.Origin, r.opts.IDAttribute)
		}
		if primary.Name == "" {
			if name := r.attr(ic.Origin, r.opts.NameAttribute); name != nil {
				primary.Name = *name
			}
		}
	}

	if _, err := ValidateID(primary.Candidate); err == nil {
		return primary, nil
	}

	if ic.Origin != nil {
		if found, ok := r.searchAncestors(ic.Origin); ok {
			if found.Name == "" {
				found.Name = primary.Name
			}
			return found, nil
		}
	}

	if primary.Candidate != nil {
		return primary, nil
	}
	return Target{}, fmt.Errorf("%w: no %s on the interaction context or any container section ancestor", ErrUnresolvedTarget, r.opts.IDAttribute)
}

func (r *Resolver) searchAncestors(origin Element) (Target, bool) {
	el := origin
	for depth := 1; depth <= r.opts.MaxDepth; depth++ {
		parent, err := el.Parent()
		if err != nil {
			log.Printf("[resolver] ancestor walk stopped at depth %d: %v", depth, err)
			return Target{}, false
		}
		if parent == nil {
			return Target{}, false
		}
		el = parent

		section, err := el.HasClass(r.opts.SectionClass)
		if err != nil || !section {
			continue
		}
		candidate := r.attr(el, r.opts.IDAttribute)
		if _, err := ValidateID(candidate); err != nil {
			continue
		}
		t := Target{Candidate: candidate, Source: "ancestor", Depth: depth}
		if name := r.attr(el, r.opts.NameAttribute); name != nil {
			t.Name = *name
		}
		return t, true
	}
	return Target{}, false
}

func (r *Resolver) attr(el Element, name string) *string {
	v, err := el.Attribute(name)
	if err != nil {
		return nil
	}
	return v
}
