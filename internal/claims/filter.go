package claims

// Filter restricts which top-level claims an issued token carries
type Filter interface {
	Filter(c Claims) Claims
}

// AllowListFilter keeps only the listed claims
type AllowListFilter struct {
	allowed map[string]bool
}

// NewAllowListFilter creates a filter keeping only names
func NewAllowListFilter(names []string) *AllowListFilter {
	return &AllowListFilter{allowed: toSet(names)}
}

// Filter implements Filter
func (f *AllowListFilter) Filter(c Claims) Claims {
	if c == nil {
		return nil
	}
	out := make(Claims)
	for key, value := range c {
		if f.allowed[key] {
			out[key] = value
		}
	}
	return out
}

// DenyListFilter drops the listed claims
type DenyListFilter struct {
	denied map[string]bool
}

// NewDenyListFilter creates a filter dropping names
func NewDenyListFilter(names []string) *DenyListFilter {
	return &DenyListFilter{denied: toSet(names)}
}

// Filter implements Filter
func (f *DenyListFilter) Filter(c Claims) Claims {
	if c == nil {
		return nil
	}
	out := make(Claims)
	for key, value := range c {
		if !f.denied[key] {
			out[key] = value
		}
	}
	return out
}

// PassthroughFilter keeps every claim
type PassthroughFilter struct{}

// Filter implements Filter
func (PassthroughFilter) Filter(c Claims) Claims {
	return c
}

// NewFilter builds the filter for an allow list and a deny list.
// The allow list, when non-empty, takes precedence.
func NewFilter(allow, deny []string) Filter {
	switch {
	case len(allow) > 0:
		return NewAllowListFilter(allow)
	case len(deny) > 0:
		return NewDenyListFilter(deny)
	default:
		return PassthroughFilter{}
	}
}

func toSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}
