package fetch

import "fmt"

// Kind classifies why a fetch ultimately failed.
type Kind int

const (
	KindOther Kind = iota
	KindTimeout
	KindRateLimited
	KindForbidden
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindRateLimited:
		return "rate_limited"
	case KindForbidden:
		return "forbidden"
	default:
		return "other"
	}
}

// Failure is returned after every retry attempt has been exhausted. It
// never escapes as a panic; callers treat it as "no payload this time".
type Failure struct {
	Source   string
	Kind     Kind
	Attempts int
	Err      error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("fetch %s failed after %d attempts (%s): %v", f.Source, f.Attempts, f.Kind, f.Err)
	}
	return fmt.Sprintf("fetch %s failed after %d attempts (%s)", f.Source, f.Attempts, f.Kind)
}

func (f *Failure) Unwrap() error { return f.Err }
