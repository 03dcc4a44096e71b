package registry

import (
	"path"
	"time"

	"github.com/BaSui01/cancelable/types"
)

// Filter selects operations for List and CancelAll. Zero-valued fields match
// everything. NamePattern is a shell-style glob matched against the
// operation name.
type Filter struct {
	Status      types.OperationStatus
	ParentID    string
	NamePattern string
	MinAge      time.Duration
	MaxAge      time.Duration
}

func (f Filter) matches(snap types.Snapshot) bool {
	if f.Status != "" && snap.Status != f.Status {
		return false
	}
	if f.ParentID != "" && snap.ParentID != f.ParentID {
		return false
	}
	if f.NamePattern != "" {
		ok, err := path.Match(f.NamePattern, snap.Name)
		if err != nil || !ok {
			return false
		}
	}
	age := snap.Age()
	if f.MinAge > 0 && age < f.MinAge {
		return false
	}
	if f.MaxAge > 0 && age > f.MaxAge {
		return false
	}
	return true
}
