package quota

import (
	"errors"
	"fmt"
)

var (
	// ErrRecordNotFound is returned by single-record lookups when no
	// record matches the key.
	ErrRecordNotFound = errors.New("quota record not found")

	// ErrDuplicateKey is returned by Store.InsertRecord when a record
	// with the same (scope, feature, user_id, course_id) key already
	// exists. The upsert engine treats it as a concurrent create and
	// retries as an update.
	ErrDuplicateKey = errors.New("quota record key already exists")
)

// InvalidScopeError reports an update whose scope is outside the legal
// set for the endpoint it was submitted to.
type InvalidScopeError struct {
	Scope Scope
	Legal ScopeSet
}

func (e *InvalidScopeError) Error() string {
	return fmt.Sprintf("scope %q not allowed here, supported scopes: %s", e.Scope, e.Legal)
}

// DefinitionNotFoundError reports an update referencing a (scope,
// feature) pair with no catalog entry. Updates may create new record
// instances but never new kinds of quota.
type DefinitionNotFoundError struct {
	Scope   Scope
	Feature *string
}

func (e *DefinitionNotFoundError) Error() string {
	feature := "null"
	if e.Feature != nil {
		feature = *e.Feature
	}
	return fmt.Sprintf("quota definition with scope=%s and feature=%s not found", e.Scope, feature)
}
