// Package access stamps every write with the acting owner and scopes every read to it.
//
// The owner tag travels in the request context. Services call Require before touching
// any repository, so an unscoped call never leaves the process. Repositories receive the
// tag explicitly and filter on it; the database enforces the same rule independently
// through row-level security.
package access

import (
	"context"
	"errors"
	"strings"
)

// ErrNoOwner is returned when an operation is attempted without an authenticated owner.
var ErrNoOwner = errors.New("user not authenticated")

// Tag identifies the owner of a record: the authenticated user's email, lower-cased.
type Tag string

func (t Tag) String() string { return string(t) }

// NewTag normalises an email into a Tag.
func NewTag(email string) Tag {
	return Tag(strings.ToLower(strings.TrimSpace(email)))
}

type ctxKey struct{}

// WithOwner returns a copy of ctx carrying the owner tag.
func WithOwner(ctx context.Context, tag Tag) context.Context {
	return context.WithValue(ctx, ctxKey{}, tag)
}

// FromContext returns the owner tag carried by ctx, or ErrNoOwner.
func FromContext(ctx context.Context) (Tag, error) {
	if ctx == nil {
		return "", ErrNoOwner
	}
	tag, _ := ctx.Value(ctxKey{}).(Tag)
	if strings.TrimSpace(string(tag)) == "" {
		return "", ErrNoOwner
	}
	return tag, nil
}

// Require is FromContext under the name services use as their first statement.
func Require(ctx context.Context) (Tag, error) {
	return FromContext(ctx)
}

// Owned is implemented by every tenant record.
type Owned interface {
	Owner() Tag
}

// Check verifies that rec belongs to tag; it is the client-side mirror of row-level security.
func Check(tag Tag, rec Owned) error {
	if tag == "" || rec.Owner() != tag {
		return ErrNoOwner
	}
	return nil
}
