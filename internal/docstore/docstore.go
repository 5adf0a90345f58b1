// Package docstore is a small schema-less document store contract with
// single-document atomic updates and live queries. Two backends implement it:
// SQLiteStore (JSON documents in the application database) and MongoStore.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	ErrNotFound      = errors.New("document not found")
	ErrTooManyValues = errors.New("too many values in filter")
	ErrInvalidField  = errors.New("invalid field name")
	ErrNotObject     = errors.New("document must encode to a JSON object")

	// ErrPartial marks a multi-document sequence that stopped after some
	// writes had already been applied. Nothing is rolled back.
	ErrPartial = errors.New("operation partially applied")
)

// MaxInValues bounds the number of values in an In filter. Larger sets must
// be split with Chunk and queried batch by batch.
const MaxInValues = 10

// Snapshot is one document as read from the store.
type Snapshot struct {
	ID   string
	Data json.RawMessage
}

// DataTo decodes the document body into v.
func (s Snapshot) DataTo(v any) error {
	if err := json.Unmarshal(s.Data, v); err != nil {
		return fmt.Errorf("decode document %s: %w", s.ID, err)
	}
	return nil
}

// Decode converts snapshots into typed values. setID, when non-nil, copies
// each snapshot's id into its value.
func Decode[T any](snaps []Snapshot, setID func(*T, string)) ([]T, error) {
	out := make([]T, 0, len(snaps))
	for _, s := range snaps {
		var v T
		if err := s.DataTo(&v); err != nil {
			return nil, err
		}
		if setID != nil {
			setID(&v, s.ID)
		}
		out = append(out, v)
	}
	return out, nil
}

type Op int

const (
	OpEq Op = iota
	OpIn
)

// Filter is one query predicate. Filters passed together are ANDed.
type Filter struct {
	Field  string
	Op     Op
	Value  any
	Values []string
}

// Eq matches documents whose field equals value. A nil value matches
// documents where the field is null or missing.
func Eq(field string, value any) Filter {
	return Filter{Field: field, Op: OpEq, Value: value}
}

// In matches documents whose field equals any of values.
func In(field string, values ...string) Filter {
	return Filter{Field: field, Op: OpIn, Values: values}
}

var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func validateField(field string) error {
	if !fieldPattern.MatchString(field) {
		return fmt.Errorf("%w: %q", ErrInvalidField, field)
	}
	return nil
}

func (f Filter) validate() error {
	if err := validateField(f.Field); err != nil {
		return err
	}
	if f.Op == OpIn && len(f.Values) > MaxInValues {
		return fmt.Errorf("%w: %d values for %s, max %d", ErrTooManyValues, len(f.Values), f.Field, MaxInValues)
	}
	return nil
}

// Store is the document store used by the managers.
type Store interface {
	NewID() string
	Get(ctx context.Context, collection, id string) (*Snapshot, error)
	Query(ctx context.Context, collection string, filters ...Filter) ([]Snapshot, error)
	Set(ctx context.Context, collection, id string, value any) error
	ArrayUnion(ctx context.Context, collection, id, field string, values ...string) error
	ArrayRemove(ctx context.Context, collection, id, field string, values ...string) error
	Delete(ctx context.Context, collection, id string) error
	Watch(ctx context.Context, collection string, filters ...Filter) (*Subscription, error)
}

// Path joins collection and document ids into a sub-collection path, e.g.
// Path("households", id, "activities").
func Path(segments ...string) string {
	return strings.Join(segments, "/")
}

// Chunk splits values into batches of at most size elements.
func Chunk(values []string, size int) [][]string {
	if size <= 0 {
		size = MaxInValues
	}
	var out [][]string
	for len(values) > size {
		out = append(out, values[:size:size])
		values = values[size:]
	}
	if len(values) > 0 {
		out = append(out, values)
	}
	return out
}

func encodeObject(value any) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	if len(data) == 0 || data[0] != '{' {
		return nil, ErrNotObject
	}
	return data, nil
}
