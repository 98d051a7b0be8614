package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/securedocs/obo-search-relay/internal/domain/token"
	"github.com/securedocs/obo-search-relay/internal/infra/searchindex"
)

const (
	// MaxTop bounds result counts regardless of caller input.
	MaxTop = 100

	// DefaultTop applies when the caller does not ask for a count.
	DefaultTop = 5
)

// ErrNotFound covers both a document that does not exist and one the
// caller is not authorized to see. The two cases are deliberately
// indistinguishable so existence is never leaked.
var ErrNotFound = errors.New("document not found")

// Projection is a caller-facing view of a document: the id and content
// fields only, with permission fields stripped.
type Projection map[string]any

// StoreErrorKind classifies backing-store failures other than NotFound.
type StoreErrorKind string

const (
	KindStoreTimeout     StoreErrorKind = "timeout"
	KindStoreUnavailable StoreErrorKind = "unavailable"
)

type StoreError struct {
	Kind  StoreErrorKind
	cause error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store operation failed (%s): %v", e.Kind, e.cause)
}

func (e *StoreError) Unwrap() error {
	return e.cause
}

// DocumentStore is the permission-filtered store boundary. The
// credential is the downstream token value, attached out-of-band per
// request; filtering happens inside the store.
type DocumentStore interface {
	Search(ctx context.Context, credential, queryText string, top int) ([]searchindex.Document, error)
	GetDocument(ctx context.Context, credential, id string) (searchindex.Document, error)
	Suggest(ctx context.Context, credential, queryText string, top int) ([]searchindex.Document, error)
}

// Executor runs store operations on behalf of a verified caller. It
// borrows the downstream token for the duration of one call and never
// stores it.
type Executor interface {
	Search(ctx context.Context, tok *token.DownstreamToken, queryText string, top int) ([]Projection, error)
	GetByID(ctx context.Context, tok *token.DownstreamToken, id string) (Projection, error)
	Suggest(ctx context.Context, tok *token.DownstreamToken, queryText string, top int) ([]Projection, error)
}

type executor struct {
	store   DocumentStore
	timeout time.Duration
}

func NewExecutor(store DocumentStore, timeout time.Duration) Executor {
	return &executor{
		store:   store,
		timeout: timeout,
	}
}

func (e *executor) Search(ctx context.Context, tok *token.DownstreamToken, queryText string, top int) ([]Projection, error) {
	ctx, cancel := e.callContext(ctx)
	defer cancel()

	docs, err := e.store.Search(ctx, tok.Value, queryText, ClampTop(top))
	if err != nil {
		return nil, mapStoreError(err)
	}

	return projectAll(docs), nil
}

func (e *executor) GetByID(ctx context.Context, tok *token.DownstreamToken, id string) (Projection, error) {
	ctx, cancel := e.callContext(ctx)
	defer cancel()

	doc, err := e.store.GetDocument(ctx, tok.Value, id)
	if err != nil {
		return nil, mapStoreError(err)
	}

	return project(doc), nil
}

func (e *executor) Suggest(ctx context.Context, tok *token.DownstreamToken, queryText string, top int) ([]Projection, error) {
	ctx, cancel := e.callContext(ctx)
	defer cancel()

	docs, err := e.store.Suggest(ctx, tok.Value, queryText, ClampTop(top))
	if err != nil {
		return nil, mapStoreError(err)
	}

	return projectAll(docs), nil
}

func (e *executor) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, e.timeout)
}

// ClampTop forces the result count into [1, MaxTop].
func ClampTop(top int) int {
	if top <= 0 {
		return DefaultTop
	}
	if top > MaxTop {
		return MaxTop
	}
	return top
}

func projectAll(docs []searchindex.Document) []Projection {
	projections := make([]Projection, 0, len(docs))
	for _, doc := range docs {
		projections = append(projections, project(doc))
	}
	return projections
}

// project strips permission fields and store-internal metadata so no
// caller ever sees who else may read a document.
func project(doc searchindex.Document) Projection {
	p := make(Projection, len(doc))
	for k, v := range doc {
		if k == searchindex.FieldUserIDs || k == searchindex.FieldGroupIDs {
			continue
		}
		if strings.HasPrefix(k, "@") {
			continue
		}
		p[k] = v
	}
	return p
}

func mapStoreError(err error) error {
	switch {
	case errors.Is(err, searchindex.ErrNotFound), errors.Is(err, searchindex.ErrForbidden):
		return ErrNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return &StoreError{Kind: KindStoreTimeout, cause: err}
	default:
		return &StoreError{Kind: KindStoreUnavailable, cause: err}
	}
}
