package http

import (
	"context"

	"github.com/example/librarian/internal/application"
)

type contextKey string

const (
	identityContextKey   contextKey = "identity"
	recordIDContextKey   contextKey = "record_id"
	bookIDContextKey     contextKey = "book_id"
	userIDContextKey     contextKey = "user_id"
	suggestionContextKey contextKey = "suggestion_id"
)

// ContextWithIdentity returns a derived context containing the verified identity.
func ContextWithIdentity(ctx context.Context, identity application.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

// IdentityFromContext extracts the verified identity from context if available.
func IdentityFromContext(ctx context.Context) (application.Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(application.Identity)
	return identity, ok
}

// PrincipalFromContext extracts the authenticated principal from context if available.
func PrincipalFromContext(ctx context.Context) (application.Principal, bool) {
	identity, ok := IdentityFromContext(ctx)
	return identity.Principal, ok
}

// ContextWithRecordID injects the borrow record identifier resolved from the request path.
func ContextWithRecordID(ctx context.Context, recordID string) context.Context {
	return context.WithValue(ctx, recordIDContextKey, recordID)
}

// RecordIDFromContext extracts a borrow record identifier previously associated with the context.
func RecordIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(recordIDContextKey).(string)
	return id, ok
}

// ContextWithBookID injects the book identifier resolved from the request path.
func ContextWithBookID(ctx context.Context, bookID string) context.Context {
	return context.WithValue(ctx, bookIDContextKey, bookID)
}

// BookIDFromContext extracts a book identifier previously associated with the context.
func BookIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(bookIDContextKey).(string)
	return id, ok
}

// ContextWithUserID injects the user identifier resolved from the request path.
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

// UserIDFromContext extracts a user identifier previously associated with the context.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDContextKey).(string)
	return id, ok
}

// ContextWithSuggestionID injects the suggestion identifier resolved from the request path.
func ContextWithSuggestionID(ctx context.Context, suggestionID string) context.Context {
	return context.WithValue(ctx, suggestionContextKey, suggestionID)
}

// SuggestionIDFromContext extracts a suggestion identifier previously associated with the context.
func SuggestionIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(suggestionContextKey).(string)
	return id, ok
}
