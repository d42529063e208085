package shared

import "context"

type sessionContextKey struct{}

// ContextWithSession stores the session in context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the session from context.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}

// Actor identifies the authenticated user performing a request.
type Actor struct {
	UserID         int64
	OrganizationID int64
	FullName       string
}

// ActorFromContext resolves the actor bound to the request session.
// The second return value is false when no user is logged in.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	sess := SessionFromContext(ctx)
	if sess == nil {
		return Actor{}, false
	}
	userID, orgID := sess.User()
	if userID == 0 {
		return Actor{}, false
	}
	return Actor{UserID: userID, OrganizationID: orgID, FullName: sess.Get("full_name")}, true
}
