// Package resource binds cancellable asynchronous loads to reactive
// requests.
//
// A Resource watches a request function the same way a computed node watches
// its sources: whenever the reactive state it reads changes the request is
// re-derived, and a request that differs by value supersedes the in-flight
// load and starts a new one. Status, value, and error are plain reactive
// cells, so a view can render a spinner, the data, or a retry affordance
// without any callback plumbing.
//
//	userID := reactive.NewCell(g, 0)
//
//	user := resource.New(g, resource.Config[int, User]{
//	    Request: func() (int, bool) {
//	        id := userID.Get()
//	        return id, id != 0
//	    },
//	    Loader: func(ctx context.Context, id int) (User, error) {
//	        return api.FetchUser(ctx, id)
//	    },
//	})
//
// Supersession is enforced by a generation counter, not by cancellation: a
// completion that belongs to an older generation is discarded outright, so
// even a loader that ignores its context can never publish a stale result.
// Cancellation of the context is layered on top as a best-effort way to stop
// wasted work.
package resource
