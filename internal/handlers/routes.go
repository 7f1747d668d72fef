package handlers

import "net/http"

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{}
	auth := AuthHandler{Users: deps.Users, Sessions: deps.Sessions}
	users := UserHandler{Users: deps.Users, Media: deps.Media}
	friends := FriendHandler{
		Friends:       deps.Friends,
		Notifications: deps.Notifications,
		Events:        deps.Events,
		Limiter:       deps.Limiter,
	}
	notifications := NotificationHandler{Notifications: deps.Notifications}

	mux.HandleFunc("/healthz", health.Handle)

	mux.HandleFunc("/api/v1/auth/login", auth.Login)
	mux.HandleFunc("/api/v1/auth/signup", auth.SignUp)
	mux.HandleFunc("/api/v1/auth/refresh", auth.Refresh)
	mux.HandleFunc("/api/v1/auth/password-reset", auth.RequestPasswordReset)

	mux.HandleFunc("/api/v1/users/profile", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			users.Update(w, r)
			return
		}
		users.Profile(w, r)
	})
	mux.HandleFunc("/api/v1/users/avatar", users.Avatar)
	mux.HandleFunc("/api/v1/users/status", users.SetStatus)

	// GET lists friends, DELETE removes one.
	mux.HandleFunc("/api/v1/friends", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			friends.Unfriend(w, r)
			return
		}
		friends.List(w, r)
	})
	mux.HandleFunc("/api/v1/friends/request", friends.Request)
	mux.HandleFunc("/api/v1/friends/accept", friends.Accept)
	mux.HandleFunc("/api/v1/friends/reject", friends.Reject)
	mux.HandleFunc("/api/v1/friends/cancel", friends.Cancel)
	mux.HandleFunc("/api/v1/friends/state", friends.State)
	mux.HandleFunc("/api/v1/friends/requests/received", friends.Received)
	mux.HandleFunc("/api/v1/friends/requests/sent", friends.Sent)
	mux.HandleFunc("/api/v1/friends/suggestions", friends.Suggestions)

	mux.HandleFunc("/api/v1/notifications", notifications.List)
	mux.HandleFunc("/api/v1/notifications/read", notifications.MarkRead)

	if deps.Realtime != nil {
		mux.HandleFunc("/api/v1/ws", deps.Realtime)
	}
}

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Users         UserStore
	Sessions      SessionManager
	Friends       FriendshipService
	Notifications NotificationStore
	Events        EventPublisher
	Media         MediaStorage
	Limiter       RateLimiter
	Realtime      http.HandlerFunc
}
