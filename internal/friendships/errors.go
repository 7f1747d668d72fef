package friendships

import "errors"

var (
	// ErrSelfRequest indicates a user attempted a friendship operation on themselves.
	ErrSelfRequest = errors.New("cannot send a friend request to yourself")
	// ErrUserNotFound indicates a participant does not exist or is not active.
	ErrUserNotFound = errors.New("user not found or inactive")
	// ErrAlreadyFriends indicates the pair already holds a friendship edge.
	ErrAlreadyFriends = errors.New("users are already friends")
	// ErrRequestExists indicates a pending request already exists between the pair, in either direction.
	ErrRequestExists = errors.New("a pending friend request already exists between these users")
	// ErrRequestNotFound indicates no symmetric pending request exists for the pair.
	ErrRequestNotFound = errors.New("friend request not found")
	// ErrNotFriends indicates no symmetric friendship edge exists for the pair.
	ErrNotFriends = errors.New("users are not friends")
	// ErrTransientConflict reports store contention expected to succeed on retry.
	// It is consumed by the retry loop and never returned to callers.
	ErrTransientConflict = errors.New("transient write conflict")
	// ErrUnavailable indicates the operation kept conflicting until the retry budget ran out.
	ErrUnavailable = errors.New("friendship operation unavailable after retries")
)
