package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/koinonia/backend/internal/friendships"
	"github.com/koinonia/backend/internal/models"
)

type stubFriendService struct {
	sendErr    error
	acceptErr  error
	rejectErr  error
	cancelErr  error
	removeErr  error
	stateErr   error
	listErr    error
	target     models.PublicProfile
	state      models.RelationshipState
	page       models.FriendPage
	received   []models.PublicProfile
	sent       []models.PublicProfile
	suggested  []models.PublicProfile
	lastPair   [2]string
	lastPage   int
	lastSizing int
}

func (s *stubFriendService) SendRequest(_ context.Context, requesterID, targetID string) (models.PublicProfile, error) {
	s.lastPair = [2]string{requesterID, targetID}
	if s.sendErr != nil {
		return models.PublicProfile{}, s.sendErr
	}
	return s.target, nil
}

func (s *stubFriendService) AcceptRequest(_ context.Context, requesterID, receiverID string) error {
	s.lastPair = [2]string{requesterID, receiverID}
	return s.acceptErr
}

func (s *stubFriendService) RejectRequest(_ context.Context, requesterID, receiverID string) error {
	s.lastPair = [2]string{requesterID, receiverID}
	return s.rejectErr
}

func (s *stubFriendService) CancelRequest(_ context.Context, requesterID, receiverID string) error {
	s.lastPair = [2]string{requesterID, receiverID}
	return s.cancelErr
}

func (s *stubFriendService) Unfriend(_ context.Context, userID, friendID string) error {
	s.lastPair = [2]string{userID, friendID}
	return s.removeErr
}

func (s *stubFriendService) RelationshipState(_ context.Context, viewerID, otherID string) (models.RelationshipState, error) {
	s.lastPair = [2]string{viewerID, otherID}
	if s.stateErr != nil {
		return "", s.stateErr
	}
	return s.state, nil
}

func (s *stubFriendService) ListFriends(_ context.Context, userID string, page, pageSize int) (models.FriendPage, error) {
	s.lastPair = [2]string{userID, ""}
	s.lastPage = page
	s.lastSizing = pageSize
	if s.listErr != nil {
		return models.FriendPage{}, s.listErr
	}
	return s.page, nil
}

func (s *stubFriendService) ListReceivedRequests(context.Context, string) ([]models.PublicProfile, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.received, nil
}

func (s *stubFriendService) ListSentRequests(context.Context, string) ([]models.PublicProfile, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.sent, nil
}

func (s *stubFriendService) SuggestFriends(context.Context, string) ([]models.PublicProfile, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.suggested, nil
}

type recordingNotificationStore struct {
	created []models.Notification
	err     error
}

func (s *recordingNotificationStore) Create(_ context.Context, notification models.Notification) error {
	if s.err != nil {
		return s.err
	}
	s.created = append(s.created, notification)
	return nil
}

func (s *recordingNotificationStore) ListForUser(context.Context, string, int) ([]models.Notification, error) {
	return s.created, nil
}

func (s *recordingNotificationStore) MarkRead(context.Context, string, []string) error {
	return nil
}

type recordingPublisher struct {
	events []models.Notification
}

func (p *recordingPublisher) SendFriendEvent(userID, actorID, kind, message string) {
	p.events = append(p.events, models.Notification{UserID: userID, ActorID: actorID, Kind: kind, Message: message})
}

type allowAllLimiter struct{}

func (allowAllLimiter) Allow(string) bool { return true }

type denyLimiter struct{}

func (denyLimiter) Allow(string) bool { return false }

func pairBody(t *testing.T, requester, receiver string) *bytes.Reader {
	t.Helper()
	payload, err := json.Marshal(friendPairRequest{RequesterID: requester, ReceiverID: receiver})
	if err != nil {
		t.Fatalf("marshal pair: %v", err)
	}
	return bytes.NewReader(payload)
}

func TestFriendHandlerRequestCreatesAndNotifies(t *testing.T) {
	service := &stubFriendService{target: models.PublicProfile{ID: "user-b", Name: "Bea Cruz"}}
	notifications := &recordingNotificationStore{}
	publisher := &recordingPublisher{}
	handler := FriendHandler{
		Friends:       service,
		Notifications: notifications,
		Events:        publisher,
		Limiter:       allowAllLimiter{},
		NowFunc:       func() time.Time { return time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC) },
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/friends/request", pairBody(t, "user-a", "user-b"))
	res := httptest.NewRecorder()

	handler.Request(res, req)

	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", res.Code, res.Body.String())
	}
	if service.lastPair != [2]string{"user-a", "user-b"} {
		t.Fatalf("unexpected pair forwarded to service: %v", service.lastPair)
	}

	var body sendRequestResponse
	if err := json.Unmarshal(res.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Target.ID != "user-b" {
		t.Fatalf("expected target profile in response, got %+v", body.Target)
	}

	if len(notifications.created) != 1 {
		t.Fatalf("expected one notification, got %d", len(notifications.created))
	}
	created := notifications.created[0]
	if created.UserID != "user-b" || created.ActorID != "user-a" || created.Kind != models.NotificationFriendRequest {
		t.Fatalf("unexpected notification: %+v", created)
	}
	if len(publisher.events) != 1 || publisher.events[0].UserID != "user-b" {
		t.Fatalf("expected one realtime event for receiver, got %+v", publisher.events)
	}
}

func TestFriendHandlerRequestRateLimited(t *testing.T) {
	service := &stubFriendService{}
	handler := FriendHandler{Friends: service, Limiter: denyLimiter{}}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/friends/request", pairBody(t, "user-a", "user-b"))
	res := httptest.NewRecorder()

	handler.Request(res, req)

	if res.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", res.Code)
	}
	if service.lastPair != [2]string{} {
		t.Fatalf("service should not be called when rate limited")
	}
}

func TestFriendHandlerRequestValidation(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{name: "malformed json", body: "{"},
		{name: "missing requester", body: `{"receiverId":"user-b"}`},
		{name: "missing receiver", body: `{"requesterId":"user-a"}`},
		{name: "blank ids", body: `{"requesterId":"  ","receiverId":" "}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := FriendHandler{Friends: &stubFriendService{}, Limiter: allowAllLimiter{}}
			req := httptest.NewRequest(http.MethodPost, "/api/v1/friends/request", bytes.NewReader([]byte(tc.body)))
			res := httptest.NewRecorder()

			handler.Request(res, req)

			if res.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", res.Code)
			}
		})
	}
}

func TestFriendHandlerErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{name: "self request", err: friendships.ErrSelfRequest, want: http.StatusBadRequest},
		{name: "already friends", err: friendships.ErrAlreadyFriends, want: http.StatusBadRequest},
		{name: "duplicate request", err: friendships.ErrRequestExists, want: http.StatusBadRequest},
		{name: "not friends", err: friendships.ErrNotFriends, want: http.StatusBadRequest},
		{name: "unknown user", err: friendships.ErrUserNotFound, want: http.StatusNotFound},
		{name: "missing request", err: friendships.ErrRequestNotFound, want: http.StatusNotFound},
		{name: "retries exhausted", err: friendships.ErrUnavailable, want: http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			service := &stubFriendService{sendErr: tc.err}
			handler := FriendHandler{Friends: service, Limiter: allowAllLimiter{}}

			req := httptest.NewRequest(http.MethodPost, "/api/v1/friends/request", pairBody(t, "user-a", "user-b"))
			res := httptest.NewRecorder()

			handler.Request(res, req)

			if res.Code != tc.want {
				t.Fatalf("expected %d for %v, got %d", tc.want, tc.err, res.Code)
			}
		})
	}
}

func TestFriendHandlerAcceptNotifiesRequester(t *testing.T) {
	service := &stubFriendService{}
	notifications := &recordingNotificationStore{}
	publisher := &recordingPublisher{}
	handler := FriendHandler{Friends: service, Notifications: notifications, Events: publisher}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/friends/accept", pairBody(t, "user-a", "user-b"))
	res := httptest.NewRecorder()

	handler.Accept(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if len(notifications.created) != 1 {
		t.Fatalf("expected one notification, got %d", len(notifications.created))
	}
	created := notifications.created[0]
	if created.UserID != "user-a" || created.ActorID != "user-b" || created.Kind != models.NotificationFriendAccepted {
		t.Fatalf("accept should notify the original requester, got %+v", created)
	}
}

func TestFriendHandlerAcceptMissingRequest(t *testing.T) {
	service := &stubFriendService{acceptErr: friendships.ErrRequestNotFound}
	notifications := &recordingNotificationStore{}
	handler := FriendHandler{Friends: service, Notifications: notifications}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/friends/accept", pairBody(t, "user-a", "user-b"))
	res := httptest.NewRecorder()

	handler.Accept(res, req)

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
	if len(notifications.created) != 0 {
		t.Fatalf("failed accept must not notify")
	}
}

func TestFriendHandlerRejectAndCancel(t *testing.T) {
	for _, op := range []string{"reject", "cancel"} {
		t.Run(op, func(t *testing.T) {
			service := &stubFriendService{}
			notifications := &recordingNotificationStore{}
			handler := FriendHandler{Friends: service, Notifications: notifications}

			req := httptest.NewRequest(http.MethodPost, "/api/v1/friends/"+op, pairBody(t, "user-a", "user-b"))
			res := httptest.NewRecorder()

			switch op {
			case "reject":
				handler.Reject(res, req)
			case "cancel":
				handler.Cancel(res, req)
			}

			if res.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
			}
			if service.lastPair != [2]string{"user-a", "user-b"} {
				t.Fatalf("unexpected pair: %v", service.lastPair)
			}
			if len(notifications.created) != 0 {
				t.Fatalf("%s should not create notifications", op)
			}
		})
	}
}

func TestFriendHandlerUnfriend(t *testing.T) {
	service := &stubFriendService{}
	handler := FriendHandler{Friends: service}

	payload := []byte(`{"userId":"user-a","friendId":"user-b"}`)
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/friends", bytes.NewReader(payload))
	res := httptest.NewRecorder()

	handler.Unfriend(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if service.lastPair != [2]string{"user-a", "user-b"} {
		t.Fatalf("unexpected pair: %v", service.lastPair)
	}
}

func TestFriendHandlerUnfriendNotFriends(t *testing.T) {
	service := &stubFriendService{removeErr: friendships.ErrNotFriends}
	handler := FriendHandler{Friends: service}

	payload := []byte(`{"userId":"user-a","friendId":"user-b"}`)
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/friends", bytes.NewReader(payload))
	res := httptest.NewRecorder()

	handler.Unfriend(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestFriendHandlerState(t *testing.T) {
	service := &stubFriendService{state: models.RelationRequestSent}
	handler := FriendHandler{Friends: service}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/friends/state?user=user-a&other=user-b", nil)
	res := httptest.NewRecorder()

	handler.State(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}

	var body stateResponse
	if err := json.Unmarshal(res.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.State != models.RelationRequestSent {
		t.Fatalf("expected %q, got %q", models.RelationRequestSent, body.State)
	}
}

func TestFriendHandlerStateMissingParams(t *testing.T) {
	handler := FriendHandler{Friends: &stubFriendService{}}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/friends/state?user=user-a", nil)
	res := httptest.NewRecorder()

	handler.State(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestFriendHandlerListForwardsPaging(t *testing.T) {
	service := &stubFriendService{page: models.FriendPage{
		Items:    []models.PublicProfile{{ID: "user-b"}},
		Page:     2,
		PageSize: 5,
		Total:    11,
	}}
	handler := FriendHandler{Friends: service}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/friends?user=user-a&page=2&pageSize=5", nil)
	res := httptest.NewRecorder()

	handler.List(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if service.lastPage != 2 || service.lastSizing != 5 {
		t.Fatalf("expected page=2 pageSize=5, got page=%d pageSize=%d", service.lastPage, service.lastSizing)
	}

	var body models.FriendPage
	if err := json.Unmarshal(res.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Total != 11 || len(body.Items) != 1 {
		t.Fatalf("unexpected page payload: %+v", body)
	}
}

func TestFriendHandlerRequestLists(t *testing.T) {
	service := &stubFriendService{
		received: []models.PublicProfile{{ID: "user-b"}, {ID: "user-c"}},
		sent:     []models.PublicProfile{{ID: "user-d"}},
	}
	handler := FriendHandler{Friends: service}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/friends/requests/received?user=user-a", nil)
	res := httptest.NewRecorder()
	handler.Received(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var received requestListResponse
	if err := json.Unmarshal(res.Body.Bytes(), &received); err != nil {
		t.Fatalf("decode received: %v", err)
	}
	if received.Count != 2 {
		t.Fatalf("expected 2 received requests, got %d", received.Count)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/friends/requests/sent?user=user-a", nil)
	res = httptest.NewRecorder()
	handler.Sent(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var sent requestListResponse
	if err := json.Unmarshal(res.Body.Bytes(), &sent); err != nil {
		t.Fatalf("decode sent: %v", err)
	}
	if sent.Count != 1 {
		t.Fatalf("expected 1 sent request, got %d", sent.Count)
	}
}

func TestFriendHandlerSuggestions(t *testing.T) {
	service := &stubFriendService{suggested: []models.PublicProfile{{ID: "user-x"}, {ID: "user-y"}}}
	handler := FriendHandler{Friends: service}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/friends/suggestions?user=user-a", nil)
	res := httptest.NewRecorder()

	handler.Suggestions(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var body suggestionsResponse
	if err := json.Unmarshal(res.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode suggestions: %v", err)
	}
	if len(body.Items) != 2 {
		t.Fatalf("expected 2 suggestions, got %d", len(body.Items))
	}
}

func TestFriendHandlerNotificationFailureDoesNotFailRequest(t *testing.T) {
	service := &stubFriendService{target: models.PublicProfile{ID: "user-b"}}
	notifications := &recordingNotificationStore{err: context.DeadlineExceeded}
	handler := FriendHandler{Friends: service, Notifications: notifications, Limiter: allowAllLimiter{}}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/friends/request", pairBody(t, "user-a", "user-b"))
	res := httptest.NewRecorder()

	handler.Request(res, req)

	if res.Code != http.StatusCreated {
		t.Fatalf("notification failure must not fail the request, got %d", res.Code)
	}
}

func TestFriendHandlerMethodNotAllowed(t *testing.T) {
	handler := FriendHandler{Friends: &stubFriendService{}}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/friends/request", nil)
	res := httptest.NewRecorder()
	handler.Request(res, req)
	if res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET request endpoint, got %d", res.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/friends", nil)
	res = httptest.NewRecorder()
	handler.Unfriend(res, req)
	if res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for POST unfriend endpoint, got %d", res.Code)
	}
}
