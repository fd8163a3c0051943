package coach

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakeIdentity struct {
	users     map[string]*User
	createErr error
	created   []string
	deleted   []string
}

func (f *fakeIdentity) GetUser(ctx context.Context, token string) (*User, error) {
	if u, ok := f.users[token]; ok {
		return u, nil
	}
	return nil, ErrInvalidToken
}

func (f *fakeIdentity) CreateUser(ctx context.Context, email, password string, metadata map[string]any) (*User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, email)
	return &User{ID: "auth-" + email, Email: email}, nil
}

func (f *fakeIdentity) DeleteUser(ctx context.Context, userID string) error {
	f.deleted = append(f.deleted, userID)
	return nil
}

type fakeRepo struct {
	admins    map[string]bool
	insertErr error
	roleErr   error
	inserted  []NewCoach
	roles     []string
}

func (f *fakeRepo) Get(ctx context.Context, id string) (*Coach, error) { return nil, ErrNotFound }
func (f *fakeRepo) FirstActiveOffer(ctx context.Context, coachID string) (*Offer, error) {
	return nil, ErrOfferNotFound
}
func (f *fakeRepo) Insert(ctx context.Context, c NewCoach) (string, error) {
	if f.insertErr != nil {
		return "", f.insertErr
	}
	f.inserted = append(f.inserted, c)
	return "coach-row-1", nil
}
func (f *fakeRepo) HasRole(ctx context.Context, userID, role string) (bool, error) {
	return f.admins[userID] && role == RoleAdmin, nil
}
func (f *fakeRepo) AddRole(ctx context.Context, userID, role string) error {
	if f.roleErr != nil {
		return f.roleErr
	}
	f.roles = append(f.roles, userID+":"+role)
	return nil
}

func newTestHandler(identity *fakeIdentity, repo *fakeRepo) *Handler {
	return NewHandler(NewService(identity, repo, nil), nil)
}

func postCreateCoach(h *Handler, auth string, body any) *httptest.ResponseRecorder {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/functions/create-coach", bytes.NewReader(data))
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	h.CreateCoach(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

func adminFixtures() (*fakeIdentity, *fakeRepo) {
	identity := &fakeIdentity{users: map[string]*User{
		"admin-token": {ID: "admin-1"},
		"coach-token": {ID: "coach-user"},
	}}
	repo := &fakeRepo{admins: map[string]bool{"admin-1": true}}
	return identity, repo
}

func TestCreateCoachAuthFailures(t *testing.T) {
	identity, repo := adminFixtures()
	h := newTestHandler(identity, repo)
	body := ProvisionRequest{Name: "Sam", Email: "sam@example.com", Password: "pw"}

	rec := postCreateCoach(h, "", body)
	if rec.Code != http.StatusUnauthorized || decodeBody(t, rec)["error"] != "Unauthorized" {
		t.Fatalf("missing header: %d %s", rec.Code, rec.Body.String())
	}

	rec = postCreateCoach(h, "Bearer nope", body)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: expected 401, got %d", rec.Code)
	}

	rec = postCreateCoach(h, "Bearer coach-token", body)
	if rec.Code != http.StatusForbidden || decodeBody(t, rec)["error"] != "Admin access required" {
		t.Fatalf("non-admin: %d %s", rec.Code, rec.Body.String())
	}
	if len(identity.created) != 0 {
		t.Fatal("no account should be created without admin access")
	}
}

func TestCreateCoachMissingFields(t *testing.T) {
	identity, repo := adminFixtures()
	h := newTestHandler(identity, repo)

	rec := postCreateCoach(h, "Bearer admin-token", ProvisionRequest{Name: "Sam", Email: "sam@example.com"})
	if rec.Code != http.StatusBadRequest || decodeBody(t, rec)["error"] != "Missing required fields" {
		t.Fatalf("unexpected response: %d %s", rec.Code, rec.Body.String())
	}
}

func TestCreateCoachSuccess(t *testing.T) {
	identity, repo := adminFixtures()
	h := newTestHandler(identity, repo)

	rec := postCreateCoach(h, "Bearer admin-token", ProvisionRequest{Name: "Sam", Email: "sam@example.com", Password: "pw", BrandName: "Lift Lab"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	out := decodeBody(t, rec)
	if out["success"] != true || out["coach_id"] != "auth-sam@example.com" {
		t.Fatalf("unexpected body: %v", out)
	}
	if len(repo.inserted) != 1 || repo.inserted[0].Plan != PlanBasic || repo.inserted[0].UserID != "auth-sam@example.com" {
		t.Fatalf("unexpected insert: %+v", repo.inserted)
	}
	if len(repo.roles) != 1 || repo.roles[0] != "auth-sam@example.com:coach" {
		t.Fatalf("unexpected roles: %v", repo.roles)
	}
}

func TestCreateCoachIdentityErrorSurfacesMessage(t *testing.T) {
	identity, repo := adminFixtures()
	identity.createErr = &IdentityError{StatusCode: 422, Message: "User already registered"}
	h := newTestHandler(identity, repo)

	rec := postCreateCoach(h, "Bearer admin-token", ProvisionRequest{Name: "Sam", Email: "sam@example.com", Password: "pw"})
	if rec.Code != http.StatusBadRequest || decodeBody(t, rec)["error"] != "User already registered" {
		t.Fatalf("unexpected response: %d %s", rec.Code, rec.Body.String())
	}
}

func TestCreateCoachInsertFailureRemovesAuthUser(t *testing.T) {
	identity, repo := adminFixtures()
	repo.insertErr = errors.New("duplicate key")
	h := newTestHandler(identity, repo)

	rec := postCreateCoach(h, "Bearer admin-token", ProvisionRequest{Name: "Sam", Email: "sam@example.com", Password: "pw"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if len(identity.deleted) != 1 || identity.deleted[0] != "auth-sam@example.com" {
		t.Fatalf("expected auth user rollback, got %v", identity.deleted)
	}
}

func TestCreateCoachRoleFailureStillSucceeds(t *testing.T) {
	identity, repo := adminFixtures()
	repo.roleErr = errors.New("role insert failed")
	h := newTestHandler(identity, repo)

	rec := postCreateCoach(h, "Bearer admin-token", ProvisionRequest{Name: "Sam", Email: "sam@example.com", Password: "pw"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
