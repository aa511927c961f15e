package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "splitledger/internal/errors"
	"splitledger/internal/events"
	"splitledger/internal/models"
	"splitledger/internal/pagination"
	"splitledger/internal/services"
)

// --- mock group service ---

type mockGroupService struct {
	createGroupFn      func(userID, name, description string) (*models.Group, error)
	getUserGroupsFn    func(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Group], error)
	getGroupByIDFn     func(userID, groupID string) (*models.Group, error)
	updateGroupFn      func(userID, groupID string, name, description *string) (*models.Group, error)
	deleteGroupFn      func(userID, groupID string) error
	getMembersFn       func(userID, groupID string) ([]models.GroupMember, error)
	addMemberFn        func(userID, groupID string, input services.AddMemberInput) (*models.GroupMember, error)
	updateMemberRoleFn func(userID, groupID, memberUserID string, role models.MemberRole) (*models.GroupMember, error)
	removeMemberFn     func(userID, groupID, memberUserID string) error
	leaveGroupFn       func(userID, groupID string) error
}

func testGroup(id, name string) *models.Group {
	g := &models.Group{Name: name, CreatedBy: testUserID}
	g.ID = id
	return g
}

func (m *mockGroupService) CreateGroup(userID, name, description string) (*models.Group, error) {
	if m.createGroupFn != nil {
		return m.createGroupFn(userID, name, description)
	}
	return testGroup(testGroupID, name), nil
}

func (m *mockGroupService) GetUserGroups(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Group], error) {
	if m.getUserGroupsFn != nil {
		return m.getUserGroupsFn(userID, page)
	}
	resp := pagination.NewPageResponse([]models.Group{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockGroupService) GetGroupByID(userID, groupID string) (*models.Group, error) {
	if m.getGroupByIDFn != nil {
		return m.getGroupByIDFn(userID, groupID)
	}
	return testGroup(groupID, "Trip"), nil
}

func (m *mockGroupService) UpdateGroup(userID, groupID string, name, description *string) (*models.Group, error) {
	if m.updateGroupFn != nil {
		return m.updateGroupFn(userID, groupID, name, description)
	}
	return testGroup(groupID, "Trip"), nil
}

func (m *mockGroupService) DeleteGroup(userID, groupID string) error {
	if m.deleteGroupFn != nil {
		return m.deleteGroupFn(userID, groupID)
	}
	return nil
}

func (m *mockGroupService) GetMembers(userID, groupID string) ([]models.GroupMember, error) {
	if m.getMembersFn != nil {
		return m.getMembersFn(userID, groupID)
	}
	return []models.GroupMember{}, nil
}

func (m *mockGroupService) AddMember(userID, groupID string, input services.AddMemberInput) (*models.GroupMember, error) {
	if m.addMemberFn != nil {
		return m.addMemberFn(userID, groupID, input)
	}
	return &models.GroupMember{GroupID: groupID, UserID: otherUserID, Role: models.MemberRoleMember}, nil
}

func (m *mockGroupService) UpdateMemberRole(userID, groupID, memberUserID string, role models.MemberRole) (*models.GroupMember, error) {
	if m.updateMemberRoleFn != nil {
		return m.updateMemberRoleFn(userID, groupID, memberUserID, role)
	}
	return &models.GroupMember{GroupID: groupID, UserID: memberUserID, Role: role}, nil
}

func (m *mockGroupService) RemoveMember(userID, groupID, memberUserID string) error {
	if m.removeMemberFn != nil {
		return m.removeMemberFn(userID, groupID, memberUserID)
	}
	return nil
}

func (m *mockGroupService) LeaveGroup(userID, groupID string) error {
	if m.leaveGroupFn != nil {
		return m.leaveGroupFn(userID, groupID)
	}
	return nil
}

var _ services.GroupServicer = (*mockGroupService)(nil)

// --- channel publisher ---

type chanPublisher struct {
	ch chan events.Event
}

func newChanPublisher() *chanPublisher {
	return &chanPublisher{ch: make(chan events.Event, 8)}
}

func (p *chanPublisher) Publish(_ context.Context, e events.Event) error {
	p.ch <- e
	return nil
}

func (p *chanPublisher) Close() error { return nil }

func (p *chanPublisher) expect(t *testing.T, eventType string) events.Event {
	t.Helper()
	select {
	case e := <-p.ch:
		if e.Type != eventType {
			t.Errorf("expected %s event, got %s", eventType, e.Type)
		}
		return e
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for %s event", eventType)
		return events.Event{}
	}
}

func setupGroupRouter(handler *GroupHandler) *gin.Engine {
	r := gin.New()
	auth := r.Group("", injectUserID(testUserID))
	auth.POST("/groups", handler.CreateGroup)
	auth.GET("/groups", handler.GetUserGroups)
	auth.GET("/groups/:id", handler.GetGroupByID)
	auth.PUT("/groups/:id", handler.UpdateGroup)
	auth.DELETE("/groups/:id", handler.DeleteGroup)
	auth.GET("/groups/:id/members", handler.GetMembers)
	auth.POST("/groups/:id/members", handler.AddMember)
	auth.PUT("/groups/:id/members/:userId", handler.UpdateMemberRole)
	auth.DELETE("/groups/:id/members/:userId", handler.RemoveMember)
	auth.POST("/groups/:id/leave", handler.LeaveGroup)
	return r
}

func TestGroupHandler_CreateGroup(t *testing.T) {
	t.Run("returns 201 on success", func(t *testing.T) {
		audit := &mockAuditService{}
		r := setupGroupRouter(NewGroupHandler(&mockGroupService{}, audit, events.NopPublisher{}))

		rec := doRequest(r, "POST", "/groups", `{"name":"Trip","description":"Lisbon"}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		group := parseJSON(t, rec)["group"].(map[string]interface{})
		if group["name"] != "Trip" {
			t.Errorf("expected Trip, got %v", group["name"])
		}
		if got := audit.actions(); len(got) != 1 || got[0] != "CREATE_GROUP" {
			t.Errorf("expected CREATE_GROUP audit entry, got %v", got)
		}
	})

	t.Run("returns 400 on short name", func(t *testing.T) {
		r := setupGroupRouter(NewGroupHandler(&mockGroupService{}, &mockAuditService{}, nil))

		rec := doRequest(r, "POST", "/groups", `{"name":"T"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
	})
}

func TestGroupHandler_GetUserGroups(t *testing.T) {
	t.Run("passes pagination", func(t *testing.T) {
		svc := &mockGroupService{
			getUserGroupsFn: func(_ string, page pagination.PageRequest) (*pagination.PageResponse[models.Group], error) {
				if page.Page != 2 || page.PageSize != 5 {
					t.Errorf("unexpected page %+v", page)
				}
				resp := pagination.NewPageResponse([]models.Group{*testGroup(testGroupID, "Trip")}, 2, 5, 6)
				return &resp, nil
			},
		}
		r := setupGroupRouter(NewGroupHandler(svc, &mockAuditService{}, nil))

		rec := doRequest(r, "GET", "/groups?page=2&page_size=5", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if parseJSON(t, rec)["total_pages"] != float64(2) {
			t.Error("expected 2 total pages")
		}
	})

	t.Run("returns 400 on oversized page", func(t *testing.T) {
		r := setupGroupRouter(NewGroupHandler(&mockGroupService{}, &mockAuditService{}, nil))

		rec := doRequest(r, "GET", "/groups?page_size=500", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestGroupHandler_GetGroupByID(t *testing.T) {
	t.Run("returns 400 on invalid id", func(t *testing.T) {
		r := setupGroupRouter(NewGroupHandler(&mockGroupService{}, &mockAuditService{}, nil))

		rec := doRequest(r, "GET", "/groups/abc", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
	})

	t.Run("returns 404 for non-member", func(t *testing.T) {
		svc := &mockGroupService{
			getGroupByIDFn: func(_, _ string) (*models.Group, error) { return nil, apperrors.ErrGroupNotFound },
		}
		r := setupGroupRouter(NewGroupHandler(svc, &mockAuditService{}, nil))

		rec := doRequest(r, "GET", "/groups/"+testGroupID, "")

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "GROUP_NOT_FOUND")
	})
}

func TestGroupHandler_UpdateGroup(t *testing.T) {
	t.Run("returns 403 for non-admin", func(t *testing.T) {
		svc := &mockGroupService{
			updateGroupFn: func(_, _ string, _, _ *string) (*models.Group, error) { return nil, apperrors.ErrNotGroupAdmin },
		}
		r := setupGroupRouter(NewGroupHandler(svc, &mockAuditService{}, nil))

		rec := doRequest(r, "PUT", "/groups/"+testGroupID, `{"name":"Renamed"}`)

		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "NOT_GROUP_ADMIN")
	})
}

func TestGroupHandler_DeleteGroup(t *testing.T) {
	pub := newChanPublisher()
	audit := &mockAuditService{}
	r := setupGroupRouter(NewGroupHandler(&mockGroupService{}, audit, pub))

	rec := doRequest(r, "DELETE", "/groups/"+testGroupID, "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	e := pub.expect(t, events.GroupDeleted)
	if e.GroupID != testGroupID || e.ActorID != testUserID {
		t.Errorf("unexpected event %+v", e)
	}
	if got := audit.actions(); len(got) != 1 || got[0] != "DELETE_GROUP" {
		t.Errorf("expected DELETE_GROUP audit entry, got %v", got)
	}
}

func TestGroupHandler_AddMember(t *testing.T) {
	t.Run("adds by email with default role", func(t *testing.T) {
		svc := &mockGroupService{
			addMemberFn: func(_, groupID string, input services.AddMemberInput) (*models.GroupMember, error) {
				if input.Email != "friend@test.com" || input.Role != "" {
					t.Errorf("unexpected input %+v", input)
				}
				return &models.GroupMember{GroupID: groupID, UserID: otherUserID, Role: models.MemberRoleMember}, nil
			},
		}
		pub := newChanPublisher()
		r := setupGroupRouter(NewGroupHandler(svc, &mockAuditService{}, pub))

		rec := doRequest(r, "POST", "/groups/"+testGroupID+"/members", `{"email":"friend@test.com"}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if e := pub.expect(t, events.MemberAdded); e.ResourceID != otherUserID {
			t.Errorf("expected resource %s, got %s", otherUserID, e.ResourceID)
		}
	})

	t.Run("returns 400 on unknown role", func(t *testing.T) {
		r := setupGroupRouter(NewGroupHandler(&mockGroupService{}, &mockAuditService{}, nil))

		rec := doRequest(r, "POST", "/groups/"+testGroupID+"/members", `{"email":"friend@test.com","role":"owner"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("returns 409 when already a member", func(t *testing.T) {
		svc := &mockGroupService{
			addMemberFn: func(_, _ string, _ services.AddMemberInput) (*models.GroupMember, error) {
				return nil, apperrors.ErrAlreadyMember
			},
		}
		r := setupGroupRouter(NewGroupHandler(svc, &mockAuditService{}, nil))

		rec := doRequest(r, "POST", "/groups/"+testGroupID+"/members", `{"user_id":"`+otherUserID+`"}`)

		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "ALREADY_MEMBER")
	})
}

func TestGroupHandler_UpdateMemberRole(t *testing.T) {
	t.Run("returns 409 on last admin", func(t *testing.T) {
		svc := &mockGroupService{
			updateMemberRoleFn: func(_, _, _ string, _ models.MemberRole) (*models.GroupMember, error) {
				return nil, apperrors.ErrLastAdmin
			},
		}
		r := setupGroupRouter(NewGroupHandler(svc, &mockAuditService{}, nil))

		rec := doRequest(r, "PUT", "/groups/"+testGroupID+"/members/"+testUserID, `{"role":"member"}`)

		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "LAST_ADMIN")
	})

	t.Run("returns 400 on missing role", func(t *testing.T) {
		r := setupGroupRouter(NewGroupHandler(&mockGroupService{}, &mockAuditService{}, nil))

		rec := doRequest(r, "PUT", "/groups/"+testGroupID+"/members/"+otherUserID, `{}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestGroupHandler_RemoveMember(t *testing.T) {
	t.Run("publishes member removed", func(t *testing.T) {
		pub := newChanPublisher()
		r := setupGroupRouter(NewGroupHandler(&mockGroupService{}, &mockAuditService{}, pub))

		rec := doRequest(r, "DELETE", "/groups/"+testGroupID+"/members/"+otherUserID, "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		pub.expect(t, events.MemberRemoved)
	})

	t.Run("returns 409 when member has expenses", func(t *testing.T) {
		svc := &mockGroupService{
			removeMemberFn: func(_, _, _ string) error { return apperrors.ErrMemberHasExpenses },
		}
		r := setupGroupRouter(NewGroupHandler(svc, &mockAuditService{}, nil))

		rec := doRequest(r, "DELETE", "/groups/"+testGroupID+"/members/"+otherUserID, "")

		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "MEMBER_HAS_EXPENSES")
	})
}

func TestGroupHandler_LeaveGroup(t *testing.T) {
	audit := &mockAuditService{}
	r := setupGroupRouter(NewGroupHandler(&mockGroupService{}, audit, nil))

	rec := doRequest(r, "POST", "/groups/"+testGroupID+"/leave", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := audit.actions(); len(got) != 1 || got[0] != "LEAVE_GROUP" {
		t.Errorf("expected LEAVE_GROUP audit entry, got %v", got)
	}
}
