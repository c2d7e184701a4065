package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"gigmarket/internal/model"
	"gigmarket/internal/service/engagement"
	"gigmarket/pkg/outbox"
)

var client = engagement.Principal{UserID: 1, Role: "client"}

type mockProjects struct{ mock.Mock }

func (m *mockProjects) CreateProject(ctx context.Context, p engagement.Principal, in engagement.CreateProjectInput) (*model.Project, error) {
	args := m.Called(ctx, p, in)
	v, _ := args.Get(0).(*model.Project)
	return v, args.Error(1)
}

func (m *mockProjects) GetProject(ctx context.Context, p engagement.Principal, id int64) (*engagement.ProjectView, error) {
	args := m.Called(ctx, p, id)
	v, _ := args.Get(0).(*engagement.ProjectView)
	return v, args.Error(1)
}

func (m *mockProjects) ListProjects(ctx context.Context, p engagement.Principal, f engagement.ProjectFilter) ([]*model.Project, error) {
	args := m.Called(ctx, p, f)
	v, _ := args.Get(0).([]*model.Project)
	return v, args.Error(1)
}

func (m *mockProjects) FinalizeProject(ctx context.Context, p engagement.Principal, id int64) error {
	return m.Called(ctx, p, id).Error(0)
}

func (m *mockProjects) CancelProject(ctx context.Context, p engagement.Principal, id int64) error {
	return m.Called(ctx, p, id).Error(0)
}

type mockBids struct{ mock.Mock }

func (m *mockBids) PlaceBid(ctx context.Context, p engagement.Principal, in engagement.PlaceBidInput) (*model.Bid, error) {
	args := m.Called(ctx, p, in)
	v, _ := args.Get(0).(*model.Bid)
	return v, args.Error(1)
}

func (m *mockBids) ListBids(ctx context.Context, p engagement.Principal, f engagement.BidFilter) ([]*model.Bid, error) {
	args := m.Called(ctx, p, f)
	v, _ := args.Get(0).([]*model.Bid)
	return v, args.Error(1)
}

func (m *mockBids) DecideBid(ctx context.Context, p engagement.Principal, bidID int64, action string) (*engagement.Decision, error) {
	args := m.Called(ctx, p, bidID, action)
	v, _ := args.Get(0).(*engagement.Decision)
	return v, args.Error(1)
}

func (m *mockBids) UpdateBid(ctx context.Context, p engagement.Principal, bidID int64, patch engagement.BidPatch) (*model.Bid, error) {
	args := m.Called(ctx, p, bidID, patch)
	v, _ := args.Get(0).(*model.Bid)
	return v, args.Error(1)
}

type mockMilestones struct{ mock.Mock }

func (m *mockMilestones) ListMilestones(ctx context.Context, p engagement.Principal, q engagement.MilestoneQuery) ([]*engagement.MilestoneView, error) {
	args := m.Called(ctx, p, q)
	v, _ := args.Get(0).([]*engagement.MilestoneView)
	return v, args.Error(1)
}

func (m *mockMilestones) CreateMilestone(ctx context.Context, p engagement.Principal, in engagement.CreateMilestoneInput) (*model.Milestone, error) {
	args := m.Called(ctx, p, in)
	v, _ := args.Get(0).(*model.Milestone)
	return v, args.Error(1)
}

func (m *mockMilestones) SubmitMilestone(ctx context.Context, p engagement.Principal, id int64, in engagement.SubmitMilestoneInput) (*model.Milestone, error) {
	args := m.Called(ctx, p, id, in)
	v, _ := args.Get(0).(*model.Milestone)
	return v, args.Error(1)
}

func (m *mockMilestones) ApproveMilestone(ctx context.Context, p engagement.Principal, id int64) (*model.Milestone, error) {
	args := m.Called(ctx, p, id)
	v, _ := args.Get(0).(*model.Milestone)
	return v, args.Error(1)
}

func (m *mockMilestones) ReturnMilestone(ctx context.Context, p engagement.Principal, id int64) (*model.Milestone, error) {
	args := m.Called(ctx, p, id)
	v, _ := args.Get(0).(*model.Milestone)
	return v, args.Error(1)
}

func (m *mockMilestones) UpdateMilestone(ctx context.Context, p engagement.Principal, id int64, patch engagement.MilestonePatch) (*model.Milestone, bool, error) {
	args := m.Called(ctx, p, id, patch)
	v, _ := args.Get(0).(*model.Milestone)
	return v, args.Bool(1), args.Error(2)
}

type mockReplayer struct{ mock.Mock }

func (m *mockReplayer) FailedEvents(ctx context.Context, limit int) ([]*outbox.Event, error) {
	args := m.Called(ctx, limit)
	v, _ := args.Get(0).([]*outbox.Event)
	return v, args.Error(1)
}

func (m *mockReplayer) ReplayEvent(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockReplayer) ReplayFailedEvents(ctx context.Context, limit int) (int, error) {
	args := m.Called(ctx, limit)
	return args.Int(0), args.Error(1)
}

// newEngine authenticates every request as p.
func newEngine(p *engagement.Principal) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if p != nil {
			c.Set(PrincipalKey, *p)
		}
		c.Next()
	})
	return r
}

func do(t *testing.T, r *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w, out
}

func TestStatusFor(t *testing.T) {
	testCases := []struct {
		kind engagement.Kind
		want int
	}{
		{engagement.KindValidation, http.StatusBadRequest},
		{engagement.KindAuthentication, http.StatusUnauthorized},
		{engagement.KindForbidden, http.StatusForbidden},
		{engagement.KindNotFound, http.StatusNotFound},
		{engagement.KindConflict, http.StatusConflict},
		{engagement.KindInternal, http.StatusInternalServerError},
	}
	for _, tc := range testCases {
		t.Run(tc.kind.String(), func(t *testing.T) {
			assert.Equal(t, tc.want, StatusFor(&engagement.Error{Kind: tc.kind, Message: "x"}))
		})
	}
	assert.Equal(t, http.StatusInternalServerError, StatusFor(errors.New("boom")))
}

func TestProjectHandler_Create(t *testing.T) {
	testCases := []struct {
		name     string
		body     string
		mock     func(m *mockProjects)
		wantCode int
		wantBody map[string]any
	}{
		{
			name: "created",
			body: `{"title":"Site","budget_min":1000,"budget_max":2000,"deadline":"2025-12-01","skills":["go"]}`,
			mock: func(m *mockProjects) {
				m.On("CreateProject", mock.Anything, client, mock.MatchedBy(func(in engagement.CreateProjectInput) bool {
					return in.Title == "Site" && in.BudgetMin == 1000 && in.BudgetMax == 2000
				})).Return(&model.Project{ID: 42}, nil)
			},
			wantCode: http.StatusCreated,
			wantBody: map[string]any{"project_id": float64(42)},
		},
		{
			name:     "non-numeric budget",
			body:     `{"title":"Site","budget_min":"lots","budget_max":2000,"deadline":"2025-12-01"}`,
			mock:     func(m *mockProjects) {},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "missing budget",
			body:     `{"title":"Site","budget_max":2000,"deadline":"2025-12-01"}`,
			mock:     func(m *mockProjects) {},
			wantCode: http.StatusBadRequest,
			wantBody: map[string]any{"error": "budget_min and budget_max are required"},
		},
		{
			name: "service validation",
			body: `{"title":"","budget_min":1,"budget_max":2,"deadline":"2025-12-01"}`,
			mock: func(m *mockProjects) {
				m.On("CreateProject", mock.Anything, client, mock.Anything).
					Return(nil, &engagement.Error{Kind: engagement.KindValidation, Message: "title is required"})
			},
			wantCode: http.StatusBadRequest,
			wantBody: map[string]any{"error": "title is required"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			svc := new(mockProjects)
			tc.mock(svc)
			r := newEngine(&client)
			r.POST("/projects", NewProjectHandler(svc, zap.NewNop()).Create)

			w, body := do(t, r, http.MethodPost, "/projects", tc.body)
			assert.Equal(t, tc.wantCode, w.Code)
			if tc.wantBody != nil {
				assert.Equal(t, tc.wantBody, body)
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestProjectHandler_InternalErrorIsNotLeaked(t *testing.T) {
	svc := new(mockProjects)
	svc.On("FinalizeProject", mock.Anything, client, int64(9)).
		Return(&engagement.Error{Kind: engagement.KindInternal, Message: "internal error", Err: errors.New("pq: deadlock")})

	r := newEngine(&client)
	r.POST("/projects/finalize", NewProjectHandler(svc, zap.NewNop()).Finalize)

	w, body := do(t, r, http.MethodPost, "/projects/finalize", `{"project_id":9}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal error", body["error"])
}

func TestBidHandler_Decide(t *testing.T) {
	svc := new(mockBids)
	svc.On("DecideBid", mock.Anything, client, int64(5), "accept").
		Return(&engagement.Decision{Bid: &model.Bid{ID: 5, Status: model.BidStatusAccepted}}, nil)
	svc.On("DecideBid", mock.Anything, client, int64(6), "accept").
		Return(nil, &engagement.Error{Kind: engagement.KindConflict, Message: "project already has an accepted bid"})

	r := newEngine(&client)
	r.PUT("/bids", NewBidHandler(svc, zap.NewNop()).Decide)

	w, body := do(t, r, http.MethodPut, "/bids", `{"bid_id":5,"action":"accept"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])

	w, body = do(t, r, http.MethodPut, "/bids", `{"bid_id":6,"action":"accept"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "project already has an accepted bid", body["error"])

	w, _ = do(t, r, http.MethodPut, "/bids", `{"action":"accept"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBidHandler_DecideLogsRequestAndOutcome(t *testing.T) {
	svc := new(mockBids)
	svc.On("DecideBid", mock.Anything, client, int64(5), "accept").
		Return(&engagement.Decision{Bid: &model.Bid{ID: 5, Status: model.BidStatusAccepted}, MilestonesCreated: 2}, nil)
	svc.On("DecideBid", mock.Anything, client, int64(6), "reject").
		Return(nil, &engagement.Error{Kind: engagement.KindForbidden, Message: "not your project"})

	core, logs := observer.New(zapcore.InfoLevel)
	r := newEngine(&client)
	r.PUT("/bids", NewBidHandler(svc, zap.New(core)).Decide)

	do(t, r, http.MethodPut, "/bids", `{"bid_id":5,"action":"accept"}`)
	require.Equal(t, 1, logs.FilterMessage("DecideBid request received").Len())
	success := logs.FilterMessage("DecideBid: success").All()
	require.Len(t, success, 1)
	assert.Equal(t, int64(2), success[0].ContextMap()["milestones_created"])

	do(t, r, http.MethodPut, "/bids", `{"bid_id":6,"action":"reject"}`)
	rejected := logs.FilterMessage("DecideBid: rejected").All()
	require.Len(t, rejected, 1)
	assert.Equal(t, zapcore.WarnLevel, rejected[0].Level)
	assert.Equal(t, "not your project", rejected[0].ContextMap()["reason"])

	do(t, r, http.MethodPut, "/bids", `{"action":"accept"}`)
	assert.Equal(t, 1, logs.FilterMessage("DecideBid: bid_id and action are required").Len())
}

func TestProjectHandler_FinalizeLogsOutcome(t *testing.T) {
	svc := new(mockProjects)
	svc.On("FinalizeProject", mock.Anything, client, int64(9)).Return(nil)
	svc.On("FinalizeProject", mock.Anything, client, int64(10)).
		Return(&engagement.Error{Kind: engagement.KindInternal, Message: "internal error", Err: errors.New("conn reset")})

	core, logs := observer.New(zapcore.InfoLevel)
	r := newEngine(&client)
	r.POST("/projects/finalize", NewProjectHandler(svc, zap.New(core)).Finalize)

	w, _ := do(t, r, http.MethodPost, "/projects/finalize", `{"project_id":9}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, logs.FilterMessage("FinalizeProject request received").Len())
	assert.Equal(t, 1, logs.FilterMessage("FinalizeProject: success").Len())

	w, _ = do(t, r, http.MethodPost, "/projects/finalize", `{"project_id":10}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	failed := logs.FilterMessage("FinalizeProject: failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, zapcore.ErrorLevel, failed[0].Level)
}

func TestBidHandler_UnauthenticatedCallerReachesService(t *testing.T) {
	svc := new(mockBids)
	svc.On("PlaceBid", mock.Anything, engagement.Principal{}, mock.Anything).
		Return(nil, &engagement.Error{Kind: engagement.KindAuthentication, Message: "authentication required"})

	r := newEngine(nil)
	r.POST("/bids", NewBidHandler(svc, zap.NewNop()).Place)

	w, _ := do(t, r, http.MethodPost, "/bids", `{"project_id":1,"amount":1500,"timeline_days":10,"proposal_text":"hi"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBidHandler_ListEmptyIsArray(t *testing.T) {
	svc := new(mockBids)
	svc.On("ListBids", mock.Anything, client, engagement.BidFilter{ProjectID: 3}).Return(nil, nil)

	r := newEngine(&client)
	r.GET("/bids", NewBidHandler(svc, zap.NewNop()).List)

	w, body := do(t, r, http.MethodGet, "/bids?project_id=3", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{}, body["bids"])

	w, _ = do(t, r, http.MethodGet, "/bids?project_id=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMilestoneHandler_Transition(t *testing.T) {
	contributor := engagement.Principal{UserID: 2, Role: "contributor"}

	testCases := []struct {
		name     string
		body     string
		mock     func(m *mockMilestones)
		wantCode int
	}{
		{
			name: "submit with text notes",
			body: `{"milestone_id":4,"action":"submit","submission_notes":"see link","submission_url":"https://x/y"}`,
			mock: func(m *mockMilestones) {
				m.On("SubmitMilestone", mock.Anything, contributor, int64(4), mock.MatchedBy(func(in engagement.SubmitMilestoneInput) bool {
					return in.Notes != nil && in.Notes.Text == "see link" && *in.URL == "https://x/y"
				})).Return(&model.Milestone{ID: 4, Status: model.MilestoneStatusSubmitted}, nil)
			},
			wantCode: http.StatusOK,
		},
		{
			name: "submit with deliverables",
			body: `{"milestone_id":4,"action":"submit","submission_notes":{"text":"v1","deliverables":[{"name":"Wireframe","required":true,"files":["a.png"]}]}}`,
			mock: func(m *mockMilestones) {
				m.On("SubmitMilestone", mock.Anything, contributor, int64(4), mock.MatchedBy(func(in engagement.SubmitMilestoneInput) bool {
					return in.Notes != nil && len(in.Notes.Deliverables) == 1 && in.Notes.Deliverables[0].Files[0] == "a.png"
				})).Return(&model.Milestone{ID: 4}, nil)
			},
			wantCode: http.StatusOK,
		},
		{
			name:     "malformed notes",
			body:     `{"milestone_id":4,"action":"submit","submission_notes":[1,2]}`,
			mock:     func(m *mockMilestones) {},
			wantCode: http.StatusBadRequest,
		},
		{
			name: "approve not submitted",
			body: `{"milestone_id":4,"action":"approve"}`,
			mock: func(m *mockMilestones) {
				m.On("ApproveMilestone", mock.Anything, contributor, int64(4)).
					Return(nil, &engagement.Error{Kind: engagement.KindConflict, Message: "milestone is not submitted"})
			},
			wantCode: http.StatusConflict,
		},
		{
			name:     "unknown action",
			body:     `{"milestone_id":4,"action":"archive"}`,
			mock:     func(m *mockMilestones) {},
			wantCode: http.StatusBadRequest,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			svc := new(mockMilestones)
			tc.mock(svc)
			r := newEngine(&contributor)
			r.PUT("/milestones", NewMilestoneHandler(svc, zap.NewNop()).Transition)

			w, _ := do(t, r, http.MethodPut, "/milestones", tc.body)
			assert.Equal(t, tc.wantCode, w.Code)
			svc.AssertExpectations(t)
		})
	}
}

func TestMilestoneHandler_UpdateReportsChangeRequest(t *testing.T) {
	contributor := engagement.Principal{UserID: 2, Role: "contributor"}
	title := "Final"
	svc := new(mockMilestones)
	svc.On("UpdateMilestone", mock.Anything, contributor, int64(4), engagement.MilestonePatch{Title: &title}).
		Return(&model.Milestone{ID: 4}, false, nil)

	r := newEngine(&contributor)
	r.PATCH("/milestones", NewMilestoneHandler(svc, zap.NewNop()).Update)

	w, body := do(t, r, http.MethodPatch, "/milestones", `{"milestone_id":4,"title":"Final"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, body["applied"])
}

func TestAdminHandler_ReplayOutboxEvent(t *testing.T) {
	admin := engagement.Principal{UserID: 9, Role: "admin"}
	svc := new(mockReplayer)
	svc.On("ReplayEvent", mock.Anything, int64(3)).Return(nil)
	svc.On("ReplayEvent", mock.Anything, int64(4)).Return(outbox.ErrEventNotFound)

	r := newEngine(&admin)
	r.POST("/admin/outbox/replay", NewAdminHandler(svc, zap.NewNop()).ReplayOutboxEvent)

	w, body := do(t, r, http.MethodPost, "/admin/outbox/replay?id=3", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "replayed", body["status"])

	w, _ = do(t, r, http.MethodPost, "/admin/outbox/replay?id=4", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = do(t, r, http.MethodPost, "/admin/outbox/replay", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
