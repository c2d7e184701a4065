package engagement

import (
	"testing"

	"github.com/stretchr/testify/require"

	"gigmarket/internal/model"
	"gigmarket/internal/progress"
)

// started returns a project with alice's bid accepted and its milestones.
func (f *fixture) started(description string) (*model.Project, *Decision) {
	p := f.project(description)
	d := f.accept(f.bid(f.alice, p.ID, 1500).ID)
	return p, d
}

func (f *fixture) milestones(projectID int64) []*MilestoneView {
	views, err := f.svc.ListMilestones(f.ctx, f.client, MilestoneQuery{ProjectID: projectID})
	require.NoError(f.t, err)
	return views
}

func wireframeNotes() *model.SubmissionNotes {
	return &model.SubmissionNotes{
		Text: "first cut",
		Deliverables: []model.SubmittedDeliverable{
			{Name: "Wireframe", Required: true, Files: []string{"https://files.example.com/wf.png"}},
		},
	}
}

func TestMilestone_ProgressThroughApproval(t *testing.T) {
	f := newFixture(t)
	p, _ := f.started(draftDescription)

	views := f.milestones(p.ID)
	require.Len(t, views, 1)
	m := views[0]
	require.Equal(t, 0, m.Progress)
	require.Equal(t, []model.DeliverableTemplate{{Name: "Wireframe", Required: true}}, m.Deliverables)

	url := "https://files.example.com/bundle.zip"
	submitted, err := f.svc.SubmitMilestone(f.ctx, f.alice, m.ID, SubmitMilestoneInput{Notes: wireframeNotes(), URL: &url})
	require.NoError(t, err)
	require.Equal(t, model.MilestoneStatusSubmitted, submitted.Status)
	require.NotNil(t, submitted.SubmittedAt)
	require.Equal(t, 90, f.milestones(p.ID)[0].Progress)
	require.Contains(t, f.sentTypes(f.client.UserID), model.NotificationMilestoneSubmitted)

	_, err = f.svc.ApproveMilestone(f.ctx, f.client, m.ID)
	require.NoError(t, err)
	require.Equal(t, 100, f.milestones(p.ID)[0].Progress)
	require.Contains(t, f.sentTypes(f.alice.UserID), model.NotificationMilestoneApproved)

	_, err = f.svc.SubmitMilestone(f.ctx, f.alice, m.ID, SubmitMilestoneInput{Notes: wireframeNotes()})
	require.ErrorIs(t, err, ErrConflict)
}

func TestMilestone_ApproveRequiresSubmitted(t *testing.T) {
	f := newFixture(t)
	p, _ := f.started(draftDescription)
	m := f.milestones(p.ID)[0]

	_, err := f.svc.ApproveMilestone(f.ctx, f.client, m.ID)
	require.ErrorIs(t, err, ErrConflict)
	_, err = f.svc.ReturnMilestone(f.ctx, f.client, m.ID)
	require.ErrorIs(t, err, ErrConflict)
}

func TestMilestone_ReturnKeepsNotes(t *testing.T) {
	f := newFixture(t)
	p, _ := f.started(draftDescription)
	m := f.milestones(p.ID)[0]

	_, err := f.svc.SubmitMilestone(f.ctx, f.alice, m.ID, SubmitMilestoneInput{Notes: wireframeNotes()})
	require.NoError(t, err)

	returned, err := f.svc.ReturnMilestone(f.ctx, f.client, m.ID)
	require.NoError(t, err)
	require.Equal(t, model.MilestoneStatusOpen, returned.Status)
	require.NotNil(t, returned.SubmissionNotes)

	notes, ok := progress.ParseNotes(returned.SubmissionNotes)
	require.True(t, ok)
	require.Equal(t, "first cut", notes.Text)
	require.Contains(t, f.sentTypes(f.alice.UserID), model.NotificationMilestoneReturned)
}

func TestMilestone_SubmitAuthorization(t *testing.T) {
	f := newFixture(t)
	p, _ := f.started(draftDescription)
	m := f.milestones(p.ID)[0]

	_, err := f.svc.SubmitMilestone(f.ctx, f.bob, m.ID, SubmitMilestoneInput{})
	require.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.SubmitMilestone(f.ctx, f.client, m.ID, SubmitMilestoneInput{})
	require.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.ApproveMilestone(f.ctx, f.alice, m.ID)
	require.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.SubmitMilestone(f.ctx, f.alice, 9999, SubmitMilestoneInput{})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMilestone_ListRequiresParty(t *testing.T) {
	f := newFixture(t)
	p, d := f.started(draftDescription)

	_, err := f.svc.ListMilestones(f.ctx, f.bob, MilestoneQuery{ProjectID: p.ID})
	require.ErrorIs(t, err, ErrForbidden)

	views, err := f.svc.ListMilestones(f.ctx, f.alice, MilestoneQuery{AssignmentID: d.Assignment.ID})
	require.NoError(t, err)
	require.Len(t, views, 1)

	_, err = f.svc.ListMilestones(f.ctx, f.alice, MilestoneQuery{})
	require.ErrorIs(t, err, ErrValidation)

	unassigned := f.project("")
	views, err = f.svc.ListMilestones(f.ctx, f.client, MilestoneQuery{ProjectID: unassigned.ID})
	require.NoError(t, err)
	require.Empty(t, views)
}

func TestMilestone_ContributorEditBecomesChangeRequest(t *testing.T) {
	f := newFixture(t)
	p, _ := f.started(draftDescription)
	m := f.milestones(p.ID)[0]
	due := "11/15/2025"

	got, applied, err := f.svc.UpdateMilestone(f.ctx, f.alice, m.ID, MilestonePatch{DueDate: &due})
	require.NoError(t, err)
	require.False(t, applied)
	require.Equal(t, "2025-10-01", got.DueDate)
	require.NotNil(t, got.ChangeRequest)
	require.Equal(t, "2025-11-15", *got.ChangeRequest.DueDate)
	require.Equal(t, f.alice.UserID, got.ChangeRequest.RequestedBy)
	require.Contains(t, f.sentTypes(f.client.UserID), model.NotificationMilestoneChangeRequested)

	got, applied, err = f.svc.UpdateMilestone(f.ctx, f.client, m.ID, MilestonePatch{DueDate: &due})
	require.NoError(t, err)
	require.True(t, applied)
	require.Equal(t, "2025-11-15", got.DueDate)
	require.Nil(t, got.ChangeRequest)
	require.Contains(t, f.sentTypes(f.alice.UserID), model.NotificationMilestoneUpdated)

	_, _, err = f.svc.UpdateMilestone(f.ctx, f.bob, m.ID, MilestonePatch{DueDate: &due})
	require.ErrorIs(t, err, ErrForbidden)

	_, _, err = f.svc.UpdateMilestone(f.ctx, f.client, m.ID, MilestonePatch{})
	require.ErrorIs(t, err, ErrValidation)
}

func TestMilestone_RenameKeepsTemplate(t *testing.T) {
	f := newFixture(t)
	p, d := f.started(draftDescription)
	m := f.milestones(p.ID)[0]
	require.Equal(t, "Draft", m.TemplateTitle)

	title := "Draft v2"
	_, applied, err := f.svc.UpdateMilestone(f.ctx, f.client, m.ID, MilestonePatch{Title: &title})
	require.NoError(t, err)
	require.True(t, applied)

	_, err = f.svc.SubmitMilestone(f.ctx, f.alice, m.ID, SubmitMilestoneInput{})
	require.NoError(t, err)

	view := f.milestones(p.ID)[0]
	require.Equal(t, "Draft v2", view.Title)
	require.Equal(t, []model.DeliverableTemplate{{Name: "Wireframe", Required: true}}, view.Deliverables)
	require.Equal(t, 0, view.Progress)

	_, err = f.svc.SubmitMilestone(f.ctx, f.alice, m.ID, SubmitMilestoneInput{Notes: wireframeNotes()})
	require.NoError(t, err)
	require.Equal(t, 90, f.milestones(p.ID)[0].Progress)

	// re-accepting does not bring the renamed template back
	again, err := f.svc.DecideBid(f.ctx, f.client, d.Bid.ID, ActionAccept)
	require.NoError(t, err)
	require.Zero(t, again.MilestonesCreated)
	require.Len(t, f.milestones(p.ID), 1)
}

func TestMilestone_CreatePath(t *testing.T) {
	f := newFixture(t)
	p, d := f.started("")
	require.Zero(t, d.MilestonesCreated)

	m, err := f.svc.CreateMilestone(f.ctx, f.client, CreateMilestoneInput{ProjectID: p.ID, Title: "Delivery", DueDate: "2025-11-30"})
	require.NoError(t, err)
	require.Equal(t, d.Assignment.ID, m.AssignmentID)
	require.Contains(t, f.sentTypes(f.alice.UserID), model.NotificationMilestoneCreated)

	_, err = f.svc.CreateMilestone(f.ctx, f.client, CreateMilestoneInput{ProjectID: p.ID, Title: "Delivery", DueDate: "11/30/2025"})
	require.ErrorIs(t, err, ErrConflict)

	_, err = f.svc.CreateMilestone(f.ctx, f.alice, CreateMilestoneInput{ProjectID: p.ID, Title: "Mine", DueDate: "2025-11-30"})
	require.ErrorIs(t, err, ErrForbidden)

	// without a template a submitted milestone sits at the flat 90
	_, err = f.svc.SubmitMilestone(f.ctx, f.alice, m.ID, SubmitMilestoneInput{})
	require.NoError(t, err)
	require.Equal(t, 90, f.milestones(p.ID)[0].Progress)
}

func TestFinalize_Gate(t *testing.T) {
	f := newFixture(t)
	p, _ := f.started(draftDescription)
	m := f.milestones(p.ID)[0]

	err := f.svc.FinalizeProject(f.ctx, f.client, p.ID)
	require.ErrorIs(t, err, ErrValidation)
	require.Contains(t, PublicMessage(err), "0 of 1")

	_, err = f.svc.SubmitMilestone(f.ctx, f.alice, m.ID, SubmitMilestoneInput{Notes: wireframeNotes()})
	require.NoError(t, err)
	require.ErrorIs(t, f.svc.FinalizeProject(f.ctx, f.client, p.ID), ErrValidation)

	_, err = f.svc.ApproveMilestone(f.ctx, f.client, m.ID)
	require.NoError(t, err)

	require.ErrorIs(t, f.svc.FinalizeProject(f.ctx, f.alice, p.ID), ErrForbidden)
	require.NoError(t, f.svc.FinalizeProject(f.ctx, f.client, p.ID))
	require.Equal(t, model.ProjectStatusCompleted, f.state().projects[p.ID].Status)
	require.Contains(t, f.sentTypes(f.alice.UserID), model.NotificationProjectCompleted)

	require.ErrorIs(t, f.svc.FinalizeProject(f.ctx, f.client, p.ID), ErrConflict)
}

func TestFinalize_NoMilestones(t *testing.T) {
	f := newFixture(t)
	p, _ := f.started("")
	require.ErrorIs(t, f.svc.FinalizeProject(f.ctx, f.client, p.ID), ErrValidation)

	open := f.project("")
	require.ErrorIs(t, f.svc.FinalizeProject(f.ctx, f.client, open.ID), ErrConflict)
}

// completed runs a single-milestone project through to completion.
func (f *fixture) completed() *model.Project {
	p, _ := f.started(draftDescription)
	m := f.milestones(p.ID)[0]
	_, err := f.svc.SubmitMilestone(f.ctx, f.alice, m.ID, SubmitMilestoneInput{Notes: wireframeNotes()})
	require.NoError(f.t, err)
	_, err = f.svc.ApproveMilestone(f.ctx, f.client, m.ID)
	require.NoError(f.t, err)
	require.NoError(f.t, f.svc.FinalizeProject(f.ctx, f.client, p.ID))
	return p
}

func TestReview_UniquenessAndMeanRating(t *testing.T) {
	f := newFixture(t)

	stars := []int{5, 4, 2}
	for _, s := range stars {
		p := f.completed()
		review, err := f.svc.SubmitReview(f.ctx, f.client, ReviewInput{ProjectID: p.ID, Stars: s, Comment: "thanks"})
		require.NoError(t, err)
		require.Equal(t, f.alice.UserID, review.RevieweeID)

		_, err = f.svc.SubmitReview(f.ctx, f.client, ReviewInput{ProjectID: p.ID, Stars: 1})
		require.ErrorIs(t, err, ErrConflict)
	}

	alice := f.state().users[f.alice.UserID]
	require.InDelta(t, 11.0/3.0, alice.Rating, 1e-9)
	require.Equal(t, 3, alice.RatingCount)

	reviews, err := f.svc.ListReviews(f.ctx, f.bob, f.alice.UserID)
	require.NoError(t, err)
	require.Len(t, reviews, 3)
}

func TestReview_Gate(t *testing.T) {
	f := newFixture(t)
	p, _ := f.started(draftDescription)

	_, err := f.svc.SubmitReview(f.ctx, f.client, ReviewInput{ProjectID: p.ID, Stars: 5})
	require.ErrorIs(t, err, ErrConflict)

	done := f.completed()
	_, err = f.svc.SubmitReview(f.ctx, f.client, ReviewInput{ProjectID: done.ID, Stars: 6})
	require.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.SubmitReview(f.ctx, f.alice, ReviewInput{ProjectID: done.ID, Stars: 5})
	require.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.SubmitReview(f.ctx, f.admin, ReviewInput{ProjectID: done.ID, Stars: 5})
	require.ErrorIs(t, err, ErrForbidden)
}

func TestNotifications_ReadOwnOnly(t *testing.T) {
	f := newFixture(t)
	st := f.store.state
	id := st.id()
	st.notifications[id] = model.Notification{ID: id, UserID: f.alice.UserID, Type: model.NotificationBidAccepted}

	list, err := f.svc.ListNotifications(f.ctx, f.alice, true, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.ErrorIs(t, f.svc.MarkNotificationRead(f.ctx, f.bob, id), ErrNotFound)
	require.NoError(t, f.svc.MarkNotificationRead(f.ctx, f.alice, id))

	list, err = f.svc.ListNotifications(f.ctx, f.alice, true, 0)
	require.NoError(t, err)
	require.Empty(t, list)
}
