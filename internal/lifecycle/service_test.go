package lifecycle_test

import (
	"testing"
	"time"

	"civicpulse/backend/internal/config"
	"civicpulse/backend/internal/geomatch"
	"civicpulse/backend/internal/lifecycle"
	"civicpulse/backend/internal/models"
	"civicpulse/backend/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestService(s *MockStorage) *lifecycle.Service {
	matcher := geomatch.NewMatcher(s)
	matcher.Now = func() time.Time { return testNow }
	svc := lifecycle.NewService(s, matcher, config.Default())
	svc.Now = func() time.Time { return testNow }
	return svc
}

func pendingComplaint(id string) *models.Complaint {
	created := testNow.Add(-day(2))
	return &models.Complaint{
		ID:             id,
		Category:       "pothole",
		Status:         models.StatusPending,
		CreatedAt:      created,
		LastActivityAt: created,
		Timeline: []models.TimelineEvent{
			{TS: created, Type: models.EventSubmitted, Actor: models.ActorPublic},
		},
	}
}

func expectSaveAndPublish(s *MockStorage) {
	s.On("SaveComplaint", mock.AnythingOfType("*models.Complaint")).Return(nil).Once()
	s.On("PublishEvent", mock.AnythingOfType("models.ComplaintEvent")).Return(nil).Once()
}

func TestStartProgress_PendingBecomesInProgress(t *testing.T) {
	storageMock := new(MockStorage)
	svc := newTestService(storageMock)

	c := pendingComplaint("c1")
	storageMock.On("GetComplaintByID", "c1").Return(c, nil).Once()
	expectSaveAndPublish(storageMock)

	got, err := svc.StartProgress("c1", "crew assigned")
	require.NoError(t, err)

	assert.Equal(t, models.StatusInProgress, got.Status)
	require.NotNil(t, got.FirstProgressAt)
	assert.Equal(t, testNow, *got.FirstProgressAt)
	assert.Equal(t, testNow, got.LastActivityAt)

	last := got.Timeline[len(got.Timeline)-1]
	assert.Equal(t, models.EventProgressStarted, last.Type)
	assert.Equal(t, models.ActorOfficial, last.Actor)
	assert.Equal(t, "crew assigned", last.Note)
	storageMock.AssertExpectations(t)
}

func TestStartProgress_StalledBecomesRevived(t *testing.T) {
	storageMock := new(MockStorage)
	svc := newTestService(storageMock)

	c := pendingComplaint("c1")
	c.Status = models.StatusStalled
	since := testNow.Add(-day(10))
	c.StalledSince = &since
	storageMock.On("GetComplaintByID", "c1").Return(c, nil).Once()
	expectSaveAndPublish(storageMock)

	got, err := svc.StartProgress("c1", "")
	require.NoError(t, err)

	assert.Equal(t, models.StatusRevived, got.Status)
	require.NotNil(t, got.RevivedSince)
	assert.Equal(t, testNow, *got.RevivedSince)
}

func TestStartProgress_FirstProgressAtIsSetOnce(t *testing.T) {
	storageMock := new(MockStorage)
	svc := newTestService(storageMock)

	first := testNow.Add(-day(30))
	c := pendingComplaint("c1")
	c.Status = models.StatusStalled
	c.FirstProgressAt = &first
	storageMock.On("GetComplaintByID", "c1").Return(c, nil).Once()
	expectSaveAndPublish(storageMock)

	got, err := svc.StartProgress("c1", "")
	require.NoError(t, err)
	assert.Equal(t, first, *got.FirstProgressAt, "SLA clock start must not move")
}

func TestStartProgress_RejectedForInProgressAndResolved(t *testing.T) {
	for _, status := range []string{models.StatusInProgress, models.StatusRevived, models.StatusResolved} {
		storageMock := new(MockStorage)
		svc := newTestService(storageMock)

		c := pendingComplaint("c1")
		c.Status = status
		storageMock.On("GetComplaintByID", "c1").Return(c, nil).Once()

		_, err := svc.StartProgress("c1", "")
		assert.ErrorIs(t, err, lifecycle.ErrInvalidOperation, "status %s", status)
		storageMock.AssertNotCalled(t, "SaveComplaint", mock.Anything)
	}
}

func TestRecordProgress_RevivesStalledComplaint(t *testing.T) {
	storageMock := new(MockStorage)
	svc := newTestService(storageMock)

	c := pendingComplaint("c1")
	c.Status = models.StatusStalled
	storageMock.On("GetComplaintByID", "c1").Return(c, nil).Once()
	expectSaveAndPublish(storageMock)

	got, err := svc.RecordProgress("c1", "repaving started")
	require.NoError(t, err)

	assert.Equal(t, models.StatusRevived, got.Status)
	assert.NotNil(t, got.FirstProgressAt)
	assert.Equal(t, models.EventWorkUpdate, got.Timeline[len(got.Timeline)-1].Type)
}

func TestRecordProgress_RejectedWhenResolved(t *testing.T) {
	storageMock := new(MockStorage)
	svc := newTestService(storageMock)

	c := pendingComplaint("c1")
	c.Status = models.StatusResolved
	storageMock.On("GetComplaintByID", "c1").Return(c, nil).Once()

	_, err := svc.RecordProgress("c1", "")
	assert.ErrorIs(t, err, lifecycle.ErrInvalidOperation)
}

func TestPutOnHold_RequiresReasonAndResumeDate(t *testing.T) {
	storageMock := new(MockStorage)
	svc := newTestService(storageMock)

	_, err := svc.PutOnHold("c1", "", testNow.Add(day(7)))
	assert.ErrorIs(t, err, lifecycle.ErrInvalidOperation)

	_, err = svc.PutOnHold("c1", "monsoon", time.Time{})
	assert.ErrorIs(t, err, lifecycle.ErrInvalidOperation)
	storageMock.AssertNotCalled(t, "GetComplaintByID", mock.Anything)
}

func TestPutOnHold_AppendsHoldWithoutStatusChange(t *testing.T) {
	storageMock := new(MockStorage)
	svc := newTestService(storageMock)

	c := pendingComplaint("c1")
	c.Status = models.StatusInProgress
	storageMock.On("GetComplaintByID", "c1").Return(c, nil).Once()
	expectSaveAndPublish(storageMock)

	resume := testNow.Add(day(14))
	got, err := svc.PutOnHold("c1", "monsoon", resume)
	require.NoError(t, err)

	assert.Equal(t, models.StatusInProgress, got.Status, "hold must not change status")
	require.Len(t, got.HoldPeriods, 1)
	assert.Equal(t, testNow, got.HoldPeriods[0].Start)
	assert.Equal(t, resume, got.HoldPeriods[0].ExpectedResumeAt)
	assert.Nil(t, got.HoldPeriods[0].End, "new hold is open")

	last := got.Timeline[len(got.Timeline)-1]
	assert.Equal(t, models.EventWorkOnHold, last.Type)
	assert.Equal(t, "monsoon", last.Reason)
}

func TestResolve_ClosesOpenHolds(t *testing.T) {
	storageMock := new(MockStorage)
	svc := newTestService(storageMock)

	c := pendingComplaint("c1")
	c.Status = models.StatusInProgress
	c.HoldPeriods = []models.HoldPeriod{{Start: testNow.Add(-day(5)), Reason: "materials"}}
	storageMock.On("GetComplaintByID", "c1").Return(c, nil).Once()
	expectSaveAndPublish(storageMock)

	got, err := svc.Resolve("c1", "fixed")
	require.NoError(t, err)

	assert.Equal(t, models.StatusResolved, got.Status)
	require.NotNil(t, got.HoldPeriods[0].End, "status change supersedes the open hold")
	assert.Equal(t, testNow, *got.HoldPeriods[0].End)
	assert.Equal(t, models.EventResolved, got.Timeline[len(got.Timeline)-1].Type)
}

func TestResolve_RejectedWhenAlreadyResolved(t *testing.T) {
	storageMock := new(MockStorage)
	svc := newTestService(storageMock)

	c := pendingComplaint("c1")
	c.Status = models.StatusResolved
	storageMock.On("GetComplaintByID", "c1").Return(c, nil).Once()

	_, err := svc.Resolve("c1", "")
	assert.ErrorIs(t, err, lifecycle.ErrInvalidOperation)
}

func TestAppendNoProgressUpdate_ThrottleBoundary(t *testing.T) {
	// Prior update 7 days minus one second ago: throttled with 1 day left.
	storageMock := new(MockStorage)
	svc := newTestService(storageMock)

	c := pendingComplaint("c1")
	c.AppendEvent(models.TimelineEvent{
		TS:    testNow.Add(-day(7) + time.Second),
		Type:  models.EventNoProgressUpdate,
		Actor: models.ActorPublic,
	})
	storageMock.On("GetComplaintByID", "c1").Return(c, nil).Once()

	_, err := svc.AppendNoProgressUpdate("c1", []string{"/uploads/a.jpg"})
	var throttled *lifecycle.ThrottledError
	require.ErrorAs(t, err, &throttled)
	assert.Equal(t, 1, throttled.RemainingDays)
}

func TestAppendNoProgressUpdate_ExactGapSucceeds(t *testing.T) {
	storageMock := new(MockStorage)
	svc := newTestService(storageMock)

	c := pendingComplaint("c1")
	c.AppendEvent(models.TimelineEvent{
		TS:    testNow.Add(-day(7)),
		Type:  models.EventNoProgressUpdate,
		Actor: models.ActorPublic,
	})
	storageMock.On("GetComplaintByID", "c1").Return(c, nil).Once()
	expectSaveAndPublish(storageMock)

	got, err := svc.AppendNoProgressUpdate("c1", []string{"/uploads/a.jpg"})
	require.NoError(t, err)
	assert.Equal(t, models.EventNoProgressUpdate, got.Timeline[len(got.Timeline)-1].Type)
	assert.Contains(t, got.PhotosProgress, "/uploads/a.jpg")
}

func TestAppendNoProgressUpdate_GapShrinksWithAge(t *testing.T) {
	// A 90-day-old complaint only needs a 1-day gap.
	storageMock := new(MockStorage)
	svc := newTestService(storageMock)

	c := pendingComplaint("c1")
	c.CreatedAt = testNow.Add(-day(90))
	c.AppendEvent(models.TimelineEvent{
		TS:    testNow.Add(-day(2)),
		Type:  models.EventNoProgressUpdate,
		Actor: models.ActorPublic,
	})
	storageMock.On("GetComplaintByID", "c1").Return(c, nil).Once()
	expectSaveAndPublish(storageMock)

	_, err := svc.AppendNoProgressUpdate("c1", []string{"/uploads/b.jpg"})
	assert.NoError(t, err)
}

func TestAppendNoProgressUpdate_RequiresImages(t *testing.T) {
	storageMock := new(MockStorage)
	svc := newTestService(storageMock)

	_, err := svc.AppendNoProgressUpdate("c1", nil)
	assert.ErrorIs(t, err, lifecycle.ErrInvalidOperation)
}

func TestUpdate_RetriesOnVersionConflict(t *testing.T) {
	storageMock := new(MockStorage)
	svc := newTestService(storageMock)

	storageMock.On("GetComplaintByID", "c1").Return(pendingComplaint("c1"), nil).Once()
	storageMock.On("GetComplaintByID", "c1").Return(pendingComplaint("c1"), nil).Once()
	storageMock.On("SaveComplaint", mock.AnythingOfType("*models.Complaint")).
		Return(storage.ErrVersionConflict).Once()
	storageMock.On("SaveComplaint", mock.AnythingOfType("*models.Complaint")).
		Return(nil).Once()
	storageMock.On("PublishEvent", mock.AnythingOfType("models.ComplaintEvent")).Return(nil).Once()

	_, err := svc.StartProgress("c1", "")
	assert.NoError(t, err)
	storageMock.AssertExpectations(t)
}

func TestUpdate_GivesUpAfterRepeatedConflicts(t *testing.T) {
	storageMock := new(MockStorage)
	svc := newTestService(storageMock)

	getCall := storageMock.On("GetComplaintByID", "c1")
	getCall.Run(func(mock.Arguments) {
		getCall.ReturnArguments = mock.Arguments{pendingComplaint("c1"), nil}
	})
	storageMock.On("SaveComplaint", mock.AnythingOfType("*models.Complaint")).
		Return(storage.ErrVersionConflict)

	_, err := svc.StartProgress("c1", "")
	assert.ErrorIs(t, err, lifecycle.ErrConflict)
}

func TestSubmit_DuplicateSuspected(t *testing.T) {
	storageMock := new(MockStorage)
	svc := newTestService(storageMock)

	// Second report ~11m away from an existing pothole complaint;
	// accuracy 10m buckets to a 25m search radius.
	existing := pendingComplaint("first")
	existing.Latitude = 12.9716
	existing.Longitude = 77.5946
	storageMock.On("FindSimilarComplaints", "pothole", mock.AnythingOfType("time.Time")).
		Return([]models.Complaint{*existing}, nil).Once()

	result, err := svc.Submit(lifecycle.SubmitInput{
		Category:  "pothole",
		Latitude:  12.9717,
		Longitude: 77.5947,
		AccuracyM: 10,
		PhotoURLs: []string{"/uploads/a.jpg"},
	})
	require.NoError(t, err)

	assert.Nil(t, result.Created)
	require.Len(t, result.Candidates, 1)
	assert.Equal(t, "first", result.Candidates[0].ID)
	storageMock.AssertNotCalled(t, "CreateComplaint", mock.Anything)
}

func TestSubmit_CreatesPendingComplaint(t *testing.T) {
	storageMock := new(MockStorage)
	svc := newTestService(storageMock)

	storageMock.On("FindSimilarComplaints", "streetlight", mock.AnythingOfType("time.Time")).
		Return([]models.Complaint{}, nil).Once()
	storageMock.On("CreateComplaint", mock.AnythingOfType("*models.Complaint")).Return(nil).Once()
	storageMock.On("PublishEvent", mock.AnythingOfType("models.ComplaintEvent")).Return(nil).Once()

	result, err := svc.Submit(lifecycle.SubmitInput{
		Category:  "streetlight",
		Latitude:  12.9716,
		Longitude: 77.5946,
		AccuracyM: 10,
		State:     "Karnataka",
		City:      "Bengaluru",
		PhotoURLs: []string{"/uploads/a.jpg"},
	})
	require.NoError(t, err)
	require.NotNil(t, result.Created)

	c := result.Created
	assert.Equal(t, models.StatusPending, c.Status)
	assert.Equal(t, testNow, c.CreatedAt)
	assert.Equal(t, testNow, c.LastActivityAt)
	require.Len(t, c.Timeline, 1)
	assert.Equal(t, models.EventSubmitted, c.Timeline[0].Type)
	assert.Equal(t, models.ActorPublic, c.Timeline[0].Actor)
}
