package calendar

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/cohort/errs"
	"github.com/cppla/cohort/testutil"
)

type admins map[uint]bool

func (a admins) IsAdmin(ctx context.Context, userID uint) (bool, error) { return a[userID], nil }

func newService(t *testing.T) (*Service, uint, uint, *testutil.Clock) {
	db := testutil.NewDB(t)
	admin := testutil.CreateUser(t, db, "root")
	member := testutil.CreateUser(t, db, "alice")
	svc := NewService(db, admins{admin.ID: true}, nil)
	clock := testutil.NewClock()
	svc.now = clock.Now
	return svc, admin.ID, member.ID, clock
}

func at(day, hour int) time.Time {
	return time.Date(2024, 5, day, hour, 0, 0, 0, time.UTC)
}

func TestCreateEvent(t *testing.T) {
	svc, admin, member, _ := newService(t)
	ctx := context.Background()

	ev, err := svc.Create(ctx, admin, EventInput{Title: " Office hours ", StartTime: at(3, 15), EventLink: "https://meet.example.com/x"})
	require.NoError(t, err)
	assert.Equal(t, "Office hours", ev.Title)
	assert.Equal(t, DefaultEventType, ev.EventType)

	got, err := svc.Get(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, "root", got.User.Username)

	_, err = svc.Create(ctx, member, EventInput{Title: "x", StartTime: at(3, 15)})
	assert.True(t, errs.IsForbidden(err))
}

func TestCreateEventValidation(t *testing.T) {
	svc, admin, _, _ := newService(t)
	before := at(3, 14)
	cases := map[string]EventInput{
		"no title":     {StartTime: at(3, 15)},
		"long title":   {Title: strings.Repeat("x", MaxTitleRunes+1), StartTime: at(3, 15)},
		"no start":     {Title: "x"},
		"end first":    {Title: "x", StartTime: at(3, 15), EndTime: &before},
		"ftp link":     {Title: "x", StartTime: at(3, 15), EventLink: "ftp://example.com"},
		"unknown type": {Title: "x", StartTime: at(3, 15), EventType: "party"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), admin, in)
			assert.True(t, errs.IsValidation(err), "got %v", err)
		})
	}
}

func TestUpdateAndDeleteEvent(t *testing.T) {
	svc, admin, member, _ := newService(t)
	ctx := context.Background()
	ev, err := svc.Create(ctx, admin, EventInput{Title: "Workshop", StartTime: at(5, 10), EventType: "workshop"})
	require.NoError(t, err)

	end := at(5, 12)
	got, err := svc.Update(ctx, admin, ev.ID, EventInput{Title: "Workshop II", StartTime: at(5, 10), EndTime: &end})
	require.NoError(t, err)
	assert.Equal(t, "Workshop II", got.Title)
	assert.Equal(t, "workshop", got.EventType)
	require.NotNil(t, got.EndTime)
	assert.True(t, got.EndTime.Equal(end))

	_, err = svc.Update(ctx, member, ev.ID, EventInput{Title: "nope", StartTime: at(5, 10)})
	assert.True(t, errs.IsForbidden(err))
	_, err = svc.Update(ctx, admin, "missing", EventInput{Title: "nope", StartTime: at(5, 10)})
	assert.True(t, errs.IsNotFound(err))

	assert.True(t, errs.IsForbidden(svc.Delete(ctx, member, ev.ID)))
	require.NoError(t, svc.Delete(ctx, admin, ev.ID))
	assert.True(t, errs.IsNotFound(svc.Delete(ctx, admin, ev.ID)))
}

func TestRangeUpcomingAndMonth(t *testing.T) {
	svc, admin, _, clock := newService(t)
	ctx := context.Background()
	for _, in := range []EventInput{
		{Title: "past", StartTime: at(1, 9)},
		{Title: "second", StartTime: at(20, 18)},
		{Title: "first", StartTime: at(2, 9)},
		{Title: "june", StartTime: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)},
	} {
		_, err := svc.Create(ctx, admin, in)
		require.NoError(t, err)
	}

	inMay, err := svc.Range(ctx, at(1, 0), at(31, 23))
	require.NoError(t, err)
	require.Len(t, inMay, 3)
	assert.Equal(t, "past", inMay[0].Title)
	assert.Equal(t, "first", inMay[1].Title)

	_, err = svc.Range(ctx, at(2, 0), at(1, 0))
	assert.True(t, errs.IsValidation(err))

	clock.T = at(1, 12)
	up, err := svc.Upcoming(ctx, 2)
	require.NoError(t, err)
	require.Len(t, up, 2)
	assert.Equal(t, "first", up[0].Title)
	assert.Equal(t, "second", up[1].Title)

	_, err = svc.Upcoming(ctx, MaxUpcoming+1)
	assert.True(t, errs.IsValidation(err))

	m, err := svc.Month(ctx, 2024, time.May, time.UTC)
	require.NoError(t, err)
	var total int
	for _, w := range m.Weeks {
		for _, d := range w {
			total += len(d.Events)
		}
	}
	assert.Equal(t, 4, total, "June 1st is visible on the May grid")

	_, err = svc.Month(ctx, 2024, 13, time.UTC)
	assert.True(t, errs.IsValidation(err))
}
