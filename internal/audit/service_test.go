package audit

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seededStore(t *testing.T, n int) (*MemoryStore, time.Time) {
	t.Helper()
	store := NewMemoryStore()
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	current := base
	store.now = func() time.Time { return current }
	for i := 0; i < n; i++ {
		current = base.Add(time.Duration(i) * time.Hour)
		action := ActionCourseUpdated
		if i%2 == 0 {
			action = ActionUserLoginFailed
		}
		_, err := store.Insert(context.Background(), Classify(Entry{
			ActorID:  fmt.Sprintf("u-%d", i%3),
			Action:   action,
			TargetID: fmt.Sprint(i),
		}))
		require.NoError(t, err)
	}
	return store, base
}

func TestServiceTimelinePaging(t *testing.T) {
	store, _ := seededStore(t, 5)
	svc := NewService(store)

	first, err := svc.Timeline(context.Background(), Filters{Page: 1, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, first.Records, 2)
	assert.Equal(t, "4", first.Records[0].TargetID, "newest first")
	assert.True(t, first.Paging.HasNext)
	assert.Equal(t, 2, first.Paging.NextPage)
	assert.Zero(t, first.Paging.PrevPage)

	last, err := svc.Timeline(context.Background(), Filters{Page: 3, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, last.Records, 1)
	assert.False(t, last.Paging.HasNext)
	assert.Equal(t, 2, last.Paging.PrevPage)
}

func TestServiceTimelineDefaultsAndCaps(t *testing.T) {
	store, _ := seededStore(t, 60)
	svc := NewService(store)

	res, err := svc.Timeline(context.Background(), Filters{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Paging.Page)
	assert.Equal(t, defaultPageSize, res.Paging.PageSize)
	assert.Len(t, res.Records, defaultPageSize)

	res, err = svc.Timeline(context.Background(), Filters{PageSize: 500})
	require.NoError(t, err)
	assert.Equal(t, maxPageSize, res.Paging.PageSize)
	assert.Len(t, res.Records, maxPageSize)
	assert.True(t, res.Paging.HasNext)

	res, err = svc.Timeline(context.Background(), Filters{Page: 99})
	require.NoError(t, err)
	assert.NotNil(t, res.Records)
	assert.Empty(t, res.Records)
}

func TestServiceFilters(t *testing.T) {
	store, base := seededStore(t, 6)
	svc := NewService(store)
	ctx := context.Background()

	rows, err := svc.Export(ctx, Filters{Action: "USER_LOGIN"})
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	rows, err = svc.Export(ctx, Filters{Severity: SeverityWarning, Category: CategorySecurity})
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	rows, err = svc.Export(ctx, Filters{ActorID: "u-1"})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, r := range rows {
		assert.Equal(t, "u-1", r.ActorID)
	}

	rows, err = svc.Export(ctx, Filters{From: base.Add(2 * time.Hour), To: base.Add(4 * time.Hour)})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "3", rows[0].TargetID)
	assert.Equal(t, "2", rows[1].TargetID)
}

type failingRepo struct{}

func (failingRepo) Search(context.Context, Filters, int, int) ([]Record, error) {
	return nil, errors.New("boom")
}

func TestServiceErrors(t *testing.T) {
	_, err := NewService(nil).Timeline(context.Background(), Filters{})
	assert.Error(t, err)
	_, err = NewService(nil).Export(context.Background(), Filters{})
	assert.Error(t, err)
	_, err = NewService(failingRepo{}).Timeline(context.Background(), Filters{})
	assert.EqualError(t, err, "boom")
}
