package services

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/studyplanner/planner/internal/metrics"
	"github.com/studyplanner/planner/internal/notecrypt"
	"github.com/studyplanner/planner/internal/store"
	"github.com/studyplanner/planner/types"
)

func TestNoteService_ListRecoversUnreadableNotes(t *testing.T) {
	good, err := notecrypt.Encrypt("revise graphs", "u-1")
	require.NoError(t, err)
	foreign, err := notecrypt.Encrypt("someone else", "u-2")
	require.NoError(t, err)

	repo := &fakeNoteRepo{
		listFn: func(_ context.Context, userID string, limit int) ([]types.Note, error) {
			assert.Equal(t, "u-1", userID)
			assert.Equal(t, 0, limit)
			return []types.Note{
				{UserID: "u-1", Title: "graphs", EncryptedBody: good},
				{UserID: "u-1", Title: "broken", EncryptedBody: foreign},
				{UserID: "u-1", Title: "garbage", EncryptedBody: "not ciphertext"},
			}, nil
		},
	}
	logger, hook := logtest.NewNullLogger()
	m := metrics.New()
	svc := NewNoteService(repo, logger, m)

	notes, result, err := svc.List(context.Background(), "u-1", 0)
	require.NoError(t, err)
	require.Len(t, notes, 3)

	assert.Equal(t, "revise graphs", notes[0].Body)
	assert.False(t, notes[0].Unreadable)
	assert.Equal(t, notecrypt.Placeholder, notes[1].Body)
	assert.True(t, notes[1].Unreadable)
	assert.Equal(t, notecrypt.Placeholder, notes[2].Body)

	assert.Equal(t, 3, result.Attempted)
	assert.Equal(t, 1, result.Succeeded)
	require.Equal(t, 2, result.Failed())
	assert.Equal(t, "broken", result.Errors[0].Key)
	assert.True(t, notecrypt.IsDecryptionError(result.Errors[0].Err))

	assert.Equal(t, float64(2), testutil.ToFloat64(m.DecryptFailures))
	require.Len(t, hook.AllEntries(), 2)
	entry := hook.AllEntries()[0]
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "broken", entry.Data["title"])
	assert.NotContains(t, entry.Message, "someone else")
}

func TestNoteService_GetFailsLoudly(t *testing.T) {
	foreign, err := notecrypt.Encrypt("secret", "u-2")
	require.NoError(t, err)

	repo := &fakeNoteRepo{
		getFn: func(context.Context, string, string) (types.Note, error) {
			return types.Note{UserID: "u-1", Title: "x", EncryptedBody: foreign}, nil
		},
	}
	logger, _ := logtest.NewNullLogger()
	svc := NewNoteService(repo, logger, nil)

	_, err = svc.Get(context.Background(), "u-1", "x")
	assert.True(t, notecrypt.IsDecryptionError(err))
}

func TestNoteService_CreateEncryptsBody(t *testing.T) {
	var stored types.Note
	repo := &fakeNoteRepo{
		createFn: func(_ context.Context, note types.Note) (types.Note, error) {
			stored = note
			return note, nil
		},
	}
	logger, _ := logtest.NewNullLogger()
	svc := NewNoteService(repo, logger, nil)

	note, err := svc.Create(context.Background(), "u-1", "  Week 1 ", "plain body")
	require.NoError(t, err)
	assert.Equal(t, "Week 1", note.Title)
	assert.Equal(t, "plain body", note.Body)

	assert.Equal(t, "Week 1", stored.Title)
	assert.NotContains(t, stored.EncryptedBody, "plain body")
	body, err := notecrypt.Decrypt(stored.EncryptedBody, "u-1")
	require.NoError(t, err)
	assert.Equal(t, "plain body", body)
}

func TestNoteService_DuplicateTitleRejected(t *testing.T) {
	repo := &fakeNoteRepo{
		createFn: func(context.Context, types.Note) (types.Note, error) {
			return types.Note{}, store.ErrConflict
		},
		updateFn: func(context.Context, string, types.Note) (types.Note, error) {
			return types.Note{}, store.ErrConflict
		},
	}
	logger, _ := logtest.NewNullLogger()
	svc := NewNoteService(repo, logger, nil)

	_, err := svc.Create(context.Background(), "u-1", "Week 1", "body")
	assert.ErrorIs(t, err, ErrTitleTaken)

	_, err = svc.Update(context.Background(), "u-1", "Week 2", "Week 1", "body")
	assert.ErrorIs(t, err, ErrTitleTaken)
}

func TestNoteService_UpdateKeepsTitleWhenEmpty(t *testing.T) {
	repo := &fakeNoteRepo{
		updateFn: func(_ context.Context, oldTitle string, note types.Note) (types.Note, error) {
			assert.Equal(t, "Week 1", oldTitle)
			return note, nil
		},
	}
	logger, _ := logtest.NewNullLogger()
	svc := NewNoteService(repo, logger, nil)

	note, err := svc.Update(context.Background(), "u-1", "Week 1", "", "new body")
	require.NoError(t, err)
	assert.Equal(t, "Week 1", note.Title)
	assert.Equal(t, "new body", note.Body)
}

func TestNoteService_EmptyTitle(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	svc := NewNoteService(&fakeNoteRepo{}, logger, nil)

	_, err := svc.Create(context.Background(), "u-1", "   ", "body")
	assert.True(t, IsValidation(err))
}
