package services

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/rpupo63/post-studio-backend/database"
	"github.com/rpupo63/post-studio-backend/database/dbtest"
	"github.com/rpupo63/post-studio-backend/errs"
	"github.com/rpupo63/post-studio-backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateOf(t *testing.T) {
	pending := database.GenerationPending
	assert.Equal(t, StateDraft, StateOf(&models.Post{}, pending))
	assert.Equal(t, StateDraft, StateOf(&models.Post{HasPendingChanges: true}, pending))
	assert.Equal(t, StatePublished, StateOf(&models.Post{Published: true}, pending))
	assert.Equal(t, StatePublishedWithPendingChanges, StateOf(&models.Post{Published: true, HasPendingChanges: true}, pending))

	leftover := &models.Post{Published: true, HasPendingChanges: true}
	assert.Equal(t, StatePublished, StateOf(leftover, database.GenerationVersioned))
	assert.Equal(t, StatePublished, StateOf(leftover, database.GenerationLegacy))
}

func TestUnsupportedAction(t *testing.T) {
	ctx := context.Background()
	svc, f := newTestService(t, dbtest.Versioned)
	post, err := svc.CreatePost(ctx, f.AuthorID, "T", "C")
	require.NoError(t, err)

	_, err = svc.ApplyAction(ctx, post.ID, f.AuthorID, ActionRequest{Action: "archive"})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
	assert.ErrorIs(t, err, errs.ErrUnsupportedAction)
}

func TestFeatureUnavailableByGeneration(t *testing.T) {
	cases := []struct {
		layout dbtest.Layout
		action Action
	}{
		{dbtest.Legacy, ActionPublishVersion},
		{dbtest.Legacy, ActionPublishPending},
		{dbtest.Legacy, ActionDiscardPending},
		{dbtest.Pending, ActionPublishVersion},
		{dbtest.Versioned, ActionPublishPending},
		{dbtest.Versioned, ActionDiscardPending},
	}
	for _, c := range cases {
		t.Run(string(c.layout)+"/"+string(c.action), func(t *testing.T) {
			ctx := context.Background()
			svc, f := newTestService(t, c.layout)
			post, err := svc.CreatePost(ctx, f.AuthorID, "T", "C")
			require.NoError(t, err)

			_, err = svc.ApplyAction(ctx, post.ID, f.AuthorID, ActionRequest{Action: c.action})
			require.Error(t, err)
			assert.True(t, errs.IsFeatureUnavailable(err))
			assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
			assert.Contains(t, err.Error(), errs.MigrationHint)
		})
	}
}

func TestLegacyPublishExposesDraft(t *testing.T) {
	ctx := context.Background()
	svc, f := newTestService(t, dbtest.Legacy)
	catalog := NewCatalogService(f.Store)
	post, err := svc.CreatePost(ctx, f.AuthorID, "Hello", "world")
	require.NoError(t, err)

	_, err = catalog.PublicPost(ctx, f.Workspace.Slug, post.Slug)
	assert.True(t, errs.IsNotFound(err), "drafts are not public")

	result, err := svc.ApplyAction(ctx, post.ID, f.AuthorID, ActionRequest{Action: ActionPublish})
	require.NoError(t, err)
	assert.Equal(t, StatePublished, result.State)
	assert.Nil(t, result.PublishedVersion)

	public, err := catalog.PublicPost(ctx, f.Workspace.Slug, post.Slug)
	require.NoError(t, err)
	assert.Equal(t, "Hello", public.Title)
	assert.Equal(t, "world", public.ContentMarkdown)

	_, err = svc.ApplyAction(ctx, post.ID, f.AuthorID, ActionRequest{Action: ActionUnpublish})
	require.NoError(t, err)
	_, err = catalog.PublicPost(ctx, f.Workspace.Slug, post.Slug)
	assert.True(t, errs.IsNotFound(err))
}

func TestPendingGenerationLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, f := newTestService(t, dbtest.Pending)
	catalog := NewCatalogService(f.Store)

	post, err := svc.CreatePost(ctx, f.AuthorID, "T1", "C1")
	require.NoError(t, err)

	saved, err := svc.SaveDraft(ctx, post.ID, f.AuthorID, "T1", "C1 edited")
	require.NoError(t, err)
	assert.Equal(t, database.GenerationPending, saved.Workflow)

	_, err = svc.ApplyAction(ctx, post.ID, f.AuthorID, ActionRequest{Action: ActionPublish})
	require.NoError(t, err)

	// Saving a published post stashes the edit.
	_, err = svc.SaveDraft(ctx, post.ID, f.AuthorID, "T2", "C2")
	require.NoError(t, err)

	public, err := catalog.PublicPost(ctx, f.Workspace.Slug, post.Slug)
	require.NoError(t, err)
	assert.Equal(t, "T1", public.Title)
	assert.Equal(t, "C1 edited", public.ContentMarkdown)

	editor, err := svc.LoadForOwner(ctx, post.ID, f.AuthorID)
	require.NoError(t, err)
	assert.Equal(t, StatePublishedWithPendingChanges, StateOf(&editor.Post, database.GenerationPending))
	assert.Equal(t, "T2", editor.Title, "the editor shows the pending edit")
	assert.Equal(t, "C2", editor.ContentMarkdown)
	assert.Equal(t, "C1 edited", *editor.LiveContentMarkdown)

	// Unpublishing keeps the pending edit.
	_, err = svc.ApplyAction(ctx, post.ID, f.AuthorID, ActionRequest{Action: ActionUnpublish})
	require.NoError(t, err)
	raw, err := f.Store.PostRepo().FindForOwner(ctx, post.ID, f.AuthorID)
	require.NoError(t, err)
	assert.True(t, raw.HasPendingChanges)

	result, err := svc.ApplyAction(ctx, post.ID, f.AuthorID, ActionRequest{Action: ActionPublishPending})
	require.NoError(t, err)
	assert.Equal(t, StatePublished, result.State)

	public, err = catalog.PublicPost(ctx, f.Workspace.Slug, post.Slug)
	require.NoError(t, err)
	assert.Equal(t, "T2", public.Title)
	assert.Equal(t, "C2", public.ContentMarkdown)

	_, err = svc.ApplyAction(ctx, post.ID, f.AuthorID, ActionRequest{Action: ActionDiscardPending})
	require.Error(t, err)
	assert.True(t, errs.IsConflict(err))
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
}

func TestLeftoverPendingFieldsStayOutOfVersionedLiveContent(t *testing.T) {
	ctx := context.Background()
	svc, f := newTestService(t, dbtest.Versioned)

	post, err := svc.CreatePost(ctx, f.AuthorID, "T1", "C1")
	require.NoError(t, err)
	_, err = svc.ApplyAction(ctx, post.ID, f.AuthorID, ActionRequest{Action: ActionPublish})
	require.NoError(t, err)
	require.NoError(t, f.Store.PostRepo().StashPending(ctx, post.ID, f.AuthorID, "PT", "PC", time.Now().UTC()))

	_, err = svc.ApplyAction(ctx, post.ID, f.AuthorID, ActionRequest{Action: ActionPublishPending})
	require.Error(t, err)
	assert.True(t, errs.IsFeatureUnavailable(err))

	raw, err := f.Store.PostRepo().FindForOwner(ctx, post.ID, f.AuthorID)
	require.NoError(t, err)
	assert.Equal(t, "T1", *raw.LiveTitle)
	assert.Equal(t, "C1", *raw.LiveContentMarkdown)

	published, err := f.Store.VersionRepo().FindByID(ctx, post.ID, f.AuthorID, *raw.PublishedVersionID)
	require.NoError(t, err)
	assert.Equal(t, *raw.LiveContentMarkdown, published.ContentMarkdown)

	editor, err := svc.LoadForOwner(ctx, post.ID, f.AuthorID)
	require.NoError(t, err)
	assert.Equal(t, StatePublished, StateOf(&editor.Post, editor.Workflow))
	assert.False(t, editor.HasPendingChanges)
}

func TestDiscardPendingKeepsLiveContent(t *testing.T) {
	ctx := context.Background()
	svc, f := newTestService(t, dbtest.Pending)
	catalog := NewCatalogService(f.Store)

	post, err := svc.CreatePost(ctx, f.AuthorID, "T1", "C1")
	require.NoError(t, err)
	_, err = svc.ApplyAction(ctx, post.ID, f.AuthorID, ActionRequest{Action: ActionPublish})
	require.NoError(t, err)
	_, err = svc.SaveDraft(ctx, post.ID, f.AuthorID, "T2", "C2")
	require.NoError(t, err)

	result, err := svc.ApplyAction(ctx, post.ID, f.AuthorID, ActionRequest{Action: ActionDiscardPending})
	require.NoError(t, err)
	assert.Equal(t, StatePublished, result.State)

	public, err := catalog.PublicPost(ctx, f.Workspace.Slug, post.Slug)
	require.NoError(t, err)
	assert.Equal(t, "C1", public.ContentMarkdown)

	editor, err := svc.LoadForOwner(ctx, post.ID, f.AuthorID)
	require.NoError(t, err)
	assert.Equal(t, "T1", editor.Title)
	assert.False(t, editor.HasPendingChanges)
}

func TestPublishPendingOnMissingPost(t *testing.T) {
	ctx := context.Background()
	svc, f := newTestService(t, dbtest.Pending)
	post, err := svc.CreatePost(ctx, f.AuthorID, "T", "C")
	require.NoError(t, err)

	_, err = svc.ApplyAction(ctx, post.ID, f.Workspace.ID, ActionRequest{Action: ActionPublishPending})
	assert.True(t, errs.IsNotFound(err))
}
