package subscription

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ibramadi75/SuperTube/internal/core/engine"
	"github.com/Ibramadi75/SuperTube/internal/store"
)

type checkRecord struct {
	id        string
	watermark *time.Time
	enqueued  int
}

type fakeSubStore struct {
	mu        sync.Mutex
	subs      map[string]*store.Subscription
	videos    map[string]bool
	jobsByURL map[string]*store.Job
	created   []*store.Job
	checks    []checkRecord
}

func newFakeSubStore(subs ...*store.Subscription) *fakeSubStore {
	f := &fakeSubStore{
		subs:      make(map[string]*store.Subscription),
		videos:    make(map[string]bool),
		jobsByURL: make(map[string]*store.Job),
	}
	for _, s := range subs {
		f.subs[s.ID] = s
	}
	return f
}

func (f *fakeSubStore) GetSubscription(ctx context.Context, id string) (*store.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub, ok := f.subs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return sub, nil
}

func (f *fakeSubStore) FindSubscriptionByChannel(ctx context.Context, userID *string, channelID string) (*store.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sub := range f.subs {
		if sub.ChannelID != channelID {
			continue
		}
		if (sub.UserID == nil) != (userID == nil) {
			continue
		}
		if sub.UserID != nil && *sub.UserID != *userID {
			continue
		}
		return sub, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeSubStore) CreateSubscription(ctx context.Context, sub *store.Subscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs[sub.ID] = sub
	return nil
}

func (f *fakeSubStore) ListActiveSubscriptions(ctx context.Context, userID *string) ([]*store.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*store.Subscription
	for _, sub := range f.subs {
		if sub.Active {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (f *fakeSubStore) RecordSubscriptionCheck(ctx context.Context, id string, checkedAt time.Time, watermark *time.Time, enqueued int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks = append(f.checks, checkRecord{id: id, watermark: watermark, enqueued: enqueued})
	return nil
}

func (f *fakeSubStore) VideoExists(ctx context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.videos[id], nil
}

func (f *fakeSubStore) FindJobByURL(ctx context.Context, url string) (*store.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if j, ok := f.jobsByURL[url]; ok {
		return j, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeSubStore) CreateJob(ctx context.Context, j *store.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, j)
	f.jobsByURL[j.URL] = j
	return nil
}

type fakeChanEngine struct {
	items     []engine.ChannelItem
	listErr   error
	info      *engine.MediaInfo
	lastURL   string
	lastSince *time.Time
}

func (f *fakeChanEngine) ListChannelItems(ctx context.Context, channelURL string, since *time.Time) ([]engine.ChannelItem, error) {
	f.lastURL = channelURL
	f.lastSince = since
	return f.items, f.listErr
}

func (f *fakeChanEngine) ProbeMetadata(ctx context.Context, url string) (*engine.MediaInfo, error) {
	return f.info, nil
}

func activeSub(id string) *store.Subscription {
	return &store.Subscription{
		ID:          id,
		ChannelID:   "UC" + id,
		ChannelName: "Channel " + id,
		ChannelURL:  "https://youtube.com/@" + id,
		Active:      true,
		LastVideoAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestCheckOneEnqueuesOnlyUnknownItems(t *testing.T) {
	sub := activeSub("s1")
	st := newFakeSubStore(sub)
	st.videos["known"] = true
	st.jobsByURL["https://youtu.be/queued"] = &store.Job{ID: "j0", URL: "https://youtu.be/queued"}

	eng := &fakeChanEngine{items: []engine.ChannelItem{
		{ID: "known", URL: "https://youtu.be/known", UploadDate: "20260110"},
		{ID: "queued", URL: "https://youtu.be/queued", UploadDate: "20260111"},
		{ID: "fresh", URL: "https://youtu.be/fresh", Title: "Fresh", UploadDate: "20260112"},
	}}

	n, err := NewService(st, eng).CheckOne(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, sub.ChannelURL, eng.lastURL)
	require.NotNil(t, eng.lastSince)
	assert.Equal(t, sub.LastVideoAt, *eng.lastSince)

	require.Len(t, st.created, 1)
	job := st.created[0]
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, "https://youtu.be/fresh", job.URL)
	assert.Equal(t, "Fresh", job.Title)
	assert.Equal(t, sub.ChannelName, job.Uploader)
	assert.Equal(t, store.JobPending, job.Status)

	require.Len(t, st.checks, 1)
	assert.Equal(t, 1, st.checks[0].enqueued)
	require.NotNil(t, st.checks[0].watermark)
	assert.Equal(t, time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC), *st.checks[0].watermark)
}

func TestCheckOneWatermarkIsNewestUpload(t *testing.T) {
	st := newFakeSubStore(activeSub("s1"))
	eng := &fakeChanEngine{items: []engine.ChannelItem{
		{ID: "b", URL: "https://youtu.be/b", UploadDate: "20260220"},
		{ID: "a", URL: "https://youtu.be/a", UploadDate: "20260210"},
	}}

	n, err := NewService(st, eng).CheckOne(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.Len(t, st.checks, 1)
	require.NotNil(t, st.checks[0].watermark)
	assert.Equal(t, time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC), *st.checks[0].watermark)
}

func TestCheckOneInactiveSkips(t *testing.T) {
	sub := activeSub("s1")
	sub.Active = false
	st := newFakeSubStore(sub)
	eng := &fakeChanEngine{}

	n, err := NewService(st, eng).CheckOne(context.Background(), "s1")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, eng.lastURL)
	assert.Empty(t, st.checks)
}

func TestCheckOneNothingNewStillRecordsCheck(t *testing.T) {
	st := newFakeSubStore(activeSub("s1"))
	eng := &fakeChanEngine{}

	n, err := NewService(st, eng).CheckOne(context.Background(), "s1")
	require.NoError(t, err)
	assert.Zero(t, n)

	require.Len(t, st.checks, 1)
	assert.Nil(t, st.checks[0].watermark)
	assert.Zero(t, st.checks[0].enqueued)
}

func TestCheckOneListFailure(t *testing.T) {
	st := newFakeSubStore(activeSub("s1"))
	eng := &fakeChanEngine{listErr: errors.New("channel unreachable")}

	_, err := NewService(st, eng).CheckOne(context.Background(), "s1")
	require.Error(t, err)
	assert.Empty(t, st.checks)
}

func TestCheckAllSweepsEveryActiveSubscription(t *testing.T) {
	s1 := activeSub("s1")
	s2 := activeSub("s2")
	st := newFakeSubStore(s1, s2)
	eng := &fakeChanEngine{items: []engine.ChannelItem{
		{ID: "x", URL: "https://youtu.be/x", UploadDate: "20260301"},
	}}
	svc := NewService(st, eng)

	total, err := svc.CheckAll(context.Background(), nil)
	require.NoError(t, err)

	// the first created job dedups the second subscription's identical item
	assert.Equal(t, 1, total)
	assert.Len(t, st.created, 1)
}

func TestCreateFromURLCreatesSubscription(t *testing.T) {
	st := newFakeSubStore()
	eng := &fakeChanEngine{
		items: []engine.ChannelItem{{ID: "v1", URL: "https://youtu.be/v1"}},
		info: &engine.MediaInfo{
			ChannelID:  "UCnew",
			ChannelURL: "https://youtube.com/@new",
			Uploader:   "New Channel",
		},
	}

	sub, err := NewService(st, eng).CreateFromURL(context.Background(), "https://youtube.com/@new", nil)
	require.NoError(t, err)

	assert.Equal(t, "UCnew", sub.ChannelID)
	assert.Equal(t, "New Channel", sub.ChannelName)
	assert.Equal(t, "https://youtube.com/@new", sub.ChannelURL)
	assert.True(t, sub.Active)
	assert.Nil(t, sub.UserID)
	assert.WithinDuration(t, time.Now().UTC(), sub.LastVideoAt, 5*time.Second)
}

func TestCreateFromURLReturnsExisting(t *testing.T) {
	existing := activeSub("s1")
	existing.ChannelID = "UCnew"
	st := newFakeSubStore(existing)
	eng := &fakeChanEngine{
		items: []engine.ChannelItem{{ID: "v1", URL: "https://youtu.be/v1"}},
		info:  &engine.MediaInfo{ChannelID: "UCnew", ChannelURL: "https://youtube.com/@new"},
	}

	sub, err := NewService(st, eng).CreateFromURL(context.Background(), "https://youtube.com/@new", nil)
	require.NoError(t, err)
	assert.Same(t, existing, sub)
	assert.Len(t, st.subs, 1)
}

func TestCreateFromURLEmptyChannel(t *testing.T) {
	st := newFakeSubStore()
	eng := &fakeChanEngine{}

	_, err := NewService(st, eng).CreateFromURL(context.Background(), "https://youtube.com/@empty", nil)
	require.Error(t, err)
	assert.Empty(t, st.subs)
}

func TestCreateFromArtifactSubscribesAndChecks(t *testing.T) {
	st := newFakeSubStore()
	eng := &fakeChanEngine{}
	published := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	user := "u1"
	video := &store.Video{ID: "v1", Uploader: "Some Channel", UserID: &user, PublishedAt: &published}
	info := &engine.MediaInfo{ChannelID: "UCart", ChannelURL: "https://youtube.com/@art", Uploader: "Some Channel"}

	err := NewService(st, eng).CreateFromArtifact(context.Background(), video, info)
	require.NoError(t, err)

	require.Len(t, st.subs, 1)
	var sub *store.Subscription
	for _, s := range st.subs {
		sub = s
	}
	assert.Equal(t, "UCart", sub.ChannelID)
	assert.Equal(t, "Some Channel", sub.ChannelName)
	assert.Equal(t, &user, sub.UserID)
	assert.Equal(t, published, sub.LastVideoAt)
	assert.Equal(t, 1, sub.TotalEnqueued)

	// the initial check runs immediately, using the artifact's date
	assert.Equal(t, sub.ChannelURL, eng.lastURL)
	require.NotNil(t, eng.lastSince)
	assert.Equal(t, published, *eng.lastSince)
	require.Len(t, st.checks, 1)
}

func TestCreateFromArtifactIdempotent(t *testing.T) {
	user := "u1"
	existing := activeSub("s1")
	existing.ChannelID = "UCart"
	existing.UserID = &user
	st := newFakeSubStore(existing)
	eng := &fakeChanEngine{}
	video := &store.Video{ID: "v1", UserID: &user}
	info := &engine.MediaInfo{ChannelID: "UCart", ChannelURL: "https://youtube.com/@art"}

	err := NewService(st, eng).CreateFromArtifact(context.Background(), video, info)
	require.NoError(t, err)
	assert.Len(t, st.subs, 1)
	assert.Empty(t, st.checks)
}

func TestCreateFromArtifactMissingMetadata(t *testing.T) {
	st := newFakeSubStore()
	video := &store.Video{ID: "v1"}

	err := NewService(st, &fakeChanEngine{}).CreateFromArtifact(context.Background(), video, &engine.MediaInfo{})
	require.NoError(t, err)
	assert.Empty(t, st.subs)
}
