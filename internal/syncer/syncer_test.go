package syncer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/h0rv/ghpsync/internal/domain"
	"github.com/h0rv/ghpsync/internal/jira"
	"github.com/h0rv/ghpsync/internal/schema"
	"github.com/h0rv/ghpsync/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// events records collaborator calls across fakes so tests can assert order.
type events []string

func (e *events) add(format string, args ...any) {
	*e = append(*e, fmt.Sprintf(format, args...))
}

type fakeGitHub struct {
	log       *events
	fields    []domain.ProjectField
	fieldsErr error
	// batches are returned by successive GetProjectItems calls; the last
	// one repeats.
	batches   [][]domain.Item
	itemErrs  []error
	fetches   int
	updateErr error
}

func (f *fakeGitHub) GetProjectFields(ctx context.Context, projectID string) ([]domain.ProjectField, error) {
	f.log.add("gh.fields")
	return f.fields, f.fieldsErr
}

func (f *fakeGitHub) GetProjectItems(ctx context.Context, projectID string, s domain.FieldSchema) ([]domain.Item, error) {
	n := f.fetches
	f.fetches++
	f.log.add("gh.items")
	if n < len(f.itemErrs) && f.itemErrs[n] != nil {
		return nil, f.itemErrs[n]
	}
	if len(f.batches) == 0 {
		return []domain.Item{}, nil
	}
	if n >= len(f.batches) {
		n = len(f.batches) - 1
	}
	return f.batches[n], nil
}

func (f *fakeGitHub) UpdateProjectItemField(ctx context.Context, projectID, itemID, fieldID string, update domain.FieldUpdate) error {
	text := ""
	if update.Text != nil {
		text = *update.Text
	}
	f.log.add("gh.update %s %s %s", itemID, fieldID, text)
	return f.updateErr
}

type fakeJira struct {
	log            *events
	users          map[string]string
	created        []jira.IssueRequest
	createErr      map[string]error
	transitionErrs map[int]error
}

func (f *fakeJira) SearchUserByEmail(ctx context.Context, email string) (jira.User, error) {
	f.log.add("jira.user %s", email)
	id, ok := f.users[email]
	if !ok {
		return jira.User{}, fmt.Errorf("user not found for email address %q", email)
	}
	return jira.User{AccountID: id, EmailAddress: email}, nil
}

func (f *fakeJira) CreateIssue(ctx context.Context, req jira.IssueRequest) (jira.Issue, error) {
	f.log.add("jira.create %s", req.Summary)
	if err := f.createErr[req.Summary]; err != nil {
		return jira.Issue{}, err
	}
	f.created = append(f.created, req)
	key := fmt.Sprintf("ENG-%d", len(f.created))
	return jira.Issue{ID: key, Key: key, URL: jira.IssueURL("acme", key)}, nil
}

func (f *fakeJira) TransitionIssue(ctx context.Context, key string, transitionID int) error {
	f.log.add("jira.transition %s %d", key, transitionID)
	return f.transitionErrs[transitionID]
}

// recordingStore is a real store that also records upserts.
type recordingStore struct {
	*store.Store
	log *events
	err error
}

func (r *recordingStore) UpsertItems(project *domain.Project, items ...domain.Item) error {
	for _, item := range items {
		r.log.add("store.upsert %s", item.ID)
	}
	if r.err != nil {
		return r.err
	}
	return r.Store.UpsertItems(project, items...)
}

type harness struct {
	log   *events
	gh    *fakeGitHub
	jira  *fakeJira
	store *recordingStore
	opts  Options
}

func createTestHarness(t *testing.T) *harness {
	t.Helper()
	log := &events{}
	return &harness{
		log:   log,
		gh:    &fakeGitHub{log: log, fields: createTestFields()},
		jira:  &fakeJira{log: log, users: map[string]string{}},
		store: &recordingStore{Store: store.New(filepath.Join(t.TempDir(), "data")), log: log},
		opts: Options{
			ProjectID:         "PVT_1",
			JiraProjectKey:    "ENG",
			JiraSubdomain:     "acme",
			TransitionsToWIP:  []int{11, 21},
			TransitionsToDone: []int{31},
		},
	}
}

func (h *harness) syncer() *Syncer {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(h.gh, h.jira, h.store, h.opts, logger)
}

// seed stores items before the run starts without recording them.
func (h *harness) seed(t *testing.T, items ...domain.Item) {
	t.Helper()
	project, err := h.store.Load(h.opts.ProjectID)
	require.NoError(t, err)
	require.NoError(t, h.store.Store.UpsertItems(project, items...))
}

func (h *harness) stored(t *testing.T) *domain.Project {
	t.Helper()
	project, err := h.store.Load(h.opts.ProjectID)
	require.NoError(t, err)
	return project
}

func createTestFields() []domain.ProjectField {
	return []domain.ProjectField{
		{ID: "f_title", Name: "Title", DataType: "TITLE"},
		{ID: "f_status", Name: "Status", DataType: domain.FieldTypeSingleSelect, Options: []domain.Option{
			{ID: "o1", Name: "Todo"}, {ID: "o2", Name: "In Progress"}, {ID: "o3", Name: "Done"},
		}},
		{ID: "f_assignees", Name: "Assignees", DataType: "ASSIGNEES"},
		{ID: "f_repo", Name: "Repository", DataType: "REPOSITORY"},
		{ID: "f_estimate", Name: "Estimate", DataType: domain.FieldTypeNumber},
		{ID: "f_type", Name: "Jira issue type", DataType: domain.FieldTypeSingleSelect, Options: []domain.Option{
			{ID: "o9", Name: "Story"},
		}},
		{ID: "f_url", Name: "Jira URL", DataType: domain.FieldTypeText},
	}
}

func strPtr(s string) *string { return &s }

func createTestItem(id string, status domain.Status) domain.Item {
	return domain.Item{
		ID:            id,
		Title:         domain.FieldValue[string]{ID: "f_title", Value: "Task " + id},
		Status:        domain.FieldValue[domain.Status]{ID: "f_status", Value: status},
		Assignees:     domain.FieldValue[[]string]{ID: "f_assignees", Value: []string{}},
		Repository:    domain.FieldValue[*string]{ID: "f_repo"},
		Estimate:      domain.FieldValue[*float64]{ID: "f_estimate"},
		JiraIssueType: domain.FieldValue[*string]{ID: "f_type", Value: strPtr("Story")},
		JiraURL:       domain.FieldValue[*string]{ID: "f_url"},
	}
}

func linked(item domain.Item, key string) domain.Item {
	item.JiraURL.Value = strPtr(jira.IssueURL("acme", key))
	return item
}

func withoutIssueType(item domain.Item) domain.Item {
	item.JiraIssueType.Value = nil
	return item
}

func TestRun_SchemaFailureAbortsStartup(t *testing.T) {
	h := createTestHarness(t)
	h.gh.fields = h.gh.fields[:len(h.gh.fields)-1]

	err := h.syncer().Run(context.Background())
	assert.ErrorIs(t, err, schema.ErrFieldNotFound)
	assert.ErrorIs(t, err, schema.ErrSchema)
	assert.Equal(t, events{"gh.fields"}, *h.log)
}

func TestRun_FieldFetchFailure(t *testing.T) {
	h := createTestHarness(t)
	h.gh.fieldsErr = errors.New("bad credentials")

	err := h.syncer().Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad credentials")
}

func TestRun_AssigneeResolution(t *testing.T) {
	t.Run("failure aborts startup", func(t *testing.T) {
		h := createTestHarness(t)
		h.opts.AssigneeEmails = map[string]string{"octocat": "ghost@acme.io"}

		err := h.syncer().Run(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "octocat")
		assert.NotContains(t, *h.log, "gh.items")
	})

	t.Run("last assignee wins", func(t *testing.T) {
		h := createTestHarness(t)
		h.opts.AssigneeEmails = map[string]string{"hubot": "bot@acme.io", "octocat": "octo@acme.io"}
		h.jira.users = map[string]string{"bot@acme.io": "acc-bot", "octo@acme.io": "acc-octo"}

		item := createTestItem("I1", domain.StatusTodo)
		item.Assignees.Value = []string{"octocat", "hubot"}
		unmapped := createTestItem("I2", domain.StatusTodo)
		unmapped.Assignees.Value = []string{"stranger"}
		h.gh.batches = [][]domain.Item{{item, unmapped}}

		require.NoError(t, h.syncer().Run(context.Background()))
		require.Len(t, h.jira.created, 2)
		assert.Equal(t, "acc-bot", h.jira.created[0].AccountID)
		assert.Empty(t, h.jira.created[1].AccountID)
	})
}

func TestRun_CorruptSnapshot(t *testing.T) {
	h := createTestHarness(t)
	h.store.Store = store.New(t.TempDir())
	require.NoError(t, os.WriteFile(h.store.Path("PVT_1"), []byte("{not json\n"), 0o644))

	err := h.syncer().Run(context.Background())
	assert.ErrorIs(t, err, store.ErrCorruptRecord)
}

func TestRun_InitialFetchFailure(t *testing.T) {
	h := createTestHarness(t)
	h.gh.itemErrs = []error{errors.New("timeout")}

	err := h.syncer().Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
}

func TestRun_InitialPass(t *testing.T) {
	h := createTestHarness(t)
	h.opts.IssuePrefix = "[GH] "
	h.gh.batches = [][]domain.Item{{
		createTestItem("I1", domain.StatusTodo),
		linked(createTestItem("I2", domain.StatusDone), "OLD-9"),
		withoutIssueType(createTestItem("I3", domain.StatusTodo)),
		createTestItem("I4", domain.StatusWIP),
	}}

	require.NoError(t, h.syncer().Run(context.Background()))

	assert.Equal(t, events{
		"gh.fields",
		"gh.items",
		// linked items first
		"jira.transition OLD-9 11",
		"jira.transition OLD-9 21",
		"jira.transition OLD-9 31",
		"store.upsert I2",
		"jira.create [GH] Task I1",
		"gh.update I1 f_url https://acme.atlassian.net/browse/ENG-1",
		"store.upsert I1",
		"jira.create [GH] Task I4",
		"gh.update I4 f_url https://acme.atlassian.net/browse/ENG-2",
		"store.upsert I4",
		"jira.transition ENG-2 11",
		"jira.transition ENG-2 21",
	}, *h.log)

	project := h.stored(t)
	ids := make([]string, 0, len(project.Items))
	for _, item := range project.Items {
		ids = append(ids, item.ID)
	}
	assert.Equal(t, []string{"I2", "I1", "I4"}, ids)

	i1, ok := project.Item("I1")
	require.True(t, ok)
	assert.Equal(t, "https://acme.atlassian.net/browse/ENG-1", i1.URL())

	_, ok = project.Item("I3")
	assert.False(t, ok, "items without issue type are not stored")
}

func TestRun_ForeignURLIsNotLinked(t *testing.T) {
	h := createTestHarness(t)
	item := createTestItem("I1", domain.StatusTodo)
	item.JiraURL.Value = strPtr("https://other.atlassian.net/browse/X-1")
	h.gh.batches = [][]domain.Item{{item}}

	require.NoError(t, h.syncer().Run(context.Background()))
	require.Len(t, h.jira.created, 1)
	assert.Equal(t, "https://acme.atlassian.net/browse/ENG-1", h.stored(t).Items[0].URL())
}

func TestRun_CreateIssueRequest(t *testing.T) {
	h := createTestHarness(t)
	h.opts.EstimateField = "customfield_10016"

	estimate := 5.0
	withEstimate := createTestItem("I1", domain.StatusTodo)
	withEstimate.Estimate.Value = &estimate
	h.gh.batches = [][]domain.Item{{withEstimate, createTestItem("I2", domain.StatusTodo)}}

	require.NoError(t, h.syncer().Run(context.Background()))
	require.Len(t, h.jira.created, 2)

	assert.Equal(t, jira.IssueRequest{
		ProjectKey: "ENG",
		Summary:    "Task I1",
		IssueType:  "Story",
		Fields:     map[string]any{"customfield_10016": 5.0},
	}, h.jira.created[0])
	assert.Nil(t, h.jira.created[1].Fields)
}

func TestRun_SteadyTodoToDone(t *testing.T) {
	h := createTestHarness(t)
	h.seed(t, linked(createTestItem("I1", domain.StatusTodo), "ENG-1"))
	h.gh.batches = [][]domain.Item{{linked(createTestItem("I1", domain.StatusDone), "ENG-1")}}

	require.NoError(t, h.syncer().Run(context.Background()))

	assert.Equal(t, events{
		"gh.fields",
		"gh.items",
		"jira.transition ENG-1 11",
		"jira.transition ENG-1 21",
		"jira.transition ENG-1 31",
		"store.upsert I1",
	}, *h.log)

	got, ok := h.stored(t).Item("I1")
	require.True(t, ok)
	assert.Equal(t, domain.StatusDone, got.Status.Value)
}

func TestRun_SteadyWIPToDone(t *testing.T) {
	h := createTestHarness(t)
	h.seed(t, linked(createTestItem("I1", domain.StatusWIP), "ENG-1"))
	h.gh.batches = [][]domain.Item{{linked(createTestItem("I1", domain.StatusDone), "ENG-1")}}

	require.NoError(t, h.syncer().Run(context.Background()))

	assert.Equal(t, events{
		"gh.fields",
		"gh.items",
		"jira.transition ENG-1 31",
		"store.upsert I1",
	}, *h.log)
}

func TestRun_SteadyTransitionOutcome(t *testing.T) {
	tests := []struct {
		name       string
		errs       map[int]error
		wantStatus domain.Status
	}{
		{"all succeed", nil, domain.StatusWIP},
		{"earlier id fails, last succeeds", map[int]error{11: errors.New("invalid transition")}, domain.StatusWIP},
		{"last id fails", map[int]error{21: errors.New("invalid transition")}, domain.StatusTodo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := createTestHarness(t)
			h.jira.transitionErrs = tt.errs
			h.seed(t, linked(createTestItem("I1", domain.StatusTodo), "ENG-1"))
			h.gh.batches = [][]domain.Item{{linked(createTestItem("I1", domain.StatusWIP), "ENG-1")}}

			require.NoError(t, h.syncer().Run(context.Background()))

			// both ids are always attempted
			assert.Contains(t, *h.log, "jira.transition ENG-1 11")
			assert.Contains(t, *h.log, "jira.transition ENG-1 21")

			got, ok := h.stored(t).Item("I1")
			require.True(t, ok)
			assert.Equal(t, tt.wantStatus, got.Status.Value)
		})
	}
}

func TestRun_SteadyIgnoresBackwardMoves(t *testing.T) {
	h := createTestHarness(t)
	h.seed(t, linked(createTestItem("I1", domain.StatusDone), "ENG-1"))
	h.gh.batches = [][]domain.Item{{linked(createTestItem("I1", domain.StatusTodo), "ENG-1")}}

	require.NoError(t, h.syncer().Run(context.Background()))
	assert.Equal(t, events{"gh.fields", "gh.items"}, *h.log)
}

func TestRun_SteadyNewItemWithoutIssueType(t *testing.T) {
	h := createTestHarness(t)
	h.seed(t, linked(createTestItem("I1", domain.StatusTodo), "ENG-1"))
	h.gh.batches = [][]domain.Item{{
		linked(createTestItem("I1", domain.StatusTodo), "ENG-1"),
		withoutIssueType(createTestItem("I2", domain.StatusTodo)),
	}}

	require.NoError(t, h.syncer().Run(context.Background()))

	assert.Equal(t, events{"gh.fields", "gh.items"}, *h.log)
	_, ok := h.stored(t).Item("I2")
	assert.False(t, ok)
}

func TestRun_SteadyNewItemAlreadyLinked(t *testing.T) {
	h := createTestHarness(t)
	h.seed(t, linked(createTestItem("I1", domain.StatusTodo), "ENG-1"))
	h.gh.batches = [][]domain.Item{{
		linked(createTestItem("I1", domain.StatusTodo), "ENG-1"),
		linked(createTestItem("I2", domain.StatusWIP), "ENG-7"),
	}}

	require.NoError(t, h.syncer().Run(context.Background()))

	assert.Empty(t, h.jira.created)
	assert.Equal(t, events{
		"gh.fields",
		"gh.items",
		"jira.transition ENG-7 11",
		"jira.transition ENG-7 21",
		"store.upsert I2",
	}, *h.log)
}

func TestRun_URLWriteFailure(t *testing.T) {
	h := createTestHarness(t)
	h.gh.updateErr = errors.New("forbidden")
	h.gh.batches = [][]domain.Item{{createTestItem("I1", domain.StatusDone)}}

	require.NoError(t, h.syncer().Run(context.Background()))

	assert.Equal(t, events{
		"gh.fields",
		"gh.items",
		"jira.create Task I1",
		"gh.update I1 f_url https://acme.atlassian.net/browse/ENG-1",
	}, *h.log)
	assert.Empty(t, h.stored(t).Items)
}

func TestRun_CreateFailureDoesNotStopSiblings(t *testing.T) {
	h := createTestHarness(t)
	h.jira.createErr = map[string]error{"Task I1": &jira.APIError{StatusCode: 400}}
	h.gh.batches = [][]domain.Item{{
		createTestItem("I1", domain.StatusTodo),
		createTestItem("I2", domain.StatusTodo),
	}}

	require.NoError(t, h.syncer().Run(context.Background()))

	assert.NotContains(t, *h.log, "gh.update I1 f_url https://acme.atlassian.net/browse/ENG-1")
	project := h.stored(t)
	require.Len(t, project.Items, 1)
	assert.Equal(t, "I2", project.Items[0].ID)
}

func TestRun_StoreFailureSkipsTransitions(t *testing.T) {
	h := createTestHarness(t)
	h.store.err = store.ErrIO
	h.gh.batches = [][]domain.Item{{createTestItem("I1", domain.StatusWIP)}}

	require.NoError(t, h.syncer().Run(context.Background()))
	assert.NotContains(t, *h.log, "jira.transition ENG-1 11")
}

func TestRun_Loop(t *testing.T) {
	h := createTestHarness(t)
	h.opts.Interval = time.Minute
	h.gh.batches = [][]domain.Item{
		{createTestItem("I1", domain.StatusTodo)},
		nil,
		{createTestItem("I1", domain.StatusTodo), createTestItem("I2", domain.StatusTodo)},
	}
	h.gh.itemErrs = []error{nil, errors.New("bad gateway"), nil}

	s := h.syncer()
	waits := 0
	s.wait = func(ctx context.Context, d time.Duration) error {
		assert.Equal(t, time.Minute, d)
		waits++
		if waits > 2 {
			return context.Canceled
		}
		return nil
	}

	require.NoError(t, s.Run(context.Background()))

	assert.Equal(t, 3, waits)
	assert.Equal(t, 3, h.gh.fetches)
	require.Len(t, h.jira.created, 2)
	assert.Equal(t, "Task I2", h.jira.created[1].Summary)
	assert.Len(t, h.stored(t).Items, 2)
}

func TestRun_StoredSnapshotSurvivesFetchFailure(t *testing.T) {
	h := createTestHarness(t)
	h.seed(t, linked(createTestItem("I1", domain.StatusTodo), "ENG-1"))
	h.opts.Interval = time.Minute
	h.gh.batches = [][]domain.Item{
		nil,
		{linked(createTestItem("I1", domain.StatusWIP), "ENG-1")},
	}
	h.gh.itemErrs = []error{errors.New("bad gateway")}

	s := h.syncer()
	waits := 0
	s.wait = func(ctx context.Context, d time.Duration) error {
		waits++
		if waits > 1 {
			return context.Canceled
		}
		return nil
	}

	require.NoError(t, s.Run(context.Background()))

	assert.Equal(t, 2, waits)
	assert.Equal(t, 2, h.gh.fetches)
	assert.Contains(t, *h.log, "jira.transition ENG-1 11")
	assert.Contains(t, *h.log, "jira.transition ENG-1 21")
	item, ok := h.stored(t).Item("I1")
	require.True(t, ok)
	assert.Equal(t, domain.StatusWIP, item.Status.Value)
}

func TestRun_StoredSnapshotSinglePassFetchFailure(t *testing.T) {
	h := createTestHarness(t)
	h.seed(t, linked(createTestItem("I1", domain.StatusTodo), "ENG-1"))
	h.gh.itemErrs = []error{errors.New("bad gateway")}

	err := h.syncer().Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad gateway")
}

func TestRun_NoIntervalRunsOnePass(t *testing.T) {
	h := createTestHarness(t)
	h.seed(t, linked(createTestItem("I1", domain.StatusTodo), "ENG-1"))

	s := h.syncer()
	s.wait = func(ctx context.Context, d time.Duration) error {
		t.Fatal("single pass must not sleep")
		return nil
	}

	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, 1, h.gh.fetches)
}

func TestSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleep(ctx, time.Hour), context.Canceled)

	assert.NoError(t, sleep(context.Background(), time.Millisecond))
}

func TestRunSequence(t *testing.T) {
	h := createTestHarness(t)
	failure := errors.New("invalid transition")
	h.jira.transitionErrs = map[int]error{2: failure}
	s := h.syncer()

	assert.NoError(t, s.runSequence(context.Background(), "ENG-1", "I1", nil))
	assert.NoError(t, s.runSequence(context.Background(), "ENG-1", "I1", []int{2, 3}))
	assert.ErrorIs(t, s.runSequence(context.Background(), "ENG-1", "I1", []int{3, 2}), failure)
}
