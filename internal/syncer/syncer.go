// Package syncer reconciles a GitHub project with Jira. It validates the
// project's field schema, loads the local snapshot, then on each pass
// creates Jira issues for unlinked items and pushes forward status moves as
// Jira workflow transitions.
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/h0rv/ghpsync/internal/diff"
	"github.com/h0rv/ghpsync/internal/domain"
	"github.com/h0rv/ghpsync/internal/jira"
	"github.com/h0rv/ghpsync/internal/schema"
)

// GitHub is the part of the GitHub client the sync uses.
type GitHub interface {
	GetProjectFields(ctx context.Context, projectID string) ([]domain.ProjectField, error)
	GetProjectItems(ctx context.Context, projectID string, schema domain.FieldSchema) ([]domain.Item, error)
	UpdateProjectItemField(ctx context.Context, projectID, itemID, fieldID string, update domain.FieldUpdate) error
}

// Jira is the part of the Jira client the sync uses.
type Jira interface {
	SearchUserByEmail(ctx context.Context, email string) (jira.User, error)
	CreateIssue(ctx context.Context, req jira.IssueRequest) (jira.Issue, error)
	TransitionIssue(ctx context.Context, key string, transitionID int) error
}

// Store persists the project snapshot.
type Store interface {
	Load(projectID string) (*domain.Project, error)
	UpsertItems(project *domain.Project, items ...domain.Item) error
}

// Options configures a Syncer.
type Options struct {
	ProjectID      string
	JiraProjectKey string
	JiraSubdomain  string

	// IssuePrefix is prepended to the summary of created issues.
	IssuePrefix string
	// EstimateField is the Jira field id receiving the item Estimate.
	EstimateField string

	TransitionsToWIP  []int
	TransitionsToDone []int

	// AssigneeEmails maps GitHub logins to Jira account emails.
	AssigneeEmails map[string]string

	// Interval between passes; zero or less runs a single pass.
	Interval time.Duration
}

// Stats counts what one pass did.
type Stats struct {
	Created      int
	Linked       int
	Transitioned int
	Skipped      int
	Failed       int
}

// Syncer owns the in-memory snapshot of one project for the lifetime of a run.
type Syncer struct {
	gh     GitHub
	jira   Jira
	store  Store
	opts   Options
	logger *slog.Logger

	schema   domain.FieldSchema
	accounts map[string]string
	project  *domain.Project

	wait func(ctx context.Context, d time.Duration) error
}

// New creates a Syncer. A nil logger means slog.Default.
func New(gh GitHub, jiraClient Jira, store Store, opts Options, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		gh:     gh,
		jira:   jiraClient,
		store:  store,
		opts:   opts,
		logger: logger.With(slog.String("project", opts.ProjectID)),
		wait:   sleep,
	}
}

// Run validates the project, reconciles it once and, when an interval is
// set, keeps polling until ctx is cancelled. Errors are returned only for
// startup failures; a cancelled loop returns nil. Once a snapshot is stored,
// a failed first fetch is logged and left to the next poll.
func (s *Syncer) Run(ctx context.Context) error {
	if err := s.prepare(ctx); err != nil {
		return err
	}

	remote, err := s.gh.GetProjectItems(ctx, s.opts.ProjectID, s.schema)
	switch {
	case err != nil && (len(s.project.Items) == 0 || s.opts.Interval <= 0):
		return fmt.Errorf("fetching project items: %w", err)
	case err != nil:
		// a stored snapshot lets the loop pick up where it left off
		s.logger.Error("unable to refresh items", slog.Any("error", err))
	case len(s.project.Items) == 0:
		s.logStats("initial pass complete", s.initialPass(ctx, remote))
	default:
		s.logStats("pass complete", s.steadyPass(ctx, remote))
	}

	if s.opts.Interval <= 0 {
		return nil
	}

	for {
		s.logger.Info("sleeping", slog.Duration("interval", s.opts.Interval))
		if err := s.wait(ctx, s.opts.Interval); err != nil {
			s.logger.Info("stopping sync loop", slog.Any("reason", err))
			return nil
		}

		s.logger.Info("refreshing github project items")
		remote, err := s.gh.GetProjectItems(ctx, s.opts.ProjectID, s.schema)
		if err != nil {
			s.logger.Error("unable to refresh items", slog.Any("error", err))
			continue
		}
		s.logStats("pass complete", s.steadyPass(ctx, remote))
	}
}

// prepare runs the startup steps; any failure aborts the run before a
// remote mutation happens.
func (s *Syncer) prepare(ctx context.Context) error {
	fields, err := s.gh.GetProjectFields(ctx, s.opts.ProjectID)
	if err != nil {
		return fmt.Errorf("fetching project fields: %w", err)
	}
	s.schema, err = schema.Validate(fields)
	if err != nil {
		return fmt.Errorf("validating project fields: %w", err)
	}
	s.logger.Debug("field schema validated", slog.Int("fields", len(s.schema)))

	s.accounts, err = s.resolveAssignees(ctx)
	if err != nil {
		return err
	}

	s.project, err = s.store.Load(s.opts.ProjectID)
	if err != nil {
		return fmt.Errorf("loading snapshot: %w", err)
	}
	s.logger.Debug("loaded local project data", slog.Int("items", len(s.project.Items)))
	return nil
}

// resolveAssignees turns the login to email map into a login to Jira
// account id map.
func (s *Syncer) resolveAssignees(ctx context.Context) (map[string]string, error) {
	accounts := make(map[string]string, len(s.opts.AssigneeEmails))
	for _, login := range slices.Sorted(maps.Keys(s.opts.AssigneeEmails)) {
		email := s.opts.AssigneeEmails[login]
		user, err := s.jira.SearchUserByEmail(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("resolving jira account of %s: %w", login, err)
		}
		accounts[login] = user.AccountID
		s.logger.Debug("mapped github user",
			slog.String("login", login),
			slog.String("email", email),
			slog.String("account", user.AccountID))
	}
	return accounts, nil
}

// initialPass handles a batch against an empty snapshot: items already
// linked to an issue get their status re-applied and are stored, then issues
// are created for the rest.
func (s *Syncer) initialPass(ctx context.Context, remote []domain.Item) Stats {
	var stats Stats

	var unlinked []domain.Item
	for _, item := range remote {
		key, ok := s.issueKey(item)
		if !ok {
			unlinked = append(unlinked, item)
			continue
		}
		s.link(ctx, key, item, &stats)
	}

	for _, item := range unlinked {
		s.createIssue(ctx, item, &stats)
	}
	return stats
}

// steadyPass pushes forward status moves of stored items and handles items
// that appeared since the last pass.
func (s *Syncer) steadyPass(ctx context.Context, remote []domain.Item) Stats {
	var stats Stats

	for _, entry := range diff.FindItemsWithDiff(s.project, remote) {
		item := entry.Item
		log := s.logger.With(slog.String("item", item.ID))

		key, ok := s.issueKey(item)
		if !ok {
			s.createIssue(ctx, item, &stats)
			continue
		}

		var err error
		switch entry.NewStatus {
		case domain.StatusWIP:
			err = s.runSequence(ctx, key, item.ID, s.opts.TransitionsToWIP)
		case domain.StatusDone:
			if entry.PrevStatus == domain.StatusTodo {
				_ = s.runSequence(ctx, key, item.ID, s.opts.TransitionsToWIP)
			}
			err = s.runSequence(ctx, key, item.ID, s.opts.TransitionsToDone)
		}
		if err != nil {
			log.Warn("status not synced, retrying next pass",
				slog.String("issue", key),
				slog.String("from", string(entry.PrevStatus)),
				slog.String("to", string(entry.NewStatus)))
			stats.Failed++
			continue
		}

		if err := s.store.UpsertItems(s.project, item); err != nil {
			log.Error("unable to store item", slog.Any("error", err))
			stats.Failed++
			continue
		}
		log.Info("synced status",
			slog.String("issue", key),
			slog.String("status", string(entry.NewStatus)))
		stats.Transitioned++
	}

	for _, item := range diff.FindNewItems(s.project, remote) {
		key, ok := s.issueKey(item)
		if !ok {
			s.createIssue(ctx, item, &stats)
			continue
		}

		s.link(ctx, key, item, &stats)
	}

	return stats
}

// link re-applies the status of an item that already has an issue and
// stores it.
func (s *Syncer) link(ctx context.Context, key string, item domain.Item, stats *Stats) {
	_ = s.applyStatus(ctx, key, item)
	if err := s.store.UpsertItems(s.project, item); err != nil {
		s.logger.Error("unable to store item", slog.String("item", item.ID), slog.Any("error", err))
		stats.Failed++
		return
	}
	s.logger.Debug("linked existing issue", slog.String("item", item.ID), slog.String("issue", key))
	stats.Linked++
}

// createIssue creates the Jira issue of an unlinked item, writes its URL
// back to GitHub, stores the item and applies its current status. An item
// without a Jira issue type is skipped. Failures are logged and leave the
// item for the next pass.
func (s *Syncer) createIssue(ctx context.Context, item domain.Item, stats *Stats) {
	log := s.logger.With(slog.String("item", item.ID))

	issueType := item.IssueType()
	if issueType == "" {
		log.Warn("item does not have an issue type, skipping creation", slog.String("title", item.Title.Value))
		stats.Skipped++
		return
	}

	req := jira.IssueRequest{
		ProjectKey: s.opts.JiraProjectKey,
		Summary:    s.opts.IssuePrefix + item.Title.Value,
		IssueType:  issueType,
		AccountID:  s.accounts[item.LastAssignee()],
	}
	if s.opts.EstimateField != "" && item.Estimate.Value != nil {
		req.Fields = map[string]any{s.opts.EstimateField: *item.Estimate.Value}
	}

	issue, err := s.jira.CreateIssue(ctx, req)
	if err != nil {
		log.Error("unable to create jira issue", slog.Any("error", err))
		stats.Failed++
		return
	}

	if err := s.gh.UpdateProjectItemField(ctx, s.opts.ProjectID, item.ID, item.JiraURL.ID, domain.TextUpdate(issue.URL)); err != nil {
		// the next pass creates the issue again
		log.Error("unable to update jira url in github",
			slog.String("issue", issue.Key),
			slog.Any("error", err))
		stats.Failed++
		return
	}

	url := issue.URL
	item.JiraURL.Value = &url
	if err := s.store.UpsertItems(s.project, item); err != nil {
		log.Error("unable to update jira url in local storage",
			slog.String("issue", issue.Key),
			slog.Any("error", err))
		stats.Failed++
		return
	}

	log.Info("created jira issue", slog.String("issue", issue.Key), slog.String("url", issue.URL))
	stats.Created++

	_ = s.applyStatus(ctx, issue.Key, item)
}

// applyStatus brings an issue to the item's status. Done replays the
// In Progress sequence before the Done sequence.
func (s *Syncer) applyStatus(ctx context.Context, key string, item domain.Item) error {
	switch item.Status.Value {
	case domain.StatusWIP:
		return s.runSequence(ctx, key, item.ID, s.opts.TransitionsToWIP)
	case domain.StatusDone:
		_ = s.runSequence(ctx, key, item.ID, s.opts.TransitionsToWIP)
		return s.runSequence(ctx, key, item.ID, s.opts.TransitionsToDone)
	}
	return nil
}

// runSequence attempts every transition id in order. A failing id does not
// stop the rest; the result is the outcome of the last attempt.
func (s *Syncer) runSequence(ctx context.Context, key, itemID string, transitions []int) error {
	var err error
	for _, id := range transitions {
		err = s.jira.TransitionIssue(ctx, key, id)
		if err != nil {
			s.logger.Debug("unable to transition issue",
				slog.String("item", itemID),
				slog.String("issue", key),
				slog.Int("transition", id),
				slog.Any("error", err))
		}
	}
	return err
}

// issueKey returns the issue key of an item linked to the configured site.
func (s *Syncer) issueKey(item domain.Item) (string, bool) {
	return jira.IssueKeyFromURL(s.opts.JiraSubdomain, item.URL())
}

func (s *Syncer) logStats(msg string, stats Stats) {
	s.logger.Info(msg,
		slog.Int("created", stats.Created),
		slog.Int("linked", stats.Linked),
		slog.Int("transitioned", stats.Transitioned),
		slog.Int("skipped", stats.Skipped),
		slog.Int("failed", stats.Failed),
		slog.Int("stored", len(s.project.Items)))
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
