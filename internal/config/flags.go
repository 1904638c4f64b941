package config

import "github.com/spf13/pflag"

// Configuration keys. Each is both a flag name and, upper-cased with
// dashes replaced by underscores, the suffix of a GHPSYNC_ variable.
const (
	KeyVerbose     = "verbose"
	KeyConfig      = "config"
	KeyGitHubToken = "gh-token"
	KeyJiraToken   = "jira-token"
	KeyJiraEmail   = "jira-email"
	KeyDataDir     = "data-dir"
	KeyLogFile     = "log-file"

	KeyGitHubProjectID   = "gh-project-id"
	KeyJiraProjectKey    = "jira-project-key"
	KeyJiraSubdomain     = "jira-subdomain"
	KeyAssigneesMap      = "gh-assignees-map"
	KeyTransitionsToWIP  = "transitions-to-wip"
	KeyTransitionsToDone = "transitions-to-done"
	KeySleepTime         = "sleep-time"
	KeyIssuePrefix       = "jira-issue-prefix"
	KeyEstimateField     = "jira-estimate-field"
)

// DefaultDataDir is where snapshots are kept unless configured otherwise.
const DefaultDataDir = "./data"

// AddGlobalFlags registers the flags shared by every command.
func AddGlobalFlags(fs *pflag.FlagSet) {
	fs.BoolP(KeyVerbose, "v", false, "enable debug logging")
	fs.String(KeyConfig, "", "YAML configuration file")
	fs.String(KeyGitHubToken, "", "GitHub token (default: $GITHUB_TOKEN, then gh auth token)")
	fs.String(KeyJiraToken, "", "Jira API token (default: $JIRA_TOKEN)")
	fs.String(KeyJiraEmail, "", "Jira account email; when set the token is sent as email:token basic auth")
	fs.String(KeyDataDir, DefaultDataDir, "directory holding project snapshots")
	fs.String(KeyLogFile, "", "also write JSON logs to this file, rotated by size")
}

// AddProjectFlag registers the GitHub project id flag.
func AddProjectFlag(fs *pflag.FlagSet) {
	fs.String(KeyGitHubProjectID, "", "GitHub project (v2) node id")
}

// AddSyncFlags registers the flags of the sync command.
func AddSyncFlags(fs *pflag.FlagSet) {
	AddProjectFlag(fs)
	fs.String(KeyJiraProjectKey, "", "Jira project key issues are created in")
	fs.String(KeyJiraSubdomain, "", "Jira Cloud subdomain (<subdomain>.atlassian.net)")
	fs.Var(assigneesValue{}, KeyAssigneesMap, "GitHub login to Jira email map (login=email,... or login:email,...)")
	fs.IntSlice(KeyTransitionsToWIP, []int{}, "Jira transition ids applied for In Progress, in order")
	fs.IntSlice(KeyTransitionsToDone, []int{}, "Jira transition ids applied for Done, after the In Progress ones")
	fs.Duration(KeySleepTime, 0, "poll interval; 0 runs a single pass")
	fs.String(KeyIssuePrefix, "", "text prepended to every created issue summary")
	fs.String(KeyEstimateField, "", "Jira field id receiving the item's Estimate")
}
