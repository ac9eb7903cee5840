package cmd

const DESCRIPTION = `
Missionctl runs and operates the content duplication mission
controller: a daemon that admits inbound content notifications,
fans each admitted item out into its target language variants and
self-heals around quota limits, failures and stuck missions.
`

const (
	DaemonDescription = `The daemon command starts the mission controller in the
foreground. It opens the state database, recovers missions
left pending by a previous run, starts the job scheduler and
the hourly health sweep and serves the JSON-RPC endpoint.

Example:
        missionctl daemon

`
	DuplicateDescription = `The duplicate command runs a duplication for one item right
away, bypassing admission and the daily quota. By default the
daemon's configured target languages are used; --langs picks a
subset.

Example:
        missionctl duplicate 42
        missionctl duplicate 42 --langs en-ca,en-au

`
	StatusDescription = `The status command prints the mission record of an item: its
current status, per-language results and the last error, if
any. Without an item id it prints the daemon health banner
instead: daily quota usage, consecutive failures, breaker
occupancy and the abort flag.

Example:
        missionctl status
        missionctl status 42

`
	AbortDescription = `The abort command raises the global abort flag. Running
missions observe the flag between per-language steps and fail
out; the flag stays up until reset.

Example:
        missionctl abort

`
	ResetDescription = `The reset command clears all transient control state: the
abort flag, the consecutive-failure counter and a wedged
circuit breaker. Use it to recover after an abort or a crash.

Example:
        missionctl reset

`
	LogDescription = `The log command prints the newest entries of the daemon's
mission log.

Example:
        missionctl log
        missionctl log -n 200

`
)

const HELP_TEMPL = `Usage: {{if .UsageText}}{{.UsageText}}{{else}}{{.HelpName}} {{if .VisibleFlags}}[global options]{{end}}{{if .Commands}} command [command options]{{end}} {{if .ArgsUsage}}{{.ArgsUsage}}{{else}}[arguments...]{{end}}{{end}}
{{.Description}}{{if .VisibleCommands}}
Commands:{{range .VisibleCategories}}{{if .Name}}

{{.Name}}:{{range .VisibleCommands}}
  {{join .Names ", "}}{{"\t"}}{{.Usage}}{{end}}{{else}}{{range .VisibleCommands}}
{{"\t"}}{{index .Names 0}}{{"\t:\t"}}{{.Usage}}{{end}}{{end}}{{end}}{{end}}{{if .VisibleFlags}}{{end}}

Use "{{.HelpName}} help <command>" for more information about any command.

`

const CMD_HELP_TEMPL = `{{if .Description}}{{.Description}}{{else}}{{.HelpName}} - {{.Usage}}

{{end}}Usage:
        {{.HelpName}} {{if .UsageText}}{{.UsageText}}{{else}}[arguments...]{{end}}{{if .VisibleFlags}}

Supported Flags:{{range .VisibleFlags}}
  {{.}}{{end}}{{end}}

`
