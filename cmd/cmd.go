package cmd

import (
	"fmt"
	"runtime"

	"github.com/urfave/cli"
	"github.com/onwardseo/missiond/cmd/common"
)

// BuildArgs carries build-time metadata injected through ldflags.
type BuildArgs struct {
	Version   string
	BuildType string
	Date      string
	Commit    string
}

// Execute runs the missionctl command tree.
func Execute(args []string, bArgs BuildArgs) error {
	app := cli.App{
		Name:                  "missionctl",
		HelpName:              "missionctl",
		Usage:                 "Content duplication mission controller.",
		Version:               fmt.Sprintf("%s-%s", bArgs.Version, bArgs.BuildType),
		UsageText:             "missionctl <command> [arguments...]",
		Description:           DESCRIPTION,
		CustomAppHelpTemplate: HELP_TEMPL,
		OnUsageError:          common.UsageErrorCallback,
		Commands: []cli.Command{
			{
				Name:               "daemon",
				Usage:              "run the mission controller daemon",
				Action:             daemon,
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Description:        DaemonDescription,
				Flags:              daemonFlags,
			},
			{
				Name:                   "duplicate",
				Aliases:                []string{"d"},
				Usage:                  "duplicate an item into the target languages",
				Action:                 duplicate,
				OnUsageError:           common.UsageErrorCallback,
				CustomHelpTemplate:     CMD_HELP_TEMPL,
				Description:            DuplicateDescription,
				UseShortOptionHandling: true,
				Flags:                  duplicateFlags,
			},
			{
				Name:                   "status",
				Aliases:                []string{"s"},
				Usage:                  "show the mission record for an item",
				Action:                 status,
				OnUsageError:           common.UsageErrorCallback,
				CustomHelpTemplate:     CMD_HELP_TEMPL,
				Description:            StatusDescription,
				UseShortOptionHandling: true,
				Flags:                  connFlags,
			},
			{
				Name:               "abort",
				Usage:              "raise the global abort flag",
				Action:             abort,
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Description:        AbortDescription,
				Flags:              connFlags,
			},
			{
				Name:               "reset",
				Usage:              "clear the abort flag, failure counter and breaker",
				Action:             reset,
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Description:        ResetDescription,
				Flags:              connFlags,
			},
			{
				Name:                   "log",
				Aliases:                []string{"l"},
				Usage:                  "print the newest mission log entries",
				Action:                 logTail,
				OnUsageError:           common.UsageErrorCallback,
				CustomHelpTemplate:     CMD_HELP_TEMPL,
				Description:            LogDescription,
				UseShortOptionHandling: true,
				Flags:                  logFlags,
			},
			{
				Name:   "stop",
				Usage:  "stop a running daemon",
				Action: stop,
				Flags:  connFlags,
			},
			{
				Name:    "help",
				Aliases: []string{"h"},
				Usage:   "prints the help message",
				Action:  common.Help,
			},
			{
				Name:               "version",
				Aliases:            []string{"v"},
				Usage:              "prints installed version of missionctl",
				UsageText:          " ",
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Action:             common.GetVersion,
			},
		},
		Action:      common.Help,
		HideHelp:    true,
		HideVersion: true,
	}
	common.VersionCmdStr = fmt.Sprintf("%s %s (%s_%s)\nBuild: %s=%s\n",
		app.Name,
		app.Version,
		runtime.GOOS,
		runtime.GOARCH,
		bArgs.Date, bArgs.Commit,
	)
	return app.Run(args)
}
