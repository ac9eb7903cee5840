package cmd

import "github.com/urfave/cli"

var connFlags = []cli.Flag{
	cli.StringFlag{
		Name:  "config, c",
		Usage: "path to the daemon config file",
	},
	cli.StringFlag{
		Name:   "addr",
		Usage:  "daemon RPC address (host:port)",
		EnvVar: "MISSIOND_ADDR",
	},
	cli.StringFlag{
		Name:   "token",
		Usage:  "daemon RPC bearer token",
		EnvVar: "MISSIOND_TOKEN",
	},
}

var daemonFlags = connFlags

var duplicateFlags = append([]cli.Flag{
	cli.StringFlag{
		Name:  "langs, l",
		Usage: "comma-separated target languages (default: daemon config)",
	},
}, connFlags...)

var logFlags = append([]cli.Flag{
	cli.IntFlag{
		Name:  "lines, n",
		Usage: "number of log lines to print",
		Value: 50,
	},
}, connFlags...)
