package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli"

	"github.com/onwardseo/missiond/cmd/common"
	"github.com/onwardseo/missiond/pkg/missioncli"
)

func duplicate(ctx *cli.Context) error {
	itemID := ctx.Args().First()
	if itemID == "" {
		return common.PrintErrWithCmdHelp(ctx, fmt.Errorf("no item id provided"))
	}
	var langs []string
	if v := ctx.String("langs"); v != "" {
		for _, l := range strings.Split(v, ",") {
			if l = strings.TrimSpace(l); l != "" {
				langs = append(langs, l)
			}
		}
	}

	client, err := getClient(ctx)
	if err != nil {
		common.PrintRuntimeErr(ctx, "duplicate", "load_config", err)
		return nil
	}

	p, bar := common.NewSpinner("Duplicating")
	st, err := client.Duplicate(context.Background(), itemID, langs)
	bar.SetTotal(-1, true)
	p.Wait()
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("duplicate %s: %v", itemID, err), 1)
	}
	printStatus(st)
	return nil
}

func printStatus(st *missioncli.Status) {
	fmt.Printf("Item:   %s\n", st.ItemID)
	if st.Title != "" {
		fmt.Printf("Title:  %s\n", st.Title)
	}
	fmt.Printf("Status: %s\n", st.Status)
	for _, r := range st.Results {
		fmt.Printf("  %-6s -> %s\n", r.Language, r.ItemID)
	}
	if st.Error != "" {
		fmt.Printf("Error:  %s\n", st.Error)
	}
	if st.CompletedAt != "" {
		fmt.Printf("Done:   %s\n", st.CompletedAt)
	}
}
