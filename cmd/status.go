package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli"

	"github.com/onwardseo/missiond/cmd/common"
)

// status prints the mission record for an item, or the daemon-wide health
// banner when no item id is given.
func status(ctx *cli.Context) error {
	client, err := getClient(ctx)
	if err != nil {
		common.PrintRuntimeErr(ctx, "status", "load_config", err)
		return nil
	}

	itemID := ctx.Args().First()
	if itemID == "" {
		ds, err := client.Status(context.Background())
		if err != nil {
			common.PrintRuntimeErr(ctx, "status", "rpc", err)
			return nil
		}
		fmt.Printf("Health: %s\n", ds.Health)
		fmt.Printf("Daily quota: %d/%d\n", ds.DailyCount, ds.DailyLimit)
		fmt.Printf("Consecutive failures: %d\n", ds.FailureCount)
		if ds.BreakerHolder != "" {
			fmt.Printf("Breaker held by: %s\n", ds.BreakerHolder)
		}
		if ds.AbortFlag {
			fmt.Println("Abort flag: SET")
		}
		if ds.EmergencyStop {
			fmt.Println("Emergency stop: ACTIVE")
		}
		return nil
	}

	st, err := client.MissionStatus(context.Background(), itemID)
	if err != nil {
		common.PrintRuntimeErr(ctx, "status", "rpc", err)
		return nil
	}
	printStatus(st)
	return nil
}
