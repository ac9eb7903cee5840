package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli"

	"github.com/onwardseo/missiond/cmd/common"
)

func abort(ctx *cli.Context) error {
	client, err := getClient(ctx)
	if err != nil {
		common.PrintRuntimeErr(ctx, "abort", "load_config", err)
		return nil
	}
	if err := client.Abort(context.Background()); err != nil {
		common.PrintRuntimeErr(ctx, "abort", "rpc", err)
		return nil
	}
	fmt.Println("Abort flag raised. Running missions will fail out; use reset to clear.")
	return nil
}

func reset(ctx *cli.Context) error {
	client, err := getClient(ctx)
	if err != nil {
		common.PrintRuntimeErr(ctx, "reset", "load_config", err)
		return nil
	}
	if err := client.Reset(context.Background()); err != nil {
		common.PrintRuntimeErr(ctx, "reset", "rpc", err)
		return nil
	}
	fmt.Println("Transient control state cleared.")
	return nil
}

func logTail(ctx *cli.Context) error {
	client, err := getClient(ctx)
	if err != nil {
		common.PrintRuntimeErr(ctx, "log", "load_config", err)
		return nil
	}
	lines, err := client.Log(context.Background(), ctx.Int("lines"))
	if err != nil {
		common.PrintRuntimeErr(ctx, "log", "rpc", err)
		return nil
	}
	for _, line := range lines {
		fmt.Println(line)
	}
	return nil
}

func stop(ctx *cli.Context) error {
	client, err := getClient(ctx)
	if err != nil {
		common.PrintRuntimeErr(ctx, "stop", "load_config", err)
		return nil
	}
	if err := client.Stop(context.Background()); err != nil {
		common.PrintRuntimeErr(ctx, "stop", "rpc", err)
		return nil
	}
	fmt.Println("Daemon stopping.")
	return nil
}
