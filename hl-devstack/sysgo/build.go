package sysgo

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/log"

	"github.com/hyperlane-xyz/hyperlane-localnet/hl-service/logpipe"
	"github.com/hyperlane-xyz/hyperlane-localnet/hl-service/subproc"
)

// AgentBinaries are the cargo targets needed by a run.
var AgentBinaries = []string{"relayer", "validator", "scraper", "init-db"}

// BuildCommand is the cargo build of the agents in the rust workspace.
func BuildCommand(cargo, workspace string) subproc.Command {
	args := []string{"build", "--features", "test-utils"}
	for _, bin := range AgentBinaries {
		args = append(args, "--bin", bin)
	}
	return subproc.Command{Path: cargo, Args: args, Dir: workspace}
}

// BuildAgents compiles the agent binaries. Cargo output is logged line by line.
func BuildAgents(ctx context.Context, logger log.Logger, cargo, workspace string) error {
	logger.Info("Building agents", "workspace", workspace)
	proc := subproc.NewLoggedSubProcess(logger, "cargo", logpipe.PlainLogParser(log.LevelInfo))
	if err := proc.Start(BuildCommand(cargo, workspace)); err != nil {
		return err
	}
	defer func() {
		_ = proc.Kill()
	}()
	if err := proc.Wait(ctx); err != nil {
		return fmt.Errorf("cargo build: %w", err)
	}
	logger.Info("Built agents")
	return nil
}
