package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sawpanic/gemscan/internal/report/redissink"
)

// runLatest prints the report last published to Redis for the selected
// preset.
func runLatest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	r := cfg.Sinks.Redis
	if r.Addr == "" {
		return errors.New("latest report needs sinks.redis.addr (or REDIS_ADDR)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb, err := redissink.Dial(ctx, redissink.Options{Addr: r.Addr, Password: r.Password, DB: r.DB})
	if err != nil {
		return err
	}
	defer rdb.Close()

	return printLatest(ctx, cmd.OutOrStdout(), redissink.New(rdb, cfg.RedisKey(), r.TTL))
}

func printLatest(ctx context.Context, out io.Writer, sink *redissink.Sink) error {
	body, err := sink.Latest(ctx)
	if err != nil {
		return err
	}
	if body == nil {
		return fmt.Errorf("no report stored under %s", sink.Key())
	}
	_, err = out.Write(body)
	return err
}
