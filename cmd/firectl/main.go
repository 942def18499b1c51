// Package main provides an operator CLI for the firearm service: answering
// reload prompts over gRPC and inspecting stored weapons and chat.
//
// Usage:
//
//	firectl [flags] prompts
//	firectl [flags] resolve <prompt-id> <choice>
//	firectl [flags] dismiss <prompt-id>
//	firectl [flags] weapons <actor-id>
//	firectl [flags] chat [limit]
//	firectl hash-token <token>
//
// The operator token is read from -token or FIREARM_OPERATOR_TOKEN.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/bpgavigan/foundry-firearm-charge-module/internal/config"
	"github.com/bpgavigan/foundry-firearm-charge-module/internal/gameserver"
	"github.com/bpgavigan/foundry-firearm-charge-module/internal/storage/postgres"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	addr := flag.String("addr", "", "firearm service address (default: server address from config)")
	timeout := flag.Duration("timeout", 10*time.Second, "request timeout")
	token := flag.String("token", os.Getenv("FIREARM_OPERATOR_TOKEN"), "operator token for prompt commands")
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	if flag.Arg(0) == "hash-token" {
		if flag.NArg() != 2 {
			log.Fatalf("usage: firectl hash-token <token>")
		}
		hash, err := gameserver.HashOperatorToken(flag.Arg(1))
		if err != nil {
			log.Fatalf("hashing token: %v", err)
		}
		fmt.Fprintln(os.Stdout, hash)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if *addr == "" {
		*addr = cfg.Server.Addr()
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	ctx = gameserver.WithOperatorToken(ctx, *token)

	args := flag.Args()
	switch args[0] {
	case "prompts":
		err = listPrompts(ctx, *addr)
	case "resolve":
		if len(args) != 3 {
			log.Fatalf("usage: firectl resolve <prompt-id> <choice>")
		}
		err = resolvePrompt(ctx, *addr, args[1], args[2])
	case "dismiss":
		if len(args) != 2 {
			log.Fatalf("usage: firectl dismiss <prompt-id>")
		}
		err = resolvePrompt(ctx, *addr, args[1], "")
	case "weapons":
		if len(args) != 2 {
			log.Fatalf("usage: firectl weapons <actor-id>")
		}
		err = listWeapons(ctx, cfg.Database, args[1])
	case "chat":
		limit := 20
		if len(args) == 2 {
			if limit, err = strconv.Atoi(args[1]); err != nil || limit < 1 {
				log.Fatalf("invalid limit %q", args[1])
			}
		}
		err = recentChat(ctx, cfg.Database, limit)
	default:
		log.Fatalf("unknown command %q", args[0])
	}
	if err != nil {
		log.Fatalf("%s: %v", args[0], err)
	}

	fmt.Fprintf(os.Stderr, "[%s]\n", time.Since(start))
}

func dial(addr string) (*gameserver.FirearmClient, func(), error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, nil, fmt.Errorf("dialing %s: %w", addr, err)
	}
	return gameserver.NewFirearmClient(conn), func() { _ = conn.Close() }, nil
}

func listPrompts(ctx context.Context, addr string) error {
	client, closeFn, err := dial(addr)
	if err != nil {
		return err
	}
	defer closeFn()

	prompts, err := client.ListPrompts(ctx)
	if err != nil {
		return err
	}
	if len(prompts) == 0 {
		fmt.Fprintln(os.Stdout, "no open prompts")
		return nil
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tCHOICES\tDEFAULT")
	for _, p := range prompts {
		keys := ""
		for i, c := range p.Request.Choices {
			if i > 0 {
				keys += ","
			}
			keys += c.Key
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, p.Request.Title, keys, p.Request.Default)
	}
	return tw.Flush()
}

func resolvePrompt(ctx context.Context, addr, id, choice string) error {
	client, closeFn, err := dial(addr)
	if err != nil {
		return err
	}
	defer closeFn()

	if err := client.ResolvePrompt(ctx, id, choice); err != nil {
		return err
	}
	if choice == "" {
		fmt.Fprintf(os.Stdout, "dismissed %s\n", id)
	} else {
		fmt.Fprintf(os.Stdout, "answered %s: %s\n", id, choice)
	}
	return nil
}

func listWeapons(ctx context.Context, dbCfg config.DatabaseConfig, actorID string) error {
	pool, err := postgres.NewPool(ctx, dbCfg)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	weapons, err := postgres.NewWeaponRepository(pool.DB()).ListByActor(ctx, actorID)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCHARGE\tEQUIPPED\tRARITY")
	for _, w := range weapons {
		fmt.Fprintf(tw, "%s\t%s\t%d/%d\t%v\t%s\n", w.ID, w.Name, w.CurrentCharge, w.MaxCharge, w.Equipped, w.Rarity)
	}
	return tw.Flush()
}

func recentChat(ctx context.Context, dbCfg config.DatabaseConfig, limit int) error {
	pool, err := postgres.NewPool(ctx, dbCfg)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	entries, err := postgres.NewChatRepository(pool.DB()).Recent(ctx, limit)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Fprintf(os.Stdout, "%s  %s: %s\n", e.CreatedAt.Format(time.Kitchen), e.Message.Speaker, e.Message.Content)
	}
	return nil
}
