// Package main runs the firearm hooks in-process against an in-memory weapon
// document, rolling attacks locally and reading reload answers from stdin.
// It exercises the same rules as the service without a host or database.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/bpgavigan/foundry-firearm-charge-module/internal/config"
	"github.com/bpgavigan/foundry-firearm-charge-module/internal/dice"
	"github.com/bpgavigan/foundry-firearm-charge-module/internal/firearm"
	"github.com/bpgavigan/foundry-firearm-charge-module/internal/gameserver"
	"github.com/bpgavigan/foundry-firearm-charge-module/internal/host/memory"
	"github.com/bpgavigan/foundry-firearm-charge-module/internal/observability"
	"github.com/bpgavigan/foundry-firearm-charge-module/internal/scripting"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "", "optional configuration file (defaults apply when empty)")
	weaponName := flag.String("weapon", "Flintlock Pistol", "weapon name")
	charges := flag.Int("charges", 1, "starting charge")
	maxCharges := flag.Int("max", 1, "maximum charge")
	rarity := flag.String("rarity", "common", "item rarity")
	shots := flag.Int("shots", 3, "number of attack attempts")
	disadvantage := flag.Bool("disadvantage", false, "roll every attack with disadvantage")
	seed := flag.Int64("seed", 0, "dice seed (0 = crypto source)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	cfg.Logging.Format = "console"

	logger, err := observability.NewLogger(cfg.Logging, "firesim")
	if err != nil {
		log.Fatalf("creating logger: %v", err)
	}
	defer logger.Sync()

	registry, err := firearm.BuildRegistry(cfg.Firearm.Names, cfg.Firearm.RegistryFile)
	if err != nil {
		logger.Fatal("building firearm registry", zap.Error(err))
	}

	src := dice.NewCryptoSource()
	if *seed != 0 {
		src = dice.NewSeededSource(*seed)
	}
	roller := dice.NewLoggedRoller(src, logger)

	docs := memory.NewDocuments()
	notifier := observability.NewLogNotifier(logger)
	chat := consoleChat{out: os.Stdout}

	classifier := firearm.NewClassifier(registry, docs, cfg.Firearm.FlagNamespace, logger)
	tracker := firearm.NewChargeTracker(docs, logger)
	reload := firearm.NewReloadInteraction(newLineDialog(os.Stdin, os.Stdout), tracker, notifier, chat, logger)
	resolver := firearm.NewResolver(classifier, tracker, reload, docs, firearm.Rules{
		MisfireEnabled:      cfg.Firearm.MisfireEnabled,
		CatastrophicMisfire: cfg.Firearm.CatastrophicMisfire,
		MagicConsumesCharge: cfg.Firearm.MagicConsumesCharge,
	}, notifier, chat, logger)

	if cfg.Firearm.ScriptDir != "" {
		scripts := scripting.NewManager(roller, logger)
		if _, err := scripts.Load(cfg.Firearm.ScriptDir, cfg.Firearm.ScriptInstructionLimit); err != nil {
			logger.Fatal("loading house rule scripts", zap.Error(err))
		}
		defer scripts.Close()
		resolver.Policy = scripting.NewMisfirePolicy(scripts, logger)
	}

	dispatcher := gameserver.NewHookDispatcher()
	firearm.NewHooks(classifier, resolver, logger).Register(dispatcher)

	actor := &firearm.Actor{ID: "sim-actor", Name: "Marksman"}
	weapon := &firearm.Weapon{
		ID:            "sim-weapon",
		Name:          *weaponName,
		Rarity:        firearm.Rarity(*rarity),
		CurrentCharge: *charges,
		MaxCharge:     *maxCharges,
		Equipped:      true,
	}
	if err := weapon.Validate(); err != nil {
		logger.Fatal("invalid weapon", zap.Error(err))
	}
	docs.Put(weapon.ID, map[string]any{
		firearm.FieldUsesValue: weapon.CurrentCharge,
		firearm.FieldUsesMax:   weapon.MaxCharge,
		firearm.FieldEquipped:  weapon.Equipped,
		firearm.FieldRarity:    string(weapon.Rarity),
	})

	ctx := context.Background()
	if err := dispatcher.FireItemCreated(ctx, weapon, actor); err != nil {
		logger.Fatal("item created hook failed", zap.Error(err))
	}

	for i := 1; i <= *shots; i++ {
		roll, err := roller.Attack(*disadvantage)
		if err != nil {
			logger.Fatal("rolling attack", zap.Error(err))
		}
		allowed, err := dispatcher.FirePreAttackRoll(ctx, firearm.FireAttempt{
			Actor:           actor,
			Weapon:          snapshot(docs, weapon),
			AttackRollTotal: roll.Total(),
			HasDisadvantage: *disadvantage,
		})
		if err != nil {
			logger.Error("pre-attack hook failed", zap.Error(err))
		}
		charge, _ := docs.Field(weapon.ID, firearm.FieldUsesValue)
		equipped, _ := docs.Field(weapon.ID, firearm.FieldEquipped)
		fmt.Fprintf(os.Stdout, "shot %d: %s allowed=%v charge=%v equipped=%v\n", i, roll, allowed, charge, equipped)
	}

	logger.Info("simulation complete", zap.Int("shots", *shots), zap.Duration("elapsed", time.Since(start)))
}

func loadConfig(path string) (config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	return config.LoadFromViper(viper.New())
}

// snapshot copies w with the stored charge and equipped state, as the host
// would send it with each attack.
func snapshot(docs *memory.Documents, w *firearm.Weapon) *firearm.Weapon {
	cp := *w
	if v, ok := docs.Field(w.ID, firearm.FieldUsesValue); ok {
		if n, ok := v.(int); ok {
			cp.CurrentCharge = n
		}
	}
	if v, ok := docs.Field(w.ID, firearm.FieldEquipped); ok {
		if b, ok := v.(bool); ok {
			cp.Equipped = b
		}
	}
	return &cp
}
