// Copyright 2026 The Focus Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command focus is a thin flag-based dispatcher in front of the engine in
// internal/. Every flag and environment variable it recognizes is bound
// into an explicit Config before being handed to the engine.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"runtime"
	"strconv"

	"github.com/focusvcs/focus/internal/depindex"
	"github.com/focusvcs/focus/internal/lockfile"
	"github.com/focusvcs/focus/internal/migration"
	"github.com/focusvcs/focus/internal/procdriver"
	"github.com/focusvcs/focus/internal/resolve"
	"github.com/focusvcs/focus/internal/resolve/bazelquery"
	"github.com/focusvcs/focus/internal/resolve/dirresolve"
	"github.com/focusvcs/focus/internal/selection"
	"github.com/focusvcs/focus/internal/syncengine"
	"github.com/focusvcs/focus/internal/target"
	"github.com/focusvcs/focus/internal/vcsgit"
)

// requiredMigrationVersion is the on-disk .focus/ format this binary
// expects. Bump it, and append a Step, whenever a change to .focus/'s
// layout requires one.
const requiredMigrationVersion = 1

func migrationSteps() []migration.Step {
	return []migration.Step{
		{
			TargetVersion: 1,
			Name:          "ensure-sparse-checkout-placeholder",
			Apply: func(focusDir string) error {
				path := focusDir + "/sparse-checkout"
				if _, err := os.Stat(path); err == nil {
					return nil
				}
				return os.WriteFile(path, nil, 0o644)
			},
		},
	}
}

// Config is every environment-derived and flag-derived knob the engine
// needs, bound once at the CLI boundary.
type Config struct {
	RepoRoot          string
	ResolutionThreads int
	WorkingDirectory  string
	GitBinaryPath     string
	Remote            string
	Verbose           bool
}

func loadConfig() Config {
	cfg := Config{Remote: "origin"}

	if v := os.Getenv("FOCUS_RESOLUTION_THREADS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ResolutionThreads = n
		}
	}
	cfg.WorkingDirectory = os.Getenv("FOCUS_WORKING_DIRECTORY")
	cfg.GitBinaryPath = os.Getenv("FOCUS_GIT_BINARY_PATH")

	// git itself reads GIT_CONFIG_GLOBAL from the environment; forwarding
	// FOCUS_GIT_CONFIG_PATH into it lets every subprocess this process
	// spawns pick it up without plumbing a custom env through procdriver.
	if v := os.Getenv("FOCUS_GIT_CONFIG_PATH"); v != "" {
		os.Setenv("GIT_CONFIG_GLOBAL", v)
	}

	return cfg
}

func main() {
	log.SetFlags(0)
	log.SetPrefix("focus: ")

	repoRoot := flag.String("C", "", "repository root (default: current directory)")
	noFetch := flag.Bool("no-fetch", false, "skip the best-effort remote index fetch before sync")
	verbose := flag.Bool("v", false, "verbose mode (accepted; no output depends on it)")
	flag.Parse()

	cfg := loadConfig()
	cfg.Verbose = *verbose
	if *repoRoot != "" {
		cfg.RepoRoot = *repoRoot
	} else if wd, err := os.Getwd(); err == nil {
		cfg.RepoRoot = wd
	} else {
		log.Fatalf("determining working directory: %v", err)
	}

	if flag.NArg() == 0 {
		usage()
		os.Exit(1)
	}

	ctx := context.Background()
	var err error
	switch flag.Arg(0) {
	case "sync":
		err = runSync(ctx, cfg, !*noFetch, syncengine.TriggerInteractive)
	case "maintenance":
		err = runSync(ctx, cfg, os.Getenv("FOCUS_FORCE_RELOAD") != "", syncengine.TriggerScheduled)
	case "migrate":
		err = runMigrate(cfg)
	case "project":
		err = runProject(ctx, cfg, !*noFetch, flag.Args()[1:])
	case "adhoc":
		err = runAdhoc(ctx, cfg, !*noFetch, flag.Args()[1:])
	case "index":
		err = runIndex(ctx, cfg, flag.Args()[1:])
	default:
		usage()
		os.Exit(1)
	}

	if err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: focus [-C repo] [-v] <command> [args...]

commands:
  sync                           resolve the selection and reconcile the sparse checkout
  maintenance                    like sync, triggered from scheduled/background context
  migrate                        apply pending .focus/ format migrations
  project list|add|remove|status
  adhoc   list|add|remove
  index   generate|fetch|push|clear`)
}

func threads(cfg Config) int {
	if cfg.ResolutionThreads > 0 {
		return cfg.ResolutionThreads
	}
	return runtime.GOMAXPROCS(0)
}

func openStore(cfg Config) (*selection.Store, error) {
	store, err := selection.Open(cfg.RepoRoot)
	if err != nil {
		if errors.Is(err, selection.ErrNotAFocusedRepo) {
			return nil, fmt.Errorf("%s is not a focused repository (no .focus/ directory); nothing to do", cfg.RepoRoot)
		}
		return nil, err
	}
	return store, nil
}

func buildEngine(ctx context.Context, cfg Config, store *selection.Store) (*syncengine.Engine, error) {
	driver := procdriver.New(cfg.WorkingDirectory)
	repo := vcsgit.Open(cfg.RepoRoot, driver)
	repo.Bin = cfg.GitBinaryPath

	// focus.remote overrides which remote the index fetches from and
	// pushes to; absent, the default from loadConfig stands.
	if remote, ok, err := repo.ReadConfig(ctx, "focus.remote"); err == nil && ok {
		cfg.Remote = remote
	}

	opts := resolve.CacheOptions{ResolutionThreads: threads(cfg)}

	dispatch := resolve.NewDispatcher(map[target.Kind]resolve.Resolver{
		target.KindDirectory: dirresolve.New(),
		target.KindBazel:     bazelquery.New(driver),
	})

	gate, err := migration.NewGate(requiredMigrationVersion, migrationSteps())
	if err != nil {
		return nil, err
	}

	index := depindex.New(repo, cfg.Remote, nil, opts)

	projects, err := store.OpenProjectDefinitions()
	if err != nil {
		return nil, err
	}

	return &syncengine.Engine{
		RepoRoot:       cfg.RepoRoot,
		Store:          store,
		Repo:           repo,
		Dispatch:       dispatch,
		Index:          index,
		Gate:           gate,
		ProjectTargets: projects.Targets,
		Remote:         cfg.Remote,
	}, nil
}

func runSync(ctx context.Context, cfg Config, fetchIndex bool, trigger syncengine.Trigger) error {
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	engine, err := buildEngine(ctx, cfg, store)
	if err != nil {
		return err
	}

	outcome, err := engine.Sync(ctx, fetchIndex, trigger)
	if err != nil {
		return translateSyncError(err)
	}
	reportOutcome(outcome)
	return nil
}

func reportOutcome(outcome *syncengine.Outcome) {
	if outcome.Changed {
		log.Printf("sparse checkout updated: %d path(s)", len(outcome.Paths))
	} else {
		log.Printf("already up to date: %d path(s)", len(outcome.Paths))
	}
}

func translateSyncError(err error) error {
	switch {
	case errors.Is(err, lockfile.ErrBusy):
		return fmt.Errorf("another sync is already running in this repository: %w", err)
	case errors.Is(err, syncengine.ErrDirtyWorkingTree):
		return fmt.Errorf("working tree has uncommitted changes; commit or stash them before syncing: %w", err)
	default:
		var upgradeErr *migration.ErrUpgradeRequired
		if errors.As(err, &upgradeErr) {
			return fmt.Errorf("%w; run \"focus migrate\" first", upgradeErr)
		}
		return err
	}
}

func runMigrate(cfg Config) error {
	gate, err := migration.NewGate(requiredMigrationVersion, migrationSteps())
	if err != nil {
		return err
	}
	focusDir := cfg.RepoRoot + "/.focus"
	if err := gate.PerformPendingMigrations(focusDir); err != nil {
		return err
	}
	log.Printf("migrated .focus/ to format version %d", requiredMigrationVersion)
	return nil
}

func runProject(ctx context.Context, cfg Config, fetchIndex bool, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: focus project list|add|remove|status")
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	switch args[0] {
	case "list":
		names, err := store.ListProjects()
		if err != nil {
			return err
		}
		for _, n := range names {
			fmt.Println(n)
		}
	case "add", "remove":
		engine, err := buildEngine(ctx, cfg, store)
		if err != nil {
			return err
		}
		var outcome *syncengine.Outcome
		if args[0] == "add" {
			outcome, err = engine.AddProjects(ctx, args[1:], fetchIndex)
		} else {
			outcome, err = engine.RemoveProjects(ctx, args[1:], fetchIndex)
		}
		if err != nil {
			return translateSyncError(err)
		}
		reportOutcome(outcome)
	case "status":
		engine, err := buildEngine(ctx, cfg, store)
		if err != nil {
			return err
		}
		synced, err := engine.Synced(ctx)
		if err != nil {
			return err
		}
		status, err := store.ComputeStatus(synced)
		if err != nil {
			return err
		}
		fmt.Printf("projects: %v\nadhoc targets: %v\nsynced: %t\n", status.Projects, status.AdhocTargets, status.Synced)
	default:
		return fmt.Errorf("unknown project subcommand %q", args[0])
	}
	return nil
}

func runAdhoc(ctx context.Context, cfg Config, fetchIndex bool, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: focus adhoc list|add|remove")
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	switch args[0] {
	case "list":
		coords, err := store.ListAdhocTargets()
		if err != nil {
			return err
		}
		for _, c := range coords {
			fmt.Println(c)
		}
	case "add", "remove":
		engine, err := buildEngine(ctx, cfg, store)
		if err != nil {
			return err
		}
		var outcome *syncengine.Outcome
		if args[0] == "add" {
			outcome, err = engine.AddAdhocTargets(ctx, args[1:], fetchIndex)
		} else {
			outcome, err = engine.RemoveAdhocTargets(ctx, args[1:], fetchIndex)
		}
		if err != nil {
			return translateSyncError(err)
		}
		reportOutcome(outcome)
	default:
		return fmt.Errorf("unknown adhoc subcommand %q", args[0])
	}
	return nil
}

func runIndex(ctx context.Context, cfg Config, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: focus index generate|fetch|push|clear")
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	engine, err := buildEngine(ctx, cfg, store)
	if err != nil {
		return err
	}

	switch args[0] {
	case "generate":
		targets, err := engine.ComposeTargetSet()
		if err != nil {
			return err
		}
		result, err := engine.Dispatch.Resolve(ctx, &resolve.Request{RepoRoot: cfg.RepoRoot, Targets: targets})
		if err != nil {
			return err
		}
		return engine.Index.Generate(ctx, result.PackageDeps)
	case "fetch":
		return engine.Index.Fetch(ctx)
	case "push":
		return engine.Index.Push(ctx)
	case "clear":
		return engine.Index.Clear(ctx)
	default:
		return fmt.Errorf("unknown index subcommand %q", args[0])
	}
}
