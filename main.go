// parley - a local-first chat client core with streaming responses.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jeranaias/parley/internal/chat"
	"github.com/jeranaias/parley/internal/config"
	"github.com/jeranaias/parley/internal/engine"
	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/storage"
	"github.com/jeranaias/parley/internal/usage"
	"github.com/jeranaias/parley/internal/util"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	app, err := newApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer app.close()

	var cmdErr error
	switch os.Args[1] {
	case "new":
		cmdErr = app.cmdNew()
	case "list":
		cmdErr = app.cmdList()
	case "show":
		cmdErr = app.cmdShow(os.Args[2:])
	case "send":
		cmdErr = app.cmdSend(os.Args[2:])
	case "delete":
		cmdErr = app.cmdDelete(os.Args[2:])
	case "pin", "unpin":
		cmdErr = app.cmdPin(os.Args[1] == "pin", os.Args[2:])
	case "title":
		cmdErr = app.cmdTitle(os.Args[2:])
	case "version":
		fmt.Printf("parley %s (%s, built %s)\n", Version, GitCommit, BuildDate)
	default:
		printUsage()
		os.Exit(1)
	}

	if cmdErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", cmdErr)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage: parley <command> [args]

Commands:
  new                      create a conversation
  list                     list conversations, most recent first
  show <id>                print a conversation
  send <id> <text>         send a user message and stream the response
  delete <id>              delete a conversation
  pin <id> | unpin <id>    set the pinned flag
  title <id> <text>        set a user title
  version                  print version`)
}

// app wires the stores, config and engine for one invocation.
type app struct {
	cfg    *config.Config
	repo   *storage.ConversationStore
	index  *storage.IndexStore
	prefs  *storage.PrefStore
	editor *chat.Editor
	engine *engine.Engine
	usage  *usage.Log
}

func newApp() (*app, error) {
	base, err := storage.DefaultBase()
	if err != nil {
		return nil, err
	}

	cfgPath, err := config.DefaultPath()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	driver := storage.NewDirDriver(base)
	repo := storage.NewConversationStore(driver)

	// The usage log is optional; a failure to open it is not fatal.
	var usageLog *usage.Log
	if ul, err := usage.Open(filepath.Join(base, "data", "usage.db")); err == nil {
		usageLog = ul
	} else {
		fmt.Fprintf(os.Stderr, "Warning: usage log unavailable: %v\n", err)
	}

	eng := &engine.Engine{Repo: repo, Resolver: cfg, Limiter: cfg.RequestLimiter()}
	if usageLog != nil {
		eng.Usage = usageLog
	}

	return &app{
		cfg:    cfg,
		repo:   repo,
		index:  storage.NewIndexStore(driver),
		prefs:  storage.NewPrefStore(driver),
		editor: chat.NewEditor(repo),
		engine: eng,
		usage:  usageLog,
	}, nil
}

func (a *app) close() {
	if a.usage != nil {
		a.usage.Close()
	}
}

func (a *app) cmdNew() error {
	conv := a.repo.Create()
	if err := a.repo.Save(conv); err != nil {
		return err
	}
	if err := a.index.Upsert(conv, false); err != nil {
		return err
	}
	fmt.Println(conv.ID)
	return nil
}

func (a *app) cmdList() error {
	idx, err := a.index.Get()
	if err != nil {
		return err
	}
	if len(idx.Conversations) == 0 {
		fmt.Println("No conversations.")
		return nil
	}
	for _, item := range idx.Conversations {
		pin := " "
		if item.Pinned {
			pin = "*"
		}
		updated := time.UnixMilli(item.UpdatedAt).Format("2006-01-02 15:04")
		fmt.Printf("%s %s  %s  %s\n", pin, item.ID, updated, util.TruncateRunes(item.Title, 48))
	}
	return nil
}

func (a *app) cmdShow(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("show requires a conversation id")
	}
	conv, err := a.repo.Load(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("%s (%s)\n", conv.Session.Title, conv.ID)
	for _, msg := range conv.Messages {
		for _, frag := range msg.Fragments {
			if frag.Type == model.FragmentThink {
				continue
			}
			fmt.Printf("[%d] %s: %s\n", msg.ID, msg.Role, frag.Content)
		}
	}

	if err := a.prefs.Update(conv.ID, latestMessageID(conv), currentPinned(a, conv.ID)); err != nil {
		return err
	}
	return nil
}

func (a *app) cmdSend(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("send requires a conversation id and message text")
	}
	conv, err := a.repo.Load(args[0])
	if err != nil {
		return err
	}

	providerID := a.cfg.DefaultProvider
	modelID := a.cfg.DefaultModel

	providerName := providerID
	if p, ok := a.cfg.ProviderByID(providerID); ok {
		providerName = p.Name
	}

	msg, err := a.editor.SendUserMessage(conv, args[1], modelID, providerID, providerName, parentForSend(conv))
	if err != nil {
		return err
	}

	err = a.engine.GenerateResponse(context.Background(), conv, msg.ID, providerID, modelID, engine.Options{
		OnChunk:    func(content string) { fmt.Print(content) },
		OnComplete: func(int) { fmt.Println() },
	})
	if err != nil {
		return err
	}

	return a.index.Update(conv, nil)
}

func (a *app) cmdDelete(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("delete requires a conversation id")
	}
	if err := a.repo.Delete(args[0]); err != nil {
		return err
	}
	return a.index.Remove(args[0])
}

func (a *app) cmdPin(pinned bool, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("pin requires a conversation id")
	}
	id := args[0]
	if err := a.index.SetPinned(id, pinned); err != nil {
		return err
	}
	current := 0
	if pref, ok, err := a.prefs.Load(id); err == nil && ok {
		current = pref.CurrentMessageID
	}
	return a.prefs.Update(id, current, pinned)
}

func (a *app) cmdTitle(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("title requires a conversation id and title text")
	}
	if err := a.repo.UpdateTitle(args[0], args[1], model.TitleUser); err != nil {
		return err
	}
	conv, err := a.repo.Load(args[0])
	if err != nil {
		return err
	}
	return a.index.Update(conv, nil)
}

// parentForSend links a new user message under the latest message, matching
// a linear conversation. The first message has no parent.
func parentForSend(conv *model.Conversation) *int {
	latest := conv.LatestMessage()
	if latest == nil {
		return nil
	}
	id := latest.ID
	return &id
}

func latestMessageID(conv *model.Conversation) int {
	if latest := conv.LatestMessage(); latest != nil {
		return latest.ID
	}
	return 0
}

func currentPinned(a *app, id string) bool {
	if pref, ok, err := a.prefs.Load(id); err == nil && ok {
		return pref.Pinned
	}
	return false
}
