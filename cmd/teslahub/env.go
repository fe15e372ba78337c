package main

import (
	"context"
	"errors"

	"github.com/MrSnakeDoc/teslahub/internal/fanout"
	"github.com/MrSnakeDoc/teslahub/internal/logger"
	"github.com/MrSnakeDoc/teslahub/internal/relayclient"
	"github.com/MrSnakeDoc/teslahub/internal/sources/defaults"
	"github.com/MrSnakeDoc/teslahub/internal/storage"
	"github.com/MrSnakeDoc/teslahub/internal/tab"
	"github.com/MrSnakeDoc/teslahub/internal/utils"
)

var errNoServer = errors.New("this command needs a server: pass --server or set TESLAHUB_SERVER")

// tabEnv is one open tab over the profile plus whatever the flags wired
// around it.
type tabEnv struct {
	log    logger.Logger
	client *relayclient.Client // nil without --server
	tab    *tab.Session
}

// openTab opens the profile named by --profile. fullscreen marks a tab
// reached through the bridge.
func openTab(ctx context.Context, fullscreen bool) (*tabEnv, error) {
	log := logger.New(logLevel, true)

	env := &tabEnv{log: log}
	if serverURL != "" {
		c, err := relayclient.New(serverURL, nil, log)
		if err != nil {
			return nil, err
		}
		env.client = c
	}

	store, err := storage.NewFile(profilePath, log)
	if err != nil {
		return nil, err
	}

	var src tab.DefaultsSource
	switch {
	case defaultsFile != "":
		src = defaults.NewFileSource(defaultsFile)
	case env.client != nil:
		src = env.client
	}

	// One process is one tab, so this hub has no peers. Other CLI runs see
	// our commits through the file storage watch.
	s, err := tab.Open(ctx, tab.Options{
		Storage:    store,
		Hub:        fanout.NewHub(log, 0),
		Defaults:   src,
		TimeZone:   timeZone,
		Fullscreen: fullscreen,
		Logger:     log,
	})
	if err != nil {
		return nil, err
	}
	env.tab = s
	return env, nil
}

func (e *tabEnv) close() {
	utils.MustClose(e.tab, e.log, "tab")
	_ = e.log.Sync()
}

func (e *tabEnv) requireServer() (*relayclient.Client, error) {
	if e.client == nil {
		return nil, errNoServer
	}
	return e.client, nil
}
