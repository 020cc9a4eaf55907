package cli

import (
	"fmt"

	"github.com/soyeahso/helix/internal/agent"
	"github.com/soyeahso/helix/internal/config"
	"github.com/soyeahso/helix/internal/domain"
	"github.com/soyeahso/helix/internal/hooks"
	"github.com/soyeahso/helix/internal/llm"
	"github.com/soyeahso/helix/internal/logging"
	"github.com/soyeahso/helix/internal/notify"
	"github.com/soyeahso/helix/internal/sequence"
	"github.com/soyeahso/helix/internal/service"
	"github.com/soyeahso/helix/internal/session"
	"github.com/soyeahso/helix/internal/store"
	"github.com/soyeahso/helix/internal/tools"
)

// app holds the wired core shared by serve and chat.
type app struct {
	service  *service.Service
	sessions *session.Store
	hooks    *hooks.Manager
	notifier *notify.Fanout
	db       *store.DB
	log      *logging.Logger
}

// openRecords opens the configured record store.
func openRecords(c config.Config, log *logging.Logger) (domain.Persistence, store.Reader, *store.DB, error) {
	switch c.Store.Driver {
	case "memory":
		m := store.NewMemory()
		return m, m, nil, nil
	case "sqlite", "":
		db, err := store.Open(paths.DBPath(c.Store), log)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("opening database: %w", err)
		}
		r := store.NewRecords(db)
		return r, r, db, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
}

// newApp wires storage, the model chain, the tools, and the agent into a
// session service. Front-ends attach to the returned notifier fan-out.
func newApp(c config.Config, log *logging.Logger) (*app, error) {
	if issues := config.Validate(&c); len(issues) > 0 {
		for _, issue := range issues {
			log.Error().Str("path", issue.Path).Msg(issue.Message)
		}
		return nil, fmt.Errorf("config validation failed with %d issue(s)", len(issues))
	}

	persist, _, db, err := openRecords(c, log)
	if err != nil {
		return nil, err
	}

	registry, err := llm.NewRegistryFromConfig(c.LLM, log)
	if err != nil {
		if db != nil {
			db.Close()
		}
		return nil, err
	}
	log.Info().Strs("providers", registry.Chain()).Msg("LLM providers configured")
	client := agent.NewFailoverClient(registry, log)

	hm := hooks.NewManager(log)
	fan := notify.NewFanout(notify.NewHooks(hm))

	sessions := session.NewStore(persist, log)
	editor := sequence.NewAIEditor(client, sequence.Options{
		Temperature: c.LLM.Temp(),
		MaxTokens:   c.LLM.MaxTokens,
		Timeout:     c.LLM.Timeout(),
	}, log)
	toolReg := tools.NewSequenceRegistry(tools.Deps{
		Sessions: sessions,
		Editor:   editor,
		Notifier: fan,
		Persist:  persist,
		Log:      log,
	})
	runner := agent.NewRunner(agent.RunnerConfig{
		MaxTokens:   c.LLM.MaxTokens,
		Temperature: c.LLM.Temp(),
		Timeout:     c.LLM.Timeout(),
	}, client, sessions, toolReg, fan, log)

	return &app{
		service:  service.New(sessions, runner, fan, log, service.WithHooks(hm)),
		sessions: sessions,
		hooks:    hm,
		notifier: fan,
		db:       db,
		log:      log,
	}, nil
}

// Close waits for background writes and hooks, then closes the database.
func (a *app) Close() error {
	a.sessions.Flush()
	a.hooks.Wait()
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}
