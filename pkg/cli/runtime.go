package cli

import (
	"context"
	"errors"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sribot/pkg/adapter"
	"github.com/m-mizutani/sribot/pkg/catalog"
	"github.com/m-mizutani/sribot/pkg/memory"
	"github.com/m-mizutani/sribot/pkg/policy"
	"github.com/m-mizutani/sribot/pkg/service/mcp"
	"github.com/m-mizutani/sribot/pkg/tool"
	catalogtool "github.com/m-mizutani/sribot/pkg/tool/catalog"
	"github.com/m-mizutani/sribot/pkg/tool/clock"
	"github.com/m-mizutani/sribot/pkg/tool/document"
	memorytool "github.com/m-mizutani/sribot/pkg/tool/memory"
	"github.com/m-mizutani/sribot/pkg/tool/weather"
	"github.com/m-mizutani/sribot/pkg/usecase/chat"
	"github.com/m-mizutani/sribot/pkg/utils/logging"
	"github.com/prometheus/client_golang/prometheus"
)

// runtime bundles the dependencies shared by serve, chat and mcp
type runtime struct {
	gemini   adapter.Gemini
	memories *memory.Service
	catalog  catalog.Catalog
	storage  adapter.Storage
	registry *tool.Registry
	agent    *chat.Agent

	closers []func() error
}

// Close releases every backend in reverse order of creation
func (r *runtime) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *runtime) onClose(fn func() error) {
	r.closers = append(r.closers, fn)
}

// newRuntime wires backends, tools and the agent. toolCalls may be nil.
func (cfg *config) newRuntime(ctx context.Context, toolCalls *prometheus.CounterVec) (_ *runtime, err error) {
	rt := &runtime{}
	defer func() {
		if err != nil {
			if closeErr := rt.Close(); closeErr != nil {
				logging.From(ctx).Warn("failed to release resources", logging.ErrAttr(closeErr))
			}
		}
	}()

	if rt.gemini, err = cfg.newGemini(ctx); err != nil {
		return nil, err
	}

	embedder, release, err := cfg.newEmbedder(rt.gemini)
	if err != nil {
		return nil, err
	}
	rt.onClose(func() error { release(); return nil })

	repo, err := cfg.newMemoryRepository(ctx)
	if err != nil {
		return nil, err
	}
	rt.onClose(repo.Close)
	rt.memories = memory.New(repo, embedder)

	docs, err := cfg.newDocumentIndex(embedder)
	if err != nil {
		return nil, err
	}

	if rt.catalog, err = cfg.newCatalog(ctx); err != nil {
		return nil, err
	}
	rt.onClose(rt.catalog.Close)

	if rt.storage, err = cfg.newStorage(ctx); err != nil {
		return nil, err
	}

	tools := []tool.Tool{
		memorytool.New(rt.memories, rt.gemini),
		catalogtool.New(rt.catalog, cfg.baseURL),
		document.New(docs),
		clock.New(),
	}
	if cfg.weatherAPIKey != "" {
		tools = append(tools, weather.New(cfg.weatherAPIKey))
	}

	provider, err := mcp.LoadAndConnect(ctx, cfg.mcpConfig)
	if err != nil {
		return nil, err
	}
	if provider != nil {
		rt.onClose(provider.Close)
		tools = append(tools, provider)
	}

	var regOpts []tool.Option
	if toolCalls != nil {
		regOpts = append(regOpts, tool.WithCallCounter(toolCalls))
	}
	if rt.registry, err = tool.New(tools, regOpts...); err != nil {
		return nil, goerr.Wrap(err, "failed to build tool registry")
	}

	opts := []chat.Option{
		chat.WithMaxRounds(int(cfg.maxRounds)),
		chat.WithRoundTimeout(cfg.roundTimeout),
		chat.WithToolTimeout(cfg.toolTimeout),
	}
	if cfg.policyDir != "" {
		engine, err := policy.New(ctx, cfg.policyDir)
		if err != nil {
			return nil, err
		}
		opts = append(opts, chat.WithPolicy(engine))
	}

	rt.agent = chat.New(rt.gemini, rt.registry, chat.NewStorageSessionStore(rt.storage), opts...)
	return rt, nil
}
