package command

import (
	"fmt"

	"github.com/pixil98/go-service"

	"github.com/geoquest/geoquest/internal/chat"
	"github.com/geoquest/geoquest/internal/combat"
	"github.com/geoquest/geoquest/internal/game"
	"github.com/geoquest/geoquest/internal/gateway"
	"github.com/geoquest/geoquest/internal/messaging"
	"github.com/geoquest/geoquest/internal/scheduler"
)

func BuildWorkers(config interface{}) (service.WorkerList, error) {
	cfg, ok := config.(*Config)
	if !ok {
		return nil, fmt.Errorf("unable to cast config")
	}

	nats, err := cfg.Nats.buildNatsServer()
	if err != nil {
		return nil, fmt.Errorf("creating nats server: %w", err)
	}

	players, err := cfg.Storage.BuildPlayerStore()
	if err != nil {
		return nil, fmt.Errorf("creating player store: %w", err)
	}

	registry := game.NewRegistry(players, game.DefaultNPCs())
	delivery := messaging.NewDelivery(nats, registry)
	sched := scheduler.New()

	resolver := combat.NewResolver(registry, delivery, sched, cfg.Combat.buildInputSource())

	handler := gateway.NewHandler(
		registry,
		delivery,
		chat.NewRouter(registry),
		resolver,
		cfg.Auth.buildResolver(),
		nats,
	)

	return service.WorkerList{
		"nats":      nats,
		"scheduler": sched,
		"gateway":   gateway.NewListener(cfg.Gateway.Port, handler),
	}, nil
}
