package botway

import (
	"fmt"

	"github.com/goliatone/go-botway/adapters/gocommand"
	botwaycommand "github.com/goliatone/go-botway/command"
	botwayquery "github.com/goliatone/go-botway/query"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
)

// Commands bundles the mutation handlers built off one service.
type Commands struct {
	ProcessUpdate  *botwaycommand.ProcessUpdateCommand
	ProcessWebhook *botwaycommand.ProcessWebhookCommand
	SendMessage    *botwaycommand.SendMessageCommand
	PruneActivity  *botwaycommand.PruneActivityCommand
}

// Queries bundles the read handlers built off one service.
type Queries struct {
	UsageSnapshot *botwayquery.UsageSnapshotQuery
	ListActivity  *botwayquery.ListActivityQuery
	GetDelivery   *botwayquery.GetDeliveryQuery
	GatewayHealth *botwayquery.GatewayHealthQuery
}

// Facade exposes the command/query surface of a wired service.
type Facade struct {
	service  *Service
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	pruner botwaycommand.ActivityPruner
}

// WithActivityPruner overrides the pruner behind the prune command. By
// default the facade resolves it from the service's activity recorder.
func WithActivityPruner(pruner botwaycommand.ActivityPruner) FacadeOption {
	return func(options *facadeOptions) {
		options.pruner = pruner
	}
}

func NewFacade(service *Service, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("botway: service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	pruner := cfg.pruner
	if pruner == nil {
		if candidate, ok := service.ActivityRecorder().(botwaycommand.ActivityPruner); ok {
			pruner = candidate
		}
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		ProcessUpdate:  botwaycommand.NewProcessUpdateCommand(service.Dispatcher()),
		ProcessWebhook: botwaycommand.NewProcessWebhookCommand(service.Processor()),
		SendMessage:    botwaycommand.NewSendMessageCommand(service.Caller()),
		PruneActivity:  botwaycommand.NewPruneActivityCommand(pruner),
	}
	facade.queries = Queries{
		UsageSnapshot: botwayquery.NewUsageSnapshotQuery(service.Usage()),
		ListActivity:  botwayquery.NewListActivityQuery(service.ActivityReader()),
		GetDelivery:   botwayquery.NewGetDeliveryQuery(service.DeliveryLedger()),
		GatewayHealth: botwayquery.NewGatewayHealthQuery(service.Caller()),
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() *Service {
	if f == nil {
		return nil
	}
	return f.service
}

// Mount registers every command and query handler on the adapter and
// subscribes them on the go-command dispatcher. On failure previously
// created subscriptions are torn down before returning.
func (f *Facade) Mount(adapter *gocommand.RegistryAdapter) ([]commanddispatcher.Subscription, error) {
	if f == nil {
		return nil, fmt.Errorf("botway: facade is required")
	}
	if adapter == nil {
		return nil, fmt.Errorf("botway: registry adapter is required")
	}

	var subscriptions []commanddispatcher.Subscription
	unwind := func() {
		for _, sub := range subscriptions {
			if sub != nil {
				sub.Unsubscribe()
			}
		}
	}

	type registerFn func() (commanddispatcher.Subscription, error)
	steps := []registerFn{
		func() (commanddispatcher.Subscription, error) {
			return gocommand.RegisterAndSubscribe(adapter, f.commands.ProcessUpdate)
		},
		func() (commanddispatcher.Subscription, error) {
			return gocommand.RegisterAndSubscribe(adapter, f.commands.ProcessWebhook)
		},
		func() (commanddispatcher.Subscription, error) {
			return gocommand.RegisterAndSubscribe(adapter, f.commands.SendMessage)
		},
		func() (commanddispatcher.Subscription, error) {
			return gocommand.RegisterAndSubscribe(adapter, f.commands.PruneActivity)
		},
		func() (commanddispatcher.Subscription, error) {
			return gocommand.RegisterAndSubscribeQuery(adapter, f.queries.UsageSnapshot)
		},
		func() (commanddispatcher.Subscription, error) {
			return gocommand.RegisterAndSubscribeQuery(adapter, f.queries.ListActivity)
		},
		func() (commanddispatcher.Subscription, error) {
			return gocommand.RegisterAndSubscribeQuery(adapter, f.queries.GetDelivery)
		},
		func() (commanddispatcher.Subscription, error) {
			return gocommand.RegisterAndSubscribeQuery(adapter, f.queries.GatewayHealth)
		},
	}
	for _, step := range steps {
		sub, err := step()
		if err != nil {
			unwind()
			return nil, err
		}
		subscriptions = append(subscriptions, sub)
	}
	return subscriptions, nil
}
