package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"airsupport/internal/domain"
	"airsupport/internal/metrics"
	"airsupport/internal/models"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// Call is a tool invocation whose arguments already passed validation.
// Search tools return []models.Row, the others a status string.
type Call func(ctx context.Context) (any, error)

// Parser checks raw arguments and binds them into a Call. It has no side effects.
type Parser func(raw json.RawMessage) (Call, error)

type tool struct {
	desc  models.ToolDescriptor
	parse Parser
}

type kindNames struct {
	search, book, update, cancel string
	noun                         string
}

var toolNames = map[models.Kind]kindNames{
	models.KindCarRental: {"search_car_rentals", "book_car_rental", "update_car_rental", "cancel_car_rental", "car rental"},
	models.KindHotel:     {"search_hotels", "book_hotel", "update_hotel", "cancel_hotel", "hotel"},
	models.KindExcursion: {"search_trip_recommendations", "book_excursion", "update_excursion", "cancel_excursion", "trip recommendation"},
}

const LookupPolicy = "lookup_policy"

// Registry is the named tool surface exposed to the orchestrator.
type Registry struct {
	tools  map[string]tool
	order  []string
	svc    domain.ReservationService
	policy domain.PolicyLookup
	logger *zerolog.Logger
}

func NewRegistry(svc domain.ReservationService, policy domain.PolicyLookup, logger *zerolog.Logger) *Registry {
	r := &Registry{
		tools:  make(map[string]tool),
		svc:    svc,
		policy: policy,
		logger: logger,
	}

	for _, kind := range models.Kinds() {
		schema, _ := models.SchemaFor(kind)
		r.registerKind(schema, toolNames[kind])
	}

	r.register(models.ToolDescriptor{
		Name:        LookupPolicy,
		Description: "Consult the company policies to check whether certain options are permitted. Use this before making any flight changes or performing other 'write' events.",
		Args:        []string{"query"},
	}, r.lookupPolicyParser)

	return r
}

func (r *Registry) register(desc models.ToolDescriptor, p Parser) {
	r.tools[desc.Name] = tool{desc: desc, parse: p}
	r.order = append(r.order, desc.Name)
}

func (r *Registry) registerKind(schema models.KindSchema, names kindNames) {
	searchArgs := append([]string{}, schema.TextColumns...)
	if schema.PriceTier {
		searchArgs = append(searchArgs, "price_tier")
	}
	searchArgs = append(searchArgs, schema.RangeArgs...)
	if schema.KeywordColumn != "" {
		searchArgs = append(searchArgs, schema.KeywordColumn)
	}

	r.register(models.ToolDescriptor{
		Name:        names.search,
		Description: fmt.Sprintf("Search for %ss by location, name and other criteria. Returns a list of matching %ss.", names.noun, names.noun),
		Args:        searchArgs,
	}, r.searchParser(schema, searchArgs))

	r.register(models.ToolDescriptor{
		Name:        names.book,
		Description: fmt.Sprintf("Book a %s by its ID. Returns a message indicating whether the %s was successfully booked.", names.noun, names.noun),
		Args:        []string{schema.IDArg},
		Sensitive:   true,
	}, r.bookedParser(schema, true))

	r.register(models.ToolDescriptor{
		Name:        names.update,
		Description: fmt.Sprintf("Update a %s by its ID. Returns a message indicating whether the %s was successfully updated.", names.noun, names.noun),
		Args:        append([]string{schema.IDArg}, schema.UpdateColumns...),
		Sensitive:   true,
	}, r.updateParser(schema))

	r.register(models.ToolDescriptor{
		Name:        names.cancel,
		Description: fmt.Sprintf("Cancel a %s by its ID. Returns a message indicating whether the %s was successfully cancelled.", names.noun, names.noun),
		Args:        []string{schema.IDArg},
		Sensitive:   true,
	}, r.bookedParser(schema, false))
}

// Descriptors lists tools in registration order.
func (r *Registry) Descriptors() []models.ToolDescriptor {
	return lo.Map(r.order, func(name string, _ int) models.ToolDescriptor {
		return r.tools[name].desc
	})
}

func (r *Registry) Descriptor(name string) (models.ToolDescriptor, error) {
	t, ok := r.tools[name]
	if !ok {
		return models.ToolDescriptor{}, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return t.desc, nil
}

// Parse validates the arguments of a call without running it.
func (r *Registry) Parse(name string, raw json.RawMessage) (Call, error) {
	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return t.parse(raw)
}

// Call runs a tool directly, bypassing any approval gate.
func (r *Registry) Call(ctx context.Context, name string, raw json.RawMessage) (any, error) {
	call, err := r.Parse(name, raw)
	if errors.Is(err, ErrUnknownTool) {
		return nil, err
	}
	if err != nil {
		metrics.IncToolCall(name, metrics.OutcomeError)
		return nil, err
	}

	r.logger.Debug().Str("tool", name).RawJSON("args", rawOrEmpty(raw)).Msg("tool call")

	out, err := call(ctx)
	if err != nil {
		metrics.IncToolCall(name, metrics.OutcomeError)
		return nil, err
	}
	metrics.IncToolCall(name, metrics.OutcomeOK)
	return out, nil
}

func rawOrEmpty(raw json.RawMessage) []byte {
	if !json.Valid(raw) {
		return []byte("null")
	}
	return raw
}

func (r *Registry) searchParser(schema models.KindSchema, allowed []string) Parser {
	return func(raw json.RawMessage) (Call, error) {
		a, err := decodeArgs(raw, allowed)
		if err != nil {
			return nil, err
		}

		filter := models.SearchFilter{Text: map[string]string{}, Range: map[string]string{}}
		for _, col := range schema.TextColumns {
			if filter.Text[col], err = a.String(col); err != nil {
				return nil, err
			}
		}
		for _, name := range schema.RangeArgs {
			v, err := a.Date(name)
			if err != nil {
				return nil, err
			}
			if v != "" {
				filter.Range[name] = v
			}
		}
		if schema.PriceTier {
			if filter.PriceTier, err = a.String("price_tier"); err != nil {
				return nil, err
			}
		}
		if schema.KeywordColumn != "" {
			if filter.Keywords, err = a.String(schema.KeywordColumn); err != nil {
				return nil, err
			}
		}

		return func(ctx context.Context) (any, error) {
			return r.svc.Search(ctx, schema.Kind, filter)
		}, nil
	}
}

func (r *Registry) bookedParser(schema models.KindSchema, book bool) Parser {
	return func(raw json.RawMessage) (Call, error) {
		a, err := decodeArgs(raw, []string{schema.IDArg})
		if err != nil {
			return nil, err
		}
		id, err := a.ID(schema.IDArg)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context) (any, error) {
			if book {
				return r.svc.Book(ctx, schema.Kind, id)
			}
			return r.svc.Cancel(ctx, schema.Kind, id)
		}, nil
	}
}

func (r *Registry) updateParser(schema models.KindSchema) Parser {
	allowed := append([]string{schema.IDArg}, schema.UpdateColumns...)
	return func(raw json.RawMessage) (Call, error) {
		a, err := decodeArgs(raw, allowed)
		if err != nil {
			return nil, err
		}
		id, err := a.ID(schema.IDArg)
		if err != nil {
			return nil, err
		}

		fields := map[string]string{}
		for _, col := range schema.UpdateColumns {
			var v string
			if lo.Contains(schema.RangeArgs, col) {
				v, err = a.Date(col)
			} else {
				v, err = a.String(col)
			}
			if err != nil {
				return nil, err
			}
			if v != "" {
				fields[col] = v
			}
		}
		return func(ctx context.Context) (any, error) {
			return r.svc.Update(ctx, schema.Kind, id, fields)
		}, nil
	}
}

func (r *Registry) lookupPolicyParser(raw json.RawMessage) (Call, error) {
	a, err := decodeArgs(raw, []string{"query"})
	if err != nil {
		return nil, err
	}
	q, err := a.String("query")
	if err != nil {
		return nil, err
	}
	if q == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidArgument)
	}
	return func(ctx context.Context) (any, error) {
		if r.policy == nil {
			return nil, fmt.Errorf("policy retriever is not configured")
		}
		return r.policy.Lookup(ctx, q)
	}, nil
}
