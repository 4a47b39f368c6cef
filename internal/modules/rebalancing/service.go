// Package rebalancing orchestrates a rebalance pass: resolve the allocation
// tree against the portfolio's current value, build or refresh the order of
// every asset leaf, and collect the resulting operations into a plan.
package rebalancing

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/equilibre/internal/domain"
	"github.com/aristath/equilibre/internal/modules/allocation"
	"github.com/aristath/equilibre/internal/modules/order"
)

// Plan is the outcome of one rebalance pass.
type Plan struct {
	// Total is the portfolio value the tree was resolved against.
	Total float64 `json:"total"`
	// Advisories are the non-fatal errors recorded during resolution.
	Advisories []string `json:"advisories,omitempty"`
	// Orders holds one entry per asset leaf with a pending intent.
	Orders []OrderPlan `json:"orders"`
}

// OrderPlan is one asset's contribution to the plan.
type OrderPlan struct {
	Asset       string            `json:"asset"`
	Goal        float64           `json:"goal"`
	Value       float64           `json:"value"`
	AmountDelta float64           `json:"amountDelta"`
	Description []string          `json:"description"`
	Operations  []order.Operation `json:"-"`
	TradeOps    []order.TradeOp   `json:"tradeOps,omitempty"`
}

// Service runs rebalance passes over one account's portfolio.
type Service struct {
	registry *domain.Registry
	resolver *allocation.Resolver
	repo     *allocation.Repository
	opLog    *OperationLog

	accountID string
	currency  string
	tuning    order.Tuning

	root *allocation.Target

	log zerolog.Logger
}

// Config wires a rebalancing service.
type Config struct {
	Registry  *domain.Registry
	Repo      *allocation.Repository
	OpLog     *OperationLog
	AccountID string
	Currency  string
	Tuning    order.Tuning
	Log       zerolog.Logger
}

// NewService creates the service. The allocation tree starts empty until
// LoadTargets or SetTargets runs.
func NewService(cfg Config) *Service {
	log := cfg.Log.With().Str("service", "rebalancing").Logger()
	return &Service{
		registry:  cfg.Registry,
		resolver:  allocation.NewResolver(log),
		repo:      cfg.Repo,
		opLog:     cfg.OpLog,
		accountID: cfg.AccountID,
		currency:  cfg.Currency,
		tuning:    cfg.Tuning,
		root:      allocation.NewRoot("portfolio"),
		log:       log,
	}
}

// Targets returns the current allocation tree root.
func (s *Service) Targets() *allocation.Target { return s.root }

// SetTargets replaces the allocation tree.
func (s *Service) SetTargets(root *allocation.Target) { s.root = root }

// ReplaceTargets installs root as the allocation tree and persists it
// unconditionally.
func (s *Service) ReplaceTargets(ctx context.Context, root *allocation.Target) error {
	root.Prune()
	s.root = root
	return s.repo.Save(ctx, s.accountID, root)
}

// LoadTargets restores the persisted allocation tree for the account. A
// missing snapshot leaves the empty tree in place.
func (s *Service) LoadTargets(ctx context.Context) error {
	root, err := s.repo.Load(ctx, s.accountID, s.registry)
	if err == allocation.ErrNoSnapshot {
		s.log.Info().Msg("No allocation snapshot, starting empty")
		return nil
	}
	if err != nil {
		return err
	}
	s.root = root
	s.log.Info().Int("leaves", len(root.Leaves())).Msg("Allocation snapshot loaded")
	return nil
}

// SaveTargets persists the current allocation tree when it changed.
func (s *Service) SaveTargets(ctx context.Context) error {
	if !s.root.Modified() {
		return nil
	}
	return s.repo.Save(ctx, s.accountID, s.root)
}

// EnsureLeaves adds an unsized leaf for every supported portfolio asset not
// yet present in the tree, so newly seen holdings participate in the next
// pass.
func (s *Service) EnsureLeaves() {
	for _, asset := range s.registry.Assets() {
		if !asset.IsSupported() {
			continue
		}
		if s.root.Find(asset.Code()) == nil {
			allocation.NewAssetTarget(s.root, asset)
			s.log.Debug().Str("asset", asset.Code()).Msg("Added allocation leaf")
		}
	}
}

// PortfolioValue sums the value of every supported asset.
func (s *Service) PortfolioValue() float64 {
	var total float64
	for _, asset := range s.registry.Assets() {
		if asset.IsSupported() {
			total += asset.Value()
		}
	}
	return total
}

// Rebalance runs one pass: resolve the tree, then build or refresh every
// leaf's order. A fatal resolution error aborts before any order is touched.
func (s *Service) Rebalance(ctx context.Context) (*Plan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.EnsureLeaves()
	total := s.PortfolioValue()

	if err := s.resolver.Apply(s.root, total); err != nil {
		return nil, fmt.Errorf("rebalance aborted: %w", err)
	}

	plan := &Plan{Total: total, Advisories: s.root.Errors()}

	for _, leaf := range s.root.Leaves() {
		// The venue base asset is the counter leg of every trade and is
		// never rebalanced directly.
		if leaf.Asset() == s.registry.Native() {
			continue
		}
		if leaf.Order() == nil {
			leaf.SetOrder(order.NewRebalance(leaf, s.tuning, s.log))
		} else {
			leaf.Order().Refresh()
		}

		ops := leaf.Order().Operations()
		desc := leaf.Order().Description(s.currency)
		if len(ops) == 0 && len(desc) == 0 {
			continue
		}
		plan.Orders = append(plan.Orders, OrderPlan{
			Asset:       leaf.Asset().Code(),
			Goal:        leaf.Goal(),
			Value:       leaf.Value(),
			AmountDelta: leaf.AmountDelta(),
			Description: desc,
			Operations:  ops,
			TradeOps:    leaf.Order().TradeOps(),
		})
	}

	s.log.Info().
		Float64("total", total).
		Int("orders", len(plan.Orders)).
		Int("advisories", len(plan.Advisories)).
		Msg("Rebalance pass complete")
	return plan, nil
}

// RecordPlan appends the plan's operations to the operation log, as the
// batch handed to the external signer.
func (s *Service) RecordPlan(ctx context.Context, plan *Plan) error {
	if s.opLog == nil {
		return nil
	}
	for _, op := range plan.Orders {
		if err := s.opLog.Record(ctx, s.accountID, op.Asset, op.Operations); err != nil {
			return err
		}
	}
	return nil
}
