package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/atmx/ddp-sim/internal/allocation"
	"github.com/atmx/ddp-sim/internal/amm"
	"github.com/atmx/ddp-sim/internal/config"
	"github.com/atmx/ddp-sim/internal/ledger"
	"github.com/atmx/ddp-sim/internal/model"
	"github.com/atmx/ddp-sim/internal/validation"
)

type quoteOptions struct {
	setup       bool
	players     int
	execute     bool
	participant int
}

// quoteOutput is printed by every quote subcommand. Pool is the state after
// the operation when --execute is set, otherwise the unchanged pool.
type quoteOutput struct {
	Operation    model.Operation     `json:"operation"`
	Result       model.Result        `json:"result"`
	Pool         amm.PoolState       `json:"pool"`
	Participants []model.Participant `json:"participants,omitempty"`
}

func newQuoteCmd(g *globalOptions) *cobra.Command {
	q := &quoteOptions{}

	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Quote an exchange operation against a freshly built ledger",
		Long: `Build the ledger from the configured allocation (or the setup preset with
--setup) and quote one swap or liquidity operation against it. Nothing is
persisted; --execute applies the operation to the in-memory ledger and
prints the resulting rows.`,
	}

	pf := cmd.PersistentFlags()
	pf.BoolVar(&q.setup, "setup", false, "seed the ledger from the whale/players preset")
	pf.IntVar(&q.players, "players", 0, "number of regular players in the preset (with --setup)")
	pf.BoolVar(&q.execute, "execute", false, "apply the operation and print the resulting ledger")
	pf.IntVar(&q.participant, "participant", 0, "acting participant id")
	_ = cmd.MarkPersistentFlagRequired("participant")

	cmd.AddCommand(newQuoteSwapCmd(g, q), newQuoteAddCmd(g, q), newQuoteRemoveCmd(g, q))
	return cmd
}

func newQuoteSwapCmd(g *globalOptions, q *quoteOptions) *cobra.Command {
	var token string
	var amount float64

	cmd := &cobra.Command{
		Use:   "swap",
		Short: "Quote a swap of --amount of --token for the other asset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := model.ParseToken(token)
			if err != nil {
				return err
			}
			amt, err := validation.Amount(amount)
			if err != nil {
				return err
			}
			return q.run(cmd, g, model.Operation{
				Type:          model.OpSwap,
				ParticipantID: q.participant,
				Token:         t,
				Amount:        amt,
			})
		},
	}
	cmd.Flags().StringVar(&token, "token", "DDP", "input token: DDP or USDC")
	cmd.Flags().Float64Var(&amount, "amount", 0, "input amount")
	return cmd
}

func newQuoteAddCmd(g *globalOptions, q *quoteOptions) *cobra.Command {
	var token string
	var amount, other float64

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Quote adding --amount of --token as liquidity",
		Long: `Quote adding liquidity. The other side is taken at the pool ratio;
--other is only used when the pool is empty.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := model.ParseToken(token)
			if err != nil {
				return err
			}
			amt, err := validation.Amount(amount)
			if err != nil {
				return err
			}
			oth, err := validation.Amount(other)
			if err != nil {
				return err
			}
			return q.run(cmd, g, model.Operation{
				Type:          model.OpAddLiquidity,
				ParticipantID: q.participant,
				Token:         t,
				Amount:        amt,
				OtherAmount:   oth,
			})
		},
	}
	cmd.Flags().StringVar(&token, "token", "DDP", "deposited token: DDP or USDC")
	cmd.Flags().Float64Var(&amount, "amount", 0, "deposited amount")
	cmd.Flags().Float64Var(&other, "other", 0, "amount of the other token (empty pool only)")
	return cmd
}

func newQuoteRemoveCmd(g *globalOptions, q *quoteOptions) *cobra.Command {
	var percent float64

	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Quote withdrawing --percent of the participant's LP tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pct, err := validation.Amount(percent)
			if err != nil {
				return err
			}
			return q.run(cmd, g, model.Operation{
				Type:          model.OpRemoveLiquidity,
				ParticipantID: q.participant,
				Percent:       pct,
			})
		},
	}
	cmd.Flags().Float64Var(&percent, "percent", 100, "percent of LP holdings to burn")
	return cmd
}

func (q *quoteOptions) run(cmd *cobra.Command, g *globalOptions, op model.Operation) error {
	l, err := q.ledger(cmd, g.cfg)
	if err != nil {
		return err
	}
	engine, err := g.cfg.AMM.NewEngine()
	if err != nil {
		return err
	}

	out := quoteOutput{Operation: op}
	if q.execute {
		out.Result, err = engine.Execute(l, op)
		out.Participants = l.Participants()
	} else {
		out.Result, err = engine.Simulate(l, op)
	}
	if err != nil {
		return err
	}
	out.Pool = engine.State(l)

	slog.Debug("quote computed",
		"type", string(op.Type),
		"participant_id", op.ParticipantID,
		"executed", q.execute,
		"spot_price_after", out.Result.SpotPriceAfter.String(),
	)
	return writeJSON(cmd.OutOrStdout(), out)
}

func (q *quoteOptions) ledger(cmd *cobra.Command, cfg *config.Config) (*ledger.Ledger, error) {
	if q.setup {
		setup := allocation.DefaultSetup()
		if cmd.Flags().Changed("players") {
			setup.NumPlayers = q.players
		}
		rows, err := allocation.BuildSetupLedger(setup)
		if err != nil {
			return nil, err
		}
		return ledger.New(rows)
	}

	mc, err := cfg.Simulation.Model()
	if err != nil {
		return nil, err
	}
	b, err := allocation.Compute(mc)
	if err != nil {
		return nil, err
	}
	return ledger.New(allocation.BuildLedger(mc, b))
}
