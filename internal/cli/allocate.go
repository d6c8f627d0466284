package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/atmx/ddp-sim/internal/allocation"
	"github.com/atmx/ddp-sim/internal/model"
)

type allocateOptions struct {
	supply          float64
	boardMembers    int
	ammPercent      float64
	playerPercent   float64
	platformPercent float64
	chairman        float64
	boardMember     float64
	platformFee     float64
	treasuryUSDC    float64
	output          string
}

type allocationOutput struct {
	Config       model.Config               `json:"config"`
	Breakdown    *model.AllocationBreakdown `json:"breakdown"`
	Participants []model.Participant        `json:"participants"`
}

func newAllocateCmd(g *globalOptions) *cobra.Command {
	o := &allocateOptions{}

	cmd := &cobra.Command{
		Use:   "allocate",
		Short: "Compute the initial allocation and participant ledger",
		Long: `Compute how the total DDP supply and the raised USDC are split between
treasury, AMM pool, chairman, board members and platform, and print the
resulting participant ledger. Flags override the configured simulation
defaults.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, g)
		},
	}

	f := cmd.Flags()
	f.Float64Var(&o.supply, "supply", 0, "total DDP supply")
	f.IntVar(&o.boardMembers, "board-members", 0, "number of board members")
	f.Float64Var(&o.ammPercent, "amm-percent", 0, "percent of supply seeded into the AMM pool")
	f.Float64Var(&o.playerPercent, "player-percent", 0, "percent of supply for the chairman and board")
	f.Float64Var(&o.platformPercent, "platform-percent", 0, "percent of supply for the platform")
	f.Float64Var(&o.chairman, "chairman-contribution", 0, "USDC paid in by the chairman")
	f.Float64Var(&o.boardMember, "board-member-contribution", 0, "USDC paid in by each board member")
	f.Float64Var(&o.platformFee, "platform-fee-percent", 0, "percent of raised USDC kept by the platform")
	f.Float64Var(&o.treasuryUSDC, "treasury-usdc-percent", 0, "percent of raised USDC kept by the treasury")
	f.StringVarP(&o.output, "output", "o", "json", "output format: json or table")
	return cmd
}

func (o *allocateOptions) run(cmd *cobra.Command, g *globalOptions) error {
	sim := g.cfg.Simulation
	f := cmd.Flags()
	if f.Changed("supply") {
		sim.TotalSupply = o.supply
	}
	if f.Changed("board-members") {
		sim.NumBoardMembers = o.boardMembers
	}
	if f.Changed("amm-percent") {
		sim.AmmPercent = o.ammPercent
	}
	if f.Changed("player-percent") {
		sim.PlayerPercent = o.playerPercent
	}
	if f.Changed("platform-percent") {
		sim.PlatformPercent = o.platformPercent
	}
	if f.Changed("chairman-contribution") {
		sim.ChairmanContribution = o.chairman
	}
	if f.Changed("board-member-contribution") {
		sim.BoardMemberContribution = o.boardMember
	}
	if f.Changed("platform-fee-percent") {
		sim.PlatformFeePercent = o.platformFee
	}
	if f.Changed("treasury-usdc-percent") {
		sim.TreasuryUSDCPercent = o.treasuryUSDC
	}

	cfg, err := sim.Model()
	if err != nil {
		return err
	}
	b, err := allocation.Compute(cfg)
	if err != nil {
		return err
	}
	rows := allocation.BuildLedger(cfg, b)

	switch o.output {
	case "json":
		return writeJSON(cmd.OutOrStdout(), allocationOutput{Config: cfg, Breakdown: b, Participants: rows})
	case "table":
		return writeAllocationTable(cmd.OutOrStdout(), b, rows)
	}
	return fmt.Errorf("unknown output format %q", o.output)
}

func writeAllocationTable(w io.Writer, b *model.AllocationBreakdown, rows []model.Participant) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "Treasury\t%s%%\t%s DDP\t\n", b.TreasuryPercent, b.TreasuryDDP)
	fmt.Fprintf(tw, "Raised\t\t%s USDC\t\n", b.TotalContributionsUSDC)
	fmt.Fprintf(tw, "Initial price\t\t%s USDC\t\n", b.InitialDDPPrice)
	fmt.Fprintf(tw, "Pool price\t\t%s USDC\t\n", b.PoolPrice)
	fmt.Fprintln(tw, "\t\t\t")
	fmt.Fprintln(tw, "ID\tName\tRole\tDDP\tUSDC\tLP\t")
	for _, p := range rows {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t\n",
			p.ID, p.Name, p.Role, p.DDPBalance, p.USDCBalance, p.LPTokens)
	}
	return tw.Flush()
}
