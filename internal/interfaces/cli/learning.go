package cli

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/ExportReady-Intelligence/internal/application/learning"
	"github.com/turtacn/ExportReady-Intelligence/internal/domain/business"
	"github.com/turtacn/ExportReady-Intelligence/internal/domain/export"
	"github.com/turtacn/ExportReady-Intelligence/internal/domain/similarity"
	"github.com/turtacn/ExportReady-Intelligence/internal/infrastructure/monitoring/logging"
)

func newSimilarityCmd() *cobra.Command {
	var fileA, fileB string
	cmd := &cobra.Command{
		Use:   "similarity",
		Short: "Score how similar two business profiles are",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var a, b business.Profile
			if err := readJSON(cmd, fileA, &a); err != nil {
				return err
			}
			if err := readJSON(cmd, fileB, &b); err != nil {
				return err
			}
			_, rt, _, cancel, err := runtimeFor(cmd)
			if err != nil {
				return err
			}
			defer cancel()
			return PrintResult(cmd, breakdownView(rt.Similarity.Explain(&a, &b)))
		},
	}
	cmd.Flags().StringVar(&fileA, "a", "", "first profile JSON file (required)")
	cmd.Flags().StringVar(&fileB, "b", "", "second profile JSON file (required)")
	_ = cmd.MarkFlagRequired("a")
	_ = cmd.MarkFlagRequired("b")
	return cmd
}

type breakdownView similarity.Breakdown

func (b breakdownView) TableHeaders() []string {
	return []string{"INDUSTRY", "SIZE", "PRODUCT", "EXPERIENCE", "TOTAL"}
}

func (b breakdownView) TableRows() [][]string {
	return [][]string{{formatFloat(b.Industry), formatFloat(b.Size), formatFloat(b.Product), formatFloat(b.Experience), formatFloat(b.Total)}}
}

func newStrategiesCmd() *cobra.Command {
	var profileFile, market string
	cmd := &cobra.Command{
		Use:   "strategies",
		Short: "List strategies that worked for similar businesses in a market",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var p business.Profile
			if err := readJSON(cmd, profileFile, &p); err != nil {
				return err
			}
			c, rt, ctx, cancel, err := runtimeFor(cmd)
			if err != nil {
				return err
			}
			defer cancel()

			recs, err := rt.Memory.FindSimilarStrategies(ctx, &p, market)
			if err != nil {
				return err
			}
			c.Logger.Debug("strategies found", logging.String("market", market), logging.Int("count", len(recs)))
			return PrintResult(cmd, strategyList(recs))
		},
	}
	cmd.Flags().StringVar(&profileFile, "profile", "", "profile JSON file (required)")
	cmd.Flags().StringVar(&market, "market", "", "target market (required)")
	_ = cmd.MarkFlagRequired("profile")
	_ = cmd.MarkFlagRequired("market")
	return cmd
}

type strategyList []export.StrategyRecommendation

func (l strategyList) TableHeaders() []string {
	return []string{"STRATEGY", "CONFIDENCE", "SIMILARITY", "TIMELINE_DAYS", "SUCCESS_FACTORS"}
}

func (l strategyList) TableRows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, r := range l {
		rows = append(rows, []string{
			r.StrategyType, formatFloat(r.Confidence), formatFloat(r.Similarity),
			strconv.Itoa(r.EstimatedTimelineDays), strings.Join(r.KeySuccessFactors, "; "),
		})
	}
	return rows
}

func newPatternsCmd() *cobra.Command {
	var q export.PatternQuery
	cmd := &cobra.Command{
		Use:   "patterns",
		Short: "Query success patterns by industry, region and size",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, rt, ctx, cancel, err := runtimeFor(cmd)
			if err != nil {
				return err
			}
			defer cancel()
			patterns, err := rt.Memory.FindPatterns(ctx, q)
			if err != nil {
				return err
			}
			return PrintResult(cmd, patternList(patterns))
		},
	}
	cmd.Flags().StringVar(&q.IndustryType, "industry", "", "industry filter, case-insensitive")
	cmd.Flags().StringVar(&q.MarketRegion, "region", "", "market region filter, case-insensitive")
	cmd.Flags().StringVar(&q.BusinessSize, "size", "", "business size filter, case-insensitive")

	var market string
	rebuild := &cobra.Command{
		Use:   "rebuild",
		Short: "Derive missing patterns from the successful outcomes of a market",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, rt, ctx, cancel, err := runtimeFor(cmd)
			if err != nil {
				return err
			}
			defer cancel()
			added, err := rt.Memory.RebuildPatterns(ctx, market)
			if err != nil {
				return err
			}
			return PrintResult(cmd, rebuildResult{Market: market, Added: added})
		},
	}
	rebuild.Flags().StringVar(&market, "market", "", "target market (required)")
	_ = rebuild.MarkFlagRequired("market")

	cmd.AddCommand(rebuild)
	return cmd
}

type rebuildResult struct {
	Market string `json:"market"`
	Added  int    `json:"added"`
}

func (r rebuildResult) TableHeaders() []string { return []string{"MARKET", "ADDED"} }

func (r rebuildResult) TableRows() [][]string {
	return [][]string{{r.Market, strconv.Itoa(r.Added)}}
}

type patternList []*export.Pattern

func (l patternList) TableHeaders() []string {
	return []string{"INDUSTRY", "REGION", "SIZE", "STRATEGY", "DAYS"}
}

func (l patternList) TableRows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, p := range l {
		rows = append(rows, []string{p.IndustryType, p.MarketRegion, p.BusinessSize, p.EntryStrategy, strconv.Itoa(p.TimeToSuccessDays)})
	}
	return rows
}

func newOutcomeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outcome",
		Short: "Record and inspect export outcomes",
	}

	var file string
	record := &cobra.Command{
		Use:   "record",
		Short: "Record an export outcome from a JSON file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var o export.Outcome
			if err := readJSON(cmd, file, &o); err != nil {
				return err
			}
			_, rt, ctx, cancel, err := runtimeFor(cmd)
			if err != nil {
				return err
			}
			defer cancel()
			stored, err := rt.Memory.RecordOutcome(ctx, &o)
			if err != nil {
				return err
			}
			return PrintResult(cmd, stored)
		},
	}
	record.Flags().StringVarP(&file, "file", "f", "", "outcome JSON file, - for stdin (required)")
	_ = record.MarkFlagRequired("file")

	var businessID string
	list := &cobra.Command{
		Use:   "list",
		Short: "List the outcomes recorded for a business",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, rt, ctx, cancel, err := runtimeFor(cmd)
			if err != nil {
				return err
			}
			defer cancel()
			outcomes, err := rt.Memory.OutcomesForBusiness(ctx, businessID)
			if err != nil {
				return err
			}
			return PrintResult(cmd, outcomes)
		},
	}
	list.Flags().StringVar(&businessID, "business-id", "", "business identifier (required)")
	_ = list.MarkFlagRequired("business-id")

	cmd.AddCommand(record, list)
	return cmd
}

// enhanceResult is the enhance command output.
type enhanceResult struct {
	Recommendations []export.EnhancedMarketRecommendation `json:"recommendations"`
	Insights        *export.LearningInsights              `json:"insights,omitempty"`
}

func (r enhanceResult) TableHeaders() []string {
	return []string{"MARKET", "SCORE", "ORIGINAL", "SIMILAR", "CONFIDENCE", "TIMELINE_DAYS"}
}

func (r enhanceResult) TableRows() [][]string {
	rows := make([][]string, 0, len(r.Recommendations))
	for _, e := range r.Recommendations {
		rows = append(rows, []string{
			e.Market, formatFloat(e.Score), formatFloat(e.OriginalScore), strconv.Itoa(e.SimilarBusinesses),
			formatFloat(e.LearningConfidence), strconv.FormatFloat(e.EstimatedTimelineDays, 'f', 1, 64),
		})
	}
	return rows
}

func newEnhanceCmd() *cobra.Command {
	var businessID, file string
	var withInsights bool
	cmd := &cobra.Command{
		Use:   "enhance",
		Short: "Blend similar-business evidence into market recommendations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var base []export.MarketRecommendation
			if err := readJSON(cmd, file, &base); err != nil {
				return err
			}
			_, rt, ctx, cancel, err := runtimeFor(cmd)
			if err != nil {
				return err
			}
			defer cancel()

			out, err := rt.Engine.EnhanceMarketRecommendations(ctx, businessID, base)
			if err != nil {
				return err
			}
			res := enhanceResult{Recommendations: out}
			if withInsights {
				insights := learning.BuildInsights(out)
				res.Insights = &insights
			}
			return PrintResult(cmd, res)
		},
	}
	cmd.Flags().StringVar(&businessID, "business-id", "", "business whose profile drives the blend (required)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON array of market recommendations, - for stdin (required)")
	cmd.Flags().BoolVar(&withInsights, "insights", false, "include insights and chart series")
	_ = cmd.MarkFlagRequired("business-id")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newSelectionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "selection",
		Short: "Record which markets a business chose",
	}
	var businessID, profileFile string
	var markets []string
	record := &cobra.Command{
		Use:   "record",
		Short: "Record a market selection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, rt, ctx, cancel, err := runtimeFor(cmd)
			if err != nil {
				return err
			}
			defer cancel()

			var p *business.Profile
			if profileFile != "" {
				p = &business.Profile{}
				if err := readJSON(cmd, profileFile, p); err != nil {
					return err
				}
			} else if p, err = rt.Profiles.GetProfile(ctx, businessID); err != nil {
				return err
			}
			sel, err := rt.Engine.RecordMarketSelection(ctx, businessID, p, markets)
			if err != nil {
				return err
			}
			return PrintResult(cmd, sel)
		},
	}
	record.Flags().StringVar(&businessID, "business-id", "", "business identifier (required)")
	record.Flags().StringVar(&profileFile, "profile", "", "profile JSON file; defaults to the stored profile")
	record.Flags().StringSliceVar(&markets, "markets", nil, "selected markets, comma separated (required)")
	_ = record.MarkFlagRequired("business-id")
	_ = record.MarkFlagRequired("markets")
	cmd.AddCommand(record)
	return cmd
}
