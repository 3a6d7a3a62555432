package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pkruk/accident-clerk/internal/draft"
)

var runCmd = &cobra.Command{
	Use:   "run <case-id>",
	Short: "Run the full analysis pipeline for a case",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.runner().Run(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Println("case completed:", args[0])
		return nil
	},
}

var ocrCmd = &cobra.Command{
	Use:   "ocr <case-id>",
	Short: "Run text extraction for all pending documents",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		svc := newOCRService(cfg, st)
		res, err := svc.ProcessAllDocuments(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

var discrepanciesCmd = &cobra.Command{
	Use:   "discrepancies <case-id>",
	Short: "Detect cross-document discrepancies",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.discrepancyService().Detect(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

var formalCmd = &cobra.Command{
	Use:   "formal <case-id>",
	Short: "Evaluate the four statutory work-accident criteria",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.formalService().Evaluate(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

var gapsCmd = &cobra.Command{
	Use:   "gaps <case-id>",
	Short: "Recommend missing documentation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.gapsService().Advise(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

var opinionCmd = &cobra.Command{
	Use:   "opinion <case-id>",
	Short: "Synthesize the final legal opinion",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.opinionService().Synthesize(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

var draftOutput string

var draftCmd = &cobra.Command{
	Use:   "draft <case-id>",
	Short: "Render the Karta Wypadku draft PDF from the stored opinion",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(loadConfig())
		if err != nil {
			return err
		}
		defer st.Close()

		ctx := cmd.Context()
		c, err := st.GetCase(ctx, args[0])
		if err != nil {
			return err
		}
		op, err := st.GetOpinion(ctx, c.ID)
		if err != nil {
			return err
		}

		md := draft.BuildMarkdown(c, op)
		pdf, err := draft.NewChromiumRenderer().Render(ctx, md, draft.Meta{
			CaseID:      c.ID,
			GeneratedAt: time.Now(),
			Standpoint:  op.OverallAssessment,
		})
		if err != nil {
			return err
		}

		out := draftOutput
		if out == "" {
			out = fmt.Sprintf("karta_wypadku_%s.pdf", c.ID)
		}
		if err := os.WriteFile(out, pdf, 0o644); err != nil {
			return err
		}
		fmt.Println("wrote", out)
		return nil
	},
}

func init() {
	draftCmd.Flags().StringVarP(&draftOutput, "output", "o", "", "output PDF path")
}
