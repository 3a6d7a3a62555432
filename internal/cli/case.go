package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pkruk/accident-clerk/internal/corpus"
	"github.com/pkruk/accident-clerk/internal/domain"
	"github.com/pkruk/accident-clerk/internal/store"
)

var caseCmd = &cobra.Command{
	Use:   "case",
	Short: "Create and inspect accident claim cases",
}

var (
	caseNIP         string
	caseREGON       string
	casePKD         string
	caseDescription string
	docTypeName     string
)

var caseNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Create a new case",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(loadConfig())
		if err != nil {
			return err
		}
		defer st.Close()

		c := domain.Case{
			NIP:                 caseNIP,
			REGON:               caseREGON,
			PKDCode:             casePKD,
			BusinessDescription: caseDescription,
		}
		if err := st.CreateCase(cmd.Context(), &c); err != nil {
			return err
		}
		fmt.Println(c.ID)
		return nil
	},
}

var caseAddCmd = &cobra.Command{
	Use:   "add <case-id> <file.pdf> [more.pdf ...]",
	Short: "Attach PDF documents to a case",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		caseID := args[0]
		if _, err := st.GetCase(cmd.Context(), caseID); err != nil {
			return err
		}

		caseDir := filepath.Join(cfg.DataDir, caseID)
		if err := os.MkdirAll(caseDir, 0o755); err != nil {
			return err
		}

		for _, src := range args[1:] {
			doc, err := ingestFile(cmd, st, caseID, caseDir, src)
			if err != nil {
				return fmt.Errorf("%s: %w", src, err)
			}
			fmt.Printf("%s  %s\n", doc.ID, doc.Filename)
		}
		return nil
	},
}

func ingestFile(cmd *cobra.Command, st *store.SQLiteStore, caseID, caseDir, src string) (domain.Document, error) {
	in, err := os.Open(src)
	if err != nil {
		return domain.Document{}, err
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return domain.Document{}, err
	}

	dst := filepath.Join(caseDir, filepath.Base(src))
	out, err := os.Create(dst)
	if err != nil {
		return domain.Document{}, err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return domain.Document{}, err
	}
	if err := out.Close(); err != nil {
		return domain.Document{}, err
	}

	typeName := docTypeName
	if typeName == "" {
		typeName = corpus.UnknownDocType
	}
	doc := domain.Document{
		CaseID:      caseID,
		TypeName:    typeName,
		Filename:    filepath.Base(src),
		StoragePath: dst,
		FileSize:    info.Size(),
	}
	if err := st.AddDocument(cmd.Context(), &doc); err != nil {
		return domain.Document{}, err
	}
	return doc, nil
}

var caseShowCmd = &cobra.Command{
	Use:   "show <case-id>",
	Short: "Print a case with its documents and results",
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
		docs, err := st.ListDocuments(ctx, c.ID)
		if err != nil {
			return err
		}

		view := map[string]any{
			"case":      c,
			"documents": docs,
		}
		if fa, err := st.GetFormalAnalysis(ctx, c.ID); err == nil {
			view["formal_analysis"] = fa
		}
		if items, err := st.ListDiscrepancies(ctx, c.ID); err == nil && len(items) > 0 {
			view["discrepancies"] = items
		}
		if recs, err := st.ListRecommendations(ctx, c.ID); err == nil && len(recs) > 0 {
			view["recommendations"] = recs
		}
		if op, err := st.GetOpinion(ctx, c.ID); err == nil {
			view["opinion"] = op
		}
		return printJSON(view)
	},
}

func init() {
	caseNewCmd.Flags().StringVar(&caseNIP, "nip", "", "employer NIP")
	caseNewCmd.Flags().StringVar(&caseREGON, "regon", "", "employer REGON")
	caseNewCmd.Flags().StringVar(&casePKD, "pkd", "", "employer PKD code")
	caseNewCmd.Flags().StringVar(&caseDescription, "description", "", "business activity description")

	caseAddCmd.Flags().StringVar(&docTypeName, "type", "", "document type (default: "+corpus.UnknownDocType+")")

	caseCmd.AddCommand(caseNewCmd)
	caseCmd.AddCommand(caseAddCmd)
	caseCmd.AddCommand(caseShowCmd)
}
