package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/openers/internal/leads"
	"github.com/sells-group/openers/pkg/notion"
)

var (
	importFile  string
	importLimit int
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Queue leads from a CSV or XLSX export into Notion",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if cfg.Notion.Token == "" {
			return eris.New("notion token is required (OPENERS_NOTION_TOKEN)")
		}
		if cfg.Notion.LeadDB == "" {
			return eris.New("notion lead DB ID is required (OPENERS_NOTION_LEAD_DB)")
		}

		list, err := leads.ReadFile(importFile)
		if err != nil {
			return eris.Wrap(err, "import: read leads")
		}
		if importLimit > 0 && importLimit < len(list) {
			list = list[:importLimit]
		}

		created, err := notion.ImportLeads(ctx, newNotionClient(), cfg.Notion.LeadDB, list)
		if err != nil {
			return eris.Wrap(err, "import leads")
		}

		zap.L().Info("import complete",
			zap.Int("created", created),
			zap.Int("parsed", len(list)),
			zap.String("file", importFile),
		)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importFile, "file", "", "path to CSV or XLSX lead export (required)")
	importCmd.Flags().IntVar(&importLimit, "limit", 0, "max leads to import (0 = all)")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}
