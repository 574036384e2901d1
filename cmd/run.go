package main

import (
	"encoding/json"
	"net/url"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tradu/emailqc/internal/copydoc"
	"github.com/tradu/emailqc/internal/model"
	"github.com/tradu/emailqc/internal/pipeline"
	"github.com/tradu/emailqc/internal/preview"
	"github.com/tradu/emailqc/internal/store"
)

var (
	runName        string
	runBrazeURL    string
	runCopyDocPath string
	runCopyDocHTML string
	runSilo        string
	runEntity      string
	runEmailType   string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run QC for a single email synchronously",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		copyDocText, err := os.ReadFile(runCopyDocPath)
		if err != nil {
			return eris.Wrap(err, "read copy doc")
		}

		var copyDocHTML string
		var copyDocLinks []model.CopyDocLink
		if runCopyDocHTML != "" {
			raw, err := os.ReadFile(runCopyDocHTML)
			if err != nil {
				return eris.Wrap(err, "read copy doc html")
			}
			copyDocHTML = string(raw)
			copyDocLinks = copydoc.ExtractLinksFromHTML(copyDocHTML)
		}

		if !model.EmailTypes[runEmailType] {
			return eris.Errorf("email type %q must be marketing or transactional", runEmailType)
		}
		target, err := url.Parse(runBrazeURL)
		if err != nil || target.Host == "" {
			return eris.New("braze-url must be a valid URL")
		}
		if !preview.HostAllowed(target, cfg.Preview.AllowedHosts) {
			return eris.Errorf("braze-url host %q is not permitted", target.Host)
		}

		run, err := env.Store.CreateRun(ctx, store.NewRun{
			Name:         runName,
			BrazeURL:     target.String(),
			CopyDocText:  string(copyDocText),
			CopyDocHTML:  copyDocHTML,
			CopyDocLinks: copyDocLinks,
			Silo:         runSilo,
			Entity:       runEntity,
			EmailType:    runEmailType,
		})
		if err != nil {
			return eris.Wrap(err, "create run")
		}

		if err := env.Pipeline.Process(ctx, pipeline.Job{
			RunID:        run.ID,
			BrazeURL:     target.String(),
			CopyDocText:  string(copyDocText),
			CopyDocHTML:  copyDocHTML,
			CopyDocLinks: copyDocLinks,
			Silo:         runSilo,
			Entity:       runEntity,
			EmailType:    runEmailType,
		}); err != nil {
			zap.L().Warn("qc run failed", zap.String("run_id", run.ID), zap.Error(err))
		}

		result, err := env.Store.GetRun(ctx, run.ID)
		if err != nil {
			return eris.Wrap(err, "load run result")
		}

		// Print result JSON to stdout
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	runCmd.Flags().StringVar(&runName, "name", "", "display name for the run")
	runCmd.Flags().StringVar(&runBrazeURL, "braze-url", "", "Braze preview URL (required)")
	runCmd.Flags().StringVar(&runCopyDocPath, "copy-doc", "", "path to the copy document text file (required)")
	runCmd.Flags().StringVar(&runCopyDocHTML, "copy-doc-html", "", "path to the copy document HTML export")
	runCmd.Flags().StringVar(&runSilo, "silo", "", "brand silo, e.g. CFD (required)")
	runCmd.Flags().StringVar(&runEntity, "entity", "", "regulatory entity, e.g. UK (required)")
	runCmd.Flags().StringVar(&runEmailType, "email-type", "marketing", "email type (marketing or transactional)")
	_ = runCmd.MarkFlagRequired("braze-url")
	_ = runCmd.MarkFlagRequired("copy-doc")
	_ = runCmd.MarkFlagRequired("silo")
	_ = runCmd.MarkFlagRequired("entity")
	rootCmd.AddCommand(runCmd)
}
