package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openlosa/losa/pkg/loan"
)

func newAttachCommand() *cobra.Command {
	var (
		docType  string
		fileName string
		fileSize int64
	)

	cmd := &cobra.Command{
		Use:   "attach <application-id> <file>",
		Short: "Attach a document to an application",
		Long: `Attach a document to an application.

An application suspended awaiting documents resumes verification as
soon as a document arrives. Documents may also be attached while the
application is still in flight; decided applications no longer accept
them.

Document types: identity, income_proof, bank_statement, tax_return,
employment_letter, other.`,
		Example: `  # Attach an identity document
  losa attach LOAN-20260828-A1B2C3D4 ./passport.pdf --type identity

  # Attach a pay stub under a different name
  losa attach LOAN-20260828-A1B2C3D4 ./scan.pdf --type income_proof --name paystub-june.pdf`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, path := args[0], args[1]

			info, err := os.Stat(path)
			if err != nil {
				return fmt.Errorf("reading document %s: %w", path, err)
			}
			name := fileName
			if name == "" {
				name = filepath.Base(path)
			}
			size := fileSize
			if size == 0 {
				size = info.Size()
			}

			rt, err := openRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()

			app, err := rt.engine.AttachDocument(cmd.Context(), id, loan.DocumentRef{
				Type:     loan.DocumentType(docType),
				FileName: name,
				FileSize: size,
			})
			if err != nil {
				return err
			}
			log.Info().
				Str("application", app.ID).
				Str("type", docType).
				Str("file", name).
				Str("status", string(app.Status)).
				Msg("Document attached")
			return printApplication(app)
		},
	}

	cmd.Flags().StringVar(&docType, "type", "", "document type")
	cmd.Flags().StringVar(&fileName, "name", "", "override the stored file name")
	cmd.Flags().Int64Var(&fileSize, "size", 0, "override the stored file size in bytes")
	cmd.MarkFlagRequired("type")

	return cmd
}
