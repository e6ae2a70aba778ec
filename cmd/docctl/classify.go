package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/luismhernandezs-crypto/doc-classifier/internal/config"
	"github.com/luismhernandezs-crypto/doc-classifier/internal/core/textnorm"
	"github.com/luismhernandezs-crypto/doc-classifier/internal/infrastructure/model/logreg"
)

func classifyCmd() *cobra.Command {
	var (
		modelPath string
		file      string
	)
	cmd := &cobra.Command{
		Use:   "classify [text]",
		Short: "Print per-class probabilities for a text",
		Long: `classify loads only the model artifact and prints the probability the
model assigns to each class after normalization. Nothing is persisted.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := classifyInput(args, file, cmd.InOrStdin())
			if err != nil {
				return err
			}
			if modelPath == "" {
				modelPath = config.Load().ModelPath
			}
			model, err := logreg.Load(modelPath)
			if err != nil {
				return err
			}

			normalized := textnorm.Normalize(text)
			probs := model.PredictProba(normalized)
			category, confidence := model.Predict(normalized)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "model: %s\nnormalized: %q\nprediction: %s (%.4f)\n\n", model.Version(), normalized, category, confidence)
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CLASS\tPROBABILITY")
			for i, class := range model.Classes() {
				fmt.Fprintf(w, "%s\t%.4f\n", class, probs[i])
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&modelPath, "model", "", "model artifact path (defaults to MODEL_PATH)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "read text from a file, '-' for stdin")
	return cmd
}

func classifyInput(args []string, file string, stdin io.Reader) (string, error) {
	var raw []byte
	var err error
	switch {
	case len(args) == 1:
		raw = []byte(args[0])
	case file == "-":
		raw, err = io.ReadAll(stdin)
	case file != "":
		raw, err = os.ReadFile(file)
	default:
		return "", errors.New("provide text as an argument or with --file")
	}
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return "", errors.New("input text is empty")
	}
	return text, nil
}
