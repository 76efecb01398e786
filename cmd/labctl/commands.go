package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/lab-analysis-engine/internal/domain"
	"github.com/lab-analysis-engine/internal/service"
)

const (
	outputJSON = "json"
	outputYAML = "yaml"
)

type cli struct {
	analysis *service.AnalysisService
	logger   *logrus.Logger
	output   string
	verbose  bool
}

func validateOutput(format string) error {
	switch format {
	case outputJSON, outputYAML:
		return nil
	default:
		return fmt.Errorf("unsupported output format %q (want json or yaml)", format)
	}
}

func (a *cli) classifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify [test name]...",
		Short: "Assign categories to test names (reads one name per line from stdin when none are given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			names := args
			if len(names) == 0 {
				var err error
				if names, err = readLines(cmd.InOrStdin()); err != nil {
					return err
				}
			}
			if len(names) == 0 {
				return fmt.Errorf("no test names given")
			}
			return a.render(cmd.OutOrStdout(), a.analysis.ClassifyNames(names))
		},
	}
}

func (a *cli) evaluateCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate one lab result against its reference range",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result domain.LabResult
			if err := readJSON(cmd.InOrStdin(), file, &result); err != nil {
				return err
			}
			if err := result.Validate(); err != nil {
				a.logger.WithError(err).Warn("Lab result violates row invariant")
			}
			return a.render(cmd.OutOrStdout(), map[string]any{
				"category":   a.analysis.Classify(result.TestName),
				"evaluation": a.analysis.EvaluateResult(result),
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "lab result JSON file, - for stdin")
	return cmd
}

func (a *cli) viewCmd() *cobra.Command {
	var file string
	var flat bool
	cmd := &cobra.Command{
		Use:   "view",
		Short: "Assemble the ordered category views of an analysis payload",
		Long: "Assemble the ordered category views of an analysis payload.\n\n" +
			"With --flat the input is a JSON array of lab results without a backend\n" +
			"analysis; each result is grouped under the category of its test name.",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				result *service.AnalysisViewResult
				err    error
			)
			if flat {
				var results []domain.LabResult
				if err := readJSON(cmd.InOrStdin(), file, &results); err != nil {
					return err
				}
				result, err = a.analysis.BuildViewsFromResults(cmd.Context(), results)
			} else {
				var payload domain.AnalysisPayload
				if err := readJSON(cmd.InOrStdin(), file, &payload); err != nil {
					return err
				}
				result, err = a.analysis.BuildViews(cmd.Context(), payload)
			}
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "analysis payload JSON file, - for stdin")
	cmd.Flags().BoolVar(&flat, "flat", false, "read a flat lab result array instead of an analysis payload")
	return cmd
}

func (a *cli) exportCmd() *cobra.Command {
	var file, category string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Print the clipboard text of an analysis payload",
		RunE: func(cmd *cobra.Command, args []string) error {
			var payload domain.AnalysisPayload
			if err := readJSON(cmd.InOrStdin(), file, &payload); err != nil {
				return err
			}

			var only *domain.CategoryKey
			if category != "" {
				key, err := domain.ParseCategoryKey(category)
				if err != nil {
					return err
				}
				only = &key
			}

			text, err := a.analysis.Export(cmd.Context(), payload, only)
			if err != nil {
				return err
			}
			if text != "" {
				fmt.Fprintln(cmd.OutOrStdout(), text)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "analysis payload JSON file, - for stdin")
	cmd.Flags().StringVarP(&category, "category", "c", "", "only export this category tab")
	return cmd
}

func (a *cli) categoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List categories and their keywords in tab order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.render(cmd.OutOrStdout(), a.analysis.Categories())
		},
	}
}

// render writes v in the selected output format. YAML goes through the JSON
// encoding first so both formats share the same field names.
func (a *cli) render(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}

	if a.output == outputYAML {
		var generic any
		if err := json.Unmarshal(data, &generic); err != nil {
			return fmt.Errorf("encoding output: %w", err)
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return fmt.Errorf("encoding output: %w", err)
		}
		return enc.Close()
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func readJSON(stdin io.Reader, file string, v any) error {
	r := stdin
	if file != "" && file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}

	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("decoding %s: %w", displayName(file), err)
	}
	return nil
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}

func displayName(file string) string {
	if file == "" || file == "-" {
		return "stdin"
	}
	return file
}
