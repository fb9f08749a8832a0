package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"sigs.k8s.io/yaml"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Output formats accepted by -o.
const (
	OutputText = "text"
	OutputJSON = "json"
	OutputYAML = "yaml"
)

func resolveOutputFormat() error {
	outputFormat = strings.ToLower(strings.TrimSpace(outputFormat))
	switch outputFormat {
	case "":
		outputFormat = OutputText
		if jsonOutput {
			outputFormat = OutputJSON
		}
	case OutputText, OutputJSON, OutputYAML:
	default:
		return fmt.Errorf("unknown output format %q", outputFormat)
	}
	return nil
}

func isStructuredOutput() bool {
	return jsonOutput || outputFormat == OutputJSON || outputFormat == OutputYAML
}

// printValue renders v in the selected structured format, or calls pretty
// for text output.
func printValue(w io.Writer, v any, pretty func()) error {
	switch {
	case outputFormat == OutputYAML:
		return printYAML(w, v)
	case outputFormat == OutputJSON || jsonOutput:
		return printJSON(w, v)
	default:
		pretty()
		return nil
	}
}

// printJSON prints the given value as indented JSON
func printJSON(w io.Writer, data any) error {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ErrAlreadyHandled
	}
	fmt.Fprintln(w, string(jsonData))
	return nil
}

// printYAML converts the JSON form of data to YAML, so json tags name the
// keys.
func printYAML(w io.Writer, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("unable to format output: %w", err)
	}
	out, err := yaml.JSONToYAML(jsonData)
	if err != nil {
		return fmt.Errorf("unable to format output: %w", err)
	}
	_, err = w.Write(out)
	return err
}
