package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	iface "github.com/poken/poseidon/internal/service/interface"
	"github.com/spf13/cobra"
)

// CallCommand represents the call command
type CallCommand struct {
	root *RootCommand
	cmd  *cobra.Command

	params      []string
	data        string
	contentType string
}

// NewCallCommand creates a new call command
func NewCallCommand(root *RootCommand) *CallCommand {
	c := &CallCommand{
		root: root,
	}

	c.cmd = &cobra.Command{
		Use:   "call METHOD PATH",
		Short: "Call the Poken API",
		Long: `Call the Poken API and print the response.

METHOD is one of GET, POST, PUT or DELETE. PATH is relative to the
configured API path unless it is a full URL. Parameters are sent in the
query string, or as the form body of POST requests. --data replaces the
body; prefix it with @ to read a file.

Example:
  poseidon call GET object/query -p q=badge
  poseidon call POST object -p name=badge
  poseidon call PUT object/42 --data @object.json --content-type application/json
  poseidon call GET me -o json`,
		Args: cobra.ExactArgs(2),
		RunE: c.Run,
	}

	c.cmd.Flags().StringArrayVarP(&c.params, "param", "p", nil, "Request parameter as key=value (repeatable)")
	c.cmd.Flags().StringVar(&c.data, "data", "", "Request body, or @file to read it from a file")
	c.cmd.Flags().StringVar(&c.contentType, "content-type", "", "Content type of --data")

	return c
}

// Command returns the underlying cobra command
func (c *CallCommand) Command() *cobra.Command {
	return c.cmd
}

// Run executes the call command
func (c *CallCommand) Run(cmd *cobra.Command, args []string) error {
	input := &iface.CallInput{
		Method:      args[0],
		Path:        args[1],
		ContentType: c.contentType,
	}

	for _, p := range c.params {
		key, value, ok := strings.Cut(p, "=")
		if !ok || key == "" {
			return fmt.Errorf("invalid parameter %q, expected key=value", p)
		}
		input.Params = append(input.Params, iface.Param{Key: key, Value: value})
	}

	if c.data != "" {
		data, err := readData(c.data)
		if err != nil {
			return err
		}
		input.Data = data
	}

	content, err := c.root.Container().APIService().Call(cmd.Context(), input)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch c.root.outputFormat() {
	case "json":
		return outputJSON(out, content)
	default:
		return outputContent(out, content)
	}
}

// readData returns the literal value, or the file content for @path
func readData(data string) ([]byte, error) {
	if path, ok := strings.CutPrefix(data, "@"); ok {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		return content, nil
	}
	return []byte(data), nil
}

// outputJSON outputs v in JSON format
func outputJSON(out io.Writer, v any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// outputContent prints flat objects as a table and anything else as JSON
func outputContent(out io.Writer, content any) error {
	switch v := content.(type) {
	case nil:
		fmt.Fprintln(out, "No content.")
		return nil
	case map[string]any:
		if !isFlat(v) {
			return outputJSON(out, v)
		}
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		for _, k := range keys {
			fmt.Fprintf(w, "%s\t%v\n", k, v[k])
		}
		return w.Flush()
	case []any:
		if len(v) == 0 {
			fmt.Fprintln(out, "No items.")
			return nil
		}
		return outputJSON(out, v)
	}
	fmt.Fprintln(out, content)
	return nil
}

func isFlat(m map[string]any) bool {
	for _, v := range m {
		switch v.(type) {
		case map[string]any, []any:
			return false
		}
	}
	return true
}
