package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/justyntemme/shelf/internal/tags"
)

var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "Read and edit item folder tags",
	Long: `Read and edit the tags stored in an item folder's .meta.json sidecar.

Tags are trimmed, deduplicated and sorted; case is kept. Other fields in
the sidecar are preserved.

Examples:
  shelf tags get ~/library/item1
  shelf tags set ~/library/item1 "red, large"
  shelf tags add ~/library/item1 vintage
  shelf tags remove ~/library/item1 large`,
}

var tagsGetCmd = &cobra.Command{
	Use:   "get <folder>",
	Short: "Print the tags of a folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		printTags(tags.Read(args[0]))
		return nil
	},
}

var tagsSetCmd = &cobra.Command{
	Use:   "set <folder> <tags>",
	Short: "Replace the tags of a folder with a comma-separated list",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := tags.Write(args[0], tags.ParseInput(args[1])); err != nil {
			return err
		}
		printTags(tags.Read(args[0]))
		return nil
	},
}

var tagsAddCmd = &cobra.Command{
	Use:   "add <folder> <tag>...",
	Short: "Add tags to a folder",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := tags.Add(args[0], splitTagArgs(args[1:])...)
		if err != nil {
			return err
		}
		printTags(result)
		return nil
	},
}

var tagsRemoveCmd = &cobra.Command{
	Use:   "remove <folder> <tag>...",
	Short: "Remove tags from a folder",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := tags.Remove(args[0], splitTagArgs(args[1:])...)
		if err != nil {
			return err
		}
		printTags(result)
		return nil
	},
}

// splitTagArgs accepts both "a b" and "a, b" argument styles.
func splitTagArgs(args []string) []string {
	var out []string
	for _, a := range args {
		out = append(out, tags.ParseInput(a)...)
	}
	return out
}

func printTags(list []string) {
	if len(list) == 0 {
		fmt.Println("(no tags)")
		return
	}
	fmt.Println(strings.Join(list, ", "))
}

func init() {
	// Tag edits touch only the sidecar
	for _, c := range []*cobra.Command{tagsGetCmd, tagsSetCmd, tagsAddCmd, tagsRemoveCmd} {
		c.Annotations = map[string]string{"skipLibrary": "true"}
		tagsCmd.AddCommand(c)
	}
	rootCmd.AddCommand(tagsCmd)
}
