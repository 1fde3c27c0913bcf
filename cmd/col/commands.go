package col

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ValentinKolb/dCol/lib/record"
	"github.com/spf13/cobra"
)

var (
	findCmd = &cobra.Command{
		Use:   "find [collection] [filter]",
		Short: "Prints the records matching a JSON filter (default: all)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cond, err := parseCondition(args, 1)
			if err != nil {
				return err
			}
			opts, err := findOptions(cmd)
			if err != nil {
				return err
			}
			records, err := db().Find(cmd.Context(), args[0], cond, opts)
			if err != nil {
				return err
			}
			return printJSON(records)
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [collection] [id]",
		Short: "Prints the record with the given id",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := db().FindByID(cmd.Context(), args[0], args[1], nil)
			if err != nil {
				return err
			}
			if rec == nil {
				return fmt.Errorf("record %s not found", args[1])
			}
			return printJSON(rec)
		},
	}
	insertCmd = &cobra.Command{
		Use:   "insert [collection] [record...]",
		Short: "Inserts one or more JSON records and prints them with their ids",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			items := make([]record.Record, 0, len(args)-1)
			for _, arg := range args[1:] {
				rec, err := parseRecord(arg)
				if err != nil {
					return err
				}
				items = append(items, rec)
			}
			inserted, err := db().InsertMany(cmd.Context(), args[0], items)
			if err != nil {
				return err
			}
			return printJSON(inserted)
		},
	}
	updateCmd = &cobra.Command{
		Use:   "update [collection] [filter] [patch]",
		Short: "Sets the fields of a JSON patch on all records matching a JSON filter",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cond, err := parseCondition(args, 1)
			if err != nil {
				return err
			}
			patch, err := parseRecord(args[2])
			if err != nil {
				return err
			}
			upsert, _ := cmd.Flags().GetBool("upsert")
			n, err := db().UpdateMany(cmd.Context(), args[0], cond, patch, record.UpdateOptions{Upsert: upsert})
			if err != nil {
				return err
			}
			fmt.Printf("updated %d record(s)\n", n)
			return nil
		},
	}
	removeCmd = &cobra.Command{
		Use:   "remove [collection] [filter]",
		Short: "Removes the records matching a JSON filter",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cond, err := parseCondition(args, 1)
			if err != nil {
				return err
			}
			one, _ := cmd.Flags().GetBool("one")
			n, err := db().Remove(cmd.Context(), args[0], cond, one)
			if err != nil {
				return err
			}
			fmt.Printf("removed %d record(s)\n", n)
			return nil
		},
	}
	countCmd = &cobra.Command{
		Use:   "count [collection] [filter]",
		Short: "Counts the records matching a JSON filter (default: all)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cond, err := parseCondition(args, 1)
			if err != nil {
				return err
			}
			n, err := db().Count(cmd.Context(), args[0], cond)
			if err != nil {
				return err
			}
			fmt.Println(n)
			return nil
		},
	}
	dropCmd = &cobra.Command{
		Use:   "drop [collection]",
		Short: "Drops a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dropped, err := db().Drop(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !dropped {
				return fmt.Errorf("collection %s was not dropped", args[0])
			}
			fmt.Println("dropped successfully")
			return nil
		},
	}
)

func init() {
	findCmd.Flags().Int("limit", 0, "Maximum number of records to print (0 = all)")
	findCmd.Flags().Int("offset", 0, "Number of matching records to skip")
	findCmd.Flags().String("sort", "", "Comma-separated sort fields, prefix a field with - to sort descending")
	findCmd.Flags().String("fields", "", "Comma-separated fields to print (default: all)")
	updateCmd.Flags().Bool("upsert", false, "Insert the merged filter and patch if nothing matched")
	removeCmd.Flags().Bool("one", false, "Remove at most one record")
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// parseRecord parses a JSON object
func parseRecord(s string) (record.Record, error) {
	var rec record.Record
	if err := json.Unmarshal([]byte(s), &rec); err != nil {
		return nil, fmt.Errorf("invalid record %q: %w", s, err)
	}
	if rec == nil {
		return nil, fmt.Errorf("invalid record %q: not an object", s)
	}
	return rec, nil
}

// parseCondition parses args[i] as a JSON filter, a missing filter matches all records
func parseCondition(args []string, i int) (record.Condition, error) {
	if len(args) <= i || strings.TrimSpace(args[i]) == "" {
		return record.Condition{}, nil
	}
	var cond record.Condition
	if err := json.Unmarshal([]byte(args[i]), &cond); err != nil {
		return nil, fmt.Errorf("invalid filter %q: %w", args[i], err)
	}
	return cond, nil
}

// parseSort parses "a,-b" into an ascending sort on a and a descending one on b
func parseSort(s string) record.Sort {
	var sort record.Sort
	for _, f := range splitList(s) {
		if strings.HasPrefix(f, "-") {
			sort = append(sort, record.Desc(strings.TrimPrefix(f, "-")))
		} else {
			sort = append(sort, record.Asc(f))
		}
	}
	return sort
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func findOptions(cmd *cobra.Command) (record.FindOptions, error) {
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return record.FindOptions{}, err
	}
	offset, err := cmd.Flags().GetInt("offset")
	if err != nil {
		return record.FindOptions{}, err
	}
	sort, _ := cmd.Flags().GetString("sort")
	fields, _ := cmd.Flags().GetString("fields")
	return record.FindOptions{
		Limit:      limit,
		Offset:     offset,
		Sort:       parseSort(sort),
		Projection: record.Projection(splitList(fields)),
	}, nil
}

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}
