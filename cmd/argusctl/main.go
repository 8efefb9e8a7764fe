// Package main is ArgusDB's administrative CLI, grounded on the cobra/
// pflag idiom shared by Pieczasz-smf's cmd/smf and MacroPower-x: one
// root command with a subcommand per engine-level operation. It talks
// to the engine API directly by constructing internal algebra
// (engine.Statement) in Go rather than through a SQL grammar, which is
// not implemented in this repo.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/argusdb/argus/internal/common"
	"github.com/argusdb/argus/internal/engine"
	"github.com/argusdb/argus/internal/query"
	"github.com/argusdb/argus/internal/value"
)

var configFile string

// registerGlobalFlags registers the flags shared by every subcommand
// directly against the pflag.FlagSet cobra exposes, the
// RegisterFlags(*pflag.FlagSet) idiom used throughout MacroPower-x's
// log/profile/profiler config types.
func registerGlobalFlags(flags *pflag.FlagSet) {
	flags.StringVarP(&configFile, "config", "c", "argus.toml", "configuration file path")
}

func main() {
	root := &cobra.Command{
		Use:   "argusctl",
		Short: "Administrative CLI for an ArgusDB data directory",
	}
	registerGlobalFlags(root.PersistentFlags())

	root.AddCommand(createCollectionCmd())
	root.AddCommand(dropCollectionCmd())
	root.AddCommand(showCollectionsCmd())
	root.AddCommand(insertCmd())
	root.AddCommand(selectCmd())
	root.AddCommand(compactCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openEngine() (*engine.Engine, error) {
	var cfg *common.Config
	var err error
	if _, statErr := os.Stat(configFile); statErr == nil {
		cfg, err = common.LoadFromFiles(configFile)
	} else {
		cfg, err = common.LoadFromFiles()
	}
	if err != nil {
		return nil, err
	}
	logger := common.NewLogger(cfg.Logging, "logs")
	return engine.Open(cfg, logger)
}

func createCollectionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create-collection <name>",
		Short: "Create a new, empty collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			eng, err := openEngine()
			if err != nil {
				return err
			}
			defer eng.Close()
			_, err = eng.Execute(engine.Statement{Kind: engine.StmtCreateCollection, Collection: args[0]})
			return err
		},
	}
}

func dropCollectionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drop-collection <name>",
		Short: "Drop a collection and delete its files",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			eng, err := openEngine()
			if err != nil {
				return err
			}
			defer eng.Close()
			_, err = eng.Execute(engine.Statement{Kind: engine.StmtDropCollection, Collection: args[0]})
			return err
		},
	}
}

func showCollectionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show-collections",
		Short: "List every known collection",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			eng, err := openEngine()
			if err != nil {
				return err
			}
			defer eng.Close()
			res, err := eng.Execute(engine.Statement{Kind: engine.StmtShowCollections})
			if err != nil {
				return err
			}
			for _, name := range res.Collections {
				fmt.Println(name)
			}
			return nil
		},
	}
}

func insertCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "insert <collection> <json-doc>",
		Short: "Insert one JSON document into a collection",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			doc, err := value.ParseJSON([]byte(args[1]))
			if err != nil {
				return fmt.Errorf("invalid JSON document: %w", err)
			}
			eng, err := openEngine()
			if err != nil {
				return err
			}
			defer eng.Close()
			stmt := engine.Statement{Kind: engine.StmtInsert, Collection: args[0], Docs: []value.Value{doc}}
			if id != "" {
				stmt.IDs = []string{id}
			}
			res, err := eng.Execute(stmt)
			if err != nil {
				return err
			}
			fmt.Println(res.InsertedIDs[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "explicit document id (auto-assigned if omitted)")
	return cmd
}

func selectCmd() *cobra.Command {
	var where string
	var limit, offset int
	var fields string
	cmd := &cobra.Command{
		Use:   "select <collection>",
		Short: "Run a SELECT-shaped scan against a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			eng, err := openEngine()
			if err != nil {
				return err
			}
			defer eng.Close()

			plan := &query.Plan{Collection: args[0], Offset: offset, Limit: -1}
			if limit >= 0 {
				plan.Limit = limit
			}
			if where != "" {
				expr, err := parseSimpleWhere(where)
				if err != nil {
					return err
				}
				plan.Filters = []query.Expr{expr}
			}
			if fields != "" && fields != "*" {
				names := strings.Split(fields, ",")
				plan.Fields = make([]query.ProjectField, len(names))
				for i, n := range names {
					n = strings.TrimSpace(n)
					plan.Fields[i] = query.ProjectField{Alias: n, Expr: query.FieldRef{Path: query.CompileDottedPath(n)}}
				}
			}

			res, err := eng.Execute(engine.Statement{Kind: engine.StmtSelect, Collection: args[0], Plan: plan})
			if err != nil {
				return err
			}
			for _, row := range res.Rows {
				b, err := row.MarshalJSON()
				if err != nil {
					return err
				}
				fmt.Println(string(b))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&where, "where", "", `simple filter "field op value", e.g. "a >= 2"`)
	cmd.Flags().IntVar(&limit, "limit", -1, "maximum rows to return (-1 for unbounded)")
	cmd.Flags().IntVar(&offset, "offset", 0, "rows to skip before the first returned row")
	cmd.Flags().StringVar(&fields, "fields", "*", "comma-separated dotted field list, or * for the whole document")
	return cmd
}

func compactCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compact <collection>",
		Short: "Force an immediate flush and compaction of a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			eng, err := openEngine()
			if err != nil {
				return err
			}
			defer eng.Close()
			tree, err := eng.Collection(args[0])
			if err != nil {
				return err
			}
			if err := tree.Flush(); err != nil {
				return err
			}
			return tree.Compact()
		},
	}
}

// parseSimpleWhere parses "field op literal" into a BinaryExpr, the
// minimal expression grammar the admin CLI exposes without pulling in a
// full SQL parser.
func parseSimpleWhere(s string) (query.Expr, error) {
	for _, op := range []string{">=", "<=", "!=", "<>", "=", "<", ">"} {
		idx := strings.Index(s, op)
		if idx <= 0 {
			continue
		}
		field := strings.TrimSpace(s[:idx])
		litStr := strings.TrimSpace(s[idx+len(op):])
		lit, err := parseLiteral(litStr)
		if err != nil {
			return nil, err
		}
		return query.BinaryExpr{
			Op:    op,
			Left:  query.FieldRef{Path: query.CompileDottedPath(field)},
			Right: query.Literal{Val: lit},
		}, nil
	}
	return nil, fmt.Errorf("unrecognized --where expression: %q", s)
}

func parseLiteral(s string) (value.Value, error) {
	if s == "true" || s == "false" {
		return value.NewBool(s == "true"), nil
	}
	if s == "null" {
		return value.NewNull(), nil
	}
	if (strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`)) ||
		(strings.HasPrefix(s, "'") && strings.HasSuffix(s, "'")) {
		return value.NewString(s[1 : len(s)-1]), nil
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return value.NewInt(i), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		var out value.Value
		if jerr := json.Unmarshal([]byte(s), &out); jerr == nil {
			return out, nil
		}
		return value.Value{}, fmt.Errorf("unrecognized literal %q", s)
	}
	return value.NewFloat(f), nil
}
