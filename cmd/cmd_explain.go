package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dosco/docorm/core"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

func explainCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "explain <collection>",
		Short: "Print the aggregation pipeline a query compiles to",
		Long: `Compile a query against a collection and print the pipeline without
running it. Conditions are given as "column operator value", for example:

  docorm explain users --where "age > 30" --or-where "city = Oslo" --order "age desc"`,
		Args: cobra.ExactArgs(1),
		RunE: cmdExplain,
	}
	c.Flags().StringArray("where", nil, "and-condition, repeatable")
	c.Flags().StringArray("or-where", nil, "or-condition, repeatable")
	c.Flags().StringArray("order", nil, `order key "column [asc|desc]", repeatable`)
	c.Flags().StringSlice("select", nil, "fields to return")
	c.Flags().StringSlice("group", nil, "fields to group by")
	c.Flags().Int64("skip", 0, "documents to skip")
	c.Flags().Int64("limit", 0, "maximum documents to return")
	c.Flags().Bool("soft-delete", false, "hide soft deleted documents")
	return c
}

func cmdExplain(cmd *cobra.Command, args []string) error {
	if err := setup(cpath); err != nil {
		return err
	}

	// compiling needs no connection
	db, err := core.New(&conf.Core, nil, core.OptionSetLogger(log.Desugar()))
	if err != nil {
		return err
	}

	p, err := explain(db, args[0], cmd)
	if err != nil {
		return err
	}

	out, err := bson.MarshalExtJSONIndent(bson.D{{Key: "pipeline", Value: p}}, false, false, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

func explain(db *core.DB, coll string, cmd *cobra.Command) (mongo.Pipeline, error) {
	s := core.NewSchema(coll).WithCollection(coll)
	if sd, _ := cmd.Flags().GetBool("soft-delete"); sd {
		s.WithSoftDelete()
	}
	m := core.For[bson.M](db, s)

	wheres, _ := cmd.Flags().GetStringArray("where")
	for _, w := range wheres {
		col, op, val, err := parseCond(w)
		if err != nil {
			return nil, err
		}
		m.Where(col, op, val)
	}

	orWheres, _ := cmd.Flags().GetStringArray("or-where")
	for _, w := range orWheres {
		col, op, val, err := parseCond(w)
		if err != nil {
			return nil, err
		}
		m.OrWhere(col, op, val)
	}

	orders, _ := cmd.Flags().GetStringArray("order")
	for _, o := range orders {
		col, dir, _ := strings.Cut(strings.TrimSpace(o), " ")
		m.OrderBy(col, strings.TrimSpace(dir))
	}

	if cols, _ := cmd.Flags().GetStringSlice("select"); len(cols) != 0 {
		m.Select(cols...)
	}
	if cols, _ := cmd.Flags().GetStringSlice("group"); len(cols) != 0 {
		m.GroupBy(cols...)
	}
	if n, _ := cmd.Flags().GetInt64("skip"); n != 0 {
		m.Skip(n)
	}
	if n, _ := cmd.Flags().GetInt64("limit"); n != 0 {
		m.Limit(n)
	}
	return m.Pipeline()
}

// parseCond splits "column op value". Values in a comma list become a
// list for in, notIn and between.
func parseCond(s string) (col, op string, val any, err error) {
	parts := strings.SplitN(strings.TrimSpace(s), " ", 3)
	if len(parts) != 3 {
		return "", "", nil, errors.Errorf("bad condition %q, expected \"column operator value\"", s)
	}
	col, op = parts[0], parts[1]
	raw := strings.TrimSpace(parts[2])

	switch op {
	case "in", "notIn", "between":
		var list []any
		for _, v := range strings.Split(raw, ",") {
			list = append(list, parseValue(strings.TrimSpace(v)))
		}
		return col, op, list, nil
	}
	return col, op, parseValue(raw), nil
}

func parseValue(s string) any {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	if s == "null" {
		return nil
	}
	return strings.Trim(s, `"'`)
}
