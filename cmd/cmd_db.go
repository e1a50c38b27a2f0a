package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/dosco/docorm/core"
	"github.com/dosco/docorm/mongodriver"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// dbCmd creates the db command
func dbCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "db",
		Short: "Database commands",
	}

	c.AddCommand(&cobra.Command{
		Use:   "ping",
		Short: "Check that every configured connection is reachable",
		RunE:  cmdDBPing,
	})

	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the seed file and generated demo data into the database",
		Long: `Insert the documents listed in the seed file. The seed file maps
collection names to documents and can ask for generated demo data:

  collections:
    users:
      - name: Ann
        age: 31
  fake:
    users: 20
    posts: 50`,
		RunE: cmdDBSeed,
	}
	seedCmd.Flags().Int64("random-seed", 0, "Seed for the demo data generator, 0 picks one")
	c.AddCommand(seedCmd)

	fieldsCmd := &cobra.Command{
		Use:   "fields <collection>",
		Short: "Show the fields found in a sample of a collection",
		Args:  cobra.ExactArgs(1),
		RunE:  cmdDBFields,
	}
	fieldsCmd.Flags().Int("sample", 100, "Number of documents to sample")
	c.AddCommand(fieldsCmd)

	return c
}

func cmdDBPing(cmd *cobra.Command, args []string) error {
	if err := setup(cpath); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), cmdTimeout)
	defer cancel()

	if err := initPool(ctx); err != nil {
		return err
	}
	defer closePool()

	if err := pool.Ping(ctx); err != nil {
		return err
	}
	for _, n := range pool.Names() {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", n)
	}
	return nil
}

func cmdDBSeed(cmd *cobra.Command, args []string) error {
	if err := setup(cpath); err != nil {
		return err
	}

	sf, err := readSeedFile(afero.NewOsFs(), conf.AbsolutePath(conf.SeedFile))
	if err != nil {
		return err
	}
	randomSeed, _ := cmd.Flags().GetInt64("random-seed")

	docs, err := sf.documents(randomSeed)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cmdTimeout)
	defer cancel()

	if err := initPool(ctx); err != nil {
		return err
	}
	defer closePool()

	db, err := newDB()
	if err != nil {
		return err
	}

	for _, coll := range sortedKeys(docs) {
		list := docs[coll]
		if len(list) == 0 {
			continue
		}
		s := core.NewSchema(coll).WithCollection(coll)
		ids, err := core.For[bson.M](db, s).InsertMany(ctx, list...)
		if err != nil {
			return errors.Wrapf(err, "seeding %s", coll)
		}
		log.Infof("seeded %s: %d documents", coll, len(ids))
	}
	return nil
}

func cmdDBFields(cmd *cobra.Command, args []string) error {
	if err := setup(cpath); err != nil {
		return err
	}
	sample, _ := cmd.Flags().GetInt("sample")

	ctx, cancel := context.WithTimeout(cmd.Context(), cmdTimeout)
	defer cancel()

	if err := initPool(ctx); err != nil {
		return err
	}
	defer closePool()

	coll, err := pool.Collection(conf.Core.Connection, conf.Core.Database, args[0])
	if err != nil {
		return err
	}
	fields, err := mongodriver.InferFields(ctx, coll, sample)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FIELD\tTYPE\tSEEN\tARRAY\tREFERENCES")
	for _, f := range fields {
		fmt.Fprintf(w, "%s\t%s\t%d\t%v\t%s\n", f.Name, f.BSONType, f.Seen, f.IsArray, f.RefHint)
	}
	return w.Flush()
}
